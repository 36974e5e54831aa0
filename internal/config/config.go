package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Ollama  OllamaConfig
	Storage StorageConfig
	Server  ServerConfig
	Log     LogConfig
	Batch   BatchConfig
}

type OllamaConfig struct {
	BaseURL   string
	Model     string
	ModelsDir string
	KeepAlive string
}

type StorageConfig struct {
	DataDir string
}

type ServerConfig struct {
	Port  int
	Token string
}

type LogConfig struct {
	Level string
}

type BatchConfig struct {
	Concurrency int
}

func defaults() Config {
	return Config{
		Ollama: OllamaConfig{
			BaseURL:   "http://localhost:11434",
			Model:     "llama2",
			ModelsDir: "./models",
			KeepAlive: "1m",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port: 4000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Batch: BatchConfig{
			Concurrency: 2,
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, and environment variables.
//
// On macOS the backend is UserDefaults (domain: com.claimdecomp.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/claimdecomp/config.json.
//
// Variables from .env never replace ones already set in the environment,
// and are never written into it.
// Environment variables (CLAIMDECOMP_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), ".env")
}

func loadWith(b ConfigBackend, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	var dotenv map[string]string
	if envFile != "" {
		var err error
		dotenv, err = godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	applyEnvOverrides(&cfg, dotenv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that the key table cannot type-check on its own.
func (c Config) Validate() error {
	if _, err := ParseKeepAlive(c.Ollama.KeepAlive); err != nil {
		return fmt.Errorf("invalid ollama.keep_alive: %w", err)
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("invalid batch.concurrency %d: must be at least 1", c.Batch.Concurrency)
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("missing required config: ollama.model")
	}
	return nil
}

// ParseKeepAlive accepts a Go duration ("5m", "90s") or whole seconds ("300").
// Negative values are allowed: Ollama treats them as "keep loaded forever".
func ParseKeepAlive(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}
