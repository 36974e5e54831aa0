package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// keySpec binds a dotted config key to its environment variable and to the
// Config field it fills. field returns a *string or an *int.
type keySpec struct {
	key    string
	env    string
	secret bool
	field  func(cfg *Config) any
}

var specs = []keySpec{
	{key: "ollama.base_url", field: func(c *Config) any { return &c.Ollama.BaseURL }},
	{key: "ollama.model", field: func(c *Config) any { return &c.Ollama.Model }},
	{key: "ollama.models_dir", field: func(c *Config) any { return &c.Ollama.ModelsDir }},
	{key: "ollama.keep_alive", field: func(c *Config) any { return &c.Ollama.KeepAlive }},
	{key: "storage.data_dir", field: func(c *Config) any { return &c.Storage.DataDir }},
	{key: "server.port", field: func(c *Config) any { return &c.Server.Port }},
	{key: "server.token", secret: true, field: func(c *Config) any { return &c.Server.Token }},
	{key: "log.level", field: func(c *Config) any { return &c.Log.Level }},
	{key: "batch.concurrency", field: func(c *Config) any { return &c.Batch.Concurrency }},
}

func init() {
	for i := range specs {
		specs[i].env = envName(specs[i].key)
	}
}

// envName maps "ollama.base_url" to CLAIMDECOMP_OLLAMA_BASE_URL.
func envName(key string) string {
	b := []byte("CLAIMDECOMP_")
	for _, r := range []byte(key) {
		switch {
		case r == '.':
			b = append(b, '_')
		case r >= 'a' && r <= 'z':
			b = append(b, r-'a'+'A')
		default:
			b = append(b, r)
		}
	}
	return string(b)
}

func lookup(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func (s keySpec) isInt() bool {
	var probe Config
	_, ok := s.field(&probe).(*int)
	return ok
}

// value renders the current value of the key in cfg.
func (s keySpec) value(cfg Config) string {
	switch p := s.field(&cfg).(type) {
	case *string:
		return *p
	case *int:
		return strconv.Itoa(*p)
	}
	return ""
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch p := s.field(cfg).(type) {
		case *string:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				*p = v
			}
		case *int:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				*p = v
			}
		}
	}
	return nil
}

// applyEnvOverrides applies CLAIMDECOMP_* variables. The process
// environment wins over dotenv, which holds values read from a .env file.
func applyEnvOverrides(cfg *Config, dotenv map[string]string) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			raw = dotenv[s.env]
		}
		if raw == "" {
			continue
		}
		switch p := s.field(cfg).(type) {
		case *string:
			*p = raw
		case *int:
			i, err := strconv.Atoi(raw)
			if err != nil {
				slog.Warn("ignoring non-integer env var", "env", s.env, "value", raw, "error", err)
				continue
			}
			*p = i
		}
	}
}
