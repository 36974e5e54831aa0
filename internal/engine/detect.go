package engine

import (
	"fmt"
	"net/url"
	"strings"
)

// DetectConfig holds parameters for backend detection.
type DetectConfig struct {
	OllamaBaseURL string
	KeepAlive     string
}

// Detect returns the inference backend for cfg. Ollama is the only backend;
// the base URL must be an absolute http or https URL.
func Detect(cfg DetectConfig) (Engine, error) {
	base := strings.TrimRight(cfg.OllamaBaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", cfg.OllamaBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama base URL %q: want http(s)://host:port", cfg.OllamaBaseURL)
	}
	return NewOllamaEngine(base, cfg.KeepAlive), nil
}
