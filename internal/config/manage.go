package config

import (
	"fmt"
	"strconv"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
// Secrets are listed with a masked value.
func ShowAll(cfg Config) []KeyInfo {
	result := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		v := s.value(cfg)
		if s.secret && v != "" {
			v = "********"
		}
		result = append(result, KeyInfo{Key: s.key, EnvVar: s.env, Value: v})
	}
	return result
}

// Location describes where SetKey writes on this platform.
func Location() string {
	return newPlatformBackend().Location()
}

// SetKey writes a config key to the platform backend.
func SetKey(key, value string) error {
	return setKey(newPlatformBackend(), key, value)
}

// UnsetKey removes a key from the platform backend so its default applies again.
func UnsetKey(key string) error {
	return unsetKey(newPlatformBackend(), key)
}

func settable(key string) (keySpec, error) {
	s, ok := lookup(key)
	if !ok {
		return keySpec{}, fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return keySpec{}, fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
	}
	return s, nil
}

func setKey(b ConfigBackend, key, value string) error {
	s, err := settable(key)
	if err != nil {
		return err
	}
	if err := validateValue(key, value); err != nil {
		return err
	}
	if !s.isInt() {
		return b.SetString(key, value)
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer value for %s: %w", key, err)
	}
	return b.SetInt(key, i)
}

func unsetKey(b ConfigBackend, key string) error {
	if _, err := settable(key); err != nil {
		return err
	}
	return b.Delete(key)
}

func validateValue(key, value string) error {
	switch key {
	case "ollama.keep_alive":
		if _, err := ParseKeepAlive(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	case "batch.concurrency":
		if i, err := strconv.Atoi(value); err == nil && i < 1 {
			return fmt.Errorf("invalid value for %s: must be at least 1", key)
		}
	case "log.level":
		switch value {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid value for %s: want debug, info, warn or error", key)
		}
	}
	return nil
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
