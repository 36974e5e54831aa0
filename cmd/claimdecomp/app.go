package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/kalambet/claimdecomp/internal/engine"
	"github.com/kalambet/claimdecomp/internal/prompt"
	"github.com/kalambet/claimdecomp/internal/storage"
)

// newEngine builds the inference backend from the loaded config.
var newEngine = func() (engine.Engine, error) {
	eng, err := engine.Detect(engine.DetectConfig{
		OllamaBaseURL: cfg.Ollama.BaseURL,
		KeepAlive:     cfg.Ollama.KeepAlive,
	})
	if err != nil {
		return nil, fmt.Errorf("detecting inference engine: %w", err)
	}
	return eng, nil
}

func openStore() (*storage.Store, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

func closeStore(s *storage.Store) {
	if err := s.Close(); err != nil {
		slog.Warn("closing storage", "error", err)
	}
}

// newAssembler wires the engine and, unless history is disabled, a run
// recorder. The returned cleanup closes the store.
func newAssembler(out io.Writer, legacy, record bool) (*prompt.Assembler, func(), error) {
	eng, err := newEngine()
	if err != nil {
		return nil, nil, err
	}

	opts := prompt.Options{Out: out, LegacyFewShot: legacy}
	cleanup := func() {}
	if record {
		store, err := openStore()
		if err != nil {
			return nil, nil, err
		}
		opts.Recorder = storage.NewRecorder(store)
		cleanup = func() { closeStore(store) }
	}
	return prompt.New(eng, opts), cleanup, nil
}

func modelOrDefault(model string) string {
	if model != "" {
		return model
	}
	return cfg.Ollama.Model
}
