package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/kalambet/claimdecomp/internal/progress"
)

// HasModel reports whether name is installed. Names are compared exactly:
// "llama2" and "llama2:latest" are different entries.
func HasModel(ctx context.Context, e Engine, name string) (bool, error) {
	models, err := e.ListModels(ctx)
	if err != nil {
		return false, fmt.Errorf("listing models: %w", err)
	}
	return slices.Contains(models, name), nil
}

// EnsureModel makes sure model is installed, pulling it when it is missing.
// Status lines and per-layer progress bars are written to w.
func EnsureModel(ctx context.Context, e Engine, model string, w io.Writer) error {
	return ensureModel(ctx, e, model, w, nil)
}

func ensureModel(ctx context.Context, e Engine, model string, w io.Writer, bars progress.Factory) error {
	if w == nil {
		w = io.Discard
	}

	ok, err := HasModel(ctx, e, model)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(w, "Model Cached - Using Cached Version...")
		return nil
	}

	fmt.Fprintln(w, "Model Uncached - Downloading...")
	tracker := progress.NewTracker(w, bars)
	err = e.PullModel(ctx, model, func(p PullProgress) {
		tracker.Handle(progress.Event{
			Digest:    p.Digest,
			Status:    p.Status,
			Total:     p.Total,
			Completed: p.Completed,
		})
	})
	if cerr := tracker.Close(); cerr != nil {
		slog.Debug("closing pull progress", "model", model, "error", cerr)
	}
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", model, err)
	}

	fmt.Fprintln(w, "Download Complete.")
	return nil
}

// EnsureRunning returns an error when the backend cannot be reached.
func EnsureRunning(ctx context.Context, e Engine) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("local inference engine is not running; start it with: ollama serve (or claimdecomp runtime)")
	}
	return nil
}
