// Package batch runs one prompt mode over many queries with bounded
// concurrency.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/claimdecomp/internal/dataset"
	"github.com/kalambet/claimdecomp/internal/engine"
	"github.com/kalambet/claimdecomp/internal/prompt"
)

// Job describes a batch: every query is run with the same mode, model and
// training pairs.
type Job struct {
	Mode     prompt.Mode
	Model    string
	Examples []prompt.Pair
	Queries  []dataset.Query
}

// Result is the outcome of one query. Err is set when the query failed;
// the rest of the batch is unaffected.
type Result struct {
	ID       string
	Message  string
	Answer   string
	Calls    int
	Duration time.Duration
	Err      error
}

// Runner executes batch jobs.
type Runner struct {
	asm         *prompt.Assembler
	out         io.Writer
	concurrency int
}

// NewRunner creates a Runner. Status output from the assembler is expected to
// go to out; concurrency below 1 is treated as 1.
func NewRunner(asm *prompt.Assembler, out io.Writer, concurrency int) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{asm: asm, out: out, concurrency: max(concurrency, 1)}
}

// Run ensures the model once, then runs every query. Results are returned in
// query order. The returned error is non-nil only when the batch could not
// start; per-query failures are reported in Result.Err.
func (r *Runner) Run(ctx context.Context, job Job) ([]Result, error) {
	if job.Mode.Calls() == 0 {
		return nil, fmt.Errorf("%w: %q", prompt.ErrUnknownMode, job.Mode)
	}
	if err := engine.EnsureModel(ctx, r.asm.Engine(), job.Model, r.out); err != nil {
		return nil, err
	}

	asm := r.asm.Presumed()
	results := make([]Result, len(job.Queries))

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, q := range job.Queries {
		results[i] = Result{ID: q.ID, Message: q.Message}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			res, err := asm.Run(ctx, prompt.Request{
				Mode:     job.Mode,
				Model:    job.Model,
				Message:  q.Message,
				Examples: job.Examples,
			})
			results[i].Answer = res.Answer
			results[i].Calls = len(res.Calls)
			results[i].Duration = res.Duration
			if err != nil {
				slog.Warn("batch query failed", "id", q.ID, "error", err)
				results[i].Err = err
			}
			return nil
		})
	}
	g.Wait()

	return results, nil
}

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

type record struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"`
	Model      string `json:"model"`
	Message    string `json:"message"`
	Answer     string `json:"answer"`
	Calls      int    `json:"calls"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// WriteJSONL writes one JSON object per result, in order.
func WriteJSONL(w io.Writer, job Job, results []Result) error {
	enc := json.NewEncoder(w)
	for _, res := range results {
		rec := record{
			ID:         res.ID,
			Mode:       string(job.Mode),
			Model:      job.Model,
			Message:    res.Message,
			Answer:     res.Answer,
			Calls:      res.Calls,
			DurationMS: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("writing result %s: %w", res.ID, err)
		}
	}
	return nil
}

// SyncWriter serializes writes to an underlying writer shared by concurrent
// runs.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
