package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kalambet/claimdecomp/internal/engine"
	"github.com/kalambet/claimdecomp/internal/prompt"
)

// Recorder stores finished prompt runs in the run history.
type Recorder struct {
	store *Store
}

// NewRecorder returns a prompt.Recorder backed by s.
func NewRecorder(s *Store) *Recorder {
	return &Recorder{store: s}
}

func (r *Recorder) Record(_ context.Context, req prompt.Request, res prompt.Result, runErr error) error {
	_, err := r.store.RecordRun(req, res, runErr)
	return err
}

// RecordRun converts a prompt run into a history record and saves it.
func (s *Store) RecordRun(req prompt.Request, res prompt.Result, runErr error) (Run, error) {
	run, err := RunFromResult(req, res, runErr)
	if err != nil {
		return Run{}, err
	}
	return s.SaveRun(run)
}

// RunFromResult converts a prompt run into a history record.
func RunFromResult(req prompt.Request, res prompt.Result, runErr error) (Run, error) {
	calls := res.Calls
	if calls == nil {
		calls = [][]engine.Message{}
	}
	transcript, err := json.Marshal(calls)
	if err != nil {
		return Run{}, fmt.Errorf("encoding transcript: %w", err)
	}

	run := Run{
		Mode:       string(req.Mode),
		Model:      req.Model,
		Message:    req.Message,
		Examples:   len(req.Examples),
		Transcript: string(transcript),
		Answer:     res.Answer,
		Status:     StatusCompleted,
		DurationMS: res.Duration.Milliseconds(),
		Calls:      len(res.Calls),
	}
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	}
	return run, nil
}

// DecodeTranscript returns the message list of each chat call in r.
func (r Run) DecodeTranscript() ([][]engine.Message, error) {
	var calls [][]engine.Message
	if err := json.Unmarshal([]byte(r.Transcript), &calls); err != nil {
		return nil, fmt.Errorf("decoding transcript of run %s: %w", r.ID, err)
	}
	return calls, nil
}
