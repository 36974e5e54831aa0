package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kalambet/claimdecomp/internal/engine"
	"github.com/kalambet/claimdecomp/internal/prompt"
)

func TestRecorder_SavesCompletedRun(t *testing.T) {
	s := openTestStore(t)
	rec := NewRecorder(s)

	req := prompt.Request{
		Mode:     prompt.ModeFewShot,
		Model:    "llama2",
		Message:  "Q",
		Examples: []prompt.Pair{{Input: "a", Output: "1"}, {Input: "b", Output: "2"}},
	}
	res := prompt.Result{
		Mode:     prompt.ModeFewShot,
		Model:    "llama2",
		Answer:   "A",
		Calls:    [][]engine.Message{{{Role: "user", Content: "prompt"}}},
		Duration: 1500 * time.Millisecond,
	}
	if err := rec.Record(context.Background(), req, res, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := s.RecentRuns(10, 0)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.Mode != "few-shot" || r.Examples != 2 || r.Answer != "A" || r.Calls != 1 {
		t.Errorf("run = %+v", r)
	}
	if r.DurationMS != 1500 {
		t.Errorf("DurationMS = %d, want 1500", r.DurationMS)
	}
	if r.Status != StatusCompleted || r.Error != "" {
		t.Errorf("Status/Error = %q/%q", r.Status, r.Error)
	}

	calls, err := r.DecodeTranscript()
	if err != nil {
		t.Fatalf("DecodeTranscript: %v", err)
	}
	if len(calls) != 1 || calls[0][0].Content != "prompt" {
		t.Errorf("transcript = %+v", calls)
	}
}

func TestRecordRun_Failed(t *testing.T) {
	s := openTestStore(t)

	run, err := s.RecordRun(
		prompt.Request{Mode: prompt.ModeZeroShot, Model: "m", Message: "hi"},
		prompt.Result{},
		errors.New("engine down"),
	)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != StatusFailed || got.Error != "engine down" {
		t.Errorf("Status/Error = %q/%q", got.Status, got.Error)
	}
	if got.Transcript != "[]" {
		t.Errorf("Transcript = %q, want []", got.Transcript)
	}
}
