// Package api exposes prompt runs and run history over HTTP and MCP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/claimdecomp/internal/engine"
	"github.com/kalambet/claimdecomp/internal/prompt"
	"github.com/kalambet/claimdecomp/internal/storage"
)

// Deps holds what the HTTP and MCP surfaces need.
type Deps struct {
	// Assembler must not carry a Recorder: runs are saved here so the run ID
	// can be returned to the caller.
	Assembler    *prompt.Assembler
	Store        *storage.Store // optional; nil disables history
	DefaultModel string
	Token        string // bearer token for HTTP; empty disables auth
}

// PromptRequest is the body of POST /v1/prompt.
type PromptRequest struct {
	Mode     string        `json:"mode"`
	Model    string        `json:"model"`
	Message  string        `json:"message"`
	Examples []prompt.Pair `json:"examples"`
}

// PromptResponse reports the answer of a run and the messages of each chat call.
type PromptResponse struct {
	ID     string             `json:"id,omitempty"`
	Mode   string             `json:"mode"`
	Model  string             `json:"model"`
	Answer string             `json:"answer"`
	Calls  [][]engine.Message `json:"calls"`
}

// RunView is the JSON shape of a stored run.
type RunView struct {
	ID         string             `json:"id"`
	CreatedAt  string             `json:"created_at"`
	Mode       string             `json:"mode"`
	Model      string             `json:"model"`
	Message    string             `json:"message"`
	Examples   int                `json:"examples"`
	Answer     string             `json:"answer"`
	Status     string             `json:"status"`
	Error      string             `json:"error,omitempty"`
	DurationMS int64              `json:"duration_ms"`
	Calls      int                `json:"calls"`
	Transcript [][]engine.Message `json:"transcript,omitempty"`
}

func newRunView(r storage.Run, withTranscript bool) (RunView, error) {
	v := RunView{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		Mode:       r.Mode,
		Model:      r.Model,
		Message:    r.Message,
		Examples:   r.Examples,
		Answer:     r.Answer,
		Status:     r.Status,
		Error:      r.Error,
		DurationMS: r.DurationMS,
		Calls:      r.Calls,
	}
	if withTranscript {
		calls, err := r.DecodeTranscript()
		if err != nil {
			return RunView{}, err
		}
		v.Transcript = calls
	}
	return v, nil
}

// errBadRequest marks request validation failures.
type errBadRequest struct{ msg string }

func (e errBadRequest) Error() string { return e.msg }

// runPrompt validates req, runs it and saves the outcome to the history.
func runPrompt(ctx context.Context, deps Deps, req PromptRequest) (PromptResponse, error) {
	mode := prompt.ModeZeroShot
	if req.Mode != "" {
		m, err := prompt.ParseMode(req.Mode)
		if err != nil {
			return PromptResponse{}, errBadRequest{err.Error()}
		}
		mode = m
	}
	if req.Message == "" {
		return PromptResponse{}, errBadRequest{"message is required"}
	}
	model := req.Model
	if model == "" {
		model = deps.DefaultModel
	}
	if model == "" {
		return PromptResponse{}, errBadRequest{"model is required"}
	}

	preq := prompt.Request{Mode: mode, Model: model, Message: req.Message, Examples: req.Examples}
	res, runErr := deps.Assembler.Run(ctx, preq)

	resp := PromptResponse{Mode: string(mode), Model: model, Answer: res.Answer, Calls: res.Calls}
	if resp.Calls == nil {
		resp.Calls = [][]engine.Message{}
	}
	if deps.Store != nil {
		run, err := deps.Store.RecordRun(preq, res, runErr)
		if err != nil {
			slog.Warn("recording prompt run failed", "mode", mode, "error", err)
		} else {
			resp.ID = run.ID
		}
	}
	if runErr != nil {
		return resp, fmt.Errorf("running %s prompt: %w", mode, runErr)
	}
	return resp, nil
}
