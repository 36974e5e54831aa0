// Package engine is the seam between prompt assembly and the local model
// runtime.
package engine

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PullProgress is one update from a model download. Digest names the layer
// and is empty for status-only updates such as "pulling manifest".
type PullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// Engine is a local model runtime.
type Engine interface {
	// Chat runs one non-streaming chat call and returns the reply.
	Chat(ctx context.Context, model string, messages []Message) (Message, error)
	IsRunning(ctx context.Context) bool
	// ListModels returns installed model names exactly as the runtime reports them.
	ListModels(ctx context.Context) ([]string, error)
	// PullModel downloads name, reporting each progress update to onProgress
	// when it is non-nil.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
