package engine

import (
	"context"

	"github.com/kalambet/claimdecomp/internal/ollama"
)

// OllamaEngine adapts the internal/ollama.Client to the Engine interface.
type OllamaEngine struct {
	client *ollama.Client
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at baseURL.
// keepAlive is forwarded with every chat request; empty leaves the server default.
func NewOllamaEngine(baseURL, keepAlive string) *OllamaEngine {
	return &OllamaEngine{client: ollama.New(baseURL, ollama.WithKeepAlive(keepAlive))}
}

// Client exposes the underlying HTTP client.
func (e *OllamaEngine) Client() *ollama.Client {
	return e.client
}

func (e *OllamaEngine) Chat(ctx context.Context, model string, messages []Message) (Message, error) {
	msgs := make([]ollama.Message, len(messages))
	for i, m := range messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}

	resp, err := e.client.Chat(ctx, model, msgs)
	if err != nil {
		return Message{}, err
	}
	return Message{Role: resp.Role, Content: resp.Content}, nil
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaEngine) ListModels(ctx context.Context) ([]string, error) {
	models, err := e.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names, nil
}

func (e *OllamaEngine) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	var cb func(ollama.PullProgress)
	if onProgress != nil {
		cb = func(p ollama.PullProgress) {
			onProgress(PullProgress{
				Status:    p.Status,
				Digest:    p.Digest,
				Total:     p.Total,
				Completed: p.Completed,
			})
		}
	}
	return e.client.PullModel(ctx, name, cb)
}
