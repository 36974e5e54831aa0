package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kalambet/claimdecomp/internal/engine"
	"github.com/kalambet/claimdecomp/internal/prompt"
	"github.com/kalambet/claimdecomp/internal/storage"
)

// mockEngine answers chat call N with "reply-N" and records the messages.
type mockEngine struct {
	mu      sync.Mutex
	models  []string
	listErr error
	chatErr error
	calls   [][]engine.Message
}

func (m *mockEngine) Chat(_ context.Context, _ string, msgs []engine.Message) (engine.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, msgs)
	if m.chatErr != nil {
		return engine.Message{}, m.chatErr
	}
	return engine.Message{Role: engine.RoleAssistant, Content: fmt.Sprintf("reply-%d", len(m.calls))}, nil
}

func (m *mockEngine) IsRunning(context.Context) bool { return true }

func (m *mockEngine) ListModels(context.Context) ([]string, error) {
	return m.models, m.listErr
}

func (m *mockEngine) PullModel(context.Context, string, func(engine.PullProgress)) error {
	return errors.New("pull not expected in tests")
}

func newTestDeps(t *testing.T) (Deps, *mockEngine, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng := &mockEngine{models: []string{"llama2", "mistral"}}
	return Deps{
		Assembler:    prompt.New(eng, prompt.Options{}),
		Store:        store,
		DefaultModel: "llama2",
	}, eng, store
}
