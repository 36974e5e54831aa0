package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/claimdecomp/internal/dataset"
	"github.com/kalambet/claimdecomp/internal/engine"
	"github.com/kalambet/claimdecomp/internal/prompt"
)

// echoEngine answers every chat with the first message's content upper-cased
// and fails on messages containing "fail".
type echoEngine struct {
	mu       sync.Mutex
	models   []string
	pulls    int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (e *echoEngine) Chat(_ context.Context, _ string, msgs []engine.Message) (engine.Message, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	content := msgs[0].Content
	if strings.Contains(content, "fail") {
		return engine.Message{}, errors.New("model refused")
	}
	return engine.Message{Role: engine.RoleAssistant, Content: strings.ToUpper(content)}, nil
}

func (e *echoEngine) IsRunning(context.Context) bool { return true }

func (e *echoEngine) ListModels(context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.models...), nil
}

func (e *echoEngine) PullModel(_ context.Context, name string, _ func(engine.PullProgress)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pulls++
	e.models = append(e.models, name)
	return nil
}

func queries(msgs ...string) []dataset.Query {
	qs := make([]dataset.Query, len(msgs))
	for i, m := range msgs {
		qs[i] = dataset.Query{ID: string(rune('a' + i)), Message: m}
	}
	return qs
}

func TestRun_KeepsOrderAndCapturesErrors(t *testing.T) {
	eng := &echoEngine{}
	out := NewSyncWriter(&bytes.Buffer{})
	r := NewRunner(prompt.New(eng, prompt.Options{Out: out}), out, 3)

	job := Job{
		Mode:    prompt.ModeZeroShot,
		Model:   "llama2",
		Queries: queries("one", "two", "please fail", "four", "five"),
	}
	results, err := r.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	want := []string{"ONE", "TWO", "", "FOUR", "FIVE"}
	for i, res := range results {
		if res.ID != job.Queries[i].ID {
			t.Errorf("result[%d].ID = %q, want %q", i, res.ID, job.Queries[i].ID)
		}
		if res.Answer != want[i] {
			t.Errorf("result[%d].Answer = %q, want %q", i, res.Answer, want[i])
		}
	}
	if results[2].Err == nil || !strings.Contains(results[2].Err.Error(), "model refused") {
		t.Errorf("result[2].Err = %v, want model refused", results[2].Err)
	}
	if Failed(results) != 1 {
		t.Errorf("Failed = %d, want 1", Failed(results))
	}
	if eng.pulls != 1 {
		t.Errorf("pulls = %d, want exactly 1", eng.pulls)
	}
}

func TestRun_RespectsConcurrencyLimit(t *testing.T) {
	eng := &echoEngine{models: []string{"m"}}
	r := NewRunner(prompt.New(eng, prompt.Options{}), nil, 2)

	_, err := r.Run(context.Background(), Job{
		Mode:    prompt.ModeZeroShot,
		Model:   "m",
		Queries: queries("a", "b", "c", "d", "e", "f", "g", "h"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p := eng.peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestRun_CancelledContextMarksEveryQuery(t *testing.T) {
	eng := &echoEngine{models: []string{"m"}}
	r := NewRunner(prompt.New(eng, prompt.Options{}), nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// EnsureModel only lists models, which the fake serves regardless of ctx.
	results, err := r.Run(ctx, Job{Mode: prompt.ModeZeroShot, Model: "m", Queries: queries("a", "b")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("result[%d].Err = %v, want context.Canceled", i, res.Err)
		}
	}
}

func TestRun_UnknownMode(t *testing.T) {
	r := NewRunner(prompt.New(&echoEngine{}, prompt.Options{}), nil, 1)
	if _, err := r.Run(context.Background(), Job{Mode: "nope", Model: "m"}); !errors.Is(err, prompt.ErrUnknownMode) {
		t.Errorf("err = %v, want ErrUnknownMode", err)
	}
}

func TestWriteJSONL(t *testing.T) {
	job := Job{Mode: prompt.ModeChainZeroShot, Model: "m"}
	results := []Result{
		{ID: "1", Message: "q1", Answer: "a1", Calls: 2, Duration: 2 * time.Second},
		{ID: "2", Message: "q2", Err: errors.New("boom")},
	}

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, job, results); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 2: %v", err)
	}
	if first["answer"] != "a1" || first["mode"] != "cor-zero-shot" || first["duration_ms"] != float64(2000) {
		t.Errorf("line 1 = %v", first)
	}
	if _, ok := first["error"]; ok {
		t.Errorf("successful result should omit error: %v", first)
	}
	if second["error"] != "boom" {
		t.Errorf("line 2 error = %v", second["error"])
	}
}
