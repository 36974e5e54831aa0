// Package prompt builds zero-shot, few-shot and chain-of-reasoning
// conversations and runs them against a local model.
package prompt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/claimdecomp/internal/engine"
)

// Request describes a single prompt run.
type Request struct {
	Mode     Mode
	Model    string
	Message  string
	Examples []Pair
}

// Result is the outcome of a run. Calls holds the messages sent on each chat
// call and Replies the message each call returned.
type Result struct {
	Mode     Mode
	Model    string
	Answer   string
	Calls    [][]engine.Message
	Replies  []engine.Message
	Duration time.Duration
}

// Recorder persists finished runs. runErr is the error the run failed with,
// or nil.
type Recorder interface {
	Record(ctx context.Context, req Request, res Result, runErr error) error
}

// Options configures an Assembler.
type Options struct {
	// Out receives model presence messages, pull progress and run headers.
	Out io.Writer
	// Recorder is optional.
	Recorder Recorder
	// LegacyFewShot keeps only the last training pair in few-shot prompts.
	LegacyFewShot bool
}

// Assembler runs prompts against an Engine. It is safe for concurrent use
// as long as Out and Recorder are.
type Assembler struct {
	eng        engine.Engine
	out        io.Writer
	rec        Recorder
	legacy     bool
	skipEnsure bool
	warnLegacy *sync.Once
}

// New creates an Assembler.
func New(e engine.Engine, opts Options) *Assembler {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Assembler{
		eng:        e,
		out:        out,
		rec:        opts.Recorder,
		legacy:     opts.LegacyFewShot,
		warnLegacy: new(sync.Once),
	}
}

// Engine returns the backend the assembler runs against.
func (a *Assembler) Engine() engine.Engine {
	return a.eng
}

// Presumed returns an Assembler sharing a's settings that skips the model
// presence check. Callers use it after ensuring the model themselves.
func (a *Assembler) Presumed() *Assembler {
	c := *a
	c.skipEnsure = true
	return &c
}

// ZeroShot sends the message on its own.
func (a *Assembler) ZeroShot(ctx context.Context, model, message string) (string, error) {
	res, err := a.Run(ctx, Request{Mode: ModeZeroShot, Model: model, Message: message})
	return res.Answer, err
}

// FewShot prefixes the message with the training pairs.
func (a *Assembler) FewShot(ctx context.Context, model string, pairs []Pair, message string) (string, error) {
	res, err := a.Run(ctx, Request{Mode: ModeFewShot, Model: model, Message: message, Examples: pairs})
	return res.Answer, err
}

// ChainZeroShot asks for step-by-step reasoning, then for the final answer.
func (a *Assembler) ChainZeroShot(ctx context.Context, model, message string) (string, error) {
	res, err := a.Run(ctx, Request{Mode: ModeChainZeroShot, Model: model, Message: message})
	return res.Answer, err
}

// ChainFewShot is ChainZeroShot with worked training pairs in front of the message.
func (a *Assembler) ChainFewShot(ctx context.Context, model string, pairs []Pair, message string) (string, error) {
	res, err := a.Run(ctx, Request{Mode: ModeChainFewShot, Model: model, Message: message, Examples: pairs})
	return res.Answer, err
}

// Run executes req and records it when a Recorder is configured.
func (a *Assembler) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := a.run(ctx, req)
	res.Duration = time.Since(start)

	if a.rec != nil {
		if rerr := a.rec.Record(ctx, req, res, err); rerr != nil {
			slog.Warn("recording prompt run failed", "mode", req.Mode, "error", rerr)
		}
	}
	return res, err
}

func (a *Assembler) run(ctx context.Context, req Request) (Result, error) {
	res := Result{Mode: req.Mode, Model: req.Model}
	if req.Mode.Calls() == 0 {
		return res, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	if !a.skipEnsure {
		if err := engine.EnsureModel(ctx, a.eng, req.Model, a.out); err != nil {
			return res, err
		}
	}
	fmt.Fprintln(a.out, header(req))

	var err error
	switch req.Mode {
	case ModeZeroShot:
		err = a.zeroShot(ctx, &res, req)
	case ModeFewShot:
		err = a.fewShot(ctx, &res, req)
	case ModeChainZeroShot:
		err = a.chainZeroShot(ctx, &res, req)
	case ModeChainFewShot:
		err = a.chainFewShot(ctx, &res, req)
	}
	return res, err
}

func header(req Request) string {
	switch req.Mode {
	case ModeZeroShot:
		return fmt.Sprintf("Zero Shot (%s):", req.Model)
	case ModeFewShot:
		return fmt.Sprintf("Few Shot (%s): %d Samples", req.Model, len(req.Examples))
	case ModeChainZeroShot:
		return fmt.Sprintf("Chain of Reasoning - Zero Shot (%s):", req.Model)
	default:
		return fmt.Sprintf("Few Shot - Chain of Reasoning (%s): %d Samples", req.Model, len(req.Examples))
	}
}

func (a *Assembler) zeroShot(ctx context.Context, res *Result, req Request) error {
	reply, err := a.chat(ctx, res, req.Model, []engine.Message{
		{Role: engine.RoleUser, Content: req.Message},
	})
	if err != nil {
		return err
	}
	res.Answer = reply.Content
	return nil
}

func (a *Assembler) fewShot(ctx context.Context, res *Result, req Request) error {
	var content string
	if a.legacy {
		content = LegacyFewShotPrompt(req.Examples, req.Message)
	} else {
		if len(req.Examples) > 1 {
			a.warnLegacy.Do(func() {
				slog.Warn("few-shot prompt includes every training pair; the legacy builder kept only the last one",
					"pairs", len(req.Examples))
			})
		}
		content = FewShotPrompt(req.Examples, req.Message)
	}

	reply, err := a.chat(ctx, res, req.Model, []engine.Message{
		{Role: engine.RoleUser, Content: content},
	})
	if err != nil {
		return err
	}
	res.Answer = reply.Content
	return nil
}

func (a *Assembler) chainZeroShot(ctx context.Context, res *Result, req Request) error {
	reasoning, err := a.chat(ctx, res, req.Model, []engine.Message{
		{Role: engine.RoleUser, Content: req.Message},
		{Role: engine.RoleAssistant, Content: StepByStep},
	})
	if err != nil {
		return err
	}

	final, err := a.chat(ctx, res, req.Model, []engine.Message{
		asAssistant(reasoning),
		{Role: engine.RoleAssistant, Content: FinalAnswer},
	})
	if err != nil {
		return err
	}
	res.Answer = final.Content
	return nil
}

func (a *Assembler) chainFewShot(ctx context.Context, res *Result, req Request) error {
	initial := []engine.Message{
		{Role: engine.RoleUser, Content: ChainFewShotPrompt(req.Examples, req.Message)},
		{Role: engine.RoleAssistant, Content: StepByStep},
	}
	reasoning, err := a.chat(ctx, res, req.Model, initial)
	if err != nil {
		return err
	}

	second := make([]engine.Message, 0, len(initial)+2)
	second = append(second, initial...)
	second = append(second, asAssistant(reasoning), engine.Message{Role: engine.RoleAssistant, Content: FinalAnswer})

	final, err := a.chat(ctx, res, req.Model, second)
	if err != nil {
		return err
	}
	res.Answer = final.Content
	return nil
}

func (a *Assembler) chat(ctx context.Context, res *Result, model string, msgs []engine.Message) (engine.Message, error) {
	res.Calls = append(res.Calls, msgs)
	reply, err := a.eng.Chat(ctx, model, msgs)
	if err != nil {
		return engine.Message{}, fmt.Errorf("chat call %d: %w", len(res.Calls), err)
	}
	res.Replies = append(res.Replies, reply)
	return reply, nil
}

// asAssistant fills in the role when the backend left it empty.
func asAssistant(m engine.Message) engine.Message {
	if m.Role == "" {
		m.Role = engine.RoleAssistant
	}
	return m
}
