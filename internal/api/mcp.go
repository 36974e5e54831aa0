package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/claimdecomp/internal/prompt"
)

// NewMCPServer creates an MCP server exposing the prompt modes as tools and
// the run history as a resource.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"claimdecomp",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("claimdecomp runs zero-shot, few-shot and chain-of-reasoning prompts against a local Ollama model."),
		server.WithRecovery(),
	)

	modelOpt := mcp.WithString("model", mcp.Description("Model name; defaults to the configured model"))
	messageOpt := mcp.WithString("message", mcp.Description("The message to send"), mcp.Required())
	examplesOpt := mcp.WithArray("examples",
		mcp.Description("Training pairs: a list of {input, output} objects"),
		mcp.Required(),
	)

	s.AddTool(
		mcp.NewTool("zero_shot",
			mcp.WithDescription("Send the message to the model on its own."),
			messageOpt, modelOpt,
		),
		mcpPrompt(deps, prompt.ModeZeroShot),
	)
	s.AddTool(
		mcp.NewTool("few_shot",
			mcp.WithDescription("Prefix the message with input/output training pairs."),
			messageOpt, examplesOpt, modelOpt,
		),
		mcpPrompt(deps, prompt.ModeFewShot),
	)
	s.AddTool(
		mcp.NewTool("chain_zero_shot",
			mcp.WithDescription("Ask for step-by-step reasoning, then for the final answer (two model calls)."),
			messageOpt, modelOpt,
		),
		mcpPrompt(deps, prompt.ModeChainZeroShot),
	)
	s.AddTool(
		mcp.NewTool("chain_few_shot",
			mcp.WithDescription("Chain-of-reasoning prompt with worked training pairs (two model calls)."),
			messageOpt, examplesOpt, modelOpt,
		),
		mcpPrompt(deps, prompt.ModeChainFewShot),
	)
	s.AddTool(
		mcp.NewTool("list_models",
			mcp.WithDescription("List the models installed in the local runtime."),
		),
		mcpListModels(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"history://recent",
			"Recent Runs",
			mcp.WithResourceDescription("Last 10 prompt runs"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpPrompt(deps Deps, mode prompt.Mode) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		preq := PromptRequest{
			Mode:    string(mode),
			Model:   req.GetString("model", ""),
			Message: message,
		}
		if mode.UsesExamples() {
			pairs, err := parsePairs(req.GetArguments()["examples"])
			if err != nil {
				return mcpError(fmt.Sprintf("invalid examples: %v", err)), nil
			}
			preq.Examples = pairs
		}

		resp, err := runPrompt(ctx, deps, preq)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(resp.Answer), nil
	}
}

// parsePairs accepts a list of {input, output} objects or the same list
// encoded as a JSON string.
func parsePairs(v any) ([]prompt.Pair, error) {
	if v == nil {
		return nil, errors.New("examples is required")
	}
	raw, ok := v.(string)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = string(b)
	}
	var pairs []prompt.Pair
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

func mcpListModels(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		models, err := deps.Assembler.Engine().ListModels(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list models: %v", err)), nil
		}
		if models == nil {
			models = []string{}
		}
		b, err := json.Marshal(models)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal models: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Store == nil {
			return nil, errors.New("run history is disabled")
		}
		runs, err := deps.Store.RecentRuns(10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent runs: %w", err)
		}

		views := make([]RunView, len(runs))
		for i, run := range runs {
			v, _ := newRunView(run, false)
			v.Message = truncate(v.Message, 200)
			v.Answer = truncate(v.Answer, 200)
			views[i] = v
		}

		b, err := json.Marshal(views)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal runs: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
