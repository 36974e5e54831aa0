package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/claimdecomp/internal/api"
	"github.com/kalambet/claimdecomp/internal/engine"
	"github.com/kalambet/claimdecomp/internal/ollama"
	"github.com/kalambet/claimdecomp/internal/prompt"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, or the MCP server on stdio with --mcp",
	RunE: func(cmd *cobra.Command, args []string) error {
		useMCP, _ := cmd.Flags().GetBool("mcp")
		noHistory, _ := cmd.Flags().GetBool("no-history")
		return runServer(cmd.Context(), useMCP, !noHistory)
	},
}

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Run `ollama serve` with the configured models dir and keep-alive",
	RunE: func(cmd *cobra.Command, args []string) error {
		bin, _ := cmd.Flags().GetString("ollama-bin")
		return runRuntime(cmd.Context(), bin)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show claimdecomp system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "serve MCP over stdin/stdout instead of HTTP")
	serveCmd.Flags().Bool("no-history", false, "do not record runs in the history")
	runtimeCmd.Flags().String("ollama-bin", "ollama", "path to the ollama binary")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "claimdecomp.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(ctx context.Context, useMCP, record bool) error {
	fmt.Fprintf(os.Stderr, "claimdecomp version %s\n", version)

	eng, err := newEngine()
	if err != nil {
		return err
	}
	if err := engine.EnsureRunning(ctx, eng); err != nil {
		return err
	}

	deps := api.Deps{
		// Status and progress output must stay off stdout in MCP mode.
		Assembler:    prompt.New(eng, prompt.Options{Out: os.Stderr}),
		DefaultModel: cfg.Ollama.Model,
		Token:        cfg.Server.Token,
	}
	if record {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(store)
		deps.Store = store
	}

	if useMCP {
		mcpSrv := api.NewMCPServer(deps, version)
		stdioSrv := server.NewStdioServer(mcpSrv)
		slog.Info("MCP server started (stdio transport)")
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server: %w", err)
		}
		return nil
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	if deps.Token == "" {
		slog.Warn("server.token is not set; the API accepts unauthenticated requests")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "claimdecomp listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRuntime(bin string) ollama.Runtime {
	return ollama.Runtime{
		Binary:    bin,
		Host:      hostFromBaseURL(cfg.Ollama.BaseURL),
		ModelsDir: cfg.Ollama.ModelsDir,
		KeepAlive: cfg.Ollama.KeepAlive,
	}
}

// hostFromBaseURL turns http://host:port into the host:port form OLLAMA_HOST expects.
func hostFromBaseURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

func runRuntime(ctx context.Context, bin string) error {
	rt := newRuntime(bin)
	c, err := rt.Command(ctx)
	if err != nil {
		return fmt.Errorf("preparing ollama runtime: %w", err)
	}
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	printStep("Starting %s serve (models: %s, keep-alive: %s)", c.Path, rt.ModelsDir, rt.KeepAlive)
	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("running ollama: %w", err)
	}
	return nil
}

func showStatus(ctx context.Context) error {
	client := &http.Client{Timeout: 2 * time.Second}
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)

	resp, err := client.Get(serverURL + "/health")
	serverUp := err == nil && resp.StatusCode == http.StatusOK
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case serverUp:
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidFilePath(cfg.Storage.DataDir)); pidErr == nil {
			printStatus("Server", "running on port %d (PID %d)", cfg.Server.Port, pid)
		} else {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		}
	default:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	}

	eng := engine.NewOllamaEngine(cfg.Ollama.BaseURL, cfg.Ollama.KeepAlive)
	modelState := "unknown"
	if v, err := eng.Client().Version(ctx); err != nil {
		printStatus("Ollama", "not running at %s", cfg.Ollama.BaseURL)
	} else {
		printStatus("Ollama", "v%s at %s", v, cfg.Ollama.BaseURL)
		if ok, err := engine.HasModel(ctx, eng, cfg.Ollama.Model); err == nil {
			modelState = "not installed (run: claimdecomp pull " + cfg.Ollama.Model + ")"
			if ok {
				modelState = "installed"
			}
		}
	}
	printStatus("Model", "%s, %s", cfg.Ollama.Model, modelState)

	printStatus("Models dir", "%s", cfg.Ollama.ModelsDir)
	printStatus("Keep alive", "%s", cfg.Ollama.KeepAlive)

	if runs, err := countRuns(ctx, serverUp, serverURL); err == nil {
		printStatus("Runs", "%s recorded", humanize.Comma(int64(runs)))
	} else {
		slog.Debug("counting runs", "error", err)
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// countRuns asks the running server when there is one, so the count matches
// what the API serves, and reads the store directly otherwise.
func countRuns(ctx context.Context, serverUp bool, serverURL string) (int, error) {
	if serverUp {
		var list struct {
			Total int `json:"total"`
		}
		resp, err := newAPIClient(serverURL, cfg.Server.Token).get(ctx, "/v1/runs?limit=1")
		if err != nil {
			return 0, err
		}
		if err := decodeJSON(resp, &list); err != nil {
			return 0, err
		}
		return list.Total, nil
	}

	store, err := openStore()
	if err != nil {
		return 0, err
	}
	defer closeStore(store)
	return store.CountRuns()
}
