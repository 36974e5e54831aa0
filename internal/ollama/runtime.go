package ollama

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

// Runtime describes how to launch a local `ollama serve` process. ModelsDir
// and KeepAlive reach the server through OLLAMA_MODELS and OLLAMA_KEEP_ALIVE
// on the child process only; the caller's environment is never modified.
type Runtime struct {
	Binary    string
	Host      string
	ModelsDir string
	KeepAlive string
}

// Env returns the environment for the server process: the parent's
// environment followed by the runtime settings, which take precedence.
func (r Runtime) Env(base []string) []string {
	env := append([]string(nil), base...)
	if r.Host != "" {
		env = append(env, "OLLAMA_HOST="+r.Host)
	}
	if r.ModelsDir != "" {
		dir := r.ModelsDir
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		env = append(env, "OLLAMA_MODELS="+dir)
	}
	if r.KeepAlive != "" {
		env = append(env, "OLLAMA_KEEP_ALIVE="+r.KeepAlive)
	}
	return env
}

// Command builds the `ollama serve` command. The models directory is created
// if it does not exist yet.
func (r Runtime) Command(ctx context.Context) (*exec.Cmd, error) {
	bin := r.Binary
	if bin == "" {
		bin = "ollama"
	}
	if r.ModelsDir != "" {
		if err := os.MkdirAll(r.ModelsDir, 0o755); err != nil {
			return nil, err
		}
	}
	cmd := exec.CommandContext(ctx, bin, "serve")
	cmd.Env = r.Env(os.Environ())
	return cmd, nil
}
