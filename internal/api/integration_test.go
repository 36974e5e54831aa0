//go:build integration

package api

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"github.com/kalambet/claimdecomp/internal/engine"
	"github.com/kalambet/claimdecomp/internal/prompt"
)

// TestPromptAgainstLocalOllama runs a zero-shot prompt end to end against a
// running Ollama. CLAIMDECOMP_IT_MODEL must name an installed model.
func TestPromptAgainstLocalOllama(t *testing.T) {
	model := os.Getenv("CLAIMDECOMP_IT_MODEL")
	if model == "" {
		t.Skip("CLAIMDECOMP_IT_MODEL not set")
	}
	baseURL := os.Getenv("CLAIMDECOMP_OLLAMA_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	eng := engine.NewOllamaEngine(baseURL, "1m")
	if !eng.IsRunning(t.Context()) {
		t.Skipf("ollama not reachable at %s", baseURL)
	}

	h := NewHandler(Deps{Assembler: prompt.New(eng, prompt.Options{}), DefaultModel: model})
	rr := do(t, h, http.MethodPost, "/v1/prompt", `{"mode":"cor-zero-shot","message":"What is 2+2?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var resp PromptResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer == "" || len(resp.Calls) != 2 {
		t.Errorf("resp = %+v", resp)
	}
}
