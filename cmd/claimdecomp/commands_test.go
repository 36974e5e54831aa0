package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/claimdecomp/internal/storage"
)

var ctx = context.Background()

func TestColorize_NoColor(t *testing.T) {
	old := noColor
	t.Cleanup(func() { noColor = old })

	noColor = true
	if got := colorize(colorRed, "x"); got != "x" {
		t.Errorf("colorize with noColor = %q, want %q", got, "x")
	}
	noColor = false
	if got := colorize(colorRed, "x"); got != colorRed+"x"+colorReset {
		t.Errorf("colorize = %q", got)
	}
}

func TestPrintHelpers_WriteToStatusOut(t *testing.T) {
	oldOut, oldColor := statusOut, noColor
	t.Cleanup(func() { statusOut, noColor = oldOut, oldColor })

	var buf bytes.Buffer
	statusOut = &buf
	noColor = true

	printSuccess("done %d", 3)
	printWarning("careful")
	printStatus("Model", "%s", "llama2")

	want := "✓ done 3\n⚠ careful\n  Model: llama2\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("truncate = %q, want %q", got, "héllo...")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID = %q", got)
	}
}

func TestHostFromBaseURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:11434":   "localhost:11434",
		"http://127.0.0.1:9000/x": "127.0.0.1:9000",
		"not a url":                "",
	}
	for in, want := range tests {
		if got := hostFromBaseURL(in); got != want {
			t.Errorf("hostFromBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAPIClient_GetSendsToken(t *testing.T) {
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[],"total":7}`))
	}))
	t.Cleanup(srv.Close)

	resp, err := newAPIClient(srv.URL, "test-token").get(ctx, "/v1/runs?limit=1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var list struct {
		Total int `json:"total"`
	}
	if err := decodeJSON(resp, &list); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}

	if list.Total != 7 {
		t.Errorf("total = %d, want 7", list.Total)
	}
	if auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", auth)
	}
	if path != "/v1/runs?limit=1" {
		t.Errorf("path = %q", path)
	}
}

func TestAPIClient_NoTokenNoHeader(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	resp, err := newAPIClient(srv.URL, "").get(ctx, "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if auth != "" {
		t.Errorf("auth = %q, want none", auth)
	}
}

func TestDecodeJSON_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid API token","type":"auth_error"}}`))
	}))
	t.Cleanup(srv.Close)

	resp, err := newAPIClient(srv.URL, "bad").get(ctx, "/v1/runs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var v map[string]any
	err = decodeJSON(resp, &v)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want a 401 error", err)
	}
}

func TestAPIClient_Unreachable(t *testing.T) {
	_, err := newAPIClient("http://127.0.0.1:1", "").get(ctx, "/health")
	if err == nil || !strings.Contains(err.Error(), "claimdecomp serve") {
		t.Errorf("err = %v, want a hint to start the server", err)
	}
}

func TestFindRun_FullIDAndPrefix(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	saved, err := store.SaveRun(storage.Run{Mode: "zero-shot", Model: "m", Message: "q", Answer: "a"})
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := findRun(store, saved.ID)
	if err != nil || got.ID != saved.ID {
		t.Fatalf("findRun(full) = %v, %v", got.ID, err)
	}
	got, err = findRun(store, shortID(saved.ID))
	if err != nil || got.ID != saved.ID {
		t.Fatalf("findRun(prefix) = %v, %v", got.ID, err)
	}

	if _, err := findRun(store, "zzzzzzzz"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("findRun(missing) err = %v, want ErrNotFound", err)
	}
}

// fakeOllama serves an empty model list and a two-layer pull stream.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[]}`))
		case "/api/pull":
			enc := json.NewEncoder(w)
			enc.Encode(map[string]any{"status": "pulling manifest"})
			for _, d := range []string{"sha256:aaa", "sha256:bbb"} {
				enc.Encode(map[string]any{"status": "pulling " + d, "digest": d, "total": 100, "completed": 50})
				enc.Encode(map[string]any{"status": "pulling " + d, "digest": d, "total": 100, "completed": 100})
			}
			enc.Encode(map[string]any{"status": "success"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPullCommand_DownloadsMissingModel(t *testing.T) {
	srv := fakeOllama(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CLAIMDECOMP_OLLAMA_BASE_URL", srv.URL)
	t.Setenv("CLAIMDECOMP_STORAGE_DATA_DIR", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"pull", "tinyllama"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("pull: %v", err)
	}

	s := out.String()
	for _, want := range []string{"Model Uncached - Downloading...", "Download Complete."} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
	if strings.Index(s, "Model Uncached") > strings.Index(s, "Download Complete.") {
		t.Errorf("status lines out of order:\n%s", s)
	}
}

func TestPullCommand_EngineDown(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CLAIMDECOMP_OLLAMA_BASE_URL", "http://127.0.0.1:1")

	rootCmd.SetArgs([]string{"pull"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(ctx)
	if err == nil || !strings.Contains(err.Error(), "not running") {
		t.Errorf("err = %v, want engine not running", err)
	}
}

func TestConfigShow_MasksToken(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CLAIMDECOMP_SERVER_TOKEN", "s3cret")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "show", "--no-color"})
	oldColor := noColor
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		noColor = oldColor
	})

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out.String(), "s3cret") {
		t.Errorf("token leaked:\n%s", out.String())
	}
	if !strings.Contains(out.String(), fmt.Sprintf("server.token = %s", "********")) {
		t.Errorf("masked token missing:\n%s", out.String())
	}
}
