package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/claimdecomp/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// NewHandler returns the HTTP API. /health is always public; every other
// route requires the bearer token when deps.Token is set.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/v1/models", handleModels(deps))
		r.Post("/v1/prompt", handlePrompt(deps))
		r.Get("/v1/runs", handleListRuns(deps))
		r.Get("/v1/runs/{id}", handleGetRun(deps))
		r.Delete("/v1/runs/{id}", handleDeleteRun(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type modelList struct {
	Object string   `json:"object"`
	Data   []string `json:"data"`
}

func handleModels(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := deps.Assembler.Engine().ListModels(r.Context())
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to list models: %v", err)
			return
		}
		if models == nil {
			models = []string{}
		}
		writeJSON(w, http.StatusOK, modelList{Object: "list", Data: models})
	}
}

func handlePrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req PromptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		resp, err := runPrompt(r.Context(), deps, req)
		var bad errBadRequest
		if errors.As(err, &bad) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", bad.msg)
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type runList struct {
	Object string    `json:"object"`
	Data   []RunView `json:"data"`
	Total  int       `json:"total"`
}

func handleListRuns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(w, deps) {
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		runs, err := deps.Store.RecentRuns(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list runs: %v", err)
			return
		}
		total, err := deps.Store.CountRuns()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count runs: %v", err)
			return
		}

		views := make([]RunView, 0, len(runs))
		for _, run := range runs {
			v, _ := newRunView(run, false)
			views = append(views, v)
		}
		writeJSON(w, http.StatusOK, runList{Object: "list", Data: views, Total: total})
	}
}

func handleGetRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(w, deps) {
			return
		}
		id := chi.URLParam(r, "id")

		run, err := deps.Store.GetRun(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get run: %v", err)
			return
		}

		v, err := newRunView(run, true)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleDeleteRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(w, deps) {
			return
		}
		id := chi.URLParam(r, "id")

		err := deps.Store.DeleteRun(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete run: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func requireStore(w http.ResponseWriter, deps Deps) bool {
	if deps.Store == nil {
		httpError(w, http.StatusNotFound, "not_found", "run history is disabled")
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
