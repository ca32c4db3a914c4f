package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/flowmart/internal/catalog"
	"github.com/kalambet/flowmart/internal/checkout"
	"github.com/kalambet/flowmart/internal/content"
	"github.com/kalambet/flowmart/internal/query"
	"github.com/kalambet/flowmart/internal/search"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ClientIDHeader keys per-client search sessions. Requests without it are
// not sequenced.
const ClientIDHeader = "X-Client-ID"

// Deps holds the components served over HTTP.
type Deps struct {
	Query    *query.Engine
	Search   *search.Orchestrator
	Sessions *search.Registry
	Checkout *checkout.Service
	Provider string // AI backend name for status output; empty when unavailable
}

// WorkflowDetail is a workflow with its content rendered to HTML.
type WorkflowDetail struct {
	catalog.WorkflowRecord
	Rendered content.Document `json:"rendered"`
}

// SearchStatus reports whether the AI search path is usable.
type SearchStatus struct {
	AIAvailable bool   `json:"ai_available"`
	Provider    string `json:"provider,omitempty"`
}

// NewHandler returns the storefront REST API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", handleHealth)
	r.Get("/v1/workflows", handleListWorkflows(deps))
	r.Get("/v1/workflows/{id}", handleGetWorkflow(deps))
	r.Get("/v1/workflows/{id}/related", handleRelated(deps))
	r.Get("/v1/tags", handleTags(deps))
	r.Get("/v1/search/status", handleSearchStatus(deps))
	r.Post("/v1/checkout", handleCheckout(deps))

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleListWorkflows(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := intParam(r, "page")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		limit, err := intParam(r, "limit")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		useAI := false
		if v := r.URL.Query().Get("ai"); v != "" {
			if useAI, err = strconv.ParseBool(v); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid ai flag %q", v)
				return
			}
		}

		req := search.Request{
			Query: r.URL.Query().Get("q"),
			Tag:   r.URL.Query().Get("tag"),
			UseAI: useAI,
			Page:  page,
			Limit: limit,
		}

		var res query.PageResult[catalog.WorkflowRecord]
		if id := r.Header.Get(ClientIDHeader); id != "" && deps.Sessions != nil {
			res, err = deps.Sessions.Session(id).Resolve(r.Context(), req)
		} else {
			res, err = deps.Search.Resolve(r.Context(), req)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleGetWorkflow(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, err := deps.Query.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		doc, err := content.Render(wf.Content)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "rendering content: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, WorkflowDetail{WorkflowRecord: wf, Rendered: doc})
	}
}

func handleRelated(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := intParam(r, "limit")
		if err != nil || n < 0 || n > query.MaxLimit {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", r.URL.Query().Get("limit"))
			return
		}
		related, err := deps.Query.Related(r.Context(), chi.URLParam(r, "id"), n)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": related})
	}
}

func handleTags(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"tags": deps.Query.Tags()})
	}
}

func handleSearchStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := SearchStatus{AIAvailable: deps.Search.AIAvailable()}
		if st.AIAvailable {
			st.Provider = deps.Provider
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleCheckout(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req checkout.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		receipt, err := deps.Checkout.Purchase(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, receipt)
	}
}

// intParam reads an optional integer query parameter; absent means 0.
func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidParameter), errors.Is(err, checkout.ErrInvalidRequest):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, query.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.Is(err, search.ErrStale):
		httpError(w, http.StatusConflict, "stale_request_error", "%v", err)
	case errors.Is(err, context.DeadlineExceeded):
		httpError(w, http.StatusGatewayTimeout, "timeout_error", "%v", err)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		slog.Debug("request cancelled", "error", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
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
