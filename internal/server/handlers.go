package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muse/internal/fetch"
	"github.com/desertthunder/muse/internal/recommend"
	"github.com/desertthunder/muse/internal/services"
	"github.com/desertthunder/muse/internal/shared"
)

// HealthHandler reports liveness.
type HealthHandler struct{}

func (h *HealthHandler) Routes() []string {
	return []string{"GET /health"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ChartsHandler is the passthrough to the charts API. The browser client
// calls these routes instead of the upstream directly, so the upstream API
// key stays on the server.
type ChartsHandler struct {
	browser services.Browser
	logger  *log.Logger
}

func NewChartsHandler(browser services.Browser, logger *log.Logger) *ChartsHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ChartsHandler{browser: browser, logger: logger}
}

func (h *ChartsHandler) Routes() []string {
	return []string{
		"GET /api/charts/chart",
		"GET /api/charts/search",
		"GET /api/charts/genre",
	}
}

func (h *ChartsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 25)

	switch r.URL.Path {
	case "/api/charts/chart":
		entries, err := h.browser.Chart(r.Context(), limit)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)

	case "/api/charts/search":
		entries, err := h.browser.Search(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)

	case "/api/charts/genre":
		genres, err := h.browser.Genres(r.Context())
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, genres)

	default:
		http.NotFound(w, r)
	}
}

func (h *ChartsHandler) fail(w http.ResponseWriter, err error) {
	h.logger.Error("charts passthrough failed", "error", err)
	writeError(w, err)
}

// RecommendationsHandler runs the recommendation pipeline for the web client.
type RecommendationsHandler struct {
	engine *recommend.Engine
	logger *log.Logger
}

func NewRecommendationsHandler(engine *recommend.Engine, logger *log.Logger) *RecommendationsHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RecommendationsHandler{engine: engine, logger: logger}
}

func (h *RecommendationsHandler) Routes() []string {
	return []string{"GET /api/recommendations"}
}

func (h *RecommendationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := recommend.Options{
		Limit:        queryInt(r, "limit", 0),
		TimeRange:    query.Get("time_range"),
		TrackID:      query.Get("track"),
		UseCurrent:   query.Get("current") == "true",
		IncludeKnown: query.Get("include_known") == "true",
	}

	result, err := h.engine.Build(r.Context(), opts)
	if err != nil {
		h.logger.Error("recommendation build failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps pipeline errors onto response statuses: local rate-limit
// denials become a 429 with a Retry-After hint, auth failures a 401, upstream
// statuses pass through, and everything else is a 502.
func writeError(w http.ResponseWriter, err error) {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		switch {
		case fe.Kind == fetch.KindRateLimited:
			if seconds := fe.RetryAfterSeconds(); seconds > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
			}
			errorJSON(w, http.StatusTooManyRequests, "rate limited")
		case fe.Kind == fetch.KindAuthRequired:
			errorJSON(w, http.StatusUnauthorized, "authentication required")
		case fe.Status >= 400:
			errorJSON(w, fe.Status, fe.Message)
		default:
			errorJSON(w, http.StatusBadGateway, "upstream unavailable")
		}
		return
	}

	switch {
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrNoRefreshToken),
		errors.Is(err, shared.ErrRefreshFailed):
		errorJSON(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument):
		errorJSON(w, http.StatusBadRequest, err.Error())
	default:
		errorJSON(w, http.StatusBadGateway, "upstream unavailable")
	}
}

func errorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
