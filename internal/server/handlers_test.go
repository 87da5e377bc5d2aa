package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/muse/internal/fetch"
	"github.com/desertthunder/muse/internal/recommend"
	"github.com/desertthunder/muse/internal/services"
	"github.com/desertthunder/muse/internal/shared"
)

type stubBrowser struct {
	entries []services.ChartEntry
	genres  []services.Genre
	err     error
	queries []string
}

func (s *stubBrowser) Chart(context.Context, int) ([]services.ChartEntry, error) {
	return s.entries, s.err
}

func (s *stubBrowser) Search(_ context.Context, q string, _ int) ([]services.ChartEntry, error) {
	s.queries = append(s.queries, q)
	return s.entries, s.err
}

func (s *stubBrowser) Genres(context.Context) ([]services.Genre, error) {
	return s.genres, s.err
}

type stubCatalog struct {
	top  []services.Track
	recs []services.RecommendedTrack
}

func (s *stubCatalog) Profile(context.Context) (*services.Profile, error) {
	return &services.Profile{Country: "US"}, nil
}

func (s *stubCatalog) Track(_ context.Context, id string) (*services.Track, error) {
	return &services.Track{ID: id}, nil
}

func (s *stubCatalog) TopTracks(context.Context, string, int) ([]services.Track, error) {
	return s.top, nil
}

func (s *stubCatalog) CurrentlyPlaying(context.Context) (*services.Track, error) {
	return nil, nil
}

func (s *stubCatalog) AudioFeatures(_ context.Context, ids []string) ([]*services.AudioFeatures, error) {
	return make([]*services.AudioFeatures, len(ids)), nil
}

func (s *stubCatalog) Recommendations(context.Context, services.RecommendationParams) ([]services.RecommendedTrack, error) {
	return s.recs, nil
}

func (s *stubCatalog) ArtistTopTracks(context.Context, string, string) ([]services.RecommendedTrack, error) {
	return nil, nil
}

func TestChartsHandler(t *testing.T) {
	t.Run("serves chart entries as JSON", func(t *testing.T) {
		browser := &stubBrowser{entries: []services.ChartEntry{{ID: "1", Title: "One", Artist: "A", Position: 1}}}
		handler := NewChartsHandler(browser, shared.NewLogger(io.Discard))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/charts/chart?limit=5", nil))

		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", recorder.Code)
		}
		var entries []services.ChartEntry
		if err := json.Unmarshal(recorder.Body.Bytes(), &entries); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if len(entries) != 1 || entries[0].Title != "One" {
			t.Errorf("unexpected entries: %+v", entries)
		}
	})

	t.Run("forwards search queries", func(t *testing.T) {
		browser := &stubBrowser{}
		handler := NewChartsHandler(browser, shared.NewLogger(io.Discard))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/charts/search?q=daft+punk", nil))

		if len(browser.queries) != 1 || browser.queries[0] != "daft punk" {
			t.Errorf("queries = %v, want [daft punk]", browser.queries)
		}
	})

	t.Run("maps a local rate-limit denial to a 429", func(t *testing.T) {
		browser := &stubBrowser{err: &fetch.Error{Kind: fetch.KindRateLimited, RetryAfter: 7 * time.Second}}
		handler := NewChartsHandler(browser, shared.NewLogger(io.Discard))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/charts/chart", nil))

		if recorder.Code != http.StatusTooManyRequests {
			t.Errorf("status = %d, want 429", recorder.Code)
		}
		if got := recorder.Header().Get("Retry-After"); got != "7" {
			t.Errorf("Retry-After = %q, want 7", got)
		}
	})

	t.Run("passes upstream statuses through", func(t *testing.T) {
		browser := &stubBrowser{err: &fetch.Error{Kind: fetch.KindNotFound, Status: 404, Message: "resource not found"}}
		handler := NewChartsHandler(browser, shared.NewLogger(io.Discard))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/charts/genre", nil))

		if recorder.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", recorder.Code)
		}
	})

	t.Run("maps transient failures to a 502", func(t *testing.T) {
		browser := &stubBrowser{err: &fetch.Error{Kind: fetch.KindTransient}}
		handler := NewChartsHandler(browser, shared.NewLogger(io.Discard))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/charts/chart", nil))

		if recorder.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", recorder.Code)
		}
	})
}

func TestRecommendationsHandler(t *testing.T) {
	newHandler := func(t *testing.T, catalog services.Catalog) *RecommendationsHandler {
		t.Helper()
		engine, err := recommend.NewEngine(catalog, nil, shared.NewLogger(io.Discard))
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}
		return NewRecommendationsHandler(engine, shared.NewLogger(io.Discard))
	}

	t.Run("returns the pipeline result", func(t *testing.T) {
		catalog := &stubCatalog{
			recs: []services.RecommendedTrack{{ID: "r1", Name: "Rec"}},
		}
		handler := newHandler(t, catalog)

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/recommendations?track=seed&limit=5", nil))

		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", recorder.Code)
		}
		var result recommend.Result
		if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if len(result.Tracks) != 1 || result.Tracks[0].ID != "r1" {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("insufficient history yields an empty result", func(t *testing.T) {
		handler := newHandler(t, &stubCatalog{})

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/recommendations", nil))

		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", recorder.Code)
		}
		var result recommend.Result
		if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if len(result.Tracks) != 0 || result.Taste != nil {
			t.Errorf("expected empty result, got %+v", result)
		}
	})
}
