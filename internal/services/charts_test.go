package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/muse/internal/fetch"
	"github.com/desertthunder/muse/internal/shared"
	mock "github.com/desertthunder/muse/internal/testing"
)

// hostTransport dispatches by request host and records the order hosts were
// contacted in, which is what the relay-walk tests care about.
type hostTransport struct {
	mu     sync.Mutex
	hosts  []string
	routes map[string]*mock.ScriptedTransport
}

func newHostTransport() *hostTransport {
	return &hostTransport{routes: make(map[string]*mock.ScriptedTransport)}
}

func (h *hostTransport) handle(host string, steps ...mock.Step) *mock.ScriptedTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := mock.NewScriptedTransport(steps...)
	h.routes[host] = st
	return st
}

func (h *hostTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	h.mu.Lock()
	h.hosts = append(h.hosts, req.URL.Hostname())
	st := h.routes[req.URL.Hostname()]
	h.mu.Unlock()

	if st == nil {
		return nil, errors.New("no route for host " + req.URL.Hostname())
	}
	return st.RoundTrip(req)
}

func (h *hostTransport) contacted() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.hosts...)
}

func newCharts(t *testing.T, transport http.RoundTripper, opts ChartsOptions) *ChartsClient {
	t.Helper()

	opts.Fetcher = fetch.NewClient(fetch.ClientOptions{Transport: transport, Concurrency: 1})
	opts.Logger = shared.NewLogger(io.Discard)
	opts.Retries = -1
	if opts.BaseURL == "" {
		opts.BaseURL = "https://charts.example.com"
	}

	client, err := NewChartsClient(opts)
	if err != nil {
		t.Fatalf("NewChartsClient: %v", err)
	}
	return client
}

const chartBody = `{"tracks":{"data":[
	{"id":3135556,"title":"Harder Better Faster Stronger","link":"https://charts.example.com/track/3135556",
	 "preview":"https://cdn.example.com/3135556.mp3","position":1,
	 "artist":{"name":"Daft Punk"},
	 "album":{"title":"Discovery","cover_medium":"https://cdn.example.com/discovery.jpg"}}
]}}`

func TestChartsClientRouting(t *testing.T) {
	ctx := context.Background()

	t.Run("backend route is tried first", func(t *testing.T) {
		transport := newHostTransport()
		backend := transport.handle("backend.example.com", mock.Step{Status: http.StatusOK, Body: chartBody})
		transport.handle("relay.example.com", mock.Step{Status: http.StatusOK, Body: chartBody})

		client := newCharts(t, transport, ChartsOptions{
			BackendURL: "https://backend.example.com",
			Relays:     []string{"https://relay.example.com/?"},
		})

		entries, err := client.Chart(ctx, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 1 || entries[0].ID != "3135556" {
			t.Fatalf("unexpected entries: %+v", entries)
		}
		if entries[0].Artist != "Daft Punk" || entries[0].Position != 1 {
			t.Errorf("unexpected normalization: %+v", entries[0])
		}
		if backend.Calls() != 1 {
			t.Errorf("expected 1 backend call, got %d", backend.Calls())
		}
		if got := backend.Requests[0].URL.Path; got != "/api/charts/chart" {
			t.Errorf("backend path = %q, want /api/charts/chart", got)
		}
		if got := transport.contacted(); len(got) != 1 {
			t.Errorf("expected only the backend to be contacted, got %v", got)
		}
	})

	t.Run("network failures walk the relays in order", func(t *testing.T) {
		transport := newHostTransport()
		transport.handle("backend.example.com", mock.Step{Err: errors.New("connection refused")})
		transport.handle("relay-one.example.com", mock.Step{Err: errors.New("timeout")})
		relayTwo := transport.handle("relay-two.example.com", mock.Step{Status: http.StatusOK, Body: chartBody})

		client := newCharts(t, transport, ChartsOptions{
			BackendURL: "https://backend.example.com",
			Relays: []string{
				"https://relay-one.example.com/?",
				"https://relay-two.example.com/?",
			},
		})

		entries, err := client.Chart(ctx, 10)
		if err != nil {
			t.Fatalf("expected the second relay to serve, got %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("unexpected entries: %+v", entries)
		}
		if relayTwo.Calls() != 1 {
			t.Errorf("expected 1 call on the serving relay, got %d", relayTwo.Calls())
		}

		want := []string{"backend.example.com", "relay-one.example.com", "relay-two.example.com"}
		got := transport.contacted()
		if len(got) != len(want) {
			t.Fatalf("contacted hosts = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("hop %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("an HTTP error response stops the walk", func(t *testing.T) {
		transport := newHostTransport()
		transport.handle("backend.example.com", mock.Step{Status: http.StatusInternalServerError, Body: `{"error":"boom"}`})
		relay := transport.handle("relay.example.com", mock.Step{Status: http.StatusOK, Body: chartBody})

		client := newCharts(t, transport, ChartsOptions{
			BackendURL: "https://backend.example.com",
			Relays:     []string{"https://relay.example.com/?"},
		})

		_, err := client.Chart(ctx, 10)
		var fe *fetch.Error
		if !errors.As(err, &fe) || fe.Status != http.StatusInternalServerError {
			t.Fatalf("expected the backend's 500 to surface, got %v", err)
		}
		if relay.Calls() != 0 {
			t.Errorf("expected the relay to stay untouched, got %d calls", relay.Calls())
		}
	})

	t.Run("every route failing surfaces the last error", func(t *testing.T) {
		transport := newHostTransport()
		transport.handle("backend.example.com", mock.Step{Err: errors.New("refused")})
		transport.handle("relay.example.com", mock.Step{Err: errors.New("relay down")})

		client := newCharts(t, transport, ChartsOptions{
			BackendURL: "https://backend.example.com",
			Relays:     []string{"https://relay.example.com/?"},
		})

		_, err := client.Chart(ctx, 10)
		if !fetch.IsTransient(err) {
			t.Fatalf("expected a transient error, got %v", err)
		}
	})

	t.Run("direct mode attaches the API key", func(t *testing.T) {
		transport := newHostTransport()
		upstream := transport.handle("charts.example.com", mock.Step{Status: http.StatusOK, Body: chartBody})

		client := newCharts(t, transport, ChartsOptions{APIKey: "secret-key"})

		if _, err := client.Chart(ctx, 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := upstream.Requests[0].URL.Query().Get("api_key"); got != "secret-key" {
			t.Errorf("api_key = %q, want secret-key", got)
		}
	})

	t.Run("relay requests wrap the encoded upstream URL", func(t *testing.T) {
		transport := newHostTransport()
		transport.handle("backend.example.com", mock.Step{Err: errors.New("refused")})
		relay := transport.handle("relay.example.com", mock.Step{Status: http.StatusOK, Body: chartBody})

		client := newCharts(t, transport, ChartsOptions{
			BackendURL: "https://backend.example.com",
			Relays:     []string{"https://relay.example.com/?"},
		})

		if _, err := client.Chart(ctx, 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		raw := relay.Requests[0].URL.String()
		const wrapped = "https%3A%2F%2Fcharts.example.com%2Fchart"
		if !strings.Contains(raw, wrapped) {
			t.Errorf("relay URL %q does not wrap the upstream target", raw)
		}
	})
}

func TestChartsClientEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("search requires a query", func(t *testing.T) {
		client := newCharts(t, newHostTransport(), ChartsOptions{})

		if _, err := client.Search(ctx, "", 10); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing-argument error, got %v", err)
		}
	})

	t.Run("search normalizes rows and fills positions", func(t *testing.T) {
		transport := newHostTransport()
		transport.handle("charts.example.com", mock.Step{Status: http.StatusOK, Body: `{"data":[
			{"id":1,"title":"One","artist":{"name":"A"},"album":{"title":"X"}},
			{"id":2,"title":"Two","artist":{"name":"B"},"album":{"title":"Y"}}
		]}`})

		client := newCharts(t, transport, ChartsOptions{})

		entries, err := client.Search(ctx, "daft punk", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Position != 1 || entries[1].Position != 2 {
			t.Errorf("expected ordinal positions, got %d and %d", entries[0].Position, entries[1].Position)
		}
	})

	t.Run("genres normalizes the taxonomy", func(t *testing.T) {
		transport := newHostTransport()
		transport.handle("charts.example.com", mock.Step{Status: http.StatusOK, Body: `{"data":[
			{"id":132,"name":"Pop"},{"id":116,"name":"Rap/Hip Hop"}
		]}`})

		client := newCharts(t, transport, ChartsOptions{})

		genres, err := client.Genres(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(genres) != 2 || genres[0].Name != "Pop" || genres[1].ID != 116 {
			t.Errorf("unexpected genres: %+v", genres)
		}
	})

	t.Run("artist top requires an id", func(t *testing.T) {
		client := newCharts(t, newHostTransport(), ChartsOptions{})

		if _, err := client.ArtistTop(ctx, "", 10); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing-argument error, got %v", err)
		}
	})

	t.Run("artist top hits the artist route", func(t *testing.T) {
		transport := newHostTransport()
		upstream := transport.handle("charts.example.com", mock.Step{Status: http.StatusOK, Body: `{"data":[
			{"id":7,"title":"Top One","artist":{"name":"Daft Punk"},"album":{"title":"Discovery"}}
		]}`})

		client := newCharts(t, transport, ChartsOptions{})

		entries, err := client.ArtistTop(ctx, "27", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 1 || entries[0].Title != "Top One" || entries[0].Position != 1 {
			t.Fatalf("unexpected entries: %+v", entries)
		}
		if got := upstream.Requests[0].URL.Path; got != "/artist/27/top" {
			t.Errorf("path = %q, want /artist/27/top", got)
		}
	})

	t.Run("chart truncates to the requested limit", func(t *testing.T) {
		transport := newHostTransport()
		transport.handle("charts.example.com", mock.Step{Status: http.StatusOK, Body: `{"tracks":{"data":[
			{"id":1,"title":"One","artist":{"name":"A"},"album":{"title":"X"}},
			{"id":2,"title":"Two","artist":{"name":"B"},"album":{"title":"Y"}},
			{"id":3,"title":"Three","artist":{"name":"C"},"album":{"title":"Z"}}
		]}}`})

		client := newCharts(t, transport, ChartsOptions{})

		entries, err := client.Chart(ctx, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("expected 2 entries, got %d", len(entries))
		}
	})
}
