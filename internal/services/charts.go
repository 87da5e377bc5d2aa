// Charts API client implementing [Browser]
//
// The secondary charts/metadata API (Deezer-style REST surface) is consumed
// through the first-party proxy backend so its API key stays server-side;
// public CORS relays are tried in order when the backend route fails.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muse/internal/fetch"
	"github.com/desertthunder/muse/internal/shared"
)

const (
	chartTTL  = 5 * time.Minute
	genresTTL = time.Hour
)

type chartArtist struct {
	Name string `json:"name"`
}

type chartAlbum struct {
	Title string `json:"title"`
	Cover string `json:"cover_medium"`
}

type chartTrack struct {
	ID       int64       `json:"id"`
	Title    string      `json:"title"`
	Link     string      `json:"link"`
	Preview  string      `json:"preview"`
	Position int         `json:"position"`
	Artist   chartArtist `json:"artist"`
	Album    chartAlbum  `json:"album"`
}

type chartGenre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ChartsClient is the proxy-routed client for the secondary charts API.
type ChartsClient struct {
	backend   string   // first-party proxy base; tried first when set
	upstream  string   // upstream charts API base
	apiKey    string   // attached only to direct upstream calls
	relays    []string // CORS relay prefixes, tried in order
	fetcher   *fetch.Client
	logger    *log.Logger
	rateLimit int
	window    time.Duration
	retries   int
}

// ChartsOptions configures a [ChartsClient].
type ChartsOptions struct {
	BackendURL string
	BaseURL    string
	APIKey     string
	Relays     []string
	Fetcher    *fetch.Client
	Logger     *log.Logger
	RateLimit  int
	Window     time.Duration
	Retries    int
}

// NewChartsClient creates a [ChartsClient]. Fetcher is required. When
// BackendURL is empty the client calls the upstream API directly (the mode
// the proxy server itself runs in).
func NewChartsClient(opts ChartsOptions) (*ChartsClient, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("%w: missing fetch client", shared.ErrInvalidInput)
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: missing charts base URL", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 50
	}
	if opts.Window <= 0 {
		opts.Window = 5 * time.Second
	}

	return &ChartsClient{
		backend:   opts.BackendURL,
		upstream:  opts.BaseURL,
		apiKey:    opts.APIKey,
		relays:    opts.Relays,
		fetcher:   opts.Fetcher,
		logger:    opts.Logger,
		rateLimit: opts.RateLimit,
		window:    opts.Window,
		retries:   opts.Retries,
	}, nil
}

var _ Browser = (*ChartsClient)(nil)

// target is one candidate route for a charts request.
type target struct {
	url   string
	query url.Values
}

// targets builds the ordered route list: backend first (when configured),
// otherwise the upstream directly, then each relay wrapping the upstream URL.
func (c *ChartsClient) targets(path string, query url.Values) []target {
	var routes []target

	if c.backend != "" {
		routes = append(routes, target{url: c.backend + "/api/charts" + path, query: query})
	} else {
		direct := url.Values{}
		for k, vs := range query {
			direct[k] = vs
		}
		if c.apiKey != "" {
			direct.Set("api_key", c.apiKey)
		}
		routes = append(routes, target{url: c.upstream + path, query: direct})
	}

	full := c.upstream + path
	if encoded := query.Encode(); encoded != "" {
		full += "?" + encoded
	}
	for _, relay := range c.relays {
		routes = append(routes, target{url: relay + url.QueryEscape(full)})
	}

	return routes
}

// get walks the route list, stopping at the first route that yields any HTTP
// response — success or definitive error. Only timeouts and network failures
// move on to the next relay.
func (c *ChartsClient) get(ctx context.Context, path string, query url.Values, ttl time.Duration) (json.RawMessage, error) {
	var lastErr error

	for _, route := range c.targets(path, query) {
		domain := hostOf(route.url)
		raw, err := c.fetcher.Get(ctx, route.url, fetch.Options{
			Retries:   c.retries,
			CacheTime: ttl,
			Domain:    domain,
			RateLimit: c.rateLimit,
			Window:    c.window,
			Query:     route.query,
		})
		if err == nil {
			return raw, nil
		}
		if definitive(err) {
			return nil, err
		}
		c.logger.Warn("charts route unreachable, trying next", "host", domain, "error", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = shared.ErrServiceUnavailable
	}
	return nil, lastErr
}

// definitive reports whether err ends the relay walk: any response with an
// HTTP status is authoritative, as is a local rate-limit denial.
func definitive(err error) bool {
	var fe *fetch.Error
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Status > 0 || fe.Kind == fetch.KindRateLimited || fe.Kind == fetch.KindMalformed
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return rawURL
	}
	return parsed.Hostname()
}

// Chart retrieves the current top chart entries.
func (c *ChartsClient) Chart(ctx context.Context, limit int) ([]ChartEntry, error) {
	if limit <= 0 {
		limit = 25
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	raw, err := c.get(ctx, "/chart", query, chartTTL)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Tracks struct {
			Data []chartTrack `json:"data"`
		} `json:"tracks"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}
	return normalizeChart(wire.Tracks.Data, limit), nil
}

// Search searches the charts catalog for tracks.
func (c *ChartsClient) Search(ctx context.Context, q string, limit int) ([]ChartEntry, error) {
	if q == "" {
		return nil, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	if limit <= 0 {
		limit = 25
	}

	query := url.Values{}
	query.Set("q", q)
	query.Set("limit", strconv.Itoa(limit))

	raw, err := c.get(ctx, "/search", query, searchTTL)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Data []chartTrack `json:"data"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}
	return normalizeChart(wire.Data, limit), nil
}

// ArtistTop retrieves an artist's top tracks from the charts catalog.
func (c *ChartsClient) ArtistTop(ctx context.Context, artistID string, limit int) ([]ChartEntry, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}
	if limit <= 0 {
		limit = 25
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	raw, err := c.get(ctx, "/artist/"+url.PathEscape(artistID)+"/top", query, chartTTL)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Data []chartTrack `json:"data"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}
	return normalizeChart(wire.Data, limit), nil
}

// Genres lists the charts API's genre taxonomy.
func (c *ChartsClient) Genres(ctx context.Context) ([]Genre, error) {
	raw, err := c.get(ctx, "/genre", nil, genresTTL)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Data []chartGenre `json:"data"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}

	genres := make([]Genre, 0, len(wire.Data))
	for _, g := range wire.Data {
		genres = append(genres, Genre{ID: g.ID, Name: g.Name})
	}
	return genres, nil
}

func normalizeChart(wires []chartTrack, limit int) []ChartEntry {
	entries := make([]ChartEntry, 0, len(wires))
	for i, wire := range wires {
		if len(entries) >= limit {
			break
		}
		position := wire.Position
		if position == 0 {
			position = i + 1
		}
		entries = append(entries, ChartEntry{
			ID:       strconv.FormatInt(wire.ID, 10),
			Title:    wire.Title,
			Artist:   wire.Artist.Name,
			Album:    wire.Album.Title,
			Cover:    wire.Album.Cover,
			Preview:  wire.Preview,
			Link:     wire.Link,
			Position: position,
		})
	}
	return entries
}
