// Spotify API client implementing [Catalog]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muse/internal/fetch"
	"github.com/desertthunder/muse/internal/shared"
)

const (
	SpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyDomain   = "api.spotify.com"

	maxFeatureIDs = 100
)

// Endpoint TTLs: searches churn quickly, browse data is editorial, and
// entity detail lookups rarely change.
const (
	searchTTL = time.Minute
	browseTTL = 5 * time.Minute
	detailTTL = time.Hour
)

type spotifyImage struct {
	URL string `json:"url"`
}

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []spotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	Images      []spotifyImage  `json:"images"`
	ExternalURL extURLs         `json:"external_urls"`
}

type extURLs struct {
	Spotify string `json:"spotify"`
}

type spotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []spotifyArtist `json:"artists"`
	Album       spotifyAlbum    `json:"album"`
	PreviewURL  *string         `json:"preview_url"`
	ExternalURL extURLs         `json:"external_urls"`
}

type spotifyProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
}

type spotifyPlaying struct {
	IsPlaying bool          `json:"is_playing"`
	Item      *spotifyTrack `json:"item"`
}

type spotifyFeatures struct {
	ID               string  `json:"id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Speechiness      float64 `json:"speechiness"`
	Liveness         float64 `json:"liveness"`
	Tempo            float64 `json:"tempo"`
}

// SpotifyClient is the token-bearing client for the primary streaming API.
// It attaches a bearer token to each call; on a 401 it performs exactly one
// token refresh and replays the original request once.
type SpotifyClient struct {
	base      string
	fetcher   *fetch.Client
	tokens    TokenSource
	logger    *log.Logger
	rateLimit int
	window    time.Duration
	retries   int
}

// SpotifyOptions configures a [SpotifyClient].
type SpotifyOptions struct {
	BaseURL   string
	Fetcher   *fetch.Client
	Tokens    TokenSource
	Logger    *log.Logger
	RateLimit int
	Window    time.Duration
	Retries   int
}

// NewSpotifyClient creates a [SpotifyClient]. Fetcher and Tokens are required.
func NewSpotifyClient(opts SpotifyOptions) (*SpotifyClient, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("%w: missing fetch client", shared.ErrInvalidInput)
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("%w: missing token source", shared.ErrInvalidInput)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 30
	}
	if opts.Window <= 0 {
		opts.Window = 30 * time.Second
	}

	return &SpotifyClient{
		base:      strings.TrimRight(opts.BaseURL, "/"),
		fetcher:   opts.Fetcher,
		tokens:    opts.Tokens,
		logger:    opts.Logger,
		rateLimit: opts.RateLimit,
		window:    opts.Window,
		retries:   opts.Retries,
	}, nil
}

var _ Catalog = (*SpotifyClient)(nil)

// get performs an authorized GET through the fetch substrate, refreshing the
// token and replaying once on a 401. A failing replay propagates unchanged.
func (s *SpotifyClient) get(ctx context.Context, path string, query url.Values, ttl time.Duration) (json.RawMessage, error) {
	token, err := s.tokens.Valid(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.request(ctx, token, path, query, ttl)
	if !fetch.IsAuthRequired(err) {
		return raw, err
	}

	s.logger.Debug("access token rejected, refreshing", "path", path)
	token, refreshErr := s.tokens.Refresh(ctx)
	if refreshErr != nil {
		return nil, refreshErr
	}
	return s.request(ctx, token, path, query, ttl)
}

func (s *SpotifyClient) request(ctx context.Context, token, path string, query url.Values, ttl time.Duration) (json.RawMessage, error) {
	return s.fetcher.Get(ctx, s.base+path, fetch.Options{
		Retries:   s.retries,
		CacheTime: ttl,
		Domain:    spotifyDomain,
		RateLimit: s.rateLimit,
		Window:    s.window,
		Headers:   map[string]string{"Authorization": "Bearer " + token},
		Query:     query,
	})
}

// Profile retrieves the current authenticated user's profile.
func (s *SpotifyClient) Profile(ctx context.Context) (*Profile, error) {
	raw, err := s.get(ctx, "/me", nil, detailTTL)
	if err != nil {
		return nil, err
	}

	var wire spotifyProfile
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}
	return &Profile{ID: wire.ID, DisplayName: wire.DisplayName, Country: wire.Country}, nil
}

// Track retrieves a single track by ID.
func (s *SpotifyClient) Track(ctx context.Context, id string) (*Track, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	raw, err := s.get(ctx, "/tracks/"+url.PathEscape(id), nil, detailTTL)
	if err != nil {
		return nil, err
	}

	var wire spotifyTrack
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}
	track := normalizeTrack(wire)
	return &track, nil
}

// SeveralTracks retrieves up to 100 tracks in one batched read. The catalog
// returns a null entry for unknown ids; those are dropped from the result.
func (s *SpotifyClient) SeveralTracks(ctx context.Context, ids []string) ([]Track, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: track ids", shared.ErrMissingArgument)
	}
	if len(ids) > maxFeatureIDs {
		return nil, fmt.Errorf("%w: at most %d track ids", shared.ErrInvalidArgument, maxFeatureIDs)
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))

	raw, err := s.get(ctx, "/tracks", query, detailTTL)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Tracks []*spotifyTrack `json:"tracks"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(wire.Tracks))
	for _, item := range wire.Tracks {
		if item == nil {
			continue
		}
		tracks = append(tracks, normalizeTrack(*item))
	}
	return tracks, nil
}

// TopTracks retrieves the user's most played tracks for the given time range
// (short_term, medium_term, long_term).
func (s *SpotifyClient) TopTracks(ctx context.Context, timeRange string, limit int) ([]Track, error) {
	if timeRange == "" {
		timeRange = "medium_term"
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	query := url.Values{}
	query.Set("time_range", timeRange)
	query.Set("limit", strconv.Itoa(limit))

	raw, err := s.get(ctx, "/me/top/tracks", query, searchTTL)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Items []spotifyTrack `json:"items"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(wire.Items))
	for _, item := range wire.Items {
		tracks = append(tracks, normalizeTrack(item))
	}
	return tracks, nil
}

// CurrentlyPlaying reports the user's playback context. A 204/empty body
// means nothing is playing and yields (nil, nil).
func (s *SpotifyClient) CurrentlyPlaying(ctx context.Context) (*Track, error) {
	raw, err := s.get(ctx, "/me/player/currently-playing", nil, 0)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var wire spotifyPlaying
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}
	if wire.Item == nil {
		return nil, nil
	}

	track := normalizeTrack(*wire.Item)
	return &track, nil
}

// AudioFeatures retrieves audio features for up to 100 tracks. The result
// preserves order; entries are nil for tracks without analysis.
func (s *SpotifyClient) AudioFeatures(ctx context.Context, ids []string) ([]*AudioFeatures, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: track ids", shared.ErrMissingArgument)
	}
	if len(ids) > maxFeatureIDs {
		return nil, fmt.Errorf("%w: at most %d track ids", shared.ErrInvalidArgument, maxFeatureIDs)
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))

	raw, err := s.get(ctx, "/audio-features", query, detailTTL)
	if err != nil {
		return nil, err
	}

	var wire struct {
		AudioFeatures []*spotifyFeatures `json:"audio_features"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}

	features := make([]*AudioFeatures, 0, len(wire.AudioFeatures))
	for _, f := range wire.AudioFeatures {
		if f == nil {
			features = append(features, nil)
			continue
		}
		features = append(features, &AudioFeatures{
			ID:               f.ID,
			Danceability:     f.Danceability,
			Energy:           f.Energy,
			Valence:          f.Valence,
			Acousticness:     f.Acousticness,
			Instrumentalness: f.Instrumentalness,
			Speechiness:      f.Speechiness,
			Liveness:         f.Liveness,
			Tempo:            f.Tempo,
		})
	}
	return features, nil
}

// Recommendations queries the primary recommender endpoint. Results are not
// cached: the same seeds can legitimately yield different material.
func (s *SpotifyClient) Recommendations(ctx context.Context, params RecommendationParams) ([]RecommendedTrack, error) {
	if len(params.SeedTracks) == 0 && len(params.SeedArtists) == 0 {
		return nil, shared.ErrNoSeeds
	}

	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Market != "" {
		query.Set("market", params.Market)
	}
	if len(params.SeedTracks) > 0 {
		query.Set("seed_tracks", strings.Join(params.SeedTracks, ","))
	}
	if len(params.SeedArtists) > 0 {
		query.Set("seed_artists", strings.Join(params.SeedArtists, ","))
	}
	for attr, value := range params.Targets {
		query.Set("target_"+attr, value)
	}

	raw, err := s.get(ctx, "/recommendations", query, 0)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Tracks []spotifyTrack `json:"tracks"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}
	return normalizeRecommended(wire.Tracks), nil
}

// ArtistTopTracks retrieves an artist's most popular tracks in a market.
func (s *SpotifyClient) ArtistTopTracks(ctx context.Context, artistID, market string) ([]RecommendedTrack, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}
	if market == "" {
		market = "US"
	}

	query := url.Values{}
	query.Set("market", market)

	raw, err := s.get(ctx, "/artists/"+url.PathEscape(artistID)+"/top-tracks", query, browseTTL)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Tracks []spotifyTrack `json:"tracks"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}
	return normalizeRecommended(wire.Tracks), nil
}

// Search searches the catalog for tracks matching the query.
func (s *SpotifyClient) Search(ctx context.Context, q string, limit int) ([]Track, error) {
	if q == "" {
		return nil, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	query := url.Values{}
	query.Set("q", q)
	query.Set("type", "track")
	query.Set("limit", strconv.Itoa(limit))

	raw, err := s.get(ctx, "/search", query, searchTTL)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Tracks struct {
			Items []spotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(wire.Tracks.Items))
	for _, item := range wire.Tracks.Items {
		tracks = append(tracks, normalizeTrack(item))
	}
	return tracks, nil
}

// NewReleases retrieves recently released albums.
func (s *SpotifyClient) NewReleases(ctx context.Context, limit int) ([]Album, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	raw, err := s.get(ctx, "/browse/new-releases", query, browseTTL)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Albums struct {
			Items []spotifyAlbum `json:"items"`
		} `json:"albums"`
	}
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}

	albums := make([]Album, 0, len(wire.Albums.Items))
	for _, item := range wire.Albums.Items {
		album := Album{
			ID:          item.ID,
			Name:        item.Name,
			ReleaseDate: item.ReleaseDate,
			ExternalURL: item.ExternalURL.Spotify,
		}
		if len(item.Artists) > 0 {
			album.Artist = item.Artists[0].Name
		}
		if len(item.Images) > 0 {
			album.CoverURL = item.Images[0].URL
		}
		albums = append(albums, album)
	}
	return albums, nil
}

// normalizeTrack reduces a wire track to the normalized [Track] shape.
func normalizeTrack(wire spotifyTrack) Track {
	track := Track{
		ID:          wire.ID,
		Name:        wire.Name,
		AlbumName:   wire.Album.Name,
		ExternalURL: wire.ExternalURL.Spotify,
	}
	if wire.PreviewURL != nil {
		track.PreviewURL = *wire.PreviewURL
	}
	if len(wire.Album.Images) > 0 {
		track.CoverURL = wire.Album.Images[0].URL
	}
	for _, artist := range wire.Artists {
		track.Artists = append(track.Artists, ArtistRef{ID: artist.ID, Name: artist.Name})
	}
	return track
}

// normalizeRecommended reduces wire tracks to the [RecommendedTrack] shape.
func normalizeRecommended(wires []spotifyTrack) []RecommendedTrack {
	tracks := make([]RecommendedTrack, 0, len(wires))
	for _, wire := range wires {
		track := RecommendedTrack{
			ID:          wire.ID,
			Name:        wire.Name,
			Artists:     joinArtists(wire.Artists),
			ExternalURL: wire.ExternalURL.Spotify,
		}
		if wire.PreviewURL != nil {
			track.PreviewURL = *wire.PreviewURL
		}
		if len(wire.Album.Images) > 0 {
			track.Cover = wire.Album.Images[0].URL
		}
		tracks = append(tracks, track)
	}
	return tracks
}

func joinArtists(artists []spotifyArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
