// package recommend turns a listening context into track recommendations
//
// The engine selects seed entities (explicit track, live playback, or top
// tracks), derives a taste vector from audio features, queries the primary
// recommender, and degrades to per-artist top tracks when the recommender is
// blocked for the current auth scope.
package recommend

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muse/internal/fetch"
	"github.com/desertthunder/muse/internal/services"
	"github.com/desertthunder/muse/internal/shared"
)

const (
	defaultLimit  = 20
	defaultMarket = "US"

	// Averaging audio features over fewer than five tracks produces a
	// taste vector dominated by noise, so history mode refuses to guess.
	historyFloor = 5

	historyFetch = 50

	// The recommender accepts at most five seeds across both types.
	historyTrackSeeds   = 2
	historyArtistSeeds  = 3
	explicitArtistSeeds = 2
)

// Options shapes one recommendation build. Seed selection priority: TrackID,
// then UseCurrent, then history aggregation over TimeRange.
type Options struct {
	Limit           int
	TimeRange       string
	TrackID         string
	UseCurrent      bool
	IncludeKnown    bool // keep tracks already in the user's top tracks
	DisableFallback bool // a blocked recommender becomes an empty result instead of the artist tier
}

// Result is the outcome of a build. Taste is nil when no audio analysis was
// available; Tracks is never longer than the requested limit.
type Result struct {
	Taste  *Vector                     `json:"taste,omitempty"`
	Tracks []services.RecommendedTrack `json:"tracks"`
}

// seedContext is the resolved seed state feeding the recommender call.
type seedContext struct {
	trackIDs   []string
	artistIDs  []string
	featureIDs []string
	known      map[string]struct{} // history-mode exclusion set
	aggregate  bool
}

// Engine drives the recommendation pipeline over a [services.Catalog].
type Engine struct {
	catalog services.Catalog
	broker  *Broker
	logger  *log.Logger
}

// NewEngine creates an [Engine]. Broker and Logger may be nil.
func NewEngine(catalog services.Catalog, broker *Broker, logger *log.Logger) (*Engine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: missing catalog client", shared.ErrInvalidInput)
	}
	if broker == nil {
		broker = NewBroker()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{catalog: catalog, broker: broker, logger: logger}, nil
}

// Broker exposes the engine's event hub for subscribers.
func (e *Engine) Broker() *Broker {
	return e.broker
}

// Build runs the full pipeline. Insufficient signal (nothing playing, or too
// few top tracks) is a terminal empty result, not an error; only transient,
// malformed, and unexpected failures propagate.
func (e *Engine) Build(ctx context.Context, opts Options) (*Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}

	requestID := shared.GenerateID()
	e.broker.Publish(Event{Type: EventQueued, RequestID: requestID, Detail: "building recommendations"})

	seeds, err := e.selectSeeds(ctx, opts)
	if err != nil {
		return nil, err
	}
	if seeds == nil {
		e.broker.Publish(Event{Type: EventCompleted, RequestID: requestID, Detail: "insufficient signal"})
		return &Result{Tracks: []services.RecommendedTrack{}}, nil
	}

	market := e.market(ctx)

	taste, err := e.taste(ctx, seeds.featureIDs)
	if err != nil {
		return nil, err
	}

	params := services.RecommendationParams{
		Limit:       opts.Limit,
		Market:      market,
		SeedTracks:  seeds.trackIDs,
		SeedArtists: seeds.artistIDs,
	}
	if taste != nil {
		params.Targets = taste.Targets()
	}

	tracks, err := e.catalog.Recommendations(ctx, params)
	if err != nil {
		if !fetch.IsBlocked(err) {
			return nil, err
		}
		if opts.DisableFallback {
			e.logger.Info("recommender blocked, fallback disabled")
			e.broker.Publish(Event{Type: EventCompleted, RequestID: requestID, Detail: "recommender unavailable"})
			return &Result{Taste: taste, Tracks: []services.RecommendedTrack{}}, nil
		}
		e.logger.Info("recommender blocked, falling back to artist top tracks", "artists", len(seeds.artistIDs))
		e.broker.Publish(Event{Type: EventFallback, RequestID: requestID, Detail: "recommender unavailable for this scope"})
		tracks, err = e.fallback(ctx, seeds.artistIDs, market, opts.Limit)
		if err != nil {
			return nil, err
		}
	}

	if seeds.aggregate && !opts.IncludeKnown {
		tracks = excludeKnown(tracks, seeds.known)
	}
	if len(tracks) > opts.Limit {
		tracks = tracks[:opts.Limit]
	}

	e.broker.Publish(Event{Type: EventCompleted, RequestID: requestID, Detail: fmt.Sprintf("%d tracks", len(tracks))})
	return &Result{Taste: taste, Tracks: tracks}, nil
}

// selectSeeds resolves the seed state machine. A nil context with a nil error
// is the terminal "insufficient signal" state.
func (e *Engine) selectSeeds(ctx context.Context, opts Options) (*seedContext, error) {
	switch {
	case opts.TrackID != "":
		track, err := e.catalog.Track(ctx, opts.TrackID)
		if err != nil {
			return nil, err
		}
		return singleSeed(track), nil

	case opts.UseCurrent:
		track, err := e.catalog.CurrentlyPlaying(ctx)
		if err != nil {
			return nil, err
		}
		if track == nil || track.ID == "" {
			return nil, nil
		}
		return singleSeed(track), nil

	default:
		tracks, err := e.catalog.TopTracks(ctx, opts.TimeRange, historyFetch)
		if err != nil {
			return nil, err
		}
		return historySeed(tracks), nil
	}
}

// singleSeed shapes an explicit or live seed: the track itself plus up to two
// of its artists.
func singleSeed(track *services.Track) *seedContext {
	seeds := &seedContext{
		trackIDs:   []string{track.ID},
		featureIDs: []string{track.ID},
	}
	for _, artist := range track.Artists {
		if len(seeds.artistIDs) >= explicitArtistSeeds {
			break
		}
		if artist.ID != "" {
			seeds.artistIDs = append(seeds.artistIDs, artist.ID)
		}
	}
	return seeds
}

// historySeed shapes the aggregation seed: the first distinct tracks and
// artists from the listening history, with every distinct track contributing
// to the taste vector and the exclusion set. Returns nil below the floor.
func historySeed(tracks []services.Track) *seedContext {
	seeds := &seedContext{
		known:     make(map[string]struct{}),
		aggregate: true,
	}
	seenArtists := make(map[string]struct{})

	for _, track := range tracks {
		if track.ID == "" {
			continue
		}
		if _, ok := seeds.known[track.ID]; ok {
			continue
		}
		seeds.known[track.ID] = struct{}{}
		seeds.featureIDs = append(seeds.featureIDs, track.ID)

		if len(seeds.trackIDs) < historyTrackSeeds {
			seeds.trackIDs = append(seeds.trackIDs, track.ID)
		}
		for _, artist := range track.Artists {
			if len(seeds.artistIDs) >= historyArtistSeeds {
				break
			}
			if artist.ID == "" {
				continue
			}
			if _, ok := seenArtists[artist.ID]; ok {
				continue
			}
			seenArtists[artist.ID] = struct{}{}
			seeds.artistIDs = append(seeds.artistIDs, artist.ID)
		}
	}

	if len(seeds.featureIDs) < historyFloor {
		return nil
	}
	return seeds
}

// market resolves the user's country, best-effort. A profile failure never
// aborts the pipeline.
func (e *Engine) market(ctx context.Context) string {
	profile, err := e.catalog.Profile(ctx)
	if err != nil || profile == nil || profile.Country == "" {
		if err != nil {
			e.logger.Debug("profile lookup failed, defaulting market", "error", err)
		}
		return defaultMarket
	}
	return profile.Country
}

// taste fetches audio features for the seed tracks and averages them. A 403
// means the feature endpoint is out of scope for this token; the pipeline
// continues without targets.
func (e *Engine) taste(ctx context.Context, ids []string) (*Vector, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	features, err := e.catalog.AudioFeatures(ctx, ids)
	if err != nil {
		if fetch.IsForbidden(err) {
			e.logger.Debug("audio features unavailable for this scope")
			return nil, nil
		}
		return nil, err
	}
	return Average(features), nil
}

// fallback fills the track list from each seed artist's top tracks, in seed
// order, deduplicating across artists and stopping at limit. A blocked artist
// is skipped; any other failure propagates.
func (e *Engine) fallback(ctx context.Context, artistIDs []string, market string, limit int) ([]services.RecommendedTrack, error) {
	seen := make(map[string]struct{})
	var out []services.RecommendedTrack

	for _, artistID := range artistIDs {
		if len(out) >= limit {
			break
		}

		tracks, err := e.catalog.ArtistTopTracks(ctx, artistID, market)
		if err != nil {
			if fetch.IsBlocked(err) {
				e.logger.Debug("artist top tracks unavailable, skipping", "artist", artistID)
				continue
			}
			return nil, err
		}

		for _, track := range tracks {
			if len(out) >= limit {
				break
			}
			if _, ok := seen[track.ID]; ok {
				continue
			}
			seen[track.ID] = struct{}{}
			out = append(out, track)
		}
	}

	return out, nil
}

func excludeKnown(tracks []services.RecommendedTrack, known map[string]struct{}) []services.RecommendedTrack {
	out := make([]services.RecommendedTrack, 0, len(tracks))
	for _, track := range tracks {
		if _, ok := known[track.ID]; ok {
			continue
		}
		out = append(out, track)
	}
	return out
}
