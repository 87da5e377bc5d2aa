// package services defines typed clients for the external music APIs
//
// Spotify (token-bearing) and the charts API (proxy-routed). Neither client
// carries resiliency logic of its own; every outbound call goes through the
// fetch substrate.
package services

import (
	"context"
)

// Catalog is the surface of the primary streaming API consumed by the
// recommendation engine.
type Catalog interface {
	// Profile retrieves the authenticated user's profile.
	Profile(ctx context.Context) (*Profile, error)

	// Track retrieves a single track by ID.
	Track(ctx context.Context, id string) (*Track, error)

	// TopTracks retrieves the user's most played tracks for a time range.
	TopTracks(ctx context.Context, timeRange string, limit int) ([]Track, error)

	// CurrentlyPlaying reports the user's playback context; nil when nothing is playing.
	CurrentlyPlaying(ctx context.Context) (*Track, error)

	// AudioFeatures retrieves audio features for up to 100 tracks. Entries
	// may be nil for tracks without analysis.
	AudioFeatures(ctx context.Context, ids []string) ([]*AudioFeatures, error)

	// Recommendations queries the primary recommender endpoint.
	Recommendations(ctx context.Context, params RecommendationParams) ([]RecommendedTrack, error)

	// ArtistTopTracks retrieves an artist's most popular tracks in a market.
	ArtistTopTracks(ctx context.Context, artistID, market string) ([]RecommendedTrack, error)
}

// Browser is the surface of the secondary charts API consumed by the
// browse/discovery views.
type Browser interface {
	// Chart retrieves the current top chart entries.
	Chart(ctx context.Context, limit int) ([]ChartEntry, error)

	// Search searches the charts catalog.
	Search(ctx context.Context, query string, limit int) ([]ChartEntry, error)

	// Genres lists the catalog's genre taxonomy.
	Genres(ctx context.Context) ([]Genre, error)
}

// Profile represents the authenticated user.
type Profile struct {
	ID          string
	DisplayName string
	Country     string
}

// ArtistRef is a lightweight artist reference attached to tracks.
type ArtistRef struct {
	ID   string
	Name string
}

// Track represents a catalog track.
type Track struct {
	ID          string
	Name        string
	Artists     []ArtistRef
	AlbumName   string
	CoverURL    string
	PreviewURL  string
	ExternalURL string
}

// Album represents a catalog album (new-releases browse surface).
type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	CoverURL    string `json:"cover,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
	ExternalURL string `json:"external_url"`
}

// AudioFeatures holds the numeric audio attributes for one track. Bounded
// attributes range over [0,1]; tempo is raw BPM.
type AudioFeatures struct {
	ID               string
	Danceability     float64
	Energy           float64
	Valence          float64
	Acousticness     float64
	Instrumentalness float64
	Speechiness      float64
	Liveness         float64
	Tempo            float64
}

// RecommendationParams are the query parameters for the primary recommender.
// Targets maps target_<attribute> names to pre-formatted values.
type RecommendationParams struct {
	Limit       int
	Market      string
	SeedTracks  []string
	SeedArtists []string
	Targets     map[string]string
}

// RecommendedTrack is the normalized track shape consumed directly by the
// CLI/TUI layer. Both the recommender's track objects and the artist
// top-tracks fallback objects reduce to it.
type RecommendedTrack struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Artists     string `json:"artists"`
	Cover       string `json:"cover,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	ExternalURL string `json:"external_url"`
}

// ChartEntry is a normalized chart/search row from the secondary API.
type ChartEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Cover    string `json:"cover,omitempty"`
	Preview  string `json:"preview,omitempty"`
	Link     string `json:"link,omitempty"`
	Position int    `json:"position,omitempty"`
}

// Genre is a charts API genre.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
