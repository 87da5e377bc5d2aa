package recommend

import (
	"fmt"
	"math"

	"github.com/desertthunder/muse/internal/services"
)

// Vector is the averaged audio profile of the seed tracks, used as target
// parameters for the recommender. Bounded attributes live in [0,1]; tempo is
// raw BPM and deliberately kept out of the clamp.
type Vector struct {
	Danceability     float64
	Energy           float64
	Valence          float64
	Acousticness     float64
	Instrumentalness float64
	Speechiness      float64
	Tempo            float64
}

// Average folds audio features into a [Vector], skipping nil entries (tracks
// without analysis). It returns nil when nothing contributes, and clamps the
// bounded attributes so an out-of-range upstream value never leaks into query
// parameters.
func Average(features []*services.AudioFeatures) *Vector {
	var sum Vector
	count := 0

	for _, f := range features {
		if f == nil {
			continue
		}
		count++
		sum.Danceability += f.Danceability
		sum.Energy += f.Energy
		sum.Valence += f.Valence
		sum.Acousticness += f.Acousticness
		sum.Instrumentalness += f.Instrumentalness
		sum.Speechiness += f.Speechiness
		sum.Tempo += f.Tempo
	}

	if count == 0 {
		return nil
	}

	n := float64(count)
	return &Vector{
		Danceability:     clamp01(sum.Danceability / n),
		Energy:           clamp01(sum.Energy / n),
		Valence:          clamp01(sum.Valence / n),
		Acousticness:     clamp01(sum.Acousticness / n),
		Instrumentalness: clamp01(sum.Instrumentalness / n),
		Speechiness:      clamp01(sum.Speechiness / n),
		Tempo:            sum.Tempo / n,
	}
}

// Targets renders the vector as target_<attribute> parameter values for the
// recommender: bounded attributes to 3 decimals, tempo to 1.
func (v *Vector) Targets() map[string]string {
	return map[string]string{
		"danceability":     formatBounded(v.Danceability),
		"energy":           formatBounded(v.Energy),
		"valence":          formatBounded(v.Valence),
		"acousticness":     formatBounded(v.Acousticness),
		"instrumentalness": formatBounded(v.Instrumentalness),
		"speechiness":      formatBounded(v.Speechiness),
		"tempo":            formatTempo(v.Tempo),
	}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// Values within 1e-12 of zero render as a plain "0" so floating-point noise
// never produces a "-0.000" parameter.
func formatBounded(v float64) string {
	if math.Abs(v) < 1e-12 {
		return "0"
	}
	return fmt.Sprintf("%.3f", v)
}

func formatTempo(v float64) string {
	if math.Abs(v) < 1e-12 {
		return "0"
	}
	return fmt.Sprintf("%.1f", v)
}
