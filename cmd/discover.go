package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/muse/internal/formatter"
	"github.com/desertthunder/muse/internal/recommend"
	"github.com/desertthunder/muse/internal/shared"
	"github.com/urfave/cli/v3"
)

// Discover runs the recommendation pipeline and renders the result.
//
// Seed selection follows the flags: --track seeds from a specific track,
// --current seeds from the playing track, otherwise the listening history
// drives the seeds.
func (r *Runner) Discover(ctx context.Context, cmd *cli.Command) error {
	if r.engine == nil {
		return fmt.Errorf("%w: recommendation engine not initialized", shared.ErrServiceUnavailable)
	}

	opts := recommend.Options{
		Limit:           cmd.Int("limit"),
		TimeRange:       cmd.String("time-range"),
		TrackID:         cmd.String("track"),
		UseCurrent:      cmd.Bool("current"),
		IncludeKnown:    cmd.Bool("include-known") || !r.config.Features.ExcludeTopTracks,
		DisableFallback: !r.config.Features.EnableFallback,
	}

	r.logger.Infof("building recommendations with limit %v", opts.Limit)

	result, err := r.engine.Build(ctx, opts)
	if err != nil {
		if reauthed, authErr := r.handleAuthError(err); reauthed {
			if authErr != nil {
				return authErr
			}
			if result, err = r.engine.Build(ctx, opts); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			}
		} else {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	outputFile := cmd.String("output")
	format := cmd.String("format")
	if outputFile != "" || format != "" {
		written, err := formatter.WriteRecommendationsExport(result, outputFile, format)
		if err != nil {
			return err
		}
		r.writePlain("✓ Recommendations exported to %s\n", written)
		r.writePlain("  Tracks: %d\n", len(result.Tracks))
		return nil
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Recommendations")
	if len(result.Tracks) == 0 {
		r.writePlain("No recommendations for this context.\n")
		r.writePlain("Try a different seed or time range.\n")
		return nil
	}

	data, err := formatter.RecommendationsToText(result)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}
