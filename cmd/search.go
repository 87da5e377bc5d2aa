package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/muse/internal/services"
	"github.com/desertthunder/muse/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search queries the streaming catalog for tracks.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	if r.spotify == nil {
		return fmt.Errorf("%w: streaming client not initialized", shared.ErrServiceUnavailable)
	}

	limit := cmd.Int("limit")
	r.logger.Infof("searching catalog for %v", query)

	tracks, err := r.spotify.Search(ctx, query, limit)
	if err != nil {
		if reauthed, authErr := r.handleAuthError(err); reauthed {
			if authErr != nil {
				return authErr
			}
			if tracks, err = r.spotify.Search(ctx, query, limit); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			}
		} else {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d tracks:\n\n", len(tracks))
	for i, track := range tracks {
		r.writePlain("%d. %s - %s\n", i+1, track.Name, artistNames(track.Artists))
		if track.AlbumName != "" {
			r.writePlain("   Album: %s\n", track.AlbumName)
		}
		r.writePlain("   ID: %s\n", track.ID)
	}

	return nil
}

func artistNames(artists []services.ArtistRef) string {
	names := make([]string, len(artists))
	for i, artist := range artists {
		names[i] = artist.Name
	}
	return strings.Join(names, ", ")
}
