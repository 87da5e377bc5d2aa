package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/muse/internal/formatter"
	"github.com/desertthunder/muse/internal/shared"
	"github.com/urfave/cli/v3"
)

// ChartsTop shows the current top chart from the secondary charts API.
func (r *Runner) ChartsTop(ctx context.Context, cmd *cli.Command) error {
	if r.browser == nil {
		return fmt.Errorf("%w: charts client not initialized", shared.ErrServiceUnavailable)
	}

	limit := cmd.Int("limit")
	r.logger.Infof("fetching top chart with limit %v", limit)

	entries, err := r.browser.Chart(ctx, limit)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Top Chart")
	data, err := formatter.ChartToText(entries)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// ChartsSearch searches the charts catalog.
func (r *Runner) ChartsSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	if r.browser == nil {
		return fmt.Errorf("%w: charts client not initialized", shared.ErrServiceUnavailable)
	}

	limit := cmd.Int("limit")
	r.logger.Infof("searching charts for %v", query)

	entries, err := r.browser.Search(ctx, query, limit)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d entries:\n\n", len(entries))
	data, err := formatter.ChartToText(entries)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// ChartsNew lists new album releases from the streaming catalog.
func (r *Runner) ChartsNew(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: streaming client not initialized", shared.ErrServiceUnavailable)
	}

	limit := cmd.Int("limit")
	r.logger.Infof("fetching new releases with limit %v", limit)

	albums, err := r.spotify.NewReleases(ctx, limit)
	if err != nil {
		if reauthed, authErr := r.handleAuthError(err); reauthed {
			if authErr != nil {
				return authErr
			}
			if albums, err = r.spotify.NewReleases(ctx, limit); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			}
		} else {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(albums, cmd.Bool("pretty"))
	}

	r.writePlainHeader("New Releases")
	for i, album := range albums {
		r.writePlain("%d. %s - %s\n", i+1, album.Artist, album.Name)
		if album.ReleaseDate != "" {
			r.writePlain("   Released: %s\n", album.ReleaseDate)
		}
	}

	return nil
}

// ChartsGenres lists the charts genre taxonomy.
func (r *Runner) ChartsGenres(ctx context.Context, cmd *cli.Command) error {
	if r.browser == nil {
		return fmt.Errorf("%w: charts client not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Info("fetching genre taxonomy")

	genres, err := r.browser.Genres(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(genres, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d genres:\n\n", len(genres))
	for _, genre := range genres {
		r.writePlain("%s (id %d)\n", genre.Name, genre.ID)
	}

	return nil
}
