package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/muse/internal/recommend"
	"github.com/desertthunder/muse/internal/shared"
	"github.com/desertthunder/muse/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive track browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.engine == nil {
		return fmt.Errorf("%w: recommendation engine not initialized", shared.ErrServiceUnavailable)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/muse-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	opts := recommend.Options{
		Limit:           cmd.Int("limit"),
		TimeRange:       cmd.String("time-range"),
		TrackID:         cmd.String("track"),
		UseCurrent:      cmd.Bool("current"),
		IncludeKnown:    !r.config.Features.ExcludeTopTracks,
		DisableFallback: !r.config.Features.EnableFallback,
	}

	model := ui.NewModel(ctx, r.engine, opts)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
