package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/muse/internal/shared"
)

// Setup writes a starter config.toml from the embedded template.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Infof("config file created at %v", configPath)

	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlain("Set credentials.spotify.client_id, then run: muse auth login\n")
	return nil
}
