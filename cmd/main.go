package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/desertthunder/muse/internal/fetch"
	"github.com/desertthunder/muse/internal/recommend"
	"github.com/desertthunder/muse/internal/services"
	"github.com/desertthunder/muse/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// spotifyScopes cover the listening-history and playback reads the
// recommendation pipeline needs.
var spotifyScopes = []string{
	"user-read-private",
	"user-top-read",
	"user-read-currently-playing",
}

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	fetcher := fetch.NewClient(fetch.ClientOptions{
		Logger:      logger,
		Concurrency: config.Fetch.Concurrency,
		CacheBounds: config.Fetch.CacheEntries,
	})

	tokens := services.NewTokenStore(oauthConfig(config), loadToken(logger))

	var engine *recommend.Engine
	var spotify *services.SpotifyClient
	if svc, err := services.NewSpotifyClient(services.SpotifyOptions{
		Fetcher:   fetcher,
		Tokens:    tokens,
		Logger:    logger,
		RateLimit: config.Fetch.SpotifyLimit,
		Window:    time.Duration(config.Fetch.SpotifyWindow) * time.Millisecond,
		Retries:   config.Fetch.Retries,
	}); err == nil {
		spotify = svc
		engine, _ = recommend.NewEngine(svc, nil, logger)
	}

	var browser services.Browser
	if svc, err := services.NewChartsClient(services.ChartsOptions{
		BackendURL: config.Charts.BackendURL,
		BaseURL:    config.Charts.BaseURL,
		APIKey:     config.Charts.APIKey,
		Relays:     config.Charts.Relays,
		Fetcher:    fetcher,
		Logger:     logger,
		RateLimit:  config.Fetch.ChartsLimit,
		Window:     time.Duration(config.Fetch.ChartsWindowMS) * time.Millisecond,
		Retries:    config.Fetch.Retries,
	}); err == nil {
		browser = svc
	}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: spotify,
		Browser: browser,
		Tokens:  tokens,
		Fetcher: fetcher,
		Engine:  engine,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "muse",
		Usage:    "Discover music from your listening history and the charts",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}

// oauthConfig builds the authorization-code (PKCE) config for the streaming
// API. No client secret: the CLI is a public client.
func oauthConfig(config *shared.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    config.Credentials.Spotify.ClientID,
		RedirectURL: config.Credentials.Spotify.RedirectURI,
		Scopes:      spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  services.SpotifyAuthURL,
			TokenURL: services.SpotifyTokenURL,
		},
	}
}
