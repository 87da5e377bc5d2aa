package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/muse/internal/fetch"
	"github.com/desertthunder/muse/internal/server"
	"github.com/desertthunder/muse/internal/services"
	"github.com/urfave/cli/v3"
)

// Serve runs the first-party proxy backend.
//
// The server talks to the charts upstream directly (it is the backend the CLI
// client would otherwise route through), attaching the server-side API key.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host := cmd.String("host")
	if host == "" {
		host = r.config.Server.Host
	}
	port := cmd.Int("port")
	if port == 0 {
		port = r.config.Server.Port
	}

	if r.fetcher == nil {
		r.fetcher = fetch.NewClient(fetch.ClientOptions{Logger: r.logger})
	}

	browser, err := services.NewChartsClient(services.ChartsOptions{
		BaseURL:   r.config.Charts.BaseURL,
		APIKey:    r.config.Charts.APIKey,
		Relays:    r.config.Charts.Relays,
		Fetcher:   r.fetcher,
		Logger:    r.logger,
		RateLimit: r.config.Fetch.ChartsLimit,
		Window:    time.Duration(r.config.Fetch.ChartsWindowMS) * time.Millisecond,
		Retries:   r.config.Fetch.Retries,
	})
	if err != nil {
		return fmt.Errorf("failed to create charts client: %w", err)
	}

	rps := r.config.Server.RPS
	if rps <= 0 {
		rps = 10
	}
	burst := r.config.Server.Burst
	if burst <= 0 {
		burst = 20
	}

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger), server.Throttle(rps, burst), server.CORS("*"))
	router.Handler(&server.HealthHandler{})
	router.Handler(server.NewChartsHandler(browser, r.logger))
	if r.engine != nil {
		router.Handler(server.NewRecommendationsHandler(r.engine, r.logger))
	}

	srv := server.NewServer(host, port, router, r.logger)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.writePlain("muse proxy listening on %s:%d\n", host, port)
	return srv.ListenAndServe(sigCtx)
}
