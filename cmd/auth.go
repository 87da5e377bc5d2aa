package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muse/internal/fetch"
	"github.com/desertthunder/muse/internal/server"
	"github.com/desertthunder/muse/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// authFilePath returns the location of the persisted token pair.
func authFilePath() string {
	return filepath.Join(os.Getenv("HOME"), ".muse", "token.json")
}

// loadToken reads the persisted token pair, if any. A missing or malformed
// file just means the user authenticates again.
func loadToken(logger *log.Logger) *oauth2.Token {
	data, err := os.ReadFile(authFilePath())
	if err != nil {
		return nil
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		logger.Warnf("ignoring malformed token file %v", err)
		return nil
	}
	return &token
}

// saveToken persists the token pair for subsequent invocations.
func saveToken(token *oauth2.Token) (string, error) {
	path := authFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create auth directory: %w", err)
	}

	data, err := shared.MarshalJSON(token, true)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write token file: %w", err)
	}
	return path, nil
}

// AuthLogin performs the OAuth2 authorization-code flow with PKCE.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// persists the exchanged token pair.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	token, err := r.doOAuth("authorization")
	if err != nil {
		return err
	}

	if r.tokens != nil {
		r.tokens.Set(token)
	}

	path, err := saveToken(token)
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", path)
	r.writePlain("You can now use: muse discover\n")

	return nil
}

// AuthStatus reports the state of the cached token pair.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	var token *oauth2.Token
	if r.tokens != nil {
		token = r.tokens.Token()
	}

	if token == nil || token.AccessToken == "" {
		r.writePlain("✗ Not authenticated\n")
		r.writePlain("Run: muse auth login\n")
		return nil
	}

	r.writePlain("✓ Authenticated\n")
	switch {
	case token.Expiry.IsZero():
		r.writePlain("Access token: no recorded expiry\n")
	case token.Expiry.Before(time.Now()):
		r.writePlain("Access token: expired %s ago\n", time.Since(token.Expiry).Round(time.Second))
	default:
		r.writePlain("Access token: valid for %s\n", time.Until(token.Expiry).Round(time.Second))
	}

	if token.RefreshToken != "" {
		r.writePlain("Refresh token: ✓ present\n")
	} else {
		r.writePlain("Refresh token: ✗ missing (expired tokens require a new login)\n")
	}

	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(prefix string) (*oauth2.Token, error) {
	config := r.config
	if config.Credentials.Spotify.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id must be set in config.toml", shared.ErrMissingCredentials)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	oauthHandler := server.NewOAuthHandler(oauthConfig(config), state, verifier)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	authURL := oauthHandler.AuthURL()
	r.writePlain("→ Opening browser for %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}

// handleAuthError checks whether an error means the cached credentials are
// unusable and triggers a fresh authorization flow if so.
func (r *Runner) handleAuthError(err error) (bool, error) {
	if err == nil {
		return false, nil
	}

	needsAuth := fetch.IsAuthRequired(err) ||
		errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, shared.ErrNoRefreshToken) ||
		errors.Is(err, shared.ErrRefreshFailed)
	if !needsAuth {
		return false, err
	}

	r.writePlainln("⚠ Authentication required. Starting authorization...\n")

	token, authErr := r.doOAuth("reauthorization")
	if authErr != nil {
		return true, authErr
	}

	if r.tokens != nil {
		r.tokens.Set(token)
	}
	if path, saveErr := saveToken(token); saveErr != nil {
		r.logger.Warnf("failed to save token %v", saveErr)
	} else {
		r.logger.Infof("tokens saved to %v", path)
	}

	return true, nil
}
