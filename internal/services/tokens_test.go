package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/desertthunder/muse/internal/shared"
	mock "github.com/desertthunder/muse/internal/testing"
	"golang.org/x/oauth2"
)

func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: "client-id",
		Endpoint: oauth2.Endpoint{
			AuthURL:  SpotifyAuthURL,
			TokenURL: SpotifyTokenURL,
		},
	}
}

// tokenCtx routes the oauth2 package's refresh requests through a scripted
// transport.
func tokenCtx(transport http.RoundTripper) context.Context {
	return context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: transport})
}

func TestTokenStore(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid returns the cached token before expiry", func(t *testing.T) {
		store := NewTokenStore(oauthConfig(), &oauth2.Token{
			AccessToken:  "cached",
			RefreshToken: "refresh",
			Expiry:       now.Add(time.Hour),
		})
		store.now = func() time.Time { return now }

		token, err := store.Valid(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "cached" {
			t.Errorf("token = %q, want cached", token)
		}
	})

	t.Run("empty store is not authenticated", func(t *testing.T) {
		store := NewTokenStore(oauthConfig(), nil)

		if _, err := store.Valid(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected not-authenticated, got %v", err)
		}
	})

	t.Run("valid refreshes a token inside the expiry skew", func(t *testing.T) {
		transport := mock.NewScriptedTransport(mock.Step{
			Status: http.StatusOK,
			Body:   `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`,
		})
		store := NewTokenStore(oauthConfig(), &oauth2.Token{
			AccessToken:  "stale",
			RefreshToken: "refresh",
			Expiry:       now.Add(10 * time.Second),
		})
		store.now = func() time.Time { return now }

		token, err := store.Valid(tokenCtx(transport))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "fresh" {
			t.Errorf("token = %q, want fresh", token)
		}
		if transport.Calls() != 1 {
			t.Errorf("expected 1 token endpoint call, got %d", transport.Calls())
		}
	})

	t.Run("refresh preserves the refresh token when omitted", func(t *testing.T) {
		transport := mock.NewScriptedTransport(mock.Step{
			Status: http.StatusOK,
			Body:   `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`,
		})
		store := NewTokenStore(oauthConfig(), &oauth2.Token{
			AccessToken:  "stale",
			RefreshToken: "keep-me",
			Expiry:       now.Add(-time.Hour),
		})
		store.now = func() time.Time { return now }

		if _, err := store.Refresh(tokenCtx(transport)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := store.Token().RefreshToken; got != "keep-me" {
			t.Errorf("refresh token = %q, want keep-me", got)
		}
	})

	t.Run("refresh without a refresh token fails", func(t *testing.T) {
		store := NewTokenStore(oauthConfig(), &oauth2.Token{AccessToken: "stale"})

		if _, err := store.Refresh(context.Background()); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected no-refresh-token, got %v", err)
		}
	})

	t.Run("refresh wraps endpoint failures", func(t *testing.T) {
		transport := mock.NewScriptedTransport(mock.Step{
			Status: http.StatusBadRequest,
			Body:   `{"error":"invalid_grant"}`,
		})
		store := NewTokenStore(oauthConfig(), &oauth2.Token{
			AccessToken:  "stale",
			RefreshToken: "revoked",
			Expiry:       now.Add(-time.Hour),
		})
		store.now = func() time.Time { return now }

		_, err := store.Refresh(tokenCtx(transport))
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected refresh-failed, got %v", err)
		}
	})

	t.Run("token accessor returns a copy", func(t *testing.T) {
		store := NewTokenStore(oauthConfig(), &oauth2.Token{AccessToken: "original"})

		copied := store.Token()
		copied.AccessToken = "mutated"

		if got := store.Token().AccessToken; got != "original" {
			t.Errorf("store token = %q, want original", got)
		}
	})
}
