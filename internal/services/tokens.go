package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/muse/internal/shared"
	"golang.org/x/oauth2"
)

// TokenSource supplies bearer tokens to the Spotify client. Valid returns a
// usable access token, refreshing behind the scenes when the cached one
// expired; Refresh forces a new access token.
type TokenSource interface {
	Valid(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// expirySkew treats tokens about to expire as already expired so a request
// does not race the deadline mid-flight.
const expirySkew = 30 * time.Second

// TokenStore caches one access/refresh token pair for the process lifetime.
// It is the only piece of shared mutable auth state; the refresh path is
// serialized so many concurrently-failing requests cannot trigger a refresh
// storm.
type TokenStore struct {
	mu     sync.Mutex
	config *oauth2.Config
	token  *oauth2.Token
	now    func() time.Time
}

// NewTokenStore creates a [TokenStore] for the given OAuth2 config. The
// initial token may be nil; Set installs one after the authorization flow.
func NewTokenStore(config *oauth2.Config, token *oauth2.Token) *TokenStore {
	return &TokenStore{config: config, token: token, now: time.Now}
}

// Set replaces the cached token pair.
func (s *TokenStore) Set(token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token returns a copy of the cached token pair, or nil.
func (s *TokenStore) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil
	}
	copied := *s.token
	return &copied
}

// Valid returns the cached access token, refreshing first when it expired
// (or is within the expiry skew).
func (s *TokenStore) Valid(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil || s.token.AccessToken == "" {
		return "", shared.ErrNotAuthenticated
	}

	if s.token.Expiry.IsZero() || s.token.Expiry.After(s.now().Add(expirySkew)) {
		return s.token.AccessToken, nil
	}

	return s.refreshLocked(ctx)
}

// Refresh exchanges the refresh token for a new access token and caches the
// result.
func (s *TokenStore) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *TokenStore) refreshLocked(ctx context.Context) (string, error) {
	if s.token == nil || s.token.RefreshToken == "" {
		return "", shared.ErrNoRefreshToken
	}

	// Force the oauth2 token source to treat the cached token as stale.
	stale := *s.token
	stale.Expiry = s.now().Add(-time.Hour)

	refreshed, err := s.config.TokenSource(ctx, &stale).Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = s.token.RefreshToken
	}
	s.token = refreshed
	return refreshed.AccessToken, nil
}
