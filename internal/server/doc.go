// Package server provides HTTP routing, middleware, and OAuth handling for the
// muse CLI and its proxy backend.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method-qualified patterns.
//
// # Proxy Backend
//
// [Server] hosts the first-party backend the browser-facing client routes its
// charts traffic through. The charts passthrough attaches the server-side API
// key so it never ships to a client; the recommendations endpoint runs the
// recommendation pipeline behind an inbound throttle.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization-code-with-PKCE callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks. When the user runs
// `muse auth login`, a temporary HTTP server starts on localhost, handles the
// callback, and shuts down after receiving the OAuth token.
package server
