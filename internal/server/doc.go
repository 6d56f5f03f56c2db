// Package server provides HTTP routing, middleware, and the OAuth loopback flow used by the CLI.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback.
//
// # Loopback Flow
//
// [Flow] ties the pieces together for `imgmigrator credentials connect google`: it listens on a loopback
// address, opens the consent page in a browser, waits for the callback and shuts the listener down.
// The resulting token (with its refresh token) is handed to the secret store by the caller.
//
// The long-running HTTP API lives in internal/api and is built on gin; this package only serves the
// short-lived callback listener.
package server
