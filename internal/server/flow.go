package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

const defaultFlowTimeout = 2 * time.Minute

// Flow runs the authorization code flow against a loopback listener.
type Flow struct {
	Config *oauth2.Config
	// Addr is the listen address, e.g. "localhost:3000". When Config.RedirectURL is empty it is
	// derived from the bound address.
	Addr string
	// Open shows the consent URL to the user; defaults to [shared.OpenBrowser].
	Open        func(url string) error
	Timeout     time.Duration
	AuthOptions []oauth2.AuthCodeOption
	Logger      *log.Logger
}

// Run blocks until the callback arrives, the timeout elapses or ctx is done.
//
// The returned error wraps [shared.ErrTimeout] on timeout and [shared.ErrAuthFailed] when the
// provider rejects the request.
func (f *Flow) Run(ctx context.Context) (*oauth2.Token, error) {
	logger := f.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	open := f.Open
	if open == nil {
		open = shared.OpenBrowser
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultFlowTimeout
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	listener, err := net.Listen("tcp", f.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", f.Addr, err)
	}

	config := *f.Config
	if config.RedirectURL == "" {
		config.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr())
	}

	handler := NewOAuthHandler(&config, state)
	router := NewBasicRouter()
	router.Use(LogRequests(logger))
	router.Handler(handler)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("waiting for OAuth callback", "addr", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := config.AuthCodeURL(state, f.AuthOptions...)
	if err := open(authURL); err != nil {
		logger.Warn("failed to open browser", "error", err, "url", authURL)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
