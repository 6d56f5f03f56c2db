package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

// refresher forces one token refresh and re-authenticates an adapter with the result.
type refresher struct {
	mu      sync.Mutex
	refresh RefreshFunc
	auth    func(ctx context.Context, token *oauth2.Token) error
}

func (r *refresher) renew(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, err := r.refresh(ctx)
	if err != nil {
		return err
	}
	if err := r.auth(ctx, token); err != nil {
		return fmt.Errorf("failed to re-authenticate: %w", err)
	}
	return nil
}

// retryOnce runs fn and, when it fails with [shared.ErrTokenExpired], renews and runs it one more time.
func retryOnce[T any](ctx context.Context, r *refresher, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil || !errors.Is(err, shared.ErrTokenExpired) {
		return v, err
	}
	if rerr := r.renew(ctx); rerr != nil {
		var zero T
		return zero, rerr
	}
	return fn()
}

func verifyOnce(ctx context.Context, r *refresher, fn func(context.Context) bool) bool {
	if fn(ctx) {
		return true
	}
	if err := r.renew(ctx); err != nil {
		return false
	}
	return fn(ctx)
}

// countOnce treats a zero count as a possible auth failure and asks again after one renewal.
// An empty library costs one refresh.
func countOnce(ctx context.Context, r *refresher, fn func(context.Context) int) int {
	if n := fn(ctx); n > 0 {
		return n
	}
	if err := r.renew(ctx); err != nil {
		return 0
	}
	return fn(ctx)
}

type refreshingSource struct {
	inner Source
	r     *refresher
}

// NewRefreshingSource wraps inner so that calls rejected for an expired token are retried once after refresh.
func NewRefreshingSource(inner Source, refresh RefreshFunc) Source {
	return &refreshingSource{inner: inner, r: &refresher{refresh: refresh, auth: inner.Authenticate}}
}

func (s *refreshingSource) Name() string { return s.inner.Name() }

func (s *refreshingSource) Authenticate(ctx context.Context, token *oauth2.Token) error {
	return s.inner.Authenticate(ctx, token)
}

func (s *refreshingSource) VerifyCredentials(ctx context.Context) bool {
	return verifyOnce(ctx, s.r, s.inner.VerifyCredentials)
}

func (s *refreshingSource) CountItems(ctx context.Context) int {
	return countOnce(ctx, s.r, s.inner.CountItems)
}

func (s *refreshingSource) ListItems(ctx context.Context, limit, offset int) ([]models.TransferItem, error) {
	return retryOnce(ctx, s.r, func() ([]models.TransferItem, error) {
		return s.inner.ListItems(ctx, limit, offset)
	})
}

func (s *refreshingSource) GetMetadata(ctx context.Context, id string) (*models.TransferItem, error) {
	return retryOnce(ctx, s.r, func() (*models.TransferItem, error) {
		return s.inner.GetMetadata(ctx, id)
	})
}

func (s *refreshingSource) Download(ctx context.Context, id string) ([]byte, error) {
	return retryOnce(ctx, s.r, func() ([]byte, error) {
		return s.inner.Download(ctx, id)
	})
}

type refreshingSink struct {
	inner Sink
	r     *refresher
}

// NewRefreshingSink wraps inner so that calls rejected for an expired token are retried once after refresh.
func NewRefreshingSink(inner Sink, refresh RefreshFunc) Sink {
	return &refreshingSink{inner: inner, r: &refresher{refresh: refresh, auth: inner.Authenticate}}
}

func (s *refreshingSink) Name() string { return s.inner.Name() }

func (s *refreshingSink) Authenticate(ctx context.Context, token *oauth2.Token) error {
	return s.inner.Authenticate(ctx, token)
}

func (s *refreshingSink) VerifyConnection(ctx context.Context) bool {
	return verifyOnce(ctx, s.r, s.inner.VerifyConnection)
}

func (s *refreshingSink) CreateContainer(ctx context.Context, name string) (string, error) {
	return retryOnce(ctx, s.r, func() (string, error) {
		return s.inner.CreateContainer(ctx, name)
	})
}

func (s *refreshingSink) PutItem(ctx context.Context, data []byte, name, mimeType, containerID string) (string, error) {
	return retryOnce(ctx, s.r, func() (string, error) {
		return s.inner.PutItem(ctx, data, name, mimeType, containerID)
	})
}
