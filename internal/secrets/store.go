// package secrets resolves and refreshes per-user service tokens
package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jellydator/ttlcache/v2"
	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// CredentialRepository is the durable side of the [Store].
type CredentialRepository interface {
	GetByUserAndService(userID, service string) (*models.Credential, error)
	Upsert(userID, service string, token *oauth2.Token) (*models.Credential, error)
	Delete(id string) error
}

type cacheKey struct {
	userID  string
	service string
}

func (k cacheKey) String() string { return k.userID + "/" + k.service }

// Store hands out valid tokens for (user, service) pairs.
//
// Tokens are cached in memory until their expiry and refreshed through the service's [oauth2.Config]
// when they expire. Concurrent refreshes of the same pair share one exchange.
// Call [Store.Close] to stop the cache's expiry loop.
type Store struct {
	repo   CredentialRepository
	oauth  map[string]*oauth2.Config
	logger *log.Logger

	cache *ttlcache.Cache
	group singleflight.Group
}

// Option configures a [Store].
type Option func(*Store)

// WithOAuthConfig registers the refresh configuration for service.
func WithOAuthConfig(service string, cfg *oauth2.Config) Option {
	return func(s *Store) { s.oauth[service] = cfg }
}

// NewStore creates a store backed by repo.
func NewStore(repo CredentialRepository, logger *log.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Store{
		repo:   repo,
		oauth:  map[string]*oauth2.Config{},
		logger: shared.WithLogger(logger, "component", "secrets"),
		cache:  ttlcache.NewCache(),
	}
	s.cache.SkipTTLExtensionOnHit(true)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetValidToken returns an unexpired token, refreshing it when needed.
//
// Missing credentials yield [shared.ErrMissingCredentials]; a rejected refresh yields
// [shared.ErrInvalidCredentials]. Any other error means the store could not be reached.
func (s *Store) GetValidToken(ctx context.Context, userID, service string) (*oauth2.Token, error) {
	key := cacheKey{userID, service}

	if token, ok := s.cached(key); ok && token.Valid() {
		return token, nil
	}

	token, err := s.load(key)
	if err != nil {
		return nil, err
	}
	if token.Valid() {
		s.store(key, token)
		return token, nil
	}

	s.logger.Debug("token expired, refreshing", "user", userID, "service", service)
	return s.Refresh(ctx, userID, service)
}

// Refresh forces a token refresh and persists the result.
func (s *Store) Refresh(ctx context.Context, userID, service string) (*oauth2.Token, error) {
	key := cacheKey{userID, service}

	v, err, _ := s.group.Do(key.String(), func() (any, error) {
		return s.refresh(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

func (s *Store) refresh(ctx context.Context, key cacheKey) (*oauth2.Token, error) {
	current, err := s.load(key)
	if err != nil {
		return nil, err
	}

	cfg, ok := s.oauth[key.service]
	if !ok {
		return nil, fmt.Errorf("%w: %s credentials cannot be refreshed", shared.ErrInvalidCredentials, key.service)
	}
	if current.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidCredentials, shared.ErrNoRefreshToken)
	}

	fresh, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
	if err != nil {
		return nil, classifyRefreshError(err)
	}

	credential, err := s.repo.Upsert(key.userID, key.service, fresh)
	if err != nil {
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	token := credential.Token()
	s.store(key, token)
	s.logger.Info("token refreshed", "user", key.userID, "service", key.service, "expiry", token.Expiry)
	return token, nil
}

// Put stores token for (userID, service), replacing any existing one.
func (s *Store) Put(ctx context.Context, userID, service string, token *oauth2.Token) error {
	credential, err := s.repo.Upsert(userID, service, token)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	s.store(cacheKey{userID, service}, credential.Token())
	return nil
}

// Delete disconnects (userID, service). It returns [shared.ErrMissingCredentials] when nothing is stored.
func (s *Store) Delete(ctx context.Context, userID, service string) error {
	key := cacheKey{userID, service}
	_ = s.cache.Remove(key.String())

	credential, err := s.repo.GetByUserAndService(userID, service)
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: no %s credential", shared.ErrMissingCredentials, service)
	}
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}
	if err := s.repo.Delete(credential.ID()); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	s.logger.Info("credential removed", "user", userID, "service", service)
	return nil
}

// Has reports whether a credential exists for (userID, service).
func (s *Store) Has(ctx context.Context, userID, service string) (bool, error) {
	key := cacheKey{userID, service}

	if _, ok := s.cached(key); ok {
		return true, nil
	}

	_, err := s.load(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, shared.ErrMissingCredentials):
		return false, nil
	default:
		return false, err
	}
}

func (s *Store) load(key cacheKey) (*oauth2.Token, error) {
	credential, err := s.repo.GetByUserAndService(key.userID, key.service)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: no %s credential", shared.ErrMissingCredentials, key.service)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return credential.Token(), nil
}

// Close stops the cache.
func (s *Store) Close() error {
	return s.cache.Close()
}

func (s *Store) cached(key cacheKey) (*oauth2.Token, bool) {
	v, err := s.cache.Get(key.String())
	if err != nil {
		return nil, false
	}
	return v.(*oauth2.Token), true
}

// store caches token until it expires. Tokens without an expiry stay cached.
func (s *Store) store(key cacheKey, token *oauth2.Token) {
	var ttl time.Duration
	if !token.Expiry.IsZero() {
		if ttl = time.Until(token.Expiry); ttl <= 0 {
			_ = s.cache.Remove(key.String())
			return
		}
	}
	if err := s.cache.SetWithTTL(key.String(), token, ttl); err != nil {
		s.logger.Warn("failed to cache token", "key", key, "error", err)
	}
}

// classifyRefreshError separates revoked grants from transient failures.
func classifyRefreshError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == "invalid_grant" || re.ErrorCode == "unauthorized_client" {
			return fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
		}
		if re.Response != nil {
			switch re.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized:
				return fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
			}
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
}
