package services

import (
	"context"

	"github.com/tiagowl/ImgMigrator/internal/models"
	"golang.org/x/oauth2"
)

// Source is a photo service items are migrated from.
type Source interface {
	// Name returns the service name (e.g. "iCloud Photos").
	Name() string

	// Authenticate installs token for subsequent calls.
	Authenticate(ctx context.Context, token *oauth2.Token) error

	// VerifyCredentials reports whether the service accepts the current token.
	VerifyCredentials(ctx context.Context) bool

	// CountItems returns the library size, or 0 when unknown.
	CountItems(ctx context.Context) int

	// ListItems returns up to limit items starting at offset.
	ListItems(ctx context.Context, limit, offset int) ([]models.TransferItem, error)

	// GetMetadata describes one item. Callers treat failures as non-fatal.
	GetMetadata(ctx context.Context, id string) (*models.TransferItem, error)

	// Download returns the original bytes of an item.
	Download(ctx context.Context, id string) ([]byte, error)
}

// Sink is a storage service items are migrated to.
type Sink interface {
	// Name returns the service name (e.g. "Google Drive").
	Name() string

	// Authenticate installs token for subsequent calls.
	Authenticate(ctx context.Context, token *oauth2.Token) error

	// VerifyConnection reports whether the service accepts the current token.
	VerifyConnection(ctx context.Context) bool

	// CreateContainer creates a folder-like container and returns its ID.
	CreateContainer(ctx context.Context, name string) (string, error)

	// PutItem stores data under name. An empty containerID means the service's default location.
	PutItem(ctx context.Context, data []byte, name, mimeType, containerID string) (string, error)
}

// SourceFactory builds an authenticated [Source] for a user.
type SourceFactory func(ctx context.Context, userID string, token *oauth2.Token) (Source, error)

// SinkFactory builds an authenticated [Sink] for a user.
type SinkFactory func(ctx context.Context, userID string, token *oauth2.Token) (Sink, error)

// RefreshFunc forces a token refresh and returns the new token.
type RefreshFunc func(ctx context.Context) (*oauth2.Token, error)
