package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

// ICloudSource reads an iCloud Photos library through an HTTP proxy.
//
// The proxy holds the Apple session; the token's AccessToken is the proxy session key.
type ICloudSource struct {
	api    *APIService
	logger *log.Logger
}

type icloudCount struct {
	Count int `json:"count"`
}

type icloudPage struct {
	Items []models.TransferItem `json:"items"`
}

// NewICloudSource creates a source backed by the proxy at proxyURL.
func NewICloudSource(proxyURL string, client *http.Client, logger *log.Logger) *ICloudSource {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ICloudSource{
		api:    NewAPIService(proxyURL, client),
		logger: shared.WithLogger(logger, "service", shared.ServiceICloud),
	}
}

func (s *ICloudSource) Name() string { return "iCloud Photos" }

// Authenticate installs the proxy session key.
func (s *ICloudSource) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: missing iCloud session", shared.ErrInvalidCredentials)
	}
	s.api.SetToken(token.AccessToken)
	return nil
}

// VerifyCredentials asks the proxy whether the session is still valid.
func (s *ICloudSource) VerifyCredentials(ctx context.Context) bool {
	resp, err := s.api.Get(ctx, "/api/session")
	if err != nil {
		s.logger.Warn("session check failed", "error", err)
		return false
	}
	return resp.OK()
}

// CountItems returns the library size. Errors yield 0, meaning unknown.
func (s *ICloudSource) CountItems(ctx context.Context) int {
	var result icloudCount
	if err := s.api.GetJSON(ctx, "/api/photos/count", &result); err != nil {
		s.logger.Warn("count unavailable", "error", err)
		return 0
	}
	return max(result.Count, 0)
}

// ListItems returns one page of the library.
func (s *ICloudSource) ListItems(ctx context.Context, limit, offset int) ([]models.TransferItem, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var page icloudPage
	if err := s.api.GetJSON(ctx, "/api/photos?"+q.Encode(), &page); err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	for i := range page.Items {
		page.Items[i].Status = models.ItemPending
	}
	return page.Items, nil
}

// GetMetadata describes one photo.
func (s *ICloudSource) GetMetadata(ctx context.Context, id string) (*models.TransferItem, error) {
	var item models.TransferItem
	if err := s.api.GetJSON(ctx, "/api/photos/"+url.PathEscape(id), &item); err != nil {
		return nil, fmt.Errorf("failed to get metadata for %s: %w", id, err)
	}
	if item.SourceID == "" {
		item.SourceID = id
	}
	return &item, nil
}

// Download returns the original bytes of a photo.
func (s *ICloudSource) Download(ctx context.Context, id string) ([]byte, error) {
	resp, err := s.api.Get(ctx, "/api/photos/"+url.PathEscape(id)+"/download")
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", id, err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", id, err)
	}
	return resp.Body, nil
}
