package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const driveFolderMimeType = "application/vnd.google-apps.folder"

// GoogleOAuthConfig builds the OAuth client for Drive uploads.
//
// The drive.file scope only grants access to files the application creates.
func GoogleOAuthConfig(cfg shared.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{drive.DriveFileScope},
		Endpoint:     google.Endpoint,
	}
}

// DriveSink uploads items to Google Drive.
type DriveSink struct {
	service  *drive.Service
	base     *http.Client
	endpoint string
	logger   *log.Logger
}

// DriveOption configures a [DriveSink].
type DriveOption func(*DriveSink)

// WithDriveEndpoint overrides the API base URL.
func WithDriveEndpoint(endpoint string) DriveOption {
	return func(s *DriveSink) { s.endpoint = endpoint }
}

// WithDriveHTTPClient sets the transport wrapped by the OAuth client.
func WithDriveHTTPClient(c *http.Client) DriveOption {
	return func(s *DriveSink) { s.base = c }
}

// NewDriveSink creates an unauthenticated Drive sink.
func NewDriveSink(logger *log.Logger, opts ...DriveOption) *DriveSink {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &DriveSink{logger: shared.WithLogger(logger, "service", shared.SinkGoogleDrive)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DriveSink) Name() string { return "Google Drive" }

// Authenticate builds a Drive client that sends token on every request.
func (s *DriveSink) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: missing Google access token", shared.ErrInvalidCredentials)
	}

	if s.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.base)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create Drive service: %w", err)
	}
	s.service = svc
	return nil
}

// VerifyConnection fetches the current user.
func (s *DriveSink) VerifyConnection(ctx context.Context) bool {
	if s.service == nil {
		return false
	}
	if _, err := s.service.About.Get().Fields("user").Context(ctx).Do(); err != nil {
		s.logger.Warn("connection check failed", "error", err)
		return false
	}
	return true
}

// CreateContainer creates a folder in the user's Drive root.
func (s *DriveSink) CreateContainer(ctx context.Context, name string) (string, error) {
	if s.service == nil {
		return "", shared.ErrNotAuthenticated
	}

	folder := &drive.File{Name: name, MimeType: driveFolderMimeType}
	created, err := s.service.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", name, mapDriveError(err))
	}
	return created.Id, nil
}

// PutItem uploads data as a new file inside containerID, or the Drive root when empty.
func (s *DriveSink) PutItem(ctx context.Context, data []byte, name, mimeType, containerID string) (string, error) {
	if s.service == nil {
		return "", shared.ErrNotAuthenticated
	}

	file := &drive.File{Name: name, MimeType: mimeType}
	if containerID != "" {
		file.Parents = []string{containerID}
	}

	created, err := s.service.Files.Create(file).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", name, mapDriveError(err))
	}
	return created.Id, nil
}

func mapDriveError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}
	return err
}
