package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/charmbracelet/log"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

const defaultS3Region = "us-east-1"

// S3Sink stores items in an S3-compatible bucket.
//
// The token's AccessToken is "accessKeyID:secretAccessKey". Containers are key prefixes
// marked by an empty "name/" object.
type S3Sink struct {
	cfg        shared.S3Config
	httpClient *http.Client
	client     *s3.Client
	logger     *log.Logger
}

// NewS3Sink creates an unauthenticated S3 sink. client may be nil.
func NewS3Sink(cfg shared.S3Config, client *http.Client, logger *log.Logger) *S3Sink {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &S3Sink{
		cfg:        cfg,
		httpClient: client,
		logger:     shared.WithLogger(logger, "service", shared.SinkS3, "bucket", cfg.Bucket),
	}
}

func (s *S3Sink) Name() string { return "S3" }

// SplitS3Secret splits an "accessKeyID:secretAccessKey" pair.
func SplitS3Secret(secret string) (string, string, error) {
	keyID, key, ok := strings.Cut(secret, ":")
	if !ok || keyID == "" || key == "" {
		return "", "", fmt.Errorf("%w: expected accessKeyID:secretAccessKey", shared.ErrInvalidCredentials)
	}
	return keyID, key, nil
}

// Authenticate builds an S3 client with static credentials taken from token.
func (s *S3Sink) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: missing S3 credentials", shared.ErrInvalidCredentials)
	}
	keyID, key, err := SplitS3Secret(token.AccessToken)
	if err != nil {
		return err
	}

	region := s.cfg.Region
	if region == "" {
		region = defaultS3Region
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(keyID, key, "")),
	}
	if s.httpClient != nil {
		opts = append(opts, config.WithHTTPClient(s.httpClient))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.Endpoint)
		}
		o.UsePathStyle = s.cfg.UsePathStyle
	})
	return nil
}

// VerifyConnection checks that the bucket exists and is reachable with the credentials.
func (s *S3Sink) VerifyConnection(ctx context.Context) bool {
	if s.client == nil {
		return false
	}
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)}); err != nil {
		s.logger.Warn("connection check failed", "error", err)
		return false
	}
	return true
}

// CreateContainer writes the "name/" marker object and returns the prefix.
func (s *S3Sink) CreateContainer(ctx context.Context, name string) (string, error) {
	if s.client == nil {
		return "", shared.ErrNotAuthenticated
	}

	prefix := strings.Trim(name, "/") + "/"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(prefix)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create prefix %q: %w", prefix, mapS3Error(err))
	}
	return prefix, nil
}

// PutItem uploads data under the container prefix and returns the object key.
func (s *S3Sink) PutItem(ctx context.Context, data []byte, name, mimeType, containerID string) (string, error) {
	if s.client == nil {
		return "", shared.ErrNotAuthenticated
	}

	key := s.key(path.Join(containerID, name))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", name, mapS3Error(err))
	}
	return key, nil
}

func (s *S3Sink) key(rel string) string {
	if s.cfg.Prefix == "" {
		return rel
	}
	return strings.TrimSuffix(s.cfg.Prefix, "/") + "/" + rel
}

func mapS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
		}
	}
	return err
}
