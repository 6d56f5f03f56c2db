package main

import (
	"context"
	"fmt"

	"github.com/tiagowl/ImgMigrator/internal/services"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"github.com/tiagowl/ImgMigrator/internal/tasks"
	"golang.org/x/oauth2"
)

// sourceBinding builds iCloud sources against the configured proxy.
func (r *Runner) sourceBinding() tasks.SourceBinding {
	if r.source != nil {
		return *r.source
	}
	proxyURL := r.config.Credentials.ICloud.ProxyURL
	return tasks.SourceBinding{
		Service: shared.ServiceICloud,
		New: func(ctx context.Context, userID string, token *oauth2.Token) (services.Source, error) {
			return services.NewICloudSource(proxyURL, r.httpClient, shared.WithLogger(r.logger, "user", userID)), nil
		},
	}
}

// sinkBinding builds the sink selected by sink.kind.
func (r *Runner) sinkBinding() tasks.SinkBinding {
	if r.sink != nil {
		return *r.sink
	}
	kind := r.config.Sink.Kind
	s3cfg := r.config.Sink.S3

	return tasks.SinkBinding{
		Service: kind,
		New: func(ctx context.Context, userID string, token *oauth2.Token) (services.Sink, error) {
			logger := shared.WithLogger(r.logger, "user", userID)
			switch kind {
			case shared.SinkGoogleDrive:
				return services.NewDriveSink(logger, services.WithDriveHTTPClient(r.httpClient)), nil
			case shared.SinkS3:
				return services.NewS3Sink(s3cfg, nil, logger), nil
			default:
				return nil, fmt.Errorf("%w: unknown sink kind %q", shared.ErrInvalidConfig, kind)
			}
		},
	}
}
