package main

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"

	"github.com/tiagowl/ImgMigrator/internal/server"
	"github.com/tiagowl/ImgMigrator/internal/services"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// ConnectGoogle runs the browser consent flow and stores the Drive token for the user.
func (r *Runner) ConnectGoogle(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	userID, err := r.resolveUser(cmd)
	if err != nil {
		return err
	}

	google := r.config.Credentials.Google
	if google.ClientID == "" || google.ClientSecret == "" {
		return fmt.Errorf("%w: credentials.google client_id and client_secret must be set in %s", shared.ErrMissingConfig, r.configPath)
	}

	flow := &server.Flow{
		Config: services.GoogleOAuthConfig(google),
		Addr:   net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.OAuthPort)),
		Open: func(url string) error {
			r.writePlain("→ Opening browser for Google authorization...\n")
			if err := shared.OpenBrowser(url); err != nil {
				r.writePlainln("⚠ Could not open browser automatically.")
				r.writePlain("Please open this URL in your browser:\n%s\n\n", url)
				return err
			}
			return nil
		},
		AuthOptions: []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.ApprovalForce},
		Logger:      r.logger,
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")
	token, err := flow.Run(ctx)
	if err != nil {
		return err
	}
	if token.RefreshToken == "" {
		r.logger.Warn("no refresh token returned; the connection will expire with the access token")
	}

	if err := r.secrets.Put(ctx, userID, shared.SinkGoogleDrive, token); err != nil {
		return err
	}
	return r.writePlainln("%s", r.palette.OK("✓ Google Drive connected"))
}

// SetICloud stores the proxy session key that authorizes iCloud Photos reads.
func (r *Runner) SetICloud(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	userID, err := r.resolveUser(cmd)
	if err != nil {
		return err
	}

	token := &oauth2.Token{AccessToken: cmd.String("session"), TokenType: "Bearer"}
	source := services.NewICloudSource(r.config.Credentials.ICloud.ProxyURL, r.httpClient, r.logger)
	if err := source.Authenticate(ctx, token); err != nil {
		return err
	}
	if !cmd.Bool("skip-verify") && !source.VerifyCredentials(ctx) {
		return fmt.Errorf("%w: the iCloud proxy rejected the session", shared.ErrInvalidCredentials)
	}

	if err := r.secrets.Put(ctx, userID, shared.ServiceICloud, token); err != nil {
		return err
	}
	return r.writePlain("%s\n", r.palette.OK("✓ iCloud Photos connected"))
}

// SetS3 stores an access key pair for the S3 sink.
func (r *Runner) SetS3(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	userID, err := r.resolveUser(cmd)
	if err != nil {
		return err
	}

	secret := cmd.String("access-key-id") + ":" + cmd.String("secret-access-key")
	if _, _, err := services.SplitS3Secret(secret); err != nil {
		return err
	}
	token := &oauth2.Token{AccessToken: secret}

	if !cmd.Bool("skip-verify") {
		sink := services.NewS3Sink(r.config.Sink.S3, nil, r.logger)
		if err := sink.Authenticate(ctx, token); err != nil {
			return err
		}
		if !sink.VerifyConnection(ctx) {
			return fmt.Errorf("%w: bucket %q is not reachable with these keys", shared.ErrInvalidCredentials, r.config.Sink.S3.Bucket)
		}
	}

	if err := r.secrets.Put(ctx, userID, shared.SinkS3, token); err != nil {
		return err
	}
	return r.writePlain("%s\n", r.palette.OK("✓ S3 connected"))
}

// ListCredentials shows which services the user has connected.
func (r *Runner) ListCredentials(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	userID, err := r.resolveUser(cmd)
	if err != nil {
		return err
	}

	status := map[string]bool{}
	for _, service := range []string{shared.ServiceICloud, r.config.Sink.Kind} {
		ok, err := r.secrets.Has(ctx, userID, service)
		if err != nil {
			return err
		}
		status[service] = ok
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}
	for _, service := range []string{shared.ServiceICloud, r.config.Sink.Kind} {
		mark := r.palette.OK("✓ connected")
		if !status[service] {
			mark = r.palette.Err("✗ missing")
		}
		r.writePlain("%-14s %s\n", service, mark)
	}
	return nil
}

// RemoveCredential disconnects one service for the user.
func (r *Runner) RemoveCredential(ctx context.Context, cmd *cli.Command) error {
	service := cmd.StringArg("service")
	if !slices.Contains([]string{shared.ServiceICloud, shared.SinkGoogleDrive, shared.SinkS3}, service) {
		return fmt.Errorf("%w: unknown service %q", shared.ErrInvalidArgument, service)
	}
	if err := r.open(); err != nil {
		return err
	}
	userID, err := r.resolveUser(cmd)
	if err != nil {
		return err
	}

	if err := r.secrets.Delete(ctx, userID, service); err != nil {
		return err
	}
	r.writePlain("%s disconnected\n", service)
	return nil
}
