package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/tiagowl/ImgMigrator/internal/api"
	"github.com/tiagowl/ImgMigrator/internal/dispatch"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the HTTP API, the dispatch queue and the sweeper until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if r.config.Dispatch.SigningKey == "" {
		r.logger.Warn("dispatch.signing_key is empty; webhook deliveries will be rejected")
	}

	queue := dispatch.NewQueue(r.engine, r.config.Dispatch, r.logger)
	queue.Start(ctx)
	defer queue.Stop()

	sweeper, err := dispatch.NewSweeper(r.migrations, queue, r.config.Dispatch, r.logger)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Pick up work left behind by a previous process.
	if n := sweeper.Sweep(); n > 0 {
		r.logger.Info("re-queued migrations", "count", n)
	}

	if r.logger.GetLevel() > log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewServer(api.ServerOpts{
		Engine:       r.engine,
		Credentials:  r.secrets,
		Queue:        queue,
		Services:     []string{shared.ServiceICloud, r.config.Sink.Kind},
		SigningKey:   r.config.Dispatch.SigningKey,
		AllowOrigins: cmd.StringSlice("allow-origin"),
		Logger:       r.logger,
	}).Router()

	addr := cmd.String("addr")
	if addr == "" {
		addr = net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
