package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tiagowl/ImgMigrator/internal/dispatch"
	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

// UserHeader identifies the caller.
const UserHeader = "X-User-ID"

const userKey = "user_id"

// Engine is the subset of tasks.Engine the API drives.
type Engine interface {
	CreateMigration(ctx context.Context, userID string) (*models.Migration, error)
	Pause(ctx context.Context, migrationID, userID string) (bool, error)
	Resume(ctx context.Context, migrationID, userID string) (bool, error)
	Cancel(ctx context.Context, migrationID, userID string) (bool, error)
	GetProgress(ctx context.Context, migrationID, userID string) (*models.Progress, error)
	GetMigration(ctx context.Context, migrationID, userID string) (*models.Migration, error)
	ListMigrations(ctx context.Context, userID string, status models.Status) ([]*models.Migration, error)
}

// CredentialStore stores service tokens. See secrets.Store.
type CredentialStore interface {
	Put(ctx context.Context, userID, service string, token *oauth2.Token) error
	Has(ctx context.Context, userID, service string) (bool, error)
	Delete(ctx context.Context, userID, service string) error
}

// Enqueuer schedules runs. See dispatch.Queue.
type Enqueuer interface {
	Enqueue(migrationID, userID string) error
}

// ServerOpts contains the dependencies of a [Server].
type ServerOpts struct {
	Engine      Engine
	Credentials CredentialStore
	Queue       Enqueuer
	// Services lists the services a user must connect, source first.
	Services     []string
	SigningKey   string
	AllowOrigins []string
	Logger       *log.Logger
}

// Server holds the handlers' dependencies.
type Server struct {
	engine      Engine
	credentials CredentialStore
	queue       Enqueuer
	services    []string
	signingKey  string
	origins     []string
	logger      *log.Logger
	started     time.Time
}

// NewServer creates a new Server.
func NewServer(opts ServerOpts) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Server{
		engine:      opts.Engine,
		credentials: opts.Credentials,
		queue:       opts.Queue,
		services:    opts.Services,
		signingKey:  opts.SigningKey,
		origins:     opts.AllowOrigins,
		logger:      shared.WithLogger(opts.Logger, "component", "api"),
		started:     time.Now(),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests())

	config := cors.DefaultConfig()
	if len(s.origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = s.origins
	}
	config.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", UserHeader, dispatch.SignatureHeader}
	router.Use(cors.New(config))

	router.GET("/health", s.health)

	api := router.Group("/api")
	api.POST("/webhooks/dispatch", s.dispatchWebhook)

	user := api.Group("", requireUser())
	{
		user.GET("/credentials", s.listCredentials)
		user.POST("/credentials", s.putCredential)
		user.DELETE("/credentials/:service", s.deleteCredential)

		user.POST("/migrations", s.createMigration)
		user.GET("/migrations", s.listMigrations)
		user.GET("/migrations/:id", s.getMigration)
		user.GET("/migrations/:id/progress", s.getProgress)
		user.POST("/migrations/:id/pause", s.pauseMigration)
		user.POST("/migrations/:id/resume", s.resumeMigration)
		user.POST("/migrations/:id/cancel", s.cancelMigration)
		user.DELETE("/migrations/:id", s.cancelMigration)
	}

	return router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserHeader + " header"})
			return
		}
		c.Set(userKey, userID)
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// StatusFor maps an error to the HTTP status returned to clients.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrMigrationNotFound), errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrMissingCredentials),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrQueueFull), errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
