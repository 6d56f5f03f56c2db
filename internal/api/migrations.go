package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// migrationList is the paginated response of GET /api/migrations.
type migrationList struct {
	Migrations []models.MigrationView `json:"migrations"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
}

func (s *Server) createMigration(c *gin.Context) {
	userID := c.GetString(userKey)

	m, err := s.engine.CreateMigration(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.enqueue(m.ID(), userID)
	c.JSON(http.StatusCreated, m.View())
}

func (s *Server) listMigrations(c *gin.Context) {
	var status models.Status
	if raw := c.Query("status"); raw != "" {
		parsed, err := models.ParseStatus(raw)
		if err != nil {
			s.fail(c, err)
			return
		}
		status = parsed
	}

	page, err := queryInt(c, "page", 1, 1, 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, err := queryInt(c, "limit", defaultPageLimit, 1, maxPageLimit)
	if err != nil {
		s.fail(c, err)
		return
	}

	migrations, err := s.engine.ListMigrations(c.Request.Context(), c.GetString(userKey), status)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := migrationList{
		Migrations: []models.MigrationView{},
		Total:      len(migrations),
		Page:       page,
		Limit:      limit,
	}
	start := min((page-1)*limit, len(migrations))
	end := min(start+limit, len(migrations))
	for _, m := range migrations[start:end] {
		resp.Migrations = append(resp.Migrations, m.View())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getMigration(c *gin.Context) {
	m, err := s.engine.GetMigration(c.Request.Context(), c.Param("id"), c.GetString(userKey))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m.View())
}

func (s *Server) getProgress(c *gin.Context) {
	p, err := s.engine.GetProgress(c.Request.Context(), c.Param("id"), c.GetString(userKey))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) pauseMigration(c *gin.Context) {
	ok, err := s.engine.Pause(c.Request.Context(), c.Param("id"), c.GetString(userKey))
	s.respondTransition(c, ok, err, "pause", models.StatusPaused)
}

func (s *Server) resumeMigration(c *gin.Context) {
	id, userID := c.Param("id"), c.GetString(userKey)

	ok, err := s.engine.Resume(c.Request.Context(), id, userID)
	if ok && err == nil {
		s.enqueue(id, userID)
	}
	s.respondTransition(c, ok, err, "resume", models.StatusPending)
}

func (s *Server) cancelMigration(c *gin.Context) {
	ok, err := s.engine.Cancel(c.Request.Context(), c.Param("id"), c.GetString(userKey))
	s.respondTransition(c, ok, err, "cancel", models.StatusFailed)
}

// respondTransition answers 400 when the migration is not in a state the command applies to.
func (s *Server) respondTransition(c *gin.Context, ok bool, err error, verb string, status models.Status) {
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("cannot %s migration", verb)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": status})
}

// enqueue schedules a run. A run already in flight is fine, and anything else is left to the sweeper.
func (s *Server) enqueue(migrationID, userID string) {
	if s.queue == nil {
		return
	}
	err := s.queue.Enqueue(migrationID, userID)
	if err != nil && !errors.Is(err, shared.ErrAlreadyQueued) {
		s.logger.Warn("failed to queue migration", "migration", migrationID, "error", err)
	}
}

// queryInt parses an integer query parameter within [lo, hi]; hi <= 0 means unbounded.
func queryInt(c *gin.Context, name string, def, lo, hi int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || (hi > 0 && n > hi) {
		return 0, fmt.Errorf("%w: %s=%q", shared.ErrInvalidArgument, name, raw)
	}
	return n, nil
}
