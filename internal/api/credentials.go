package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

// credentialRequest stores a token obtained outside the CLI flow.
type credentialRequest struct {
	Service      string     `json:"service" binding:"required"`
	AccessToken  string     `json:"access_token" binding:"required"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	Expiry       *time.Time `json:"expiry"`
}

type credentialStatus struct {
	Service    string `json:"service"`
	Configured bool   `json:"configured"`
}

func (s *Server) listCredentials(c *gin.Context) {
	userID := c.GetString(userKey)

	statuses := make([]credentialStatus, 0, len(s.services))
	for _, service := range s.services {
		ok, err := s.credentials.Has(c.Request.Context(), userID, service)
		if err != nil {
			s.fail(c, err)
			return
		}
		statuses = append(statuses, credentialStatus{Service: service, Configured: ok})
	}
	c.JSON(http.StatusOK, gin.H{"credentials": statuses})
}

func (s *Server) putCredential(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	if !slices.Contains(s.services, req.Service) {
		s.fail(c, fmt.Errorf("%w: unknown service %q", shared.ErrInvalidArgument, req.Service))
		return
	}

	token := &oauth2.Token{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    req.TokenType,
	}
	if req.Expiry != nil {
		token.Expiry = *req.Expiry
	}

	if err := s.credentials.Put(c.Request.Context(), c.GetString(userKey), req.Service, token); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"service": req.Service, "status": "configured"})
}

func (s *Server) deleteCredential(c *gin.Context) {
	service := c.Param("service")
	if !slices.Contains(s.services, service) {
		s.fail(c, fmt.Errorf("%w: unknown service %q", shared.ErrInvalidArgument, service))
		return
	}

	err := s.credentials.Delete(c.Request.Context(), c.GetString(userKey), service)
	if errors.Is(err, shared.ErrMissingCredentials) {
		err = fmt.Errorf("%w: %v", shared.ErrNotFound, err)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
