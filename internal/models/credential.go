package models

import (
	"fmt"
	"time"

	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

// Credential is the token bundle a user granted for one service.
//
// Tokens are stored as issued; at-rest encryption is left to the deployment.
type Credential struct {
	entity
	userID       string
	service      string
	accessToken  string
	refreshToken string
	tokenType    string
	expiresAt    *time.Time
}

// NewCredential creates a credential for (userID, service) from token.
func NewCredential(sequence int, userID, service string, token *oauth2.Token) *Credential {
	c := &Credential{entity: newEntity(sequence), userID: userID, service: service}
	c.SetToken(token)
	return c
}

func (c *Credential) UserID() string        { return c.userID }
func (c *Credential) Service() string       { return c.service }
func (c *Credential) AccessToken() string   { return c.accessToken }
func (c *Credential) RefreshToken() string  { return c.refreshToken }
func (c *Credential) TokenType() string     { return c.tokenType }
func (c *Credential) ExpiresAt() *time.Time { return c.expiresAt }

// SetToken replaces the stored token. A refreshed token without a refresh token keeps the old one.
func (c *Credential) SetToken(token *oauth2.Token) {
	if token == nil {
		return
	}
	c.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.refreshToken = token.RefreshToken
	}
	c.tokenType = token.TokenType
	if token.Expiry.IsZero() {
		c.expiresAt = nil
	} else {
		expiry := token.Expiry
		c.expiresAt = &expiry
	}
}

// Token converts the credential into an [oauth2.Token].
func (c *Credential) Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  c.accessToken,
		RefreshToken: c.refreshToken,
		TokenType:    c.tokenType,
	}
	if c.expiresAt != nil {
		token.Expiry = *c.expiresAt
	}
	return token
}

// Validate checks the credential has an owner, a service and an access token.
func (c *Credential) Validate() error {
	if c.userID == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if c.service == "" {
		return fmt.Errorf("%w: service is required", shared.ErrInvalidInput)
	}
	if c.accessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}
	return nil
}
