package models

import (
	"fmt"
	"strings"

	"github.com/tiagowl/ImgMigrator/internal/shared"
)

// User owns credentials and migrations.
type User struct {
	entity
	email string
	name  string
}

// NewUser creates a user with the given email and display name.
func NewUser(sequence int, email, name string) *User {
	return &User{entity: newEntity(sequence), email: strings.TrimSpace(email), name: name}
}

func (u *User) Email() string { return u.email }
func (u *User) Name() string  { return u.name }

func (u *User) SetName(name string) { u.name = name }

// Validate requires an email address.
func (u *User) Validate() error {
	if u.email == "" || !strings.Contains(u.email, "@") {
		return fmt.Errorf("%w: a valid email is required", shared.ErrInvalidInput)
	}
	return nil
}
