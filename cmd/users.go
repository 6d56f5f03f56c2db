package main

import (
	"context"
	"fmt"

	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"github.com/urfave/cli/v3"
)

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// UserAdd creates a user that credentials and migrations can belong to.
func (r *Runner) UserAdd(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	user := models.NewUser(0, cmd.String("email"), cmd.String("name"))
	if err := r.users.Create(user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Info("user created", "id", user.ID(), "email", user.Email())
	return r.writePlain("✓ Created user %s (%s)\n", user.ID(), user.Email())
}

// UserList prints every user.
func (r *Runner) UserList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	users, err := r.users.List(map[string]any{})
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, userView{ID: u.ID(), Email: u.Email(), Name: u.Name()})
	}
	if cmd.Bool("json") {
		return r.writeJSON(views, true)
	}

	if len(views) == 0 {
		return r.writePlain("No users yet. Add one with: imgmigrator user add --email <email>\n")
	}
	for _, v := range views {
		r.writePlain("%s  %s  %s\n", v.ID, v.Email, r.palette.Muted(v.Name))
	}
	return nil
}

// resolveUser maps --user (an ID or an email) to a user ID.
func (r *Runner) resolveUser(cmd *cli.Command) (string, error) {
	ref := cmd.String("user")
	if ref == "" {
		return "", fmt.Errorf("%w: --user is required", shared.ErrMissingArgument)
	}

	user, err := r.users.Resolve(ref)
	if err != nil {
		return "", fmt.Errorf("failed to find user %q: %w", ref, err)
	}
	return user.ID(), nil
}
