package postgres

import (
	"context"
	"fmt"

	"github.com/arklim/social-platform-sessions/internal/core/port"
)

// UserDirectory answers existence checks against the platform users table.
type UserDirectory struct {
	exec pgExecutor
}

// NewUserDirectory constructs a directory backed by the supplied executor.
func NewUserDirectory(exec pgExecutor) *UserDirectory {
	return &UserDirectory{exec: exec}
}

// Exists reports whether the user is known to the platform.
func (d *UserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := d.exec.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM sessions.users WHERE id = $1)", userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

var _ port.UserDirectory = (*UserDirectory)(nil)
