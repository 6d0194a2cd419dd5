package memory

import (
	"context"
	"strings"

	"github.com/arklim/social-platform-sessions/internal/core/port"
)

// UserDirectory is an in-memory user existence check. With no known users
// configured it treats every non-empty identifier as valid, which suits
// deployments where the platform user table lives elsewhere.
type UserDirectory struct {
	known map[string]struct{}
}

// NewUserDirectory constructs a directory limited to the supplied users.
// An empty list produces a permissive directory.
func NewUserDirectory(userIDs ...string) *UserDirectory {
	d := &UserDirectory{}
	if len(userIDs) > 0 {
		d.known = make(map[string]struct{}, len(userIDs))
		for _, id := range userIDs {
			d.known[id] = struct{}{}
		}
	}
	return d
}

// Exists reports whether the user is known.
func (d *UserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, nil
	}
	if d.known == nil {
		return true, nil
	}
	_, ok := d.known[userID]
	return ok, nil
}

var _ port.UserDirectory = (*UserDirectory)(nil)
