// Package permission exposes the capability lookup consumed by the ticket
// lifecycle and notification paths. Credential issuance and role storage are
// external systems; this package only defines the consuming interface plus an
// in-memory implementation for development and tests.
package permission

import (
	"context"

	id "helpdesk/pkg/domain"
)

// Oracle answers capability and ownership questions about users.
type Oracle interface {
	// PermissionsOf returns the capabilities granted to a user.
	PermissionsOf(ctx context.Context, userID id.UserID) (map[id.PermissionID]struct{}, error)
	// IsOwner reports whether the user created the given ticket.
	IsOwner(ctx context.Context, userID id.UserID, number id.TicketNumber) (bool, error)
	// Supporters lists every user holding the support capability. Used for
	// new-ticket fan-out.
	Supporters(ctx context.Context) ([]id.UserID, error)
}

// HasPermission is a convenience wrapper over PermissionsOf.
func HasPermission(ctx context.Context, oracle Oracle, userID id.UserID, perm id.PermissionID) (bool, error) {
	perms, err := oracle.PermissionsOf(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := perms[perm]
	return ok, nil
}
