// Package domain defines identifier primitives shared across features.
//
// Identifiers are distinct types over uuid.UUID so a UserID can never be
// passed where a SessionID is expected. Construct them via the Parse
// functions at trust boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "helpdesk/pkg/domain-errors"
)

// UserID identifies an account (ticket creators, supporters, assignees).
type UserID uuid.UUID

// SessionID identifies one live realtime connection of a user.
type SessionID uuid.UUID

// NotificationID identifies a persisted notification row.
type NotificationID uuid.UUID

// StatusID references a ticket status record.
type StatusID int64

// PermissionID names a capability granted to a user.
type PermissionID string

// Capabilities consumed by the lifecycle and notification paths.
const (
	PermissionSupportTickets PermissionID = "support_tickets"
	PermissionAdminBroadcast PermissionID = "admin_broadcast"
)

// ParseUserID validates and returns a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
	}
	return UserID(u), nil
}

// ParseSessionID validates and returns a SessionID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid session id")
	}
	return SessionID(u), nil
}

// ParseNotificationID validates and returns a NotificationID from external input.
func ParseNotificationID(s string) (NotificationID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return NotificationID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid notification id")
	}
	return NotificationID(u), nil
}

// NewSessionID mints a fresh session identifier for an accepted connection.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// NewNotificationID mints a fresh notification identifier.
func NewNotificationID() NotificationID {
	return NotificationID(uuid.New())
}

func (u UserID) String() string         { return uuid.UUID(u).String() }
func (s SessionID) String() string      { return uuid.UUID(s).String() }
func (n NotificationID) String() string { return uuid.UUID(n).String() }

// IsNil reports whether the ID is the zero value.
func (u UserID) IsNil() bool         { return uuid.UUID(u) == uuid.Nil }
func (s SessionID) IsNil() bool      { return uuid.UUID(s) == uuid.Nil }
func (n NotificationID) IsNil() bool { return uuid.UUID(n) == uuid.Nil }
