// Package store persists notification rows and their read/delivery flags.
// Each row is written in its own atomic unit: a failure writing recipient B's
// notification never affects recipient A's already-committed row.
package store

import (
	"context"
	"time"

	"helpdesk/internal/notification/models"
	id "helpdesk/pkg/domain"
)

// ListFilter narrows notification listings for one recipient.
type ListFilter struct {
	Kind   *models.Kind
	Limit  int
	Offset int
}

// NotificationStore is the repository interface over the record store.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	// FindByID returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, notificationID id.NotificationID) (*models.Notification, error)
	// Update persists flag mutations (read, message-delivered).
	Update(ctx context.Context, n *models.Notification) error
	// MarkMessageDelivered flips only the delivery columns, leaving the
	// read flag alone. Returns sentinel.ErrNotFound when the row is absent.
	MarkMessageDelivered(ctx context.Context, notificationID id.NotificationID, deliveredAt time.Time) error
	ListByRecipient(ctx context.Context, recipient id.UserID, filter ListFilter) ([]models.Notification, error)
	ListByTicket(ctx context.Context, number id.TicketNumber) ([]models.Notification, error)
	UnreadCount(ctx context.Context, recipient id.UserID) (int, error)
	// MarkAllRead flips every unread row for the recipient and returns the
	// number of rows affected.
	MarkAllRead(ctx context.Context, recipient id.UserID) (int, error)
}
