// Package store provides persistence for tickets, status history, and
// allocated ticket numbers. In-memory implementations back unit tests and
// development; the Postgres implementations are the production record store.
// Stores return pkg/platform/sentinel errors; services translate them.
package store

import (
	"context"

	"helpdesk/internal/ticket/models"
	id "helpdesk/pkg/domain"
)

// TicketStore persists ticket aggregates.
type TicketStore interface {
	// Create inserts a new ticket. Returns sentinel.ErrConflict when the
	// ticket number is already taken.
	Create(ctx context.Context, ticket *models.Ticket) error
	// FindByNumber returns the ticket, including soft-deleted ones; callers
	// decide how to treat Enabled=false. Returns sentinel.ErrNotFound when
	// absent.
	FindByNumber(ctx context.Context, number id.TicketNumber) (*models.Ticket, error)
	// Update persists mutated status/assignment/audit fields.
	Update(ctx context.Context, ticket *models.Ticket) error
	// List returns enabled tickets matching the filter, newest first.
	List(ctx context.Context, filter models.ListFilter) ([]models.Ticket, error)
}

// HistoryStore persists the append-only status audit trail.
type HistoryStore interface {
	Append(ctx context.Context, entry *models.StatusHistoryEntry) error
	// Latest returns the most recent entry for a ticket, or
	// sentinel.ErrNotFound when the ticket has no history yet.
	Latest(ctx context.Context, number id.TicketNumber) (*models.StatusHistoryEntry, error)
	ListByTicket(ctx context.Context, number id.TicketNumber) ([]models.StatusHistoryEntry, error)
}

// StatusStore resolves status references.
type StatusStore interface {
	FindByID(ctx context.Context, statusID id.StatusID) (*models.Status, error)
}

// NumberStore reserves ticket numbers for the sequence allocator. Reserved
// numbers are never released, which keeps identifiers unique even when the
// surrounding ticket insert fails.
type NumberStore interface {
	// MaxWithPrefix returns the highest running counter already reserved
	// under the prefix, or 0 when none exist.
	MaxWithPrefix(ctx context.Context, prefix string) (int, error)
	// Reserve claims a number. Returns sentinel.ErrConflict when another
	// allocation raced and claimed it first.
	Reserve(ctx context.Context, number id.TicketNumber) error
}
