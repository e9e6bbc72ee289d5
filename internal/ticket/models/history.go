package models

import (
	"time"

	id "helpdesk/pkg/domain"
)

// StatusHistoryEntry is an immutable audit record of one status a ticket held.
//
// Invariants:
//   - append-only, never mutated or deleted
//   - for one ticket, consecutive entries never repeat the same status unless
//     the later entry carries a comment (enforced by the lifecycle service,
//     not the store)
type StatusHistoryEntry struct {
	ID           int64           `json:"id"`
	TicketNumber id.TicketNumber `json:"ticket_number"`
	StatusID     id.StatusID     `json:"status_id"`
	ActorID      id.UserID       `json:"actor_id"`
	Comment      string          `json:"comment,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Status is a referenced lookup record for ticket states.
type Status struct {
	ID   id.StatusID `json:"id"`
	Name string      `json:"name"`
}
