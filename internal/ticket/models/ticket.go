package models

import (
	"strings"
	"time"

	id "helpdesk/pkg/domain"
	dErrors "helpdesk/pkg/domain-errors"
)

// Ticket is the aggregate root for a tracked issue.
//
// Invariants:
//   - Number is globally unique and never reused
//   - Description is non-empty and at most 4096 characters
//   - StatusID always references an existing status
//   - Enabled=false is a soft delete: the record stays for audit, all
//     lifecycle operations treat it as absent
//   - CreatedAt is immutable after construction
type Ticket struct {
	Number      id.TicketNumber `json:"number"`
	CategoryID  int64           `json:"category_id"`
	ProjectID   int64           `json:"project_id"`
	Description string          `json:"description"`
	StatusID    id.StatusID     `json:"status_id"`
	CreatorID   id.UserID       `json:"creator_id"`
	AssigneeID  *id.UserID      `json:"assignee_id,omitempty"`
	Enabled     bool            `json:"enabled"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func NewTicket(number id.TicketNumber, categoryID, projectID int64, description string, statusID id.StatusID, creator id.UserID, now time.Time) (*Ticket, error) {
	description = strings.TrimSpace(description)
	if number.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ticket number cannot be empty")
	}
	if description == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ticket description cannot be empty")
	}
	if len(description) > 4096 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ticket description must be 4096 characters or less")
	}
	if creator.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ticket creator is required")
	}
	return &Ticket{
		Number:      number,
		CategoryID:  categoryID,
		ProjectID:   projectID,
		Description: description,
		StatusID:    statusID,
		CreatorID:   creator,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApplyStatus moves the ticket to a new status and touches the audit field.
func (t *Ticket) ApplyStatus(statusID id.StatusID, now time.Time) {
	t.StatusID = statusID
	t.UpdatedAt = now
}

// ApplyAssignment records the assignee and touches the audit field.
func (t *Ticket) ApplyAssignment(assignee id.UserID, now time.Time) {
	t.AssigneeID = &assignee
	t.UpdatedAt = now
}

// Snapshot returns a value copy safe to hand to callers after the lifecycle
// transaction commits.
func (t *Ticket) Snapshot() Ticket {
	copy := *t
	if t.AssigneeID != nil {
		assignee := *t.AssigneeID
		copy.AssigneeID = &assignee
	}
	return copy
}
