package models

import (
	"time"

	id "helpdesk/pkg/domain"
	dErrors "helpdesk/pkg/domain-errors"
)

// Kind classifies the triggering lifecycle event of a notification.
type Kind string

const (
	KindNewTicket    Kind = "new_ticket"
	KindStatusChange Kind = "status_change"
	KindAssignment   Kind = "assignment"
)

var validKinds = map[Kind]bool{
	KindNewTicket:    true,
	KindStatusChange: true,
	KindAssignment:   true,
}

// ParseKind validates external input into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !validKinds[k] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid notification kind")
	}
	return k, nil
}

func (k Kind) String() string { return string(k) }

// Notification is a per-recipient record of one lifecycle event.
//
// Invariants:
//   - created exactly once per recipient per triggering event
//   - mutated only to flip the read and message-delivery flags
//   - never deleted by normal flow (retention policy may purge)
//
// Read/unread and delivered/undelivered are independent boolean axes, not a
// single state enum: a notification can be read without ever having been
// message-delivered, and vice versa.
type Notification struct {
	ID                 id.NotificationID `json:"id"`
	RecipientID        id.UserID         `json:"recipient_id"`
	TicketNumber       id.TicketNumber   `json:"ticket_number"`
	Kind               Kind              `json:"kind"`
	Title              string            `json:"title"`
	Body               string            `json:"body"`
	Read               bool              `json:"read"`
	ReadAt             *time.Time        `json:"read_at,omitempty"`
	MessageDelivered   bool              `json:"message_delivered"`
	MessageDeliveredAt *time.Time        `json:"message_delivered_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

func NewNotification(recipient id.UserID, ticket id.TicketNumber, kind Kind, title, body string, now time.Time) (*Notification, error) {
	if recipient.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "notification recipient is required")
	}
	if ticket.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "notification ticket is required")
	}
	if !validKinds[kind] {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid notification kind")
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "notification title cannot be empty")
	}
	return &Notification{
		ID:           id.NewNotificationID(),
		RecipientID:  recipient,
		TicketNumber: ticket,
		Kind:         kind,
		Title:        title,
		Body:         body,
		CreatedAt:    now,
	}, nil
}

// ApplyRead flips the read flag. Idempotent by contract of the dispatcher:
// callers check Read first so a second MarkRead performs no store mutation.
func (n *Notification) ApplyRead(now time.Time) {
	n.Read = true
	n.ReadAt = &now
}

// ApplyMessageDelivered records a successful message-channel delivery.
func (n *Notification) ApplyMessageDelivered(now time.Time) {
	n.MessageDelivered = true
	n.MessageDeliveredAt = &now
}
