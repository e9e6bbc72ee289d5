// Package events publishes ticket lifecycle events to Kafka for downstream
// consumers (reporting, SLA tracking). Publishing is asynchronous and best
// effort: a broker outage never blocks or fails the ticket operation that
// produced the event.
package events

import (
	"time"

	id "helpdesk/pkg/domain"
)

const (
	TypeTicketCreated      = "ticket.created"
	TypeTicketTransitioned = "ticket.transitioned"
	TypeTicketAssigned     = "ticket.assigned"
)

// TicketEvent is the wire shape produced to the lifecycle topic. Events are
// keyed by ticket number so per-ticket ordering survives partitioning.
type TicketEvent struct {
	Type         string    `json:"type"`
	TicketNumber string    `json:"ticketNumber"`
	ActorID      string    `json:"actorId"`
	FromStatusID int64     `json:"fromStatusId,omitempty"`
	ToStatusID   int64     `json:"toStatusId,omitempty"`
	AssigneeID   string    `json:"assigneeId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func TicketCreated(number id.TicketNumber, actor id.UserID, statusID id.StatusID, now time.Time) TicketEvent {
	return TicketEvent{
		Type:         TypeTicketCreated,
		TicketNumber: number.String(),
		ActorID:      actor.String(),
		ToStatusID:   int64(statusID),
		Timestamp:    now,
	}
}

func TicketTransitioned(number id.TicketNumber, actor id.UserID, from, to id.StatusID, now time.Time) TicketEvent {
	return TicketEvent{
		Type:         TypeTicketTransitioned,
		TicketNumber: number.String(),
		ActorID:      actor.String(),
		FromStatusID: int64(from),
		ToStatusID:   int64(to),
		Timestamp:    now,
	}
}

func TicketAssigned(number id.TicketNumber, actor, assignee id.UserID, now time.Time) TicketEvent {
	return TicketEvent{
		Type:         TypeTicketAssigned,
		TicketNumber: number.String(),
		ActorID:      actor.String(),
		AssigneeID:   assignee.String(),
		Timestamp:    now,
	}
}
