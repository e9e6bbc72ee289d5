package channel

import (
	"context"

	"helpdesk/internal/notification/models"
	"helpdesk/internal/realtime/events"
	id "helpdesk/pkg/domain"
)

// Presence answers whether a recipient has a live session.
type Presence interface {
	IsOnline(userID id.UserID) bool
}

// Pusher fans an event to every live session of a user.
type Pusher interface {
	PushToUser(userID id.UserID, event events.Event) int
}

// Realtime pushes notifications over live websocket sessions. Best effort
// and at-most-once: an offline recipient is a Skipped outcome, and a push to
// zero acknowledging sessions still counts as Delivered. The persisted
// notification row is the source of truth either way.
type Realtime struct {
	presence Presence
	pusher   Pusher
}

func NewRealtime(presence Presence, pusher Pusher) *Realtime {
	return &Realtime{presence: presence, pusher: pusher}
}

func (r *Realtime) Name() string { return "realtime" }

func (r *Realtime) Deliver(_ context.Context, recipient id.UserID, n models.Notification) Outcome {
	if !r.presence.IsOnline(recipient) {
		return Skipped("recipient has no live session")
	}
	r.pusher.PushToUser(recipient, events.NewNotification(n))
	return Delivered()
}
