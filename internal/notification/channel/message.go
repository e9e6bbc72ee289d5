package channel

import (
	"context"
	"fmt"
	"sync/atomic"

	"helpdesk/internal/notification/models"
	id "helpdesk/pkg/domain"
	"helpdesk/pkg/email"
	"helpdesk/pkg/platform/circuit"
)

// Directory resolves a user's contact address. Consumed as an interface:
// user record management is an external collaborator.
type Directory interface {
	AddressOf(ctx context.Context, userID id.UserID) (string, error)
}

// Message delivers notifications over the asynchronous mail transport.
// Address validation happens before any transport attempt; transport
// failures are captured in the outcome, never raised. A circuit breaker
// sits in front of the transport so a dead mail server is skipped instead
// of timing out on every notification.
type Message struct {
	sender    email.Sender
	directory Directory
	breaker   *circuit.Breaker
	attempts  atomic.Uint64
}

func NewMessage(sender email.Sender, directory Directory) *Message {
	return &Message{
		sender:    sender,
		directory: directory,
		breaker:   circuit.New("smtp"),
	}
}

const probeInterval = 10

func (m *Message) Name() string { return "message" }

func (m *Message) Deliver(ctx context.Context, recipient id.UserID, n models.Notification) Outcome {
	address, err := m.directory.AddressOf(ctx, recipient)
	if err != nil {
		return Failed("resolve contact address", err)
	}
	if !email.ValidAddress(address) {
		return Skipped("malformed or missing contact address")
	}
	// While the circuit is open most deliveries are skipped; every Nth
	// attempt goes through as a probe so the breaker can close again.
	if m.breaker.IsOpen() && m.attempts.Add(1)%probeInterval != 0 {
		return Skipped("message transport circuit open")
	}

	if err := m.sender.Send(ctx, address, n.Title, renderBody(address, n)); err != nil {
		m.breaker.RecordFailure()
		return Failed("message transport send", err)
	}
	m.breaker.RecordSuccess()
	return Delivered()
}

func renderBody(address string, n models.Notification) string {
	firstName, _ := email.DeriveNameFromEmail(address)
	return fmt.Sprintf(
		"<html><body><p>Hello %s,</p><h3>%s</h3><p>%s</p><p>Ticket: %s</p></body></html>",
		firstName, n.Title, n.Body, n.TicketNumber.String(),
	)
}
