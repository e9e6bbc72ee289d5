// Package channel defines the delivery channels a notification fans out
// over. The interface is closed over two variants, Realtime and Message;
// both satisfy the same Deliver contract, so a third channel slots in
// without touching the dispatcher.
//
// Channels never return Go errors to the caller: every failure is classified
// at origin into an Outcome and logged by the dispatcher. A delivery failure
// must never unwind the lifecycle transaction that triggered it.
package channel

import (
	"context"

	"helpdesk/internal/notification/models"
	id "helpdesk/pkg/domain"
)

// Status tags the result of one delivery attempt.
type Status string

const (
	// StatusDelivered: the payload was handed to the transport. For the
	// realtime channel this is fire-and-forget; zero sessions acknowledging
	// receipt still counts as delivered.
	StatusDelivered Status = "delivered"
	// StatusSkipped: delivery was not attempted for an expected reason
	// (recipient offline, malformed address). Not an error.
	StatusSkipped Status = "skipped"
	// StatusFailed: the transport attempt failed. The cause is captured for
	// logging and never raised.
	StatusFailed Status = "failed"
)

// Outcome is the tagged result of Deliver.
type Outcome struct {
	Status Status
	Reason string
	Err    error
}

func Delivered() Outcome { return Outcome{Status: StatusDelivered} }

func Skipped(reason string) Outcome { return Outcome{Status: StatusSkipped, Reason: reason} }

func Failed(reason string, err error) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Err: err}
}

// Channel pushes one notification to one recipient.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, recipient id.UserID, n models.Notification) Outcome
}
