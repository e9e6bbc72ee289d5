package events

import (
	"context"
	"log/slog"
)

const defaultInboxSize = 128

// Publisher decouples ticket operations from the broker. Publish enqueues
// without blocking; Run drains the inbox onto the sink until ctx is
// cancelled. A nil Publisher is valid and drops every event.
type Publisher struct {
	sink   Sink
	inbox  chan TicketEvent
	logger *slog.Logger
}

func NewPublisher(sink Sink, logger *slog.Logger) *Publisher {
	return &Publisher{
		sink:   sink,
		inbox:  make(chan TicketEvent, defaultInboxSize),
		logger: logger,
	}
}

// Publish enqueues the event. A full inbox drops it with a warning; the
// ticket operation that produced it is already committed and unaffected.
func (p *Publisher) Publish(ctx context.Context, event TicketEvent) {
	if p == nil {
		return
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "lifecycle event inbox full, dropping event",
			"event_type", event.Type,
			"ticket_number", event.TicketNumber,
		)
	}
}

func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-p.inbox:
			p.write(ctx, event)
		}
	}
}

func (p *Publisher) write(ctx context.Context, event TicketEvent) {
	payload, err := encode(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "encode lifecycle event", "event_type", event.Type, "error", err)
		return
	}
	if err := p.sink.Write(ctx, event.TicketNumber, payload); err != nil {
		p.logger.WarnContext(ctx, "publish lifecycle event",
			"event_type", event.Type,
			"ticket_number", event.TicketNumber,
			"error", err,
		)
	}
}
