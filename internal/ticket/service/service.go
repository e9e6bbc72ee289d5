// Package service implements the ticket lifecycle: creation with allocated
// numbers, guarded status transitions with deduplicated history, and
// assignment. Lifecycle state changes commit in one transaction; notification
// fan-out and event publishing happen after commit and never fail the
// operation that triggered them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"helpdesk/internal/events"
	nmodels "helpdesk/internal/notification/models"
	"helpdesk/internal/permission"
	"helpdesk/internal/platform/metrics"
	"helpdesk/internal/ticket/models"
	"helpdesk/internal/ticket/sequence"
	"helpdesk/internal/ticket/store"
	id "helpdesk/pkg/domain"
	dErrors "helpdesk/pkg/domain-errors"
	"helpdesk/pkg/platform/sentinel"
	"helpdesk/pkg/platform/tx"
	"helpdesk/pkg/requestcontext"
)

// StatusNew is the seeded initial status every ticket starts in.
const StatusNew id.StatusID = 1

// Notifier is the slice of the notification dispatcher the lifecycle needs.
type Notifier interface {
	Notify(ctx context.Context, recipient id.UserID, ticket id.TicketNumber, kind nmodels.Kind, title, body string) (*nmodels.Notification, error)
}

// Service coordinates ticket lifecycle operations.
type Service struct {
	tickets   store.TicketStore
	history   store.HistoryStore
	statuses  store.StatusStore
	allocator *sequence.Allocator
	oracle    permission.Oracle
	notifier  Notifier
	runner    tx.Runner
	publisher *events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p *events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func New(
	tickets store.TicketStore,
	history store.HistoryStore,
	statuses store.StatusStore,
	allocator *sequence.Allocator,
	oracle permission.Oracle,
	notifier Notifier,
	runner tx.Runner,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		tickets:   tickets,
		history:   history,
		statuses:  statuses,
		allocator: allocator,
		oracle:    oracle,
		notifier:  notifier,
		runner:    runner,
		logger:    logger,
		tracer:    otel.Tracer("helpdesk/ticket/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a ticket number, persists the ticket with its initial
// history entry, and notifies every supporter except the creator.
func (s *Service) Create(ctx context.Context, actor id.UserID, req models.CreateTicketRequest) (*models.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "ticket.Create")
	defer span.End()

	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if req.CategoryID <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "category_id must be positive")
	}
	if req.ProjectID <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "project_id must be positive")
	}

	number, err := s.allocator.Next(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "allocate ticket number")
	}
	span.SetAttributes(attribute.String("ticket.number", number.String()))

	now := requestcontext.Now(ctx)
	ticket, err := models.NewTicket(number, req.CategoryID, req.ProjectID, req.Description, StatusNew, actor, now)
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.tickets.Create(txCtx, ticket); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		entry := &models.StatusHistoryEntry{
			TicketNumber: number,
			StatusID:     StatusNew,
			ActorID:      actor,
			CreatedAt:    now,
		}
		if err := s.history.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append initial history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create ticket")
	}

	if s.metrics != nil {
		s.metrics.TicketsCreated.Inc()
	}
	s.publisher.Publish(ctx, events.TicketCreated(number, actor, StatusNew, now))
	s.notifySupporters(ctx, actor, ticket)

	snapshot := ticket.Snapshot()
	return &snapshot, nil
}

func (s *Service) notifySupporters(ctx context.Context, actor id.UserID, ticket *models.Ticket) {
	supporters, err := s.oracle.Supporters(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "list supporters for creation fan-out",
			"ticket_number", ticket.Number.String(),
			"error", err,
		)
		return
	}
	title := fmt.Sprintf("New ticket %s", ticket.Number)
	for _, supporter := range supporters {
		if supporter == actor {
			continue
		}
		if _, err := s.notifier.Notify(ctx, supporter, ticket.Number, nmodels.KindNewTicket, title, ticket.Description); err != nil {
			s.logger.WarnContext(ctx, "notify supporter of new ticket",
				"ticket_number", ticket.Number.String(),
				"recipient", supporter.String(),
				"error", err,
			)
		}
	}
}

// Transition moves a ticket to a new status inside one transaction. The
// history entry is appended only when the status actually changed or the
// actor supplied a comment, so retried or redundant calls stay silent.
func (s *Service) Transition(ctx context.Context, number id.TicketNumber, newStatus id.StatusID, actor id.UserID, comment string) (*models.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "ticket.Transition",
		trace.WithAttributes(
			attribute.String("ticket.number", number.String()),
			attribute.Int64("ticket.to_status", int64(newStatus)),
		))
	defer span.End()

	status, err := s.statuses.FindByID(ctx, newStatus)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown status")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve status")
	}

	now := requestcontext.Now(ctx)
	var (
		ticket     *models.Ticket
		fromStatus id.StatusID
		changed    bool
	)
	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		t, err := s.loadEnabled(txCtx, number)
		if err != nil {
			return err
		}
		if err := s.authorizeActor(txCtx, actor, t); err != nil {
			return err
		}

		fromStatus = t.StatusID
		changed = t.StatusID != newStatus
		if !changed && comment == "" {
			ticket = t
			return nil
		}

		// A retried request can arrive after its first attempt committed.
		// The latest history entry is the dedup anchor.
		if !changed && comment != "" {
			latest, err := s.history.Latest(txCtx, number)
			if err == nil && latest.StatusID == newStatus && latest.Comment == comment {
				ticket = t
				changed = false
				comment = ""
				return nil
			}
			if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				return fmt.Errorf("load latest history: %w", err)
			}
		}

		t.ApplyStatus(newStatus, now)
		if err := s.tickets.Update(txCtx, t); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		entry := &models.StatusHistoryEntry{
			TicketNumber: number,
			StatusID:     newStatus,
			ActorID:      actor,
			Comment:      comment,
			CreatedAt:    now,
		}
		if err := s.history.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, translateLifecycleErr(err)
	}

	if changed || comment != "" {
		if s.metrics != nil {
			s.metrics.StatusTransitions.Inc()
		}
		s.publisher.Publish(ctx, events.TicketTransitioned(number, actor, fromStatus, newStatus, now))
		s.notifyCreator(ctx, ticket, status, comment)
	}

	snapshot := ticket.Snapshot()
	return &snapshot, nil
}

// notifyCreator always targets the creator, even when the actor is the
// creator: the notification row doubles as the read-tracked audit trail of
// status changes, so a supporter moving their own ticket still records one.
func (s *Service) notifyCreator(ctx context.Context, ticket *models.Ticket, status *models.Status, comment string) {
	title := fmt.Sprintf("Ticket %s moved to %s", ticket.Number, status.Name)
	if _, err := s.notifier.Notify(ctx, ticket.CreatorID, ticket.Number, nmodels.KindStatusChange, title, comment); err != nil {
		s.logger.WarnContext(ctx, "notify creator of status change",
			"ticket_number", ticket.Number.String(),
			"recipient", ticket.CreatorID.String(),
			"error", err,
		)
	}
}

// Assign sets the ticket's assignee and notifies them.
func (s *Service) Assign(ctx context.Context, number id.TicketNumber, assignee, actor id.UserID) (*models.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "ticket.Assign",
		trace.WithAttributes(attribute.String("ticket.number", number.String())))
	defer span.End()

	if assignee.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "assignee is required")
	}

	now := requestcontext.Now(ctx)
	var ticket *models.Ticket
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		t, err := s.loadEnabled(txCtx, number)
		if err != nil {
			return err
		}
		if err := s.authorizeActor(txCtx, actor, t); err != nil {
			return err
		}
		t.ApplyAssignment(assignee, now)
		if err := s.tickets.Update(txCtx, t); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, translateLifecycleErr(err)
	}

	s.publisher.Publish(ctx, events.TicketAssigned(number, actor, assignee, now))
	if assignee != actor {
		title := fmt.Sprintf("Ticket %s assigned to you", number)
		if _, err := s.notifier.Notify(ctx, assignee, number, nmodels.KindAssignment, title, ticket.Description); err != nil {
			s.logger.WarnContext(ctx, "notify assignee",
				"ticket_number", number.String(),
				"recipient", assignee.String(),
				"error", err,
			)
		}
	}

	snapshot := ticket.Snapshot()
	return &snapshot, nil
}

// Get returns one ticket. Customers see only their own tickets; supporters
// see everything.
func (s *Service) Get(ctx context.Context, number id.TicketNumber, actor id.UserID) (*models.Ticket, error) {
	t, err := s.loadEnabled(ctx, number)
	if err != nil {
		return nil, translateLifecycleErr(err)
	}
	if err := s.authorizeActor(ctx, actor, t); err != nil {
		return nil, translateLifecycleErr(err)
	}
	snapshot := t.Snapshot()
	return &snapshot, nil
}

// History returns the status history of a ticket, oldest first.
func (s *Service) History(ctx context.Context, number id.TicketNumber, actor id.UserID) ([]models.StatusHistoryEntry, error) {
	t, err := s.loadEnabled(ctx, number)
	if err != nil {
		return nil, translateLifecycleErr(err)
	}
	if err := s.authorizeActor(ctx, actor, t); err != nil {
		return nil, translateLifecycleErr(err)
	}
	entries, err := s.history.ListByTicket(ctx, number)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list ticket history")
	}
	return entries, nil
}

// List returns tickets matching the filter. Actors without the supporter
// capability are restricted to tickets they created.
func (s *Service) List(ctx context.Context, actor id.UserID, filter models.ListFilter) ([]models.Ticket, error) {
	supporter, err := permission.HasPermission(ctx, s.oracle, actor, id.PermissionSupportTickets)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check supporter capability")
	}
	if !supporter {
		filter.CreatorID = &actor
	}
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list tickets")
	}
	return tickets, nil
}

// loadEnabled fetches a ticket, treating soft-deleted rows as absent.
func (s *Service) loadEnabled(ctx context.Context, number id.TicketNumber) (*models.Ticket, error) {
	t, err := s.tickets.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !t.Enabled {
		return nil, sentinel.ErrNotFound
	}
	return t, nil
}

// authorizeActor admits the ticket's creator and holders of the supporter
// capability.
func (s *Service) authorizeActor(ctx context.Context, actor id.UserID, t *models.Ticket) error {
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if t.CreatorID == actor {
		return nil
	}
	supporter, err := permission.HasPermission(ctx, s.oracle, actor, id.PermissionSupportTickets)
	if err != nil {
		return fmt.Errorf("check supporter capability: %w", err)
	}
	if !supporter {
		return dErrors.New(dErrors.CodeForbidden, "ticket access requires ownership or supporter capability")
	}
	return nil
}

func translateLifecycleErr(err error) error {
	var de *dErrors.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "ticket not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "ticket was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "ticket lifecycle failure")
	}
}
