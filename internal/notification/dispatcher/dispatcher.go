// Package dispatcher orchestrates notification fan-out: persist the row,
// attempt realtime delivery, push the recipient's unread count, and schedule
// message delivery on a worker pool. Every step after persistence is
// fault-isolated: its failure is logged and counted, never returned to the
// code that triggered the notification.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"helpdesk/internal/notification/channel"
	"helpdesk/internal/notification/models"
	"helpdesk/internal/notification/store"
	"helpdesk/internal/permission"
	"helpdesk/internal/platform/metrics"
	"helpdesk/internal/realtime/events"
	id "helpdesk/pkg/domain"
	dErrors "helpdesk/pkg/domain-errors"
	"helpdesk/pkg/platform/sentinel"
	"helpdesk/pkg/requestcontext"
)

const defaultQueueSize = 256

// Broadcaster pushes an event to every connected session.
type Broadcaster interface {
	Broadcast(event events.Event) int
}

// Dispatcher implements the notification pipeline.
type Dispatcher struct {
	notifications store.NotificationStore
	realtime      channel.Channel
	message       channel.Channel
	pusher        channel.Pusher
	broadcaster   Broadcaster
	oracle        permission.Oracle
	logger        *slog.Logger
	metrics       *metrics.Metrics
	cache         *UnreadCache
	tracer        trace.Tracer

	queue   chan deliveryTask
	workers int
}

type deliveryTask struct {
	recipient    id.UserID
	notification models.Notification
}

type dispatcherConfig struct {
	metrics   *metrics.Metrics
	cache     *UnreadCache
	queueSize int
	workers   int
}

// Option configures the Dispatcher.
type Option func(*dispatcherConfig)

func WithMetrics(m *metrics.Metrics) Option {
	return func(cfg *dispatcherConfig) { cfg.metrics = m }
}

func WithUnreadCache(c *UnreadCache) Option {
	return func(cfg *dispatcherConfig) { cfg.cache = c }
}

func WithQueueSize(n int) Option {
	return func(cfg *dispatcherConfig) { cfg.queueSize = n }
}

func WithWorkers(n int) Option {
	return func(cfg *dispatcherConfig) { cfg.workers = n }
}

func New(
	notifications store.NotificationStore,
	realtime channel.Channel,
	message channel.Channel,
	pusher channel.Pusher,
	broadcaster Broadcaster,
	oracle permission.Oracle,
	logger *slog.Logger,
	opts ...Option,
) *Dispatcher {
	cfg := &dispatcherConfig{queueSize: defaultQueueSize, workers: 4}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Dispatcher{
		notifications: notifications,
		realtime:      realtime,
		message:       message,
		pusher:        pusher,
		broadcaster:   broadcaster,
		oracle:        oracle,
		logger:        logger,
		metrics:       cfg.metrics,
		cache:         cfg.cache,
		tracer:        otel.Tracer("helpdesk/notification/dispatcher"),
		queue:         make(chan deliveryTask, cfg.queueSize),
		workers:       cfg.workers,
	}
}

// Run consumes the message-delivery queue until ctx is cancelled. Start it
// once from cmd/server; workers report outcomes through the store and logs.
func (d *Dispatcher) Run(ctx context.Context) error {
	done := make(chan struct{})
	for range d.workers {
		go func() {
			defer func() { done <- struct{}{} }()
			d.worker(ctx)
		}()
	}
	for range d.workers {
		<-done
	}
	return ctx.Err()
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-d.queue:
			d.deliverMessage(ctx, task)
		}
	}
}

// Notify persists one notification and fans it out. Only the persistence
// step can fail the call; delivery is best effort.
func (d *Dispatcher) Notify(ctx context.Context, recipient id.UserID, ticket id.TicketNumber, kind models.Kind, title, body string) (*models.Notification, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.Notify",
		trace.WithAttributes(
			attribute.String("notification.kind", kind.String()),
			attribute.String("ticket.number", ticket.String()),
		))
	defer span.End()

	n, err := models.NewNotification(recipient, ticket, kind, title, body, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist notification")
	}
	if d.metrics != nil {
		d.metrics.NotificationsPersist.Inc()
	}

	d.attemptRealtime(ctx, recipient, *n)
	d.pushUnreadCount(ctx, recipient)
	d.scheduleMessage(ctx, recipient, *n)

	return n, nil
}

func (d *Dispatcher) attemptRealtime(ctx context.Context, recipient id.UserID, n models.Notification) {
	outcome := d.realtime.Deliver(ctx, recipient, n)
	d.observeOutcome(ctx, d.realtime.Name(), recipient, n, outcome)
}

// scheduleMessage enqueues the notification for the worker pool. A full
// queue drops the task; the persisted row keeps messageDelivered=false and
// surfaces the miss later.
func (d *Dispatcher) scheduleMessage(ctx context.Context, recipient id.UserID, n models.Notification) {
	select {
	case d.queue <- deliveryTask{recipient: recipient, notification: n}:
	default:
		d.logger.WarnContext(ctx, "message delivery queue full, dropping task",
			"notification_id", n.ID.String(),
			"recipient", recipient.String(),
		)
		if d.metrics != nil {
			d.metrics.ObserveDelivery(d.message.Name(), "dropped")
		}
	}
}

func (d *Dispatcher) deliverMessage(ctx context.Context, task deliveryTask) {
	outcome := d.message.Deliver(ctx, task.recipient, task.notification)
	d.observeOutcome(ctx, d.message.Name(), task.recipient, task.notification, outcome)

	if outcome.Status != channel.StatusDelivered {
		return
	}

	// Flip only the delivery columns; a read flag committed in the meantime
	// must survive the worker.
	if err := d.notifications.MarkMessageDelivered(ctx, task.notification.ID, requestcontext.Now(ctx)); err != nil {
		d.logger.ErrorContext(ctx, "record message delivery",
			"notification_id", task.notification.ID.String(),
			"error", err,
		)
	}
}

func (d *Dispatcher) observeOutcome(ctx context.Context, channelName string, recipient id.UserID, n models.Notification, outcome channel.Outcome) {
	if d.metrics != nil {
		d.metrics.ObserveDelivery(channelName, string(outcome.Status))
	}
	switch outcome.Status {
	case channel.StatusDelivered:
		d.logger.DebugContext(ctx, "notification delivered",
			"channel", channelName,
			"notification_id", n.ID.String(),
			"recipient", recipient.String(),
		)
	case channel.StatusSkipped:
		d.logger.DebugContext(ctx, "notification delivery skipped",
			"channel", channelName,
			"notification_id", n.ID.String(),
			"recipient", recipient.String(),
			"reason", outcome.Reason,
		)
	case channel.StatusFailed:
		d.logger.WarnContext(ctx, "notification delivery failed",
			"channel", channelName,
			"notification_id", n.ID.String(),
			"recipient", recipient.String(),
			"reason", outcome.Reason,
			"error", outcome.Err,
		)
	}
}

// pushUnreadCount recomputes the recipient's unread count and pushes a badge
// refresh. Best effort on both sides: a failed count or push never affects
// committed state.
func (d *Dispatcher) pushUnreadCount(ctx context.Context, recipient id.UserID) {
	count, err := d.notifications.UnreadCount(ctx, recipient)
	if err != nil {
		d.logger.WarnContext(ctx, "compute unread count",
			"recipient", recipient.String(),
			"error", err,
		)
		return
	}
	if d.cache != nil {
		d.cache.Set(ctx, recipient, count)
	}
	if d.pusher != nil {
		d.pusher.PushToUser(recipient, events.UnreadCountUpdate(recipient, count, requestcontext.Now(ctx)))
	}
}

// UnreadCount returns the recipient's unread count, preferring the cache.
func (d *Dispatcher) UnreadCount(ctx context.Context, recipient id.UserID) (int, error) {
	if d.cache != nil {
		if count, ok := d.cache.Get(ctx, recipient); ok {
			return count, nil
		}
	}
	count, err := d.notifications.UnreadCount(ctx, recipient)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count unread notifications")
	}
	if d.cache != nil {
		d.cache.Set(ctx, recipient, count)
	}
	return count, nil
}

// MarkRead flips one notification to read. Idempotent: a second call is a
// no-op with no store mutation. Only the recipient may mark their own
// notifications.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID id.NotificationID, requestingUser id.UserID) (*models.Notification, error) {
	n, err := d.notifications.FindByID(ctx, notificationID)
	if err != nil {
		return nil, wrapNotificationErr(err)
	}
	if n.RecipientID != requestingUser {
		return nil, dErrors.New(dErrors.CodeForbidden, "notification belongs to another user")
	}
	if n.Read {
		return n, nil
	}

	n.ApplyRead(requestcontext.Now(ctx))
	if err := d.notifications.Update(ctx, n); err != nil {
		return nil, wrapNotificationErr(err)
	}
	d.pushUnreadCount(ctx, requestingUser)
	return n, nil
}

// MarkAllRead bulk-flips every unread notification of the user and returns
// the number affected.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID id.UserID) (int, error) {
	affected, err := d.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "mark all notifications read")
	}
	if d.cache != nil {
		d.cache.Set(ctx, userID, 0)
	}
	if d.pusher != nil {
		d.pusher.PushToUser(userID, events.UnreadCountUpdate(userID, 0, requestcontext.Now(ctx)))
	}
	return affected, nil
}

// List returns the caller's notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, userID id.UserID, filter store.ListFilter) ([]models.Notification, error) {
	out, err := d.notifications.ListByRecipient(ctx, userID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list notifications")
	}
	return out, nil
}

// ListForTicket returns every notification of a ticket. Access is gated:
// the requesting user must own the ticket or hold the supporter capability.
func (d *Dispatcher) ListForTicket(ctx context.Context, number id.TicketNumber, requestingUser id.UserID) ([]models.Notification, error) {
	owner, err := d.oracle.IsOwner(ctx, requestingUser, number)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check ticket ownership")
	}
	if !owner {
		supporter, err := permission.HasPermission(ctx, d.oracle, requestingUser, id.PermissionSupportTickets)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check supporter capability")
		}
		if !supporter {
			return nil, dErrors.New(dErrors.CodeForbidden, "ticket access requires ownership or supporter capability")
		}
	}

	out, err := d.notifications.ListByTicket(ctx, number)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list ticket notifications")
	}
	return out, nil
}

// BroadcastAdmin pushes an unscoped admin_notification frame to every
// connected session. Gated on the admin broadcast capability.
func (d *Dispatcher) BroadcastAdmin(ctx context.Context, actor id.UserID, title, body string) error {
	allowed, err := permission.HasPermission(ctx, d.oracle, actor, id.PermissionAdminBroadcast)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check admin capability")
	}
	if !allowed {
		return dErrors.New(dErrors.CodeForbidden, "admin broadcast requires the admin capability")
	}
	if title == "" {
		return dErrors.New(dErrors.CodeBadRequest, "broadcast title is required")
	}
	if d.broadcaster != nil {
		d.broadcaster.Broadcast(events.AdminNotification(title, body, requestcontext.Now(ctx)))
	}
	return nil
}

func wrapNotificationErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "notification not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "notification store failure")
	}
}
