// Package handler exposes the notification inbox over REST: listing, unread
// counts, read receipts, and the admin broadcast trigger.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"helpdesk/internal/notification/models"
	"helpdesk/internal/notification/store"
	"helpdesk/internal/platform/metrics"
	"helpdesk/internal/platform/middleware"
	"helpdesk/internal/transport/http/shared"
	id "helpdesk/pkg/domain"
	dErrors "helpdesk/pkg/domain-errors"
)

// Service defines the dispatcher operations the handler exposes.
type Service interface {
	List(ctx context.Context, userID id.UserID, filter store.ListFilter) ([]models.Notification, error)
	ListForTicket(ctx context.Context, number id.TicketNumber, requestingUser id.UserID) ([]models.Notification, error)
	UnreadCount(ctx context.Context, recipient id.UserID) (int, error)
	MarkRead(ctx context.Context, notificationID id.NotificationID, requestingUser id.UserID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID id.UserID) (int, error)
	BroadcastAdmin(ctx context.Context, actor id.UserID, title, body string) error
}

// Handler handles notification endpoints.
type Handler struct {
	logger        *slog.Logger
	notifications Service
	metrics       *metrics.Metrics
	jwtValidator  middleware.JWTValidator
}

func New(notifications Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:        logger,
		notifications: notifications,
		metrics:       metrics,
		jwtValidator:  jwtValidator,
	}
}

// Register registers the notification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	notificationRouter := chi.NewRouter()
	notificationRouter.Use(middleware.Recovery(h.logger))
	notificationRouter.Use(middleware.RequestID)
	notificationRouter.Use(middleware.Logger(h.logger))
	notificationRouter.Use(middleware.Timeout(30 * time.Second))
	notificationRouter.Use(middleware.ContentTypeJSON)
	notificationRouter.Use(middleware.Latency(h.metrics))
	notificationRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	notificationRouter.Get("/notifications", h.handleList)
	notificationRouter.Get("/notifications/unread-count", h.handleUnreadCount)
	notificationRouter.Post("/notifications/read-all", h.handleMarkAllRead)
	notificationRouter.Post("/notifications/{id}/read", h.handleMarkRead)
	notificationRouter.Get("/tickets/{number}/notifications", h.handleListForTicket)
	notificationRouter.Post("/admin/broadcast", h.handleBroadcast)

	r.Mount("/", notificationRouter)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := store.ListFilter{Limit: 50}
	query := r.URL.Query()
	if raw := query.Get("kind"); raw != "" {
		kind, err := models.ParseKind(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		filter.Kind = &kind
	}
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 200"))
			return
		}
		filter.Limit = parsed
	}
	if raw := query.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "offset must be non-negative"))
			return
		}
		filter.Offset = parsed
	}

	rows, err := h.notifications.List(ctx, middleware.GetUserID(ctx), filter)
	if err != nil {
		h.writeServiceError(ctx, w, "list notifications", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"notifications": rows})
}

func (h *Handler) handleListForTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number, err := id.ParseTicketNumber(chi.URLParam(r, "number"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rows, err := h.notifications.ListForTicket(ctx, number, middleware.GetUserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "list ticket notifications", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"notifications": rows})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.notifications.UnreadCount(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "unread count", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid notification id"))
		return
	}

	n, err := h.notifications.MarkRead(ctx, notificationID, middleware.GetUserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "mark notification read", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	affected, err := h.notifications.MarkAllRead(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "mark all notifications read", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"affected": affected})
}

type broadcastRequest struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

func (h *Handler) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.notifications.BroadcastAdmin(ctx, middleware.GetUserID(ctx), req.Title, req.Body); err != nil {
		h.writeServiceError(ctx, w, "admin broadcast", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "notification operation failed",
			"request_id", middleware.GetRequestID(ctx),
			"operation", op,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
		return
	}
	h.logger.WarnContext(ctx, "notification operation rejected",
		"request_id", middleware.GetRequestID(ctx),
		"operation", op,
		"error", err.Error(),
	)
	shared.WriteError(w, err)
}
