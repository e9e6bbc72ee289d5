// Package handler exposes the ticket lifecycle over REST.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"helpdesk/internal/platform/metrics"
	"helpdesk/internal/platform/middleware"
	"helpdesk/internal/ticket/models"
	"helpdesk/internal/transport/http/shared"
	id "helpdesk/pkg/domain"
	dErrors "helpdesk/pkg/domain-errors"
)

// Service defines the lifecycle operations the handler exposes.
type Service interface {
	Create(ctx context.Context, actor id.UserID, req models.CreateTicketRequest) (*models.Ticket, error)
	Transition(ctx context.Context, number id.TicketNumber, newStatus id.StatusID, actor id.UserID, comment string) (*models.Ticket, error)
	Assign(ctx context.Context, number id.TicketNumber, assignee, actor id.UserID) (*models.Ticket, error)
	Get(ctx context.Context, number id.TicketNumber, actor id.UserID) (*models.Ticket, error)
	History(ctx context.Context, number id.TicketNumber, actor id.UserID) ([]models.StatusHistoryEntry, error)
	List(ctx context.Context, actor id.UserID, filter models.ListFilter) ([]models.Ticket, error)
}

// Handler handles ticket endpoints.
type Handler struct {
	logger       *slog.Logger
	tickets      Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(tickets Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		tickets:      tickets,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the ticket routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	ticketRouter := chi.NewRouter()
	ticketRouter.Use(middleware.Recovery(h.logger))
	ticketRouter.Use(middleware.RequestID)
	ticketRouter.Use(middleware.Logger(h.logger))
	ticketRouter.Use(middleware.Timeout(30 * time.Second))
	ticketRouter.Use(middleware.ContentTypeJSON)
	ticketRouter.Use(middleware.Latency(h.metrics))
	ticketRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	ticketRouter.Post("/tickets", h.handleCreate)
	ticketRouter.Get("/tickets", h.handleList)
	ticketRouter.Get("/tickets/{number}", h.handleGet)
	ticketRouter.Get("/tickets/{number}/history", h.handleHistory)
	ticketRouter.Post("/tickets/{number}/transition", h.handleTransition)
	ticketRouter.Post("/tickets/{number}/assign", h.handleAssign)

	r.Mount("/", ticketRouter)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetUserID(ctx)

	var req models.CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create ticket request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	ticket, err := h.tickets.Create(ctx, actor, req)
	if err != nil {
		h.writeServiceError(ctx, w, "create ticket", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number, err := id.ParseTicketNumber(chi.URLParam(r, "number"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	ticket, err := h.tickets.Get(ctx, number, middleware.GetUserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "get ticket", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number, err := id.ParseTicketNumber(chi.URLParam(r, "number"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	entries, err := h.tickets.History(ctx, number, middleware.GetUserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "get ticket history", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := models.ListFilter{Limit: 50}
	query := r.URL.Query()
	if raw := query.Get("status_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "status_id must be an integer"))
			return
		}
		statusID := id.StatusID(parsed)
		filter.StatusID = &statusID
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

	tickets, err := h.tickets.List(ctx, middleware.GetUserID(ctx), filter)
	if err != nil {
		h.writeServiceError(ctx, w, "list tickets", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number, err := id.ParseTicketNumber(chi.URLParam(r, "number"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req models.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	ticket, err := h.tickets.Transition(ctx, number, req.StatusID, middleware.GetUserID(ctx), req.Comment)
	if err != nil {
		h.writeServiceError(ctx, w, "transition ticket", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number, err := id.ParseTicketNumber(chi.URLParam(r, "number"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req models.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	assignee, err := id.ParseUserID(req.AssigneeID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "assignee_id must be a valid user id"))
		return
	}

	ticket, err := h.tickets.Assign(ctx, number, assignee, middleware.GetUserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "assign ticket", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "ticket operation failed",
			"request_id", middleware.GetRequestID(ctx),
			"operation", op,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
		return
	}
	h.logger.WarnContext(ctx, "ticket operation rejected",
		"request_id", middleware.GetRequestID(ctx),
		"operation", op,
		"error", err.Error(),
	)
	shared.WriteError(w, err)
}
