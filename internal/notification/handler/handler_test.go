package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	jwttoken "helpdesk/internal/jwt"
	"helpdesk/internal/notification/models"
	"helpdesk/internal/notification/store"
	id "helpdesk/pkg/domain"
	dErrors "helpdesk/pkg/domain-errors"
	"helpdesk/pkg/testutil"
)

type stubService struct {
	listFn        func(ctx context.Context, userID id.UserID, filter store.ListFilter) ([]models.Notification, error)
	listTicketFn  func(ctx context.Context, number id.TicketNumber, requestingUser id.UserID) ([]models.Notification, error)
	unreadFn      func(ctx context.Context, recipient id.UserID) (int, error)
	markReadFn    func(ctx context.Context, notificationID id.NotificationID, requestingUser id.UserID) (*models.Notification, error)
	markAllReadFn func(ctx context.Context, userID id.UserID) (int, error)
	broadcastFn   func(ctx context.Context, actor id.UserID, title, body string) error
}

func (s stubService) List(ctx context.Context, userID id.UserID, filter store.ListFilter) ([]models.Notification, error) {
	return s.listFn(ctx, userID, filter)
}

func (s stubService) ListForTicket(ctx context.Context, number id.TicketNumber, requestingUser id.UserID) ([]models.Notification, error) {
	return s.listTicketFn(ctx, number, requestingUser)
}

func (s stubService) UnreadCount(ctx context.Context, recipient id.UserID) (int, error) {
	return s.unreadFn(ctx, recipient)
}

func (s stubService) MarkRead(ctx context.Context, notificationID id.NotificationID, requestingUser id.UserID) (*models.Notification, error) {
	return s.markReadFn(ctx, notificationID, requestingUser)
}

func (s stubService) MarkAllRead(ctx context.Context, userID id.UserID) (int, error) {
	return s.markAllReadFn(ctx, userID)
}

func (s stubService) BroadcastAdmin(ctx context.Context, actor id.UserID, title, body string) error {
	return s.broadcastFn(ctx, actor, title, body)
}

type NotificationHandlerSuite struct {
	suite.Suite
	jwt    *jwttoken.JWTService
	userID id.UserID
	token  string
}

func TestNotificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(NotificationHandlerSuite))
}

func (s *NotificationHandlerSuite) SetupSuite() {
	s.jwt = jwttoken.NewJWTService("test-signing-key", "helpdesk", "helpdesk")
	s.userID = id.UserID(uuid.New())
	token, err := s.jwt.GenerateAccessToken(s.userID, id.NewSessionID(), time.Hour)
	s.Require().NoError(err)
	s.token = token
}

func (s *NotificationHandlerSuite) router(svc Service) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(svc, logger, nil, s.jwt).Register(r)
	return r
}

func (s *NotificationHandlerSuite) authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+s.token)
	return req
}

func sampleNotification(recipient id.UserID) models.Notification {
	now := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	return models.Notification{
		ID:           id.NewNotificationID(),
		RecipientID:  recipient,
		TicketNumber: "T260800001",
		Kind:         models.KindStatusChange,
		Title:        "Ticket T260800001 moved to In Progress",
		CreatedAt:    now,
	}
}

func (s *NotificationHandlerSuite) TestListParsesKindFilter() {
	router := s.router(stubService{
		listFn: func(_ context.Context, userID id.UserID, filter store.ListFilter) ([]models.Notification, error) {
			s.Equal(s.userID, userID)
			s.Require().NotNil(filter.Kind)
			s.Equal(models.KindAssignment, *filter.Kind)
			return []models.Notification{sampleNotification(userID)}, nil
		},
	})

	req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/notifications?kind=assignment"))
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(s.T(), rr)
}

func (s *NotificationHandlerSuite) TestListRejectsUnknownKind() {
	router := s.router(stubService{
		listFn: func(context.Context, id.UserID, store.ListFilter) ([]models.Notification, error) {
			s.Fail("service must not be called")
			return nil, nil
		},
	})

	req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/notifications?kind=carrier_pigeon"))
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *NotificationHandlerSuite) TestUnreadCount() {
	router := s.router(stubService{
		unreadFn: func(_ context.Context, recipient id.UserID) (int, error) {
			s.Equal(s.userID, recipient)
			return 7, nil
		},
	})

	req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/notifications/unread-count"))
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "count", float64(7))
}

func (s *NotificationHandlerSuite) TestMarkRead() {
	notificationID := id.NewNotificationID()
	router := s.router(stubService{
		markReadFn: func(_ context.Context, gotID id.NotificationID, requestingUser id.UserID) (*models.Notification, error) {
			s.Equal(notificationID, gotID)
			s.Equal(s.userID, requestingUser)
			n := sampleNotification(requestingUser)
			n.ID = gotID
			n.Read = true
			return &n, nil
		},
	})

	req := s.authed(testutil.NewRequest(s.T(), http.MethodPost, "/notifications/"+notificationID.String()+"/read"))
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[models.Notification](s.T(), rr)
	s.True(resp.Read)
}

func (s *NotificationHandlerSuite) TestMarkReadForeignNotification() {
	router := s.router(stubService{
		markReadFn: func(context.Context, id.NotificationID, id.UserID) (*models.Notification, error) {
			return nil, dErrors.New(dErrors.CodeForbidden, "notification belongs to another user")
		},
	})

	req := s.authed(testutil.NewRequest(s.T(), http.MethodPost, "/notifications/"+uuid.NewString()+"/read"))
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

func (s *NotificationHandlerSuite) TestMarkAllRead() {
	router := s.router(stubService{
		markAllReadFn: func(_ context.Context, userID id.UserID) (int, error) {
			s.Equal(s.userID, userID)
			return 4, nil
		},
	})

	req := s.authed(testutil.NewRequest(s.T(), http.MethodPost, "/notifications/read-all"))
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "affected", float64(4))
}

func (s *NotificationHandlerSuite) TestBroadcast() {
	router := s.router(stubService{
		broadcastFn: func(_ context.Context, actor id.UserID, title, body string) error {
			s.Equal(s.userID, actor)
			s.Equal("Maintenance window", title)
			return nil
		},
	})

	req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/broadcast", map[string]string{
		"title": "Maintenance window",
		"body":  "Downtime at 22:00",
	}))
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
}

func (s *NotificationHandlerSuite) TestBroadcastWithoutCapability() {
	router := s.router(stubService{
		broadcastFn: func(context.Context, id.UserID, string, string) error {
			return dErrors.New(dErrors.CodeForbidden, "admin broadcast requires the admin capability")
		},
	})

	req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/broadcast", map[string]string{"title": "x"}))
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}
