package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"helpdesk/internal/realtime/events"
	"helpdesk/internal/realtime/registry"
	id "helpdesk/pkg/domain"
)

// staticTokens maps raw tokens to user IDs.
type staticTokens struct {
	users map[string]id.UserID
}

func (s *staticTokens) ExtractUserIDFromToken(token string) (id.UserID, error) {
	userID, ok := s.users[token]
	if !ok {
		return id.UserID{}, errors.New("invalid token")
	}
	return userID, nil
}

type GatewaySuite struct {
	suite.Suite

	registry *registry.Registry
	gateway  *Gateway
	server   *httptest.Server
	userID   id.UserID
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.userID = id.UserID(uuid.New())
	s.registry = registry.New()
	tokens := &staticTokens{users: map[string]id.UserID{"valid-token": s.userID}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.gateway = New(s.registry, tokens, log)
	s.server = httptest.NewServer(http.HandlerFunc(s.gateway.HandleWS))
}

func (s *GatewaySuite) TearDownTest() {
	s.server.Close()
}

func (s *GatewaySuite) wsURL(query string) string {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http")
	if query != "" {
		url += "?" + query
	}
	return url
}

// readFrame decodes the next frame with a payload of type P.
func readFrame[P any](t *testing.T, conn *websocket.Conn) (string, P) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	var payload P
	if len(frame.Payload) > 0 {
		require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	}
	return frame.Type, payload
}

func (s *GatewaySuite) TestConnectWithQueryToken() {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL("token=valid-token"), nil)
	s.Require().NoError(err)
	defer conn.Close()

	frameType, payload := readFrame[events.ConnectionSuccessPayload](s.T(), conn)
	s.Equal(events.TypeConnectionSuccess, frameType)
	s.Equal(s.userID.String(), payload.UserID)
	s.NotEmpty(payload.SessionID)

	s.Eventually(func() bool {
		return s.registry.IsOnline(s.userID)
	}, time.Second, 10*time.Millisecond)
}

func (s *GatewaySuite) TestConnectWithFirstFrame() {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL(""), nil)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().NoError(conn.WriteJSON(events.Event{
		Type:    events.TypeConnect,
		Payload: events.ConnectPayload{Token: "valid-token"},
	}))

	frameType, payload := readFrame[events.ConnectionSuccessPayload](s.T(), conn)
	s.Equal(events.TypeConnectionSuccess, frameType)
	s.Equal(s.userID.String(), payload.UserID)
}

func (s *GatewaySuite) TestInvalidTokenRejected() {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL("token=bogus"), nil)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	s.Require().ErrorAs(err, &closeErr)
	s.Equal(websocket.ClosePolicyViolation, closeErr.Code)
	s.False(s.registry.IsOnline(s.userID))
}

func (s *GatewaySuite) TestFirstFrameMustBeConnect() {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL(""), nil)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().NoError(conn.WriteJSON(events.Event{Type: events.TypePing}))

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	s.Require().ErrorAs(err, &closeErr)
	s.Equal(websocket.ClosePolicyViolation, closeErr.Code)
}

func (s *GatewaySuite) TestPingPong() {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL("token=valid-token"), nil)
	s.Require().NoError(err)
	defer conn.Close()

	frameType, _ := readFrame[events.ConnectionSuccessPayload](s.T(), conn)
	s.Require().Equal(events.TypeConnectionSuccess, frameType)

	s.Require().NoError(conn.WriteJSON(events.Event{Type: events.TypePing}))

	frameType, payload := readFrame[events.PongPayload](s.T(), conn)
	s.Equal(events.TypePong, frameType)
	s.False(payload.Timestamp.IsZero())
}

func (s *GatewaySuite) TestPushToUserReachesEverySession() {
	first, _, err := websocket.DefaultDialer.Dial(s.wsURL("token=valid-token"), nil)
	s.Require().NoError(err)
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(s.wsURL("token=valid-token"), nil)
	s.Require().NoError(err)
	defer second.Close()

	for _, conn := range []*websocket.Conn{first, second} {
		frameType, _ := readFrame[events.ConnectionSuccessPayload](s.T(), conn)
		s.Require().Equal(events.TypeConnectionSuccess, frameType)
	}
	s.Eventually(func() bool {
		return len(s.registry.SessionsOf(s.userID)) == 2
	}, time.Second, 10*time.Millisecond)

	delivered := s.gateway.PushToUser(s.userID, events.UnreadCountUpdate(s.userID, 3, time.Now()))
	s.Equal(2, delivered)

	for _, conn := range []*websocket.Conn{first, second} {
		frameType, payload := readFrame[events.UnreadCountPayload](s.T(), conn)
		s.Equal(events.TypeUnreadCountUpdate, frameType)
		s.Equal(3, payload.Count)
	}
}

func (s *GatewaySuite) TestPushToOfflineUserDeliversNothing() {
	offline := id.UserID(uuid.New())
	delivered := s.gateway.PushToUser(offline, events.UnreadCountUpdate(offline, 1, time.Now()))
	s.Zero(delivered)
}

func (s *GatewaySuite) TestDisconnectUnregistersSession() {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL("token=valid-token"), nil)
	s.Require().NoError(err)

	frameType, _ := readFrame[events.ConnectionSuccessPayload](s.T(), conn)
	s.Require().Equal(events.TypeConnectionSuccess, frameType)
	s.Eventually(func() bool {
		return s.registry.IsOnline(s.userID)
	}, time.Second, 10*time.Millisecond)

	s.Require().NoError(conn.Close())

	s.Eventually(func() bool {
		return !s.registry.IsOnline(s.userID)
	}, time.Second, 10*time.Millisecond)
}

func (s *GatewaySuite) TestBroadcastReachesAllUsers() {
	other := id.UserID(uuid.New())
	s.gateway.tokens.(*staticTokens).users["other-token"] = other

	first, _, err := websocket.DefaultDialer.Dial(s.wsURL("token=valid-token"), nil)
	s.Require().NoError(err)
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(s.wsURL("token=other-token"), nil)
	s.Require().NoError(err)
	defer second.Close()

	for _, conn := range []*websocket.Conn{first, second} {
		frameType, _ := readFrame[events.ConnectionSuccessPayload](s.T(), conn)
		s.Require().Equal(events.TypeConnectionSuccess, frameType)
	}

	delivered := s.gateway.Broadcast(events.AdminNotification("Maintenance", "Back at noon", time.Now()))
	s.Equal(2, delivered)

	for _, conn := range []*websocket.Conn{first, second} {
		frameType, payload := readFrame[events.AdminNotificationPayload](s.T(), conn)
		s.Equal(events.TypeAdminNotification, frameType)
		s.Equal("Maintenance", payload.Title)
	}
}

// Pushers race disconnects in production: the dispatcher fans out from its
// worker goroutines while read loops tear sessions down. Enqueueing into a
// closing session must degrade to a miss, never a panic.
func (s *GatewaySuite) TestPushRacingDisconnectIsSafe() {
	const sessions = 8
	conns := make([]*websocket.Conn, 0, sessions)
	for range sessions {
		conn, _, err := websocket.DefaultDialer.Dial(s.wsURL("token=valid-token"), nil)
		s.Require().NoError(err)
		frameType, _ := readFrame[events.ConnectionSuccessPayload](s.T(), conn)
		s.Require().Equal(events.TypeConnectionSuccess, frameType)
		conns = append(conns, conn)
	}
	s.Require().Eventually(func() bool {
		return len(s.registry.SessionsOf(s.userID)) == sessions
	}, time.Second, 10*time.Millisecond)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	for i := 0; i < 2000; i++ {
		s.gateway.PushToUser(s.userID, events.UnreadCountUpdate(s.userID, i, time.Now()))
	}
	<-closed

	s.Eventually(func() bool {
		return !s.registry.IsOnline(s.userID)
	}, time.Second, 10*time.Millisecond)
}

func TestEnqueueAfterCloseReturnsFalse(t *testing.T) {
	c := &client{
		sessionID: id.NewSessionID(),
		send:      make(chan events.Event, 1),
		done:      make(chan struct{}),
	}
	c.close()
	c.close() // idempotent

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := c.enqueue(events.Pong(time.Now()), log)
	require.False(t, ok)
}
