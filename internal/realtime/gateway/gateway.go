// Package gateway terminates realtime connections. Each accepted websocket
// gets a session ID, a registry entry, and a buffered outgoing channel; the
// broadcast path never blocks on a slow client, frames are dropped instead
// and the drop is logged. The persisted notification row remains the source
// of truth for anything a dropped frame would have carried.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mssola/useragent"

	"helpdesk/internal/platform/metrics"
	"helpdesk/internal/realtime/events"
	"helpdesk/internal/realtime/registry"
	id "helpdesk/pkg/domain"
)

const (
	sendBufferSize = 32
	writeTimeout   = 5 * time.Second
	connectTimeout = 10 * time.Second
)

// TokenValidator resolves the user behind a raw access token.
type TokenValidator interface {
	ExtractUserIDFromToken(token string) (id.UserID, error)
}

// Gateway owns the websocket endpoint and the live client set.
type Gateway struct {
	registry *registry.Registry
	tokens   TokenValidator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[id.SessionID]*client
}

type client struct {
	userID    id.UserID
	sessionID id.SessionID
	conn      *websocket.Conn
	send      chan events.Event
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures the Gateway.
type Option func(*Gateway)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func New(reg *registry.Registry, tokens TokenValidator, logger *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		registry: reg,
		tokens:   tokens,
		logger:   logger,
		clients:  make(map[id.SessionID]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement belongs to the reverse proxy in this
			// deployment; the token is the authentication boundary.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// inboundFrame mirrors events.Event with a raw payload for decoding.
type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandleWS upgrades the connection and runs the session until disconnect.
// Authentication: a `token` query parameter, or a `connect` frame as the
// first message. Invalid or missing tokens reject the connection.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	userID, err := g.authenticate(conn, r)
	if err != nil {
		g.logger.WarnContext(r.Context(), "websocket connection rejected", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
			time.Now().Add(writeTimeout))
		_ = conn.Close()
		return
	}

	sessionID := id.NewSessionID()
	c := &client{
		userID:    userID,
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan events.Event, sendBufferSize),
		done:      make(chan struct{}),
	}

	g.mu.Lock()
	g.clients[sessionID] = c
	g.mu.Unlock()
	g.registry.Register(userID, sessionID)
	if g.metrics != nil {
		g.metrics.WebsocketConnections.Inc()
	}

	ua := useragent.New(r.UserAgent())
	browser, version := ua.Browser()
	g.logger.InfoContext(r.Context(), "websocket session registered",
		"user_id", userID.String(),
		"session_id", sessionID.String(),
		"browser", browser,
		"browser_version", version,
		"os", ua.OS(),
	)

	go c.writePump(g.logger)
	c.enqueue(events.ConnectionSuccess(userID, sessionID, time.Now()), g.logger)

	g.readLoop(c)

	g.disconnect(c)
}

// authenticate resolves the user from the query token or the first frame.
func (g *Gateway) authenticate(conn *websocket.Conn, r *http.Request) (id.UserID, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		_ = conn.SetReadDeadline(time.Now().Add(connectTimeout))
		defer conn.SetReadDeadline(time.Time{})

		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return id.UserID{}, err
		}
		if frame.Type != events.TypeConnect {
			return id.UserID{}, errFirstFrameNotConnect
		}
		var payload events.ConnectPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return id.UserID{}, err
		}
		token = payload.Token
	}
	return g.tokens.ExtractUserIDFromToken(token)
}

func (g *Gateway) readLoop(c *client) {
	for {
		var frame inboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Type {
		case events.TypePing:
			c.enqueue(events.Pong(time.Now()), g.logger)
		case events.TypeSubscribeNotifications:
			// Sessions join their user's group at connect; the explicit
			// subscribe is accepted for protocol compatibility and re-adds
			// the registration if a client resubscribes after hiccups.
			g.registry.Register(c.userID, c.sessionID)
		case events.TypeConnect:
			// Already authenticated; ignore repeats.
		default:
			g.logger.Warn("unknown websocket frame type",
				"type", frame.Type,
				"session_id", c.sessionID.String(),
			)
		}
	}
}

func (g *Gateway) disconnect(c *client) {
	g.registry.Unregister(c.userID, c.sessionID)
	g.mu.Lock()
	delete(g.clients, c.sessionID)
	g.mu.Unlock()
	if g.metrics != nil {
		g.metrics.WebsocketConnections.Dec()
	}
	c.close()
	g.logger.Info("websocket session closed",
		"user_id", c.userID.String(),
		"session_id", c.sessionID.String(),
	)
}

// PushToUser fans an event to every live session of the user. Returns the
// number of sessions the frame was enqueued to. Fire and forget: a full send
// buffer drops the frame rather than blocking the caller.
func (g *Gateway) PushToUser(userID id.UserID, event events.Event) int {
	delivered := 0
	for _, sessionID := range g.registry.SessionsOf(userID) {
		g.mu.RLock()
		c, ok := g.clients[sessionID]
		g.mu.RUnlock()
		if !ok {
			continue
		}
		if c.enqueue(event, g.logger) {
			delivered++
		}
	}
	return delivered
}

// Broadcast pushes an event to every connected session, unscoped.
func (g *Gateway) Broadcast(event events.Event) int {
	g.mu.RLock()
	clients := make([]*client, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if c.enqueue(event, g.logger) {
			delivered++
		}
	}
	return delivered
}

// enqueue hands the event to the write pump. The send channel is never
// closed: pushers may race a disconnect, so shutdown is signalled through
// done instead and a late enqueue is simply a miss.
func (c *client) enqueue(event events.Event, logger *slog.Logger) bool {
	select {
	case <-c.done:
		return false
	case c.send <- event:
		return true
	default:
		logger.Warn("dropping frame for slow websocket client",
			"session_id", c.sessionID.String(),
			"type", event.Type,
		)
		return false
	}
}

func (c *client) writePump(logger *slog.Logger) {
	defer c.conn.Close()
	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(event); err != nil {
				logger.Warn("websocket write failed",
					"session_id", c.sessionID.String(),
					"error", err,
				)
				return
			}
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
