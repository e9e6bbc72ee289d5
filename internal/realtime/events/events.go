// Package events defines the realtime wire protocol: the JSON frames the
// gateway exchanges with connected clients. Transport-agnostic so the
// delivery channel and dispatcher can build frames without importing the
// gateway.
package events

import (
	"time"

	"helpdesk/internal/notification/models"
	id "helpdesk/pkg/domain"
)

// Inbound event types.
const (
	TypeConnect                = "connect"
	TypeSubscribeNotifications = "subscribe_notifications"
	TypePing                   = "ping"
)

// Outbound event types.
const (
	TypeConnectionSuccess = "connection_success"
	TypeNewNotification   = "new_notification"
	TypeUnreadCountUpdate = "unread_count_update"
	TypeAdminNotification = "admin_notification"
	TypePong              = "pong"
)

// Event is the envelope for every frame.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Inbound payloads.

type ConnectPayload struct {
	Token string `json:"token"`
}

type SubscribePayload struct {
	UserID string `json:"userId"`
}

// Outbound payloads.

type ConnectionSuccessPayload struct {
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

type NotificationPayload struct {
	ID           string    `json:"id"`
	TicketNumber string    `json:"ticketId"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Read         bool      `json:"read"`
	Timestamp    time.Time `json:"timestamp"`
}

type UnreadCountPayload struct {
	UserID    string    `json:"userId"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

type AdminNotificationPayload struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionSuccess builds the post-handshake acknowledgement frame.
func ConnectionSuccess(userID id.UserID, sessionID id.SessionID, now time.Time) Event {
	return Event{Type: TypeConnectionSuccess, Payload: ConnectionSuccessPayload{
		UserID:    userID.String(),
		SessionID: sessionID.String(),
		Timestamp: now,
	}}
}

// NewNotification builds the push frame for a persisted notification.
func NewNotification(n models.Notification) Event {
	return Event{Type: TypeNewNotification, Payload: NotificationPayload{
		ID:           n.ID.String(),
		TicketNumber: n.TicketNumber.String(),
		Kind:         n.Kind.String(),
		Title:        n.Title,
		Body:         n.Body,
		Read:         n.Read,
		Timestamp:    n.CreatedAt,
	}}
}

// UnreadCountUpdate builds the badge refresh frame.
func UnreadCountUpdate(userID id.UserID, count int, now time.Time) Event {
	return Event{Type: TypeUnreadCountUpdate, Payload: UnreadCountPayload{
		UserID:    userID.String(),
		Count:     count,
		Timestamp: now,
	}}
}

// Pong answers an inbound ping.
func Pong(now time.Time) Event {
	return Event{Type: TypePong, Payload: PongPayload{Timestamp: now}}
}

// AdminNotification builds the unscoped broadcast frame.
func AdminNotification(title, body string, now time.Time) Event {
	return Event{Type: TypeAdminNotification, Payload: AdminNotificationPayload{
		Title:     title,
		Body:      body,
		Timestamp: now,
	}}
}
