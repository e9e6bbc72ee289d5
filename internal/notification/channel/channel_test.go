package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/internal/notification/models"
	"helpdesk/internal/realtime/events"
	id "helpdesk/pkg/domain"
)

func testNotification(t *testing.T, recipient id.UserID) models.Notification {
	t.Helper()
	n, err := models.NewNotification(recipient, "T260800001", models.KindStatusChange,
		"Ticket T260800001 updated", "Status changed to In Progress", time.Now())
	require.NoError(t, err)
	return *n
}

type fakePresence struct{ online bool }

func (f fakePresence) IsOnline(id.UserID) bool { return f.online }

type recordingPusher struct {
	pushed []events.Event
}

func (p *recordingPusher) PushToUser(_ id.UserID, event events.Event) int {
	p.pushed = append(p.pushed, event)
	return 1
}

func TestRealtimeDeliverOnline(t *testing.T) {
	recipient := id.UserID(uuid.New())
	pusher := &recordingPusher{}
	rt := NewRealtime(fakePresence{online: true}, pusher)

	outcome := rt.Deliver(context.Background(), recipient, testNotification(t, recipient))

	assert.Equal(t, StatusDelivered, outcome.Status)
	require.Len(t, pusher.pushed, 1)
	assert.Equal(t, events.TypeNewNotification, pusher.pushed[0].Type)
}

func TestRealtimeDeliverOfflineIsSkipped(t *testing.T) {
	recipient := id.UserID(uuid.New())
	pusher := &recordingPusher{}
	rt := NewRealtime(fakePresence{online: false}, pusher)

	outcome := rt.Deliver(context.Background(), recipient, testNotification(t, recipient))

	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Empty(t, pusher.pushed, "no push attempt for offline recipients")
}

type fakeDirectory struct {
	address string
	err     error
}

func (f fakeDirectory) AddressOf(context.Context, id.UserID) (string, error) {
	return f.address, f.err
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, address, _, _ string) error {
	f.sent = append(f.sent, address)
	return f.err
}

func TestMessageDeliver(t *testing.T) {
	recipient := id.UserID(uuid.New())

	t.Run("valid address delivers", func(t *testing.T) {
		sender := &fakeSender{}
		msg := NewMessage(sender, fakeDirectory{address: "user@example.com"})
		outcome := msg.Deliver(context.Background(), recipient, testNotification(t, recipient))
		assert.Equal(t, StatusDelivered, outcome.Status)
		assert.Equal(t, []string{"user@example.com"}, sender.sent)
	})

	t.Run("malformed address skips before transport", func(t *testing.T) {
		sender := &fakeSender{}
		msg := NewMessage(sender, fakeDirectory{address: "not-an-address"})
		outcome := msg.Deliver(context.Background(), recipient, testNotification(t, recipient))
		assert.Equal(t, StatusSkipped, outcome.Status)
		assert.Empty(t, sender.sent)
	})

	t.Run("transport failure is captured, not raised", func(t *testing.T) {
		sendErr := errors.New("connection refused")
		sender := &fakeSender{err: sendErr}
		msg := NewMessage(sender, fakeDirectory{address: "user@example.com"})
		outcome := msg.Deliver(context.Background(), recipient, testNotification(t, recipient))
		assert.Equal(t, StatusFailed, outcome.Status)
		assert.ErrorIs(t, outcome.Err, sendErr)
	})

	t.Run("directory failure is captured", func(t *testing.T) {
		msg := NewMessage(&fakeSender{}, fakeDirectory{err: errors.New("directory down")})
		outcome := msg.Deliver(context.Background(), recipient, testNotification(t, recipient))
		assert.Equal(t, StatusFailed, outcome.Status)
	})
}

func TestMessageCircuitOpensAfterRepeatedFailures(t *testing.T) {
	recipient := id.UserID(uuid.New())
	sender := &fakeSender{err: errors.New("connection refused")}
	msg := NewMessage(sender, fakeDirectory{address: "user@example.com"})

	// Drive the breaker open with consecutive transport failures.
	for range 5 {
		outcome := msg.Deliver(context.Background(), recipient, testNotification(t, recipient))
		assert.Equal(t, StatusFailed, outcome.Status)
	}

	outcome := msg.Deliver(context.Background(), recipient, testNotification(t, recipient))
	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Equal(t, "message transport circuit open", outcome.Reason)
	assert.Len(t, sender.sent, 5, "open circuit short-circuits before the transport")

	// Once the transport recovers, probe attempts close the circuit again.
	sender.err = nil
	var delivered bool
	for range 25 {
		if msg.Deliver(context.Background(), recipient, testNotification(t, recipient)).Status == StatusDelivered {
			delivered = true
		}
	}
	assert.True(t, delivered, "probes reach the recovered transport")
	assert.Equal(t, StatusDelivered, msg.Deliver(context.Background(), recipient, testNotification(t, recipient)).Status)
}
