package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"helpdesk/internal/notification/models"
	id "helpdesk/pkg/domain"
	"helpdesk/pkg/platform/sentinel"
)

// InMemoryNotificationStore keeps notification rows in a map. Favors clarity
// over performance, like the other in-memory stores.
type InMemoryNotificationStore struct {
	mu   sync.RWMutex
	rows map[id.NotificationID]models.Notification
}

func NewInMemoryNotificationStore() *InMemoryNotificationStore {
	return &InMemoryNotificationStore{rows: make(map[id.NotificationID]models.Notification)}
}

func (s *InMemoryNotificationStore) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[n.ID]; exists {
		return sentinel.ErrConflict
	}
	s.rows[n.ID] = *n
	return nil
}

func (s *InMemoryNotificationStore) FindByID(_ context.Context, notificationID id.NotificationID) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.rows[notificationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &n, nil
}

func (s *InMemoryNotificationStore) Update(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[n.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.rows[n.ID] = *n
	return nil
}

func (s *InMemoryNotificationStore) MarkMessageDelivered(_ context.Context, notificationID id.NotificationID, deliveredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[notificationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	n.MessageDelivered = true
	n.MessageDeliveredAt = &deliveredAt
	s.rows[notificationID] = n
	return nil
}

func (s *InMemoryNotificationStore) ListByRecipient(_ context.Context, recipient id.UserID, filter ListFilter) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Notification
	for _, n := range s.rows {
		if n.RecipientID != recipient {
			continue
		}
		if filter.Kind != nil && n.Kind != *filter.Kind {
			continue
		}
		out = append(out, n)
	}
	sortNewestFirst(out)

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryNotificationStore) ListByTicket(_ context.Context, number id.TicketNumber) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Notification
	for _, n := range s.rows {
		if n.TicketNumber == number {
			out = append(out, n)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryNotificationStore) UnreadCount(_ context.Context, recipient id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.rows {
		if n.RecipientID == recipient && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryNotificationStore) MarkAllRead(_ context.Context, recipient id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	affected := 0
	for notificationID, n := range s.rows {
		if n.RecipientID == recipient && !n.Read {
			n.ApplyRead(now)
			s.rows[notificationID] = n
			affected++
		}
	}
	return affected, nil
}

func sortNewestFirst(rows []models.Notification) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID.String() < rows[j].ID.String()
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
}
