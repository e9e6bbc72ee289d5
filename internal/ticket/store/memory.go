package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"helpdesk/internal/ticket/models"
	id "helpdesk/pkg/domain"
	"helpdesk/pkg/platform/sentinel"
)

// In-memory stores keep development and unit tests lightweight. They
// intentionally favor clarity over performance.

type InMemoryTicketStore struct {
	mu      sync.RWMutex
	tickets map[id.TicketNumber]models.Ticket
}

func NewInMemoryTicketStore() *InMemoryTicketStore {
	return &InMemoryTicketStore{tickets: make(map[id.TicketNumber]models.Ticket)}
}

func (s *InMemoryTicketStore) Create(_ context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[ticket.Number]; exists {
		return sentinel.ErrConflict
	}
	s.tickets[ticket.Number] = ticket.Snapshot()
	return nil
}

func (s *InMemoryTicketStore) FindByNumber(_ context.Context, number id.TicketNumber) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copy := ticket.Snapshot()
	return &copy, nil
}

func (s *InMemoryTicketStore) Update(_ context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.Number]; !ok {
		return sentinel.ErrNotFound
	}
	s.tickets[ticket.Number] = ticket.Snapshot()
	return nil
}

func (s *InMemoryTicketStore) List(_ context.Context, filter models.ListFilter) ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Ticket
	for _, t := range s.tickets {
		if !t.Enabled {
			continue
		}
		if filter.StatusID != nil && t.StatusID != *filter.StatusID {
			continue
		}
		if filter.CreatorID != nil && t.CreatorID != *filter.CreatorID {
			continue
		}
		out = append(out, t.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number > out[j].Number
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func paginate(tickets []models.Ticket, limit, offset int) []models.Ticket {
	if offset >= len(tickets) {
		return nil
	}
	tickets = tickets[offset:]
	if limit > 0 && limit < len(tickets) {
		tickets = tickets[:limit]
	}
	return tickets
}

type InMemoryHistoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[id.TicketNumber][]models.StatusHistoryEntry
}

func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{entries: make(map[id.TicketNumber][]models.StatusHistoryEntry)}
}

func (s *InMemoryHistoryStore) Append(_ context.Context, entry *models.StatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry.ID = s.nextID
	s.entries[entry.TicketNumber] = append(s.entries[entry.TicketNumber], *entry)
	return nil
}

func (s *InMemoryHistoryStore) Latest(_ context.Context, number id.TicketNumber) (*models.StatusHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.entries[number]
	if len(entries) == 0 {
		return nil, sentinel.ErrNotFound
	}
	latest := entries[len(entries)-1]
	return &latest, nil
}

func (s *InMemoryHistoryStore) ListByTicket(_ context.Context, number id.TicketNumber) ([]models.StatusHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.entries[number]
	out := make([]models.StatusHistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

type InMemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[id.StatusID]models.Status
}

func NewInMemoryStatusStore(statuses ...models.Status) *InMemoryStatusStore {
	s := &InMemoryStatusStore{statuses: make(map[id.StatusID]models.Status)}
	for _, st := range statuses {
		s.statuses[st.ID] = st
	}
	return s
}

func (s *InMemoryStatusStore) FindByID(_ context.Context, statusID id.StatusID) (*models.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[statusID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &status, nil
}

type InMemoryNumberStore struct {
	mu       sync.Mutex
	reserved map[id.TicketNumber]struct{}
}

func NewInMemoryNumberStore() *InMemoryNumberStore {
	return &InMemoryNumberStore{reserved: make(map[id.TicketNumber]struct{})}
}

func (s *InMemoryNumberStore) MaxWithPrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for number := range s.reserved {
		rest, ok := strings.CutPrefix(string(number), prefix)
		if !ok {
			continue
		}
		// Degraded allocations carry a longer suffix; only the five-digit
		// counters participate in the sequential scan.
		if len(rest) != 5 {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}

func (s *InMemoryNumberStore) Reserve(_ context.Context, number id.TicketNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.reserved[number]; taken {
		return sentinel.ErrConflict
	}
	s.reserved[number] = struct{}{}
	return nil
}
