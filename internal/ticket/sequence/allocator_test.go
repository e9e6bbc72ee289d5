package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/internal/ticket/store"
	id "helpdesk/pkg/domain"
	"helpdesk/pkg/platform/sentinel"
	"helpdesk/pkg/requestcontext"
)

func TestNextIsSequentialWithinMonth(t *testing.T) {
	numbers := store.NewInMemoryNumberStore()
	allocator := New(numbers)
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC))

	first, err := allocator.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, id.TicketNumber("T260800001"), first)

	second, err := allocator.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, id.TicketNumber("T260800002"), second)
}

func TestNextResetsCounterAcrossMonths(t *testing.T) {
	numbers := store.NewInMemoryNumberStore()
	allocator := New(numbers)

	august := requestcontext.WithTime(context.Background(), time.Date(2026, time.August, 31, 23, 0, 0, 0, time.UTC))
	september := requestcontext.WithTime(context.Background(), time.Date(2026, time.September, 1, 0, 30, 0, 0, time.UTC))

	augustNumber, err := allocator.Next(august)
	require.NoError(t, err)
	assert.Equal(t, id.TicketNumber("T260800001"), augustNumber)

	septemberNumber, err := allocator.Next(september)
	require.NoError(t, err)
	assert.Equal(t, id.TicketNumber("T260900001"), septemberNumber)
}

// TestConcurrentAllocationUniqueness drives many goroutines through the
// allocator and verifies all reserved numbers are pairwise distinct.
func TestConcurrentAllocationUniqueness(t *testing.T) {
	numbers := store.NewInMemoryNumberStore()
	allocator := New(numbers)
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC))

	const goroutines = 50
	var wg sync.WaitGroup
	results := make(chan id.TicketNumber, goroutines)

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := allocator.Next(ctx)
			if err == nil {
				results <- number
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[id.TicketNumber]struct{})
	for number := range results {
		_, dup := seen[number]
		assert.False(t, dup, "duplicate number %s", number)
		seen[number] = struct{}{}
	}
	// Retries plus the fallback path must leave no goroutine empty-handed.
	assert.Len(t, seen, goroutines)
}

// conflictingNumberStore forces Reserve conflicts for sequential candidates
// to exercise the fallback path.
type conflictingNumberStore struct {
	mu         sync.Mutex
	conflicts  int
	reserveErr error
	reserved   map[id.TicketNumber]struct{}
}

func (s *conflictingNumberStore) MaxWithPrefix(context.Context, string) (int, error) {
	return 0, nil
}

func (s *conflictingNumberStore) Reserve(_ context.Context, number id.TicketNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return sentinel.ErrConflict
	}
	if s.reserveErr != nil {
		return s.reserveErr
	}
	if s.reserved == nil {
		s.reserved = make(map[id.TicketNumber]struct{})
	}
	s.reserved[number] = struct{}{}
	return nil
}

func TestFallbackAfterExhaustedRetries(t *testing.T) {
	numbers := &conflictingNumberStore{conflicts: maxAttempts}
	allocator := New(numbers)
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC))

	number, err := allocator.Next(ctx)
	require.NoError(t, err)
	assert.True(t, len(number) > len("T260800001"), "fallback numbers carry a longer suffix: %s", number)

	parsed, err := id.ParseTicketNumber(number.String())
	require.NoError(t, err)
	assert.Equal(t, number, parsed)
}

func TestSequenceExhausted(t *testing.T) {
	// Conflicts on every attempt including the fallback reservation.
	numbers := &conflictingNumberStore{conflicts: maxAttempts + 1}
	allocator := New(numbers)

	_, err := allocator.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestFallbackStoreFailureIsNotExhaustion(t *testing.T) {
	storeErr := errors.New("connection reset by peer")
	numbers := &conflictingNumberStore{conflicts: maxAttempts, reserveErr: storeErr}
	allocator := New(numbers)

	_, err := allocator.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr, "store failures keep their cause")
	assert.NotErrorIs(t, err, ErrSequenceExhausted)
}

func TestNextRespectsCancellation(t *testing.T) {
	numbers := &conflictingNumberStore{conflicts: maxAttempts + 1}
	allocator := New(numbers)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := allocator.Next(ctx)
	require.Error(t, err)
}
