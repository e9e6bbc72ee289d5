// Package sequence allocates collision-free, human-readable ticket numbers.
//
// Numbers follow T{YY}{MM}{NNNNN}: a monthly prefix plus a five-digit running
// counter that resets each calendar month. Allocation is read-increment-
// reserve with bounded retries under contention, then a timestamp-derived
// fallback. Uniqueness is the hard invariant; after the fallback fires,
// numbers in that month are no longer strictly sequential (accepted
// trade-off, see DESIGN.md).
package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"helpdesk/internal/platform/metrics"
	"helpdesk/internal/ticket/store"
	id "helpdesk/pkg/domain"
	dErrors "helpdesk/pkg/domain-errors"
	"helpdesk/pkg/platform/sentinel"
	"helpdesk/pkg/requestcontext"
)

// ErrSequenceExhausted is returned when even the fallback path could not
// reserve a unique number. Practically unreachable.
var ErrSequenceExhausted = errors.New("ticket number sequence exhausted")

const (
	maxAttempts = 10
	baseBackoff = 5 * time.Millisecond
)

// Allocator hands out unique ticket numbers backed by a NumberStore.
type Allocator struct {
	numbers store.NumberStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Allocator.
type Option func(*Allocator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) { a.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Allocator) { a.metrics = m }
}

func New(numbers store.NumberStore, opts ...Option) *Allocator {
	a := &Allocator{numbers: numbers}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Next reserves and returns the next ticket number for the current month.
func (a *Allocator) Next(ctx context.Context) (id.TicketNumber, error) {
	now := requestcontext.Now(ctx)
	prefix := id.TicketNumberPrefix(now)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		max, err := a.numbers.MaxWithPrefix(ctx, prefix)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "read ticket number high-water mark")
		}

		candidate := id.FormatTicketNumber(now, max+1)
		err = a.numbers.Reserve(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "reserve ticket number")
		}

		// Another allocation claimed the candidate first. Back off with
		// jitter so racing creators spread out before re-reading the mark.
		if err := sleep(ctx, backoff(attempt)); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeTimeout, "ticket number allocation cancelled")
		}
	}

	return a.fallback(ctx, prefix)
}

// fallback derives a pseudo-unique suffix from the current time. The result
// stays unique (Reserve still guards it) but breaks strict sequential order.
func (a *Allocator) fallback(ctx context.Context, prefix string) (id.TicketNumber, error) {
	candidate := id.TicketNumber(fmt.Sprintf("%s%09d", prefix, time.Now().UnixNano()%1_000_000_000))
	if err := a.numbers.Reserve(ctx, candidate); err != nil {
		// Only a conflict means the sequence itself gave out; anything
		// else is the store failing and is reported as such.
		if errors.Is(err, sentinel.ErrConflict) {
			return "", dErrors.Wrap(ErrSequenceExhausted, dErrors.CodeInternal,
				"ticket number allocation failed after retries and fallback")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "reserve ticket number")
	}

	a.logger.WarnContext(ctx, "degraded ticket number allocation",
		"number", candidate.String(),
		"prefix", prefix,
		"attempts", maxAttempts,
	)
	if a.metrics != nil {
		a.metrics.DegradedAllocations.Inc()
	}
	return candidate, nil
}

func backoff(attempt int) time.Duration {
	d := baseBackoff * time.Duration(attempt+1)
	jitter := time.Duration(rand.Int64N(int64(baseBackoff)))
	return d + jitter
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
