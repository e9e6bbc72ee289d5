package domain

import (
	"fmt"
	"regexp"
	"time"

	dErrors "helpdesk/pkg/domain-errors"
)

// TicketNumber is the human-readable ticket identifier, format T{YY}{MM}{NNNNN}.
// The five-digit counter resets each calendar month; numbers are globally
// unique and never reused. Degraded allocations may carry a longer suffix, so
// validation accepts 5 or more trailing digits.
type TicketNumber string

var ticketNumberPattern = regexp.MustCompile(`^T\d{2}\d{2}\d{5,}$`)

// ParseTicketNumber validates external input into a TicketNumber.
func ParseTicketNumber(s string) (TicketNumber, error) {
	if !ticketNumberPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid ticket number")
	}
	return TicketNumber(s), nil
}

// TicketNumberPrefix returns the allocation prefix for the given time,
// e.g. "T2608" for August 2026.
func TicketNumberPrefix(t time.Time) string {
	return fmt.Sprintf("T%02d%02d", t.Year()%100, int(t.Month()))
}

// FormatTicketNumber builds a sequential ticket number under the prefix of t.
func FormatTicketNumber(t time.Time, seq int) TicketNumber {
	return TicketNumber(fmt.Sprintf("%s%05d", TicketNumberPrefix(t), seq))
}

func (n TicketNumber) String() string { return string(n) }

// IsNil reports whether the number is empty.
func (n TicketNumber) IsNil() bool { return n == "" }
