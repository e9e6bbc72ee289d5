package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "helpdesk/pkg/domain-errors"
)

func TestTicketNumberPrefix(t *testing.T) {
	assert.Equal(t, "T2608", TicketNumberPrefix(time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "T2601", TicketNumberPrefix(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "T2712", TicketNumberPrefix(time.Date(2027, time.December, 31, 23, 59, 59, 0, time.UTC)))
}

func TestFormatTicketNumber(t *testing.T) {
	aug := time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, TicketNumber("T260800001"), FormatTicketNumber(aug, 1))
	assert.Equal(t, TicketNumber("T260812345"), FormatTicketNumber(aug, 12345))
}

func TestMonthRolloverChangesPrefix(t *testing.T) {
	endOfAug := time.Date(2026, time.August, 31, 23, 59, 59, 0, time.UTC)
	startOfSep := endOfAug.Add(time.Second)
	assert.NotEqual(t, TicketNumberPrefix(endOfAug), TicketNumberPrefix(startOfSep))
	assert.Equal(t, TicketNumber("T260900001"), FormatTicketNumber(startOfSep, 1))
}

func TestParseTicketNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"sequential number", "T260800001", false},
		{"degraded allocation with longer suffix", "T2608123456789", false},
		{"empty", "", true},
		{"missing prefix letter", "260800001", true},
		{"short counter", "T26081234", true},
		{"letters in counter", "T2608abcde", true},
		{"trailing junk", "T260800001x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseTicketNumber(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, n.String())
		})
	}
}
