package incident

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannelName(t *testing.T) {
	day := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowered hyphenated and capped",
			input:    "Database Outage",
			expected: "i-database-outag-05-01-24",
		},
		{
			name:     "short name kept whole",
			input:    "API down",
			expected: "i-api-down-05-01-24",
		},
		{
			name:     "diacritics stripped",
			input:    "Panne Réseau",
			expected: "i-panne-reseau-05-01-24",
		},
		{
			name:     "punctuation collapses to single hyphens",
			input:    "db :: primary / replica",
			expected: "i-db-primary-rep-05-01-24",
		},
		{
			name:     "no trailing hyphen after truncation",
			input:    "data pipeline x",
			expected: "i-data-pipeline-05-01-24",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ChannelName(tt.input, day))
		})
	}
}

func TestSequenceChannelName(t *testing.T) {
	day := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, "i-sereno-05-01-24_1", SequenceChannelName(day, 0))
	assert.Equal(t, "i-sereno-05-01-24_3", SequenceChannelName(day, 2))
}
