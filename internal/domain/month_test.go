package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthHelpers(t *testing.T) {
	jan := time.Date(2024, time.January, 31, 15, 4, 5, 0, time.UTC)

	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), MonthStart(jan))
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), AddMonths(jan, 1))
	assert.Equal(t, time.Date(2023, time.November, 1, 0, 0, 0, 0, time.UTC), AddMonths(jan, -2))
	assert.Equal(t, 13, MonthsBetween(jan, time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01", FormatMonth(jan))
	assert.Equal(t, "", FormatMonth(time.Time{}))
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, time.March, m.Month())

	m, err = ParseMonth("2024-03-17")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Day())

	_, err = ParseMonth("marzo")
	assert.Error(t, err)
}

func TestParseSegment(t *testing.T) {
	tests := []struct {
		in   string
		want Segment
		ok   bool
	}{
		{"histórico", SegmentHistorical, true},
		{"Proyeccion", SegmentProjection, true},
		{" backtest ", SegmentBacktest, true},
		{"future", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSegment(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
