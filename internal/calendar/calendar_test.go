package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayToDate_CalendarDays(t *testing.T) {
	start, err := ParseDate("2025-01-15")
	require.NoError(t, err)

	assert.Equal(t, "2025-01-15", Format(DayToDate(start, 0, false)))
	assert.Equal(t, "2025-01-29", Format(DayToDate(start, 14, false)))
	assert.Equal(t, "2025-01-29", Format(DayToDate(start, 14.9, false)))
	assert.Equal(t, "2025-03-08", Format(DayToDate(start, 52, false)))
}

func TestDayToDate_BusinessDays(t *testing.T) {
	// 2025-01-15 is a Wednesday
	start, err := ParseDate("2025-01-15")
	require.NoError(t, err)

	tests := []struct {
		day  float64
		want string
	}{
		{0, "2025-01-15"},
		{1, "2025-01-16"},
		{2, "2025-01-17"},
		{3, "2025-01-20"}, // skips the weekend
		{5, "2025-01-22"},
		{10, "2025-01-29"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(DayToDate(start, tt.day, true)), "day %v", tt.day)
	}
}

func TestDayToDate_BusinessDaysWeekendStart(t *testing.T) {
	// 2025-02-01 is a Saturday
	start, err := ParseDate("2025-02-01")
	require.NoError(t, err)

	assert.Equal(t, "2025-02-03", Format(DayToDate(start, 0, true)))
	assert.Equal(t, "2025-02-03", Format(DayToDate(start, 1, true)))
	assert.Equal(t, "2025-02-04", Format(DayToDate(start, 2, true)))
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("15/01/2025")
	assert.Error(t, err)
}
