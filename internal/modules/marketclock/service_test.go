package marketclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nyTime(t *testing.T, year int, month time.Month, day, hour, min, sec int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(year, month, day, hour, min, sec, 0, loc)
}

func TestStatus_SessionBoundaries(t *testing.T) {
	service := NewService()

	// 2025-06-02 is a Monday, 2025-06-06 a Friday.
	testCases := []struct {
		name     string
		now      time.Time
		isOpen   bool
		status   SessionStatus
		nextOpen *time.Time
	}{
		{
			name:     "one second before the bell is pre-market",
			now:      nyTime(t, 2025, time.June, 2, 9, 29, 59),
			status:   StatusPreMarket,
			nextOpen: utcPtr(nyTime(t, 2025, time.June, 2, 9, 30, 0)),
		},
		{
			name:   "the opening bell itself is open",
			now:    nyTime(t, 2025, time.June, 2, 9, 30, 0),
			isOpen: true,
			status: StatusOpen,
		},
		{
			name:   "last second of the session is open",
			now:    nyTime(t, 2025, time.June, 2, 15, 59, 59),
			isOpen: true,
			status: StatusOpen,
		},
		{
			name:     "weekday close rolls into after-hours",
			now:      nyTime(t, 2025, time.June, 2, 16, 0, 0),
			status:   StatusAfterHours,
			nextOpen: utcPtr(nyTime(t, 2025, time.June, 3, 9, 30, 0)),
		},
		{
			name:     "late evening is closed until tomorrow",
			now:      nyTime(t, 2025, time.June, 2, 20, 0, 0),
			status:   StatusClosed,
			nextOpen: utcPtr(nyTime(t, 2025, time.June, 3, 9, 30, 0)),
		},
		{
			name:     "overnight before pre-market waits for today",
			now:      nyTime(t, 2025, time.June, 2, 3, 0, 0),
			status:   StatusClosed,
			nextOpen: utcPtr(nyTime(t, 2025, time.June, 2, 9, 30, 0)),
		},
		{
			name:     "early pre-market boundary",
			now:      nyTime(t, 2025, time.June, 2, 4, 0, 0),
			status:   StatusPreMarket,
			nextOpen: utcPtr(nyTime(t, 2025, time.June, 2, 9, 30, 0)),
		},
		{
			name:     "Friday close ends the trading week",
			now:      nyTime(t, 2025, time.June, 6, 16, 0, 0),
			status:   StatusClosed,
			nextOpen: utcPtr(nyTime(t, 2025, time.June, 9, 9, 30, 0)),
		},
		{
			name:     "Saturday noon points at Monday",
			now:      nyTime(t, 2025, time.June, 7, 12, 0, 0),
			status:   StatusClosed,
			nextOpen: utcPtr(nyTime(t, 2025, time.June, 9, 9, 30, 0)),
		},
		{
			name:     "Sunday points at Monday",
			now:      nyTime(t, 2025, time.June, 8, 23, 0, 0),
			status:   StatusClosed,
			nextOpen: utcPtr(nyTime(t, 2025, time.June, 9, 9, 30, 0)),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			state := service.Status(tc.now)
			assert.Equal(t, tc.isOpen, state.IsOpen)
			assert.Equal(t, tc.status, state.Status)
			if tc.nextOpen != nil {
				require.NotNil(t, state.NextOpen)
				assert.True(t, state.NextOpen.Equal(*tc.nextOpen),
					"next_open: got %s, want %s", state.NextOpen, tc.nextOpen)
			}
		})
	}
}

func TestStatus_NextCloseDuringSession(t *testing.T) {
	service := NewService()

	state := service.Status(nyTime(t, 2025, time.June, 2, 11, 0, 0))
	require.True(t, state.IsOpen)
	require.NotNil(t, state.NextClose)
	assert.True(t, state.NextClose.Equal(nyTime(t, 2025, time.June, 2, 16, 0, 0)))
	assert.Nil(t, state.NextOpen)
}

func TestStatus_ResultsAreUTC(t *testing.T) {
	service := NewService()

	state := service.Status(nyTime(t, 2025, time.June, 2, 11, 0, 0))
	require.NotNil(t, state.NextClose)
	_, offset := state.NextClose.Zone()
	assert.Equal(t, 0, offset)
}
