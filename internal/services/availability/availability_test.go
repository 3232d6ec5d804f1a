package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/channel-paywall/internal/lib/civil"
)

const developerID = 409552299

var defaultConfig = Config{
	StartDay:      26,
	EndDay:        27,
	ReminderDay:   25,
	ReminderHour:  18,
	BypassUserIDs: []int64{developerID},
}

func calculatorAt(t *testing.T, now time.Time) (*Calculator, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	zone := civil.NewZone(loc, func() time.Time { return now })
	return New(defaultConfig, zone), loc
}

func TestIsAvailable_WindowBoundaries(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"last second before window", time.Date(2024, 5, 25, 23, 59, 59, 0, loc), false},
		{"window opens", time.Date(2024, 5, 26, 0, 0, 0, 0, loc), true},
		{"middle of window", time.Date(2024, 5, 27, 12, 0, 0, 0, loc), true},
		{"last second of window", time.Date(2024, 5, 27, 23, 59, 59, 0, loc), true},
		{"window closed", time.Date(2024, 5, 28, 0, 0, 0, 0, loc), false},
		{"utc evening already 26th in moscow", time.Date(2024, 5, 25, 21, 0, 0, 0, time.UTC), true},
		{"utc 26th but 28th in moscow", time.Date(2024, 5, 27, 21, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := calculatorAt(t, tt.now)
			assert.Equal(t, tt.want, c.IsAvailable(1))
		})
	}
}

func TestIsAvailable_BypassIdentity(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	c, _ := calculatorAt(t, time.Date(2024, 5, 10, 12, 0, 0, 0, loc))

	assert.True(t, c.IsAvailable(developerID))
	assert.False(t, c.IsAvailable(developerID+1))
}

func TestNextWindowStart(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"early in month", time.Date(2024, 2, 3, 10, 0, 0, 0, loc), time.Date(2024, 2, 26, 0, 0, 0, 0, loc)},
		{"day 28 goes to next month", time.Date(2024, 2, 28, 10, 0, 0, 0, loc), time.Date(2024, 3, 26, 0, 0, 0, 0, loc)},
		{"inside window goes to next month", time.Date(2024, 2, 26, 10, 0, 0, 0, loc), time.Date(2024, 3, 26, 0, 0, 0, 0, loc)},
		{"december rolls to january", time.Date(2024, 12, 28, 10, 0, 0, 0, loc), time.Date(2025, 1, 26, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := calculatorAt(t, tt.now)
			got := c.NextWindowStart()
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestNextReminderAt(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before 25th", time.Date(2024, 4, 20, 10, 0, 0, 0, loc), time.Date(2024, 4, 25, 18, 0, 0, 0, loc)},
		{"25th morning", time.Date(2024, 4, 25, 10, 0, 0, 0, loc), time.Date(2024, 4, 25, 18, 0, 0, 0, loc)},
		{"25th evening", time.Date(2024, 4, 25, 18, 30, 0, 0, loc), time.Date(2024, 5, 25, 18, 0, 0, 0, loc)},
		{"december after reminder", time.Date(2024, 12, 29, 0, 0, 0, 0, loc), time.Date(2025, 1, 25, 18, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := calculatorAt(t, tt.now)
			got := c.NextReminderAt()
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestIsCloseToOpening(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"25th 17:59", time.Date(2024, 4, 25, 17, 59, 0, 0, loc), false},
		{"25th 18:00", time.Date(2024, 4, 25, 18, 0, 0, 0, loc), true},
		{"25th 23:59", time.Date(2024, 4, 25, 23, 59, 0, 0, loc), true},
		{"26th 00:00", time.Date(2024, 4, 26, 0, 0, 0, 0, loc), false},
		{"24th 20:00", time.Date(2024, 4, 24, 20, 0, 0, 0, loc), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := calculatorAt(t, tt.now)
			assert.Equal(t, tt.want, c.IsCloseToOpening())
		})
	}
}

func TestTimeUntilOpening(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	tests := []struct {
		name        string
		now         time.Time
		wantHours   int
		wantMinutes int
	}{
		{"evening before opening", time.Date(2024, 4, 25, 18, 30, 0, 0, loc), 5, 30},
		{"one minute before", time.Date(2024, 4, 25, 23, 59, 0, 0, loc), 0, 1},
		{"partial minute truncated", time.Date(2024, 4, 25, 23, 59, 30, 0, loc), 0, 0},
		{"at opening counts to next month", time.Date(2024, 4, 26, 0, 0, 0, 0, loc), 30 * 24, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := calculatorAt(t, tt.now)
			h, m := c.TimeUntilOpening()
			assert.Equal(t, tt.wantHours, h)
			assert.Equal(t, tt.wantMinutes, m)
		})
	}
}
