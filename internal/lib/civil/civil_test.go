package civil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moscow(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	return loc
}

func TestZone_NowUsesLocation(t *testing.T) {
	loc := moscow(t)
	utc := time.Date(2024, 6, 25, 15, 30, 0, 0, time.UTC)
	z := NewZone(loc, func() time.Time { return utc })

	now := z.Now()
	assert.Equal(t, 18, now.Hour())
	assert.Equal(t, 25, now.Day())
	assert.Equal(t, loc, now.Location())
}

func TestZone_MonthlyAt(t *testing.T) {
	loc := moscow(t)
	z := NewZone(loc, nil)

	tests := []struct {
		name   string
		now    time.Time
		day    int
		hour   int
		minute int
		want   time.Time
	}{
		{
			name: "before target this month",
			now:  time.Date(2024, 3, 10, 9, 0, 0, 0, loc),
			day:  26,
			want: time.Date(2024, 3, 26, 0, 0, 0, 0, loc),
		},
		{
			name: "exactly at target rolls to next month",
			now:  time.Date(2024, 3, 26, 0, 0, 0, 0, loc),
			day:  26,
			want: time.Date(2024, 4, 26, 0, 0, 0, 0, loc),
		},
		{
			name: "after target rolls to next month",
			now:  time.Date(2024, 3, 28, 9, 0, 0, 0, loc),
			day:  26,
			want: time.Date(2024, 4, 26, 0, 0, 0, 0, loc),
		},
		{
			name: "december rolls into january",
			now:  time.Date(2024, 12, 28, 9, 0, 0, 0, loc),
			day:  26,
			want: time.Date(2025, 1, 26, 0, 0, 0, 0, loc),
		},
		{
			name: "reminder one minute before 18:00",
			now:  time.Date(2024, 2, 25, 17, 59, 0, 0, loc),
			day:  25,
			hour: 18,
			want: time.Date(2024, 2, 25, 18, 0, 0, 0, loc),
		},
		{
			name: "reminder at 18:00 moves to next month",
			now:  time.Date(2024, 2, 25, 18, 0, 0, 0, loc),
			day:  25,
			hour: 18,
			want: time.Date(2024, 3, 25, 18, 0, 0, 0, loc),
		},
		{
			name: "input in utc is converted first",
			now:  time.Date(2024, 3, 25, 21, 30, 0, 0, time.UTC),
			day:  26,
			want: time.Date(2024, 4, 26, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := z.MonthlyAt(tt.now, tt.day, tt.hour, tt.minute)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestZone_Format(t *testing.T) {
	z := NewZone(moscow(t), nil)
	got := z.Format(time.Date(2024, 7, 1, 21, 5, 0, 0, time.UTC))
	assert.Equal(t, "02.07.2024 00:05", got)
}

func TestLoadZone_Unknown(t *testing.T) {
	z, err := LoadZone("Mars/Olympus")
	assert.Error(t, err)
	assert.Nil(t, z)
}
