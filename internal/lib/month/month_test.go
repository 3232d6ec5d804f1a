package month

import (
	"testing"
	"time"
)

func TestAdd_TableTests(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{
			name:   "day preserved",
			start:  time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC),
		},
		{
			name:   "year rollover",
			start:  time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "jan 31 in leap year normalizes into march",
			start:  time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "jan 31 in common year normalizes into march",
			start:  time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "multi month",
			start:  time.Date(2024, 11, 20, 8, 30, 0, 0, time.UTC),
			months: 6,
			want:   time.Date(2025, 5, 20, 8, 30, 0, 0, time.UTC),
		},
		{
			name:   "zero months",
			start:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			months: 0,
			want:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Add(tt.start, tt.months)
			if !got.Equal(tt.want) {
				t.Errorf("Add(%v, %d) = %v, want %v", tt.start, tt.months, got, tt.want)
			}
		})
	}
}

func TestExtend_BaseIsLaterOfEndAndNow(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		end    time.Time
		months int
		want   time.Time
	}{
		{
			name:   "early renewal counts from current end",
			end:    now.AddDate(0, 0, 5),
			months: 1,
			want:   time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:   "lapsed window counts from now",
			end:    now.AddDate(0, 0, -3),
			months: 3,
			want:   time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC),
		},
		{
			name:   "end equal to now",
			end:    now,
			months: 1,
			want:   time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extend(tt.end, now, tt.months)
			if !got.Equal(tt.want) {
				t.Errorf("Extend(%v, %v, %d) = %v, want %v", tt.end, now, tt.months, got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		d           time.Duration
		wantHours   int
		wantMinutes int
	}{
		{d: 5*time.Hour + 59*time.Minute + 59*time.Second, wantHours: 5, wantMinutes: 59},
		{d: 30 * time.Second, wantHours: 0, wantMinutes: 0},
		{d: 48 * time.Hour, wantHours: 48, wantMinutes: 0},
		{d: -time.Minute, wantHours: 0, wantMinutes: 0},
	}

	for _, tt := range tests {
		h, m := Split(tt.d)
		if h != tt.wantHours || m != tt.wantMinutes {
			t.Errorf("Split(%v) = %d:%d, want %d:%d", tt.d, h, m, tt.wantHours, tt.wantMinutes)
		}
	}
}
