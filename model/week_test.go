package model

import (
	"testing"
	"time"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "monday stays anchored",
			in:   time.Date(2026, 7, 27, 14, 30, 0, 0, time.UTC),
			want: time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "midweek rolls back to monday",
			in:   time.Date(2026, 7, 29, 8, 0, 0, 0, time.UTC),
			want: time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday belongs to the prior monday's week",
			in:   time.Date(2026, 8, 2, 23, 59, 0, 0, time.UTC),
			want: time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "non-UTC input is normalised to UTC first",
			in:   time.Date(2026, 7, 29, 1, 0, 0, 0, time.FixedZone("X", -5*3600)),
			want: time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekStart(tt.in); !got.Equal(tt.want) {
				t.Errorf("WeekStart(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWeekEnd(t *testing.T) {
	start := time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC)
	want := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	if got := WeekEnd(start); !got.Equal(want) {
		t.Errorf("WeekEnd(%v) = %v, want %v", start, got, want)
	}
}

func TestMostRecentCompletedWeek(t *testing.T) {
	// 2026-07-31 is a Friday in the week starting 2026-07-27; the most
	// recently completed week is the one before that.
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	want := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	if got := MostRecentCompletedWeek(now); !got.Equal(want) {
		t.Errorf("MostRecentCompletedWeek(%v) = %v, want %v", now, got, want)
	}
}
