package timeutil

import (
	"testing"
	"time"
)

func TestFixedOffset(t *testing.T) {
	cases := []struct {
		offsetMinutes int
		wantName      string
		wantSeconds   int
	}{
		{0, "UTC+00:00", 0},
		{60, "UTC+01:00", 3600},
		{-300, "UTC-05:00", -18000},
		{330, "UTC+05:30", 19800},
		{-570, "UTC-09:30", -34200},
	}
	for _, tc := range cases {
		loc := FixedOffset(tc.offsetMinutes)
		name, seconds := time.Now().In(loc).Zone()
		if name != tc.wantName {
			t.Errorf("FixedOffset(%d) name = %q, want %q", tc.offsetMinutes, name, tc.wantName)
		}
		if seconds != tc.wantSeconds {
			t.Errorf("FixedOffset(%d) offset = %d, want %d", tc.offsetMinutes, seconds, tc.wantSeconds)
		}
	}
}

func TestParseLocalDate(t *testing.T) {
	cases := []struct {
		value         string
		offsetMinutes int
		want          time.Time
	}{
		{"2026-03-10", 0, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"2026-03-10", 60, time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)},
		{"2026-03-10", -300, time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseLocalDate(tc.value, tc.offsetMinutes)
		if err != nil {
			t.Fatalf("ParseLocalDate(%q, %d): %v", tc.value, tc.offsetMinutes, err)
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseLocalDate(%q, %d) = %v, want %v", tc.value, tc.offsetMinutes, got, tc.want)
		}
	}
}

func TestParseLocalDateInvalid(t *testing.T) {
	for _, value := range []string{"", "2026-13-01", "10-03-2026", "not a date"} {
		if _, err := ParseLocalDate(value, 0); err == nil {
			t.Errorf("ParseLocalDate(%q) expected error", value)
		}
	}
}

func TestEndOfLocalDay(t *testing.T) {
	midnight, err := ParseLocalDate("2026-03-10", 60)
	if err != nil {
		t.Fatalf("ParseLocalDate: %v", err)
	}
	want := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	if got := EndOfLocalDay(midnight); !got.Equal(want) {
		t.Errorf("EndOfLocalDay = %v, want %v", got, want)
	}
}
