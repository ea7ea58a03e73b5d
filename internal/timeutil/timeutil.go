// Package timeutil is the single place where client timezone offsets are
// turned into instants. History filtering takes day boundaries in the
// viewer's local time; doing the offset arithmetic anywhere else invites
// off-by-one bugs.
package timeutil

import (
	"fmt"
	"time"
)

// FixedOffset returns a location at a fixed offset east of UTC, in
// minutes. Offsets west of UTC are negative.
func FixedOffset(offsetMinutes int) *time.Location {
	sign := "+"
	minutes := offsetMinutes
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	name := fmt.Sprintf("UTC%s%02d:%02d", sign, minutes/60, minutes%60)
	return time.FixedZone(name, offsetMinutes*60)
}

// ParseLocalDate interprets a YYYY-MM-DD date as midnight in the given
// offset and returns the corresponding UTC instant.
func ParseLocalDate(value string, offsetMinutes int) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", value, FixedOffset(offsetMinutes))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse local date: %w", err)
	}
	return t.UTC(), nil
}

// EndOfLocalDay returns the last instant (exclusive upper bound) of the
// local day that starts at the given local midnight.
func EndOfLocalDay(localMidnightUTC time.Time) time.Time {
	return localMidnightUTC.Add(24 * time.Hour)
}
