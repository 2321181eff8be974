// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// periodLayout is the only externally visible identifier format.
const periodLayout = "2006-01"

// PeriodID identifies one calendar month, formatted as YYYY-MM.
type PeriodID string

// ParsePeriod validates and normalizes a YYYY-MM period identifier.
func ParsePeriod(s string) (PeriodID, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid period %q: expected YYYY-MM", s)
	}
	return PeriodID(t.Format(periodLayout)), nil
}

// PeriodOf returns the period containing the given date.
func PeriodOf(t time.Time) PeriodID {
	return PeriodID(t.Format(periodLayout))
}

// String implements fmt.Stringer.
func (p PeriodID) String() string {
	return string(p)
}

// Start returns the first instant of the period in UTC.
func (p PeriodID) Start() time.Time {
	t, err := time.Parse(periodLayout, string(p))
	if err != nil {
		return time.Time{}
	}
	return t
}

// End returns the first instant after the period.
func (p PeriodID) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Contains reports whether t falls within the period.
func (p PeriodID) Contains(t time.Time) bool {
	return PeriodOf(t) == p
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
