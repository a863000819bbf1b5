// Package system provides the wall clock used for cutoffs and schedules.
package system

import "time"

// Clock implements harvest.Clock in a fixed location. The daily trigger and
// the default cutoff are both read in that location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock in loc; nil means the process local zone.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.Local
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the clock's location.
func (c *Clock) Location() *time.Location {
	return c.loc
}
