package app

import (
	"time"

	"habits/internal/domain"
)

// Clock supplies the current instant and the zone in which "today" is
// decided. The zero value uses time.Now and time.Local.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Today returns the current calendar day in the clock's location.
func (c Clock) Today() domain.Day {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return domain.DayOf(c.now().In(loc))
}
