package services

import (
	"time"

	"github.com/malwarebo/condopay/models"
)

// Calendar is the service clock. Timestamps are UTC; "today" is the calendar
// date in the condominium's timezone.
type Calendar struct {
	now func() time.Time
	loc *time.Location
}

func CreateCalendar(loc *time.Location, now func() time.Time) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Calendar{now: now, loc: loc}
}

func (c *Calendar) Now() time.Time {
	return c.now().UTC()
}

func (c *Calendar) Today() models.Date {
	return models.DateOf(c.now(), c.loc)
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// DateOf is the calendar date of t in the condominium's timezone.
func (c *Calendar) DateOf(t time.Time) models.Date {
	return models.DateOf(t, c.loc)
}
