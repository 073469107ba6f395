package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// civilDateOf converts a timestamp to a calendar date, falling back to
// today for the zero time.
func civilDateOf(t time.Time) civil.Date {
	if t.IsZero() {
		return civil.DateOf(time.Now())
	}
	return civil.DateOf(t)
}
