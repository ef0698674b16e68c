package codec

import (
	"time"

	"github.com/tazhate/icalbridge/internal/store"
)

// EncodeDueDate splits t, viewed in loc, into date components. Seconds are
// dropped.
func EncodeDueDate(t time.Time, loc *time.Location) *store.DateComponents {
	t = t.In(loc)
	return &store.DateComponents{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
	}
}

// DecodeDueDate rebuilds the instant the components name in loc
func DecodeDueDate(c *store.DateComponents, loc *time.Location) *time.Time {
	if c == nil {
		return nil
	}
	t := time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, c.Minute, 0, 0, loc)
	return &t
}
