package dates

import "time"

// Clock supplies the scheduler's notion of "today". All current-date reads
// go through a Clock so runs are reproducible under test.
type Clock interface {
	Today() Date
	Now() time.Time
}

// ZoneClock reads the wall clock in a fixed business timezone.
type ZoneClock struct {
	Loc *time.Location
}

// NewZoneClock builds a clock for the named IANA timezone.
func NewZoneClock(tz string) (*ZoneClock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &ZoneClock{Loc: loc}, nil
}

func (c *ZoneClock) Now() time.Time {
	return time.Now().In(c.Loc)
}

func (c *ZoneClock) Today() Date {
	return FromTime(c.Now())
}

// FixedClock always reports the same date. Used in tests and when a run is
// invoked with an explicit today override.
type FixedClock struct {
	Date Date
}

func (c FixedClock) Today() Date { return c.Date }

func (c FixedClock) Now() time.Time { return c.Date.Time() }
