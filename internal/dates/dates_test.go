package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	d, err := Parse("2024-10-01")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: 10, Day: 1}, d)
	assert.Equal(t, "2024-10-01", d.String())

	_, err = Parse("2024-13-01")
	assert.Error(t, err)
	_, err = Parse("not-a-date")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"2024-01-01", "2024-02-29", "1999-12-31", "2025-09-15"} {
		d, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, d.String())
	}
}

func TestAddDaysAndDaysBetween(t *testing.T) {
	d := MustParse("2024-02-27")
	assert.Equal(t, "2024-03-01", d.AddDays(3).String()) // leap year
	assert.Equal(t, "2023-03-01", MustParse("2023-02-27").AddDays(2).String())
	assert.Equal(t, "2024-02-17", d.AddDays(-10).String())

	assert.Equal(t, 3, DaysBetween(d, MustParse("2024-03-01")))
	assert.Equal(t, -3, DaysBetween(MustParse("2024-03-01"), d))
	assert.Equal(t, 366, DaysBetween(MustParse("2024-01-01"), MustParse("2025-01-01")))
}

func TestCompare(t *testing.T) {
	a := MustParse("2024-05-01")
	b := MustParse("2024-05-02")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(MustParse("2024-05-01")))
	assert.False(t, a.Equal(b))
}

func TestIsLeap(t *testing.T) {
	assert.True(t, IsLeap(2024))
	assert.True(t, IsLeap(2000))
	assert.False(t, IsLeap(2023))
	assert.False(t, IsLeap(1900))
}

func TestAnniversaryRollover(t *testing.T) {
	feb29 := MustParse("1992-02-29")

	// Non-leap target year rolls to Feb 28.
	assert.Equal(t, "2023-02-28", Anniversary(feb29, 2023).String())
	// Leap target year keeps Feb 29.
	assert.Equal(t, "2024-02-29", Anniversary(feb29, 2024).String())
	// Ordinary anchors are untouched.
	assert.Equal(t, "2023-12-01", Anniversary(MustParse("1980-12-01"), 2023).String())
}

func TestNextAnniversary(t *testing.T) {
	birthday := MustParse("1980-03-15")

	// Anniversary still ahead this year.
	assert.Equal(t, "2024-03-15", NextAnniversary(MustParse("2024-02-20"), birthday).String())
	// Anniversary today counts.
	assert.Equal(t, "2024-03-15", NextAnniversary(MustParse("2024-03-15"), birthday).String())
	// Anniversary already passed rolls to next year.
	assert.Equal(t, "2025-03-15", NextAnniversary(MustParse("2024-03-16"), birthday).String())

	// Feb-29 anchor: rolls to Feb 28 in a non-leap year; once that date has
	// passed, the next leap year keeps Feb 29.
	feb29 := MustParse("1992-02-29")
	assert.Equal(t, "2023-02-28", NextAnniversary(MustParse("2023-01-01"), feb29).String())
	assert.Equal(t, "2024-02-29", NextAnniversary(MustParse("2023-03-01"), feb29).String())
}

func TestMonthStart(t *testing.T) {
	assert.Equal(t, "2024-03-01", MustParse("2024-03-15").MonthStart().String())
}

func TestSendAt(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	at, err := SendAt(MustParse("2024-10-01"), "08:30:00", loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-10-01T08:30:00", at.Format("2006-01-02T15:04:05"))

	_, err = SendAt(MustParse("2024-10-01"), "8:30", loc)
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	clock := FixedClock{Date: MustParse("2024-10-01")}
	assert.Equal(t, "2024-10-01", clock.Today().String())
}
