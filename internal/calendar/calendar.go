// Package calendar converts schedule day offsets into calendar dates.
package calendar

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the wire format of project dates
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD project date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// DayToDate returns the date that lies day days after start. The fractional
// part of day is dropped. With businessDays set only Monday to Friday are
// counted and a weekend start rolls forward to the next Monday.
func DayToDate(start time.Time, day float64, businessDays bool) time.Time {
	n := int(math.Trunc(day))
	if !businessDays {
		return start.AddDate(0, 0, n)
	}
	return addBusinessDays(start, n)
}

// Format renders a date in DateLayout
func Format(t time.Time) string {
	return t.Format(DateLayout)
}

func addBusinessDays(start time.Time, n int) time.Time {
	d := start
	for isWeekend(d) {
		d = d.AddDate(0, 0, 1)
	}
	if n > 0 && isWeekend(start) {
		// Rolling forward already landed on the first business day
		n--
	}
	step := 1
	if n < 0 {
		step, n = -1, -n
	}
	for n > 0 {
		d = d.AddDate(0, 0, step)
		if !isWeekend(d) {
			n--
		}
	}
	return d
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
