package dvr

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseTime reads a free-form date-time. Values without an offset are taken
// as wall-clock time in loc; values with one are converted to loc.
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty date-time")
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := dateparse.ParseIn(v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date-time %q: %w", v, err)
	}
	return t.In(loc), nil
}

// offsetCheckZone is far from any real zone, so a value parses to the same
// instant in UTC and here only when it carries its own offset.
var offsetCheckZone = time.FixedZone("offset-check", 13*60*60+45*60)

// ParseTimeZone is like ParseTime, except that a value with an explicit
// offset keeps it, in a zone named after the offset such as "+02:00".
// Start and end times read this way can be told apart by zone.
func ParseTimeZone(value string, loc *time.Location) (time.Time, error) {
	t, err := ParseTime(value, loc)
	if err != nil {
		return time.Time{}, err
	}
	v := strings.TrimSpace(value)
	inUTC, err := dateparse.ParseIn(v, time.UTC)
	if err != nil {
		return t, nil
	}
	inCheck, err := dateparse.ParseIn(v, offsetCheckZone)
	if err != nil || !inUTC.Equal(inCheck) {
		return t, nil
	}
	_, offset := inUTC.Zone()
	return t.In(time.FixedZone(inUTC.Format("-07:00"), offset)), nil
}
