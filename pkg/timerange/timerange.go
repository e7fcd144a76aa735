package timerange

import (
	"errors"
	"regexp"
	"time"
)

var (
	ErrInvalidRange = errors.New("range start must not be after range end")

	ErrBadDate = errors.New("date must be in YYYY-MM-DD format")

	ErrBadTimeOfDay = errors.New("time must be in HH:MM format")
)

const dateLayout = "2006-01-02"

var timeOfDayRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Range is a closed start-end instant pair. Two ranges that merely touch at
// an endpoint do not overlap.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func New(start, end time.Time) (Range, error) {
	if start.After(end) {
		return Range{}, ErrInvalidRange
	}
	return Range{Start: start, End: end}, nil
}

// WholeDay spans from 00:00:00 of startDate to 23:59:59 of endDate.
func WholeDay(startDate, endDate time.Time) Range {
	y, m, d := startDate.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, startDate.Location())
	y, m, d = endDate.Date()
	end := time.Date(y, m, d, 23, 59, 59, 0, endDate.Location())
	return Range{Start: start, End: end}
}

// Overlaps uses strict inequalities on both bounds, so a booking that ends
// exactly when another starts is not a conflict.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

// ParseDate parses a strict YYYY-MM-DD date in the given location.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, ErrBadDate
	}
	return t, nil
}

// ParseTimeOfDay validates a 24-hour HH:MM string and returns its hour and
// minute components.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	if !timeOfDayRegex.MatchString(s) {
		return 0, 0, ErrBadTimeOfDay
	}
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	minute = int(s[3]-'0')*10 + int(s[4]-'0')
	return hour, minute, nil
}

// At combines a date with an HH:MM time of day.
func At(date time.Time, hour, minute int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, date.Location())
}
