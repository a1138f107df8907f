package query

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// TimeLayout is the upstream instant format: UTC, whole seconds, literal Z.
const TimeLayout = "2006-01-02T15:04:05Z"

// DateRange is a resolved UTC window. End is never before Start.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) StartParam() string { return r.Start.Format(TimeLayout) }
func (r DateRange) EndParam() string   { return r.End.Format(TimeLayout) }

var (
	rangePattern = regexp.MustCompile(`(?i)^\s*(\d{4}-\d{2}-\d{2})\s+(?:to|-)\s+(\d{4}-\d{2}-\d{2})\s*$`)
	dayPattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthPattern = regexp.MustCompile(`^([A-Za-z]+)\s+(\d{4})$`)
)

var errEmptyDate = errors.New("empty date")

var monthNames = map[string]time.Month{}

func init() {
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		monthNames[name] = m
		monthNames[name[:3]] = m
	}
	monthNames["sept"] = time.September
}

// ParseDates turns a free-form "dates" value into a range. ok is false when
// nothing recognizable was found.
//
// Recognized, in order: "YYYY-MM-DD to YYYY-MM-DD" (or " - "), a single
// YYYY-MM-DD, "<Month> <Year>", then any other date the parser understands
// (its UTC day).
func ParseDates(s string) (DateRange, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateRange{}, false
	}

	if m := rangePattern.FindStringSubmatch(s); m != nil {
		a, errA := parseDay(m[1])
		b, errB := parseDay(m[2])
		if errA != nil || errB != nil {
			return DateRange{}, false
		}
		return dayRange(a, b), true
	}

	if dayPattern.MatchString(s) {
		d, err := parseDay(s)
		if err != nil {
			return DateRange{}, false
		}
		return wholeDay(d), true
	}

	if m := monthPattern.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[strings.ToLower(m[1])]; ok {
			year, _ := strconv.Atoi(m[2])
			start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
			end := start.AddDate(0, 1, 0).Add(-time.Second)
			return newRange(start, end), true
		}
	}

	t, err := parseInstant(s)
	if err != nil {
		return DateRange{}, false
	}
	return wholeDay(t), true
}

// ResolveDateRange reads the date filter from a query string.
// startDateTime/endDateTime win over from/to, which win over dates.
func ResolveDateRange(v url.Values) (DateRange, bool) {
	startRaw := strings.TrimSpace(v.Get("startDateTime"))
	endRaw := strings.TrimSpace(v.Get("endDateTime"))

	if startRaw != "" || endRaw != "" {
		start, startErr := parseInstant(startRaw)
		end, endErr := parseInstant(endRaw)
		switch {
		case startErr == nil && endErr == nil:
			return newRange(start, end), true
		case startErr == nil:
			return newRange(start, endOfDay(start)), true
		case endErr == nil:
			return newRange(startOfDay(end), end), true
		}
	}

	from := strings.TrimSpace(v.Get("from"))
	to := strings.TrimSpace(v.Get("to"))
	if from != "" || to != "" {
		if from == "" {
			from = to
		}
		if to == "" {
			to = from
		}
		a, errA := parseDay(from)
		b, errB := parseDay(to)
		if errA == nil && errB == nil {
			return dayRange(a, b), true
		}
		return DateRange{}, false
	}

	return ParseDates(v.Get("dates"))
}

func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

func parseInstant(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errEmptyDate
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func newRange(start, end time.Time) DateRange {
	start = start.UTC().Truncate(time.Second)
	end = end.UTC().Truncate(time.Second)
	if end.Before(start) {
		start, end = end, start
	}
	return DateRange{Start: start, End: end}
}

// dayRange covers the whole days from a through b, in either order.
func dayRange(a, b time.Time) DateRange {
	if b.Before(a) {
		a, b = b, a
	}
	return newRange(startOfDay(a), endOfDay(b))
}

func wholeDay(t time.Time) DateRange {
	return newRange(startOfDay(t), endOfDay(t))
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}
