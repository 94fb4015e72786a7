package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cron is a parsed 5-field cron expression. Each field is a bitmask of the
// values it allows.
type Cron struct {
	minute, hour, dom, month, dow uint64
	// Standard cron semantics: when both day fields are restricted a day
	// matches if either one does.
	domAny, dowAny bool
}

type cronField struct {
	name     string
	min, max int
	names    map[string]int
}

var (
	minuteField = cronField{name: "minute", min: 0, max: 59}
	hourField   = cronField{name: "hour", min: 0, max: 23}
	domField    = cronField{name: "day-of-month", min: 1, max: 31}
	monthField  = cronField{name: "month", min: 1, max: 12, names: map[string]int{
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	}}
	// 7 is accepted as an alias for Sunday.
	dowField = cronField{name: "day-of-week", min: 0, max: 7, names: map[string]int{
		"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
	}}
)

// ParseCron parses "minute hour day-of-month month day-of-week". Each field
// accepts *, n, n-m, names for months and weekdays, /step on * or a range,
// and comma-separated lists of those.
func ParseCron(expr string) (*Cron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	var c Cron
	var err error
	if c.minute, err = minuteField.parse(fields[0]); err != nil {
		return nil, err
	}
	if c.hour, err = hourField.parse(fields[1]); err != nil {
		return nil, err
	}
	if c.dom, err = domField.parse(fields[2]); err != nil {
		return nil, err
	}
	if c.month, err = monthField.parse(fields[3]); err != nil {
		return nil, err
	}
	if c.dow, err = dowField.parse(fields[4]); err != nil {
		return nil, err
	}
	if c.dow&(1<<7) != 0 {
		c.dow = c.dow&^(1<<7) | 1
	}
	c.domAny = fields[2] == "*"
	c.dowAny = fields[4] == "*"
	return &c, nil
}

// Matches reports whether t falls in a minute selected by the expression.
func (c *Cron) Matches(t time.Time) bool {
	return has(c.minute, t.Minute()) &&
		has(c.hour, t.Hour()) &&
		has(c.month, int(t.Month())) &&
		c.dayMatches(t)
}

// Next returns the first matching minute strictly after t. ok is false if
// nothing matches within five years, as for "0 0 31 2 *".
func (c *Cron) Next(t time.Time) (next time.Time, ok bool) {
	loc := t.Location()
	t = t.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(5, 0, 0)

	for t.Before(limit) {
		switch {
		case !has(c.month, int(t.Month())):
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
		case !c.dayMatches(t):
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
		case !has(c.hour, t.Hour()):
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
		case !has(c.minute, t.Minute()):
			t = t.Add(time.Minute)
		default:
			return t, true
		}
	}
	return time.Time{}, false
}

func (c *Cron) dayMatches(t time.Time) bool {
	dom := has(c.dom, t.Day())
	dow := has(c.dow, int(t.Weekday()))
	if c.domAny || c.dowAny {
		return dom && dow
	}
	return dom || dow
}

func has(mask uint64, v int) bool {
	return mask&(1<<uint(v)) != 0
}

func (f cronField) parse(s string) (uint64, error) {
	var mask uint64
	for _, part := range strings.Split(s, ",") {
		bits, err := f.parsePart(part)
		if err != nil {
			return 0, fmt.Errorf("%s field: %w", f.name, err)
		}
		mask |= bits
	}
	return mask, nil
}

func (f cronField) parsePart(part string) (uint64, error) {
	rng, stepStr, hasStep := strings.Cut(part, "/")
	step := 1
	if hasStep {
		n, err := strconv.Atoi(stepStr)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid step %q", stepStr)
		}
		step = n
	}

	lo, hi := f.min, f.max
	switch {
	case rng == "*":
	case strings.Contains(rng, "-"):
		a, b, _ := strings.Cut(rng, "-")
		var err error
		if lo, err = f.value(a); err != nil {
			return 0, err
		}
		if hi, err = f.value(b); err != nil {
			return 0, err
		}
		if lo > hi {
			return 0, fmt.Errorf("invalid range %q", rng)
		}
	default:
		if hasStep {
			return 0, fmt.Errorf("step needs * or a range, got %q", part)
		}
		v, err := f.value(rng)
		if err != nil {
			return 0, err
		}
		lo, hi = v, v
	}

	var mask uint64
	for v := lo; v <= hi; v += step {
		mask |= 1 << uint(v)
	}
	return mask, nil
}

func (f cronField) value(s string) (int, error) {
	if v, ok := f.names[strings.ToLower(s)]; ok {
		return v, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v < f.min || v > f.max {
		return 0, fmt.Errorf("value %d out of range %d-%d", v, f.min, f.max)
	}
	return v, nil
}
