package recurrence

import (
	"errors"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// Pattern identifies a supported repeat pattern.
type Pattern string

const (
	// PatternDaily qualifies every date in the range.
	PatternDaily Pattern = "daily"
	// PatternWeekdays qualifies Monday through Friday.
	PatternWeekdays Pattern = "weekdays"
	// PatternWeekends qualifies Saturday and Sunday.
	PatternWeekends Pattern = "weekends"
	// PatternHolidays qualifies weekends plus holiday-calendar dates.
	PatternHolidays Pattern = "holidays"
	// PatternCustom qualifies a caller-selected weekday set, optionally
	// unioned with holiday-calendar dates.
	PatternCustom Pattern = "custom"
)

// ValidPattern reports whether the pattern is a known value.
func ValidPattern(p Pattern) bool {
	switch p {
	case PatternDaily, PatternWeekdays, PatternWeekends, PatternHolidays, PatternCustom:
		return true
	default:
		return false
	}
}

// Rule is the sealed variant set of repeat patterns. Only the custom variant
// carries a weekday selection, so a day set on a fixed pattern is
// unrepresentable.
type Rule interface {
	Pattern() Pattern
}

// Daily repeats on every date in the range.
type Daily struct{}

// Weekdays repeats Monday through Friday.
type Weekdays struct{}

// Weekends repeats on Saturday and Sunday.
type Weekends struct{}

// Holidays repeats on weekends and on holiday-calendar dates.
type Holidays struct{}

// Custom repeats on the selected weekdays, unioned with holiday-calendar
// dates when IncludeHolidays is set. A holiday falling outside the weekday
// selection still qualifies.
type Custom struct {
	Days            []time.Weekday
	IncludeHolidays bool
}

func (Daily) Pattern() Pattern    { return PatternDaily }
func (Weekdays) Pattern() Pattern { return PatternWeekdays }
func (Weekends) Pattern() Pattern { return PatternWeekends }
func (Holidays) Pattern() Pattern { return PatternHolidays }
func (Custom) Pattern() Pattern   { return PatternCustom }

// HolidayFunc answers whether a normalized date is a holiday. Expansion never
// touches persistence; holiday knowledge arrives through this contract.
type HolidayFunc func(date time.Time) bool

// ErrInvalidRange indicates the end date precedes the start date. Callers are
// expected to validate ranges before expansion; this is a precondition
// violation, not a handled case.
var ErrInvalidRange = errors.New("recurrence: end date before start date")

// ErrUnknownRule indicates the rule variant is not supported.
var ErrUnknownRule = errors.New("recurrence: unknown rule")

// Expand produces the ascending, duplicate-free sequence of qualifying dates
// in the inclusive [start, end] range. The result is bounded by the range; an
// empty result is returned as-is and it is the caller's job to treat zero
// qualifying dates as a validation failure.
func Expand(start, end time.Time, rule Rule, isHoliday HolidayFunc) ([]time.Time, error) {
	start = routine.DateOf(start)
	end = routine.DateOf(end)
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	if isHoliday == nil {
		isHoliday = func(time.Time) bool { return false }
	}

	var dates []time.Time
	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		include, err := qualifies(rule, current, isHoliday)
		if err != nil {
			return nil, err
		}
		if include {
			dates = append(dates, current)
		}
	}
	return dates, nil
}

func qualifies(rule Rule, date time.Time, isHoliday HolidayFunc) (bool, error) {
	switch r := rule.(type) {
	case Daily:
		return true, nil
	case Weekdays:
		return !isWeekend(date.Weekday()), nil
	case Weekends:
		return isWeekend(date.Weekday()), nil
	case Holidays:
		return isWeekend(date.Weekday()) || isHoliday(date), nil
	case Custom:
		for _, day := range r.Days {
			if date.Weekday() == day {
				return true, nil
			}
		}
		if r.IncludeHolidays && isHoliday(date) {
			return true, nil
		}
		return false, nil
	default:
		return false, ErrUnknownRule
	}
}

func isWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

// RuleFor builds the rule variant for a stored pattern. Days and
// includeHolidays are only consulted for the custom pattern.
func RuleFor(pattern Pattern, days []time.Weekday, includeHolidays bool) (Rule, error) {
	switch pattern {
	case PatternDaily:
		return Daily{}, nil
	case PatternWeekdays:
		return Weekdays{}, nil
	case PatternWeekends:
		return Weekends{}, nil
	case PatternHolidays:
		return Holidays{}, nil
	case PatternCustom:
		copied := make([]time.Weekday, len(days))
		copy(copied, days)
		return Custom{Days: copied, IncludeHolidays: includeHolidays}, nil
	default:
		return nil, ErrUnknownRule
	}
}
