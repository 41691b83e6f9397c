package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

func date(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := routine.ParseDate(value)
	if err != nil {
		t.Fatalf("failed to parse date %q: %v", value, err)
	}
	return parsed
}

func formatAll(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, routine.FormatDate(d))
	}
	return out
}

func assertDates(t *testing.T, got []time.Time, want ...string) {
	t.Helper()
	formatted := formatAll(got)
	if len(formatted) != len(want) {
		t.Fatalf("got %v, want %v", formatted, want)
	}
	for i := range want {
		if formatted[i] != want[i] {
			t.Fatalf("got %v, want %v", formatted, want)
		}
	}
}

func TestExpand_Weekdays(t *testing.T) {
	t.Parallel()

	// 2026-03-02 is a Monday, 2026-03-08 a Sunday.
	got, err := Expand(date(t, "2026-03-02"), date(t, "2026-03-08"), Weekdays{}, nil)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	assertDates(t, got, "2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05", "2026-03-06")
}

func TestExpand_DailyIsInclusive(t *testing.T) {
	t.Parallel()

	got, err := Expand(date(t, "2026-03-02"), date(t, "2026-03-04"), Daily{}, nil)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	assertDates(t, got, "2026-03-02", "2026-03-03", "2026-03-04")
}

func TestExpand_SingleDayRange(t *testing.T) {
	t.Parallel()

	got, err := Expand(date(t, "2026-03-02"), date(t, "2026-03-02"), Daily{}, nil)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	assertDates(t, got, "2026-03-02")
}

func TestExpand_Weekends(t *testing.T) {
	t.Parallel()

	got, err := Expand(date(t, "2026-03-02"), date(t, "2026-03-08"), Weekends{}, nil)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	assertDates(t, got, "2026-03-07", "2026-03-08")
}

func TestExpand_HolidaysUnionsWeekendsAndCalendar(t *testing.T) {
	t.Parallel()

	// Treat Wednesday 2026-03-04 as a holiday.
	isHoliday := func(d time.Time) bool { return routine.FormatDate(d) == "2026-03-04" }

	got, err := Expand(date(t, "2026-03-02"), date(t, "2026-03-08"), Holidays{}, isHoliday)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	assertDates(t, got, "2026-03-04", "2026-03-07", "2026-03-08")
}

func TestExpand_CustomHolidayOverlapProducesNoDuplicates(t *testing.T) {
	t.Parallel()

	// The holiday falls on a selected Monday; the date must appear once.
	rule := Custom{Days: []time.Weekday{time.Monday, time.Wednesday}, IncludeHolidays: true}
	isHoliday := func(d time.Time) bool { return routine.FormatDate(d) == "2026-03-02" }

	got, err := Expand(date(t, "2026-03-02"), date(t, "2026-03-08"), rule, isHoliday)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	assertDates(t, got, "2026-03-02", "2026-03-04")
}

func TestExpand_CustomHolidayOutsideDaySetQualifies(t *testing.T) {
	t.Parallel()

	rule := Custom{Days: []time.Weekday{time.Monday}, IncludeHolidays: true}
	isHoliday := func(d time.Time) bool { return routine.FormatDate(d) == "2026-03-05" }

	got, err := Expand(date(t, "2026-03-02"), date(t, "2026-03-08"), rule, isHoliday)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	assertDates(t, got, "2026-03-02", "2026-03-05")
}

func TestExpand_CustomWithoutHolidaysIgnoresCalendar(t *testing.T) {
	t.Parallel()

	rule := Custom{Days: []time.Weekday{time.Monday}}
	isHoliday := func(time.Time) bool { return true }

	got, err := Expand(date(t, "2026-03-02"), date(t, "2026-03-08"), rule, isHoliday)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	assertDates(t, got, "2026-03-02")
}

func TestExpand_InvalidRange(t *testing.T) {
	t.Parallel()

	if _, err := Expand(date(t, "2026-03-08"), date(t, "2026-03-02"), Daily{}, nil); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestExpand_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()

	// Monday through Friday only; a weekends rule qualifies nothing.
	got, err := Expand(date(t, "2026-03-02"), date(t, "2026-03-06"), Weekends{}, nil)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty expansion, got %v", formatAll(got))
	}
}

func TestRuleFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pattern Pattern
		want    Pattern
	}{
		{PatternDaily, PatternDaily},
		{PatternWeekdays, PatternWeekdays},
		{PatternWeekends, PatternWeekends},
		{PatternHolidays, PatternHolidays},
		{PatternCustom, PatternCustom},
	}
	for _, tc := range cases {
		rule, err := RuleFor(tc.pattern, []time.Weekday{time.Monday}, true)
		if err != nil {
			t.Fatalf("RuleFor(%q) returned error: %v", tc.pattern, err)
		}
		if rule.Pattern() != tc.want {
			t.Fatalf("RuleFor(%q).Pattern() = %q", tc.pattern, rule.Pattern())
		}
	}

	if _, err := RuleFor(Pattern("fortnightly"), nil, false); !errors.Is(err, ErrUnknownRule) {
		t.Fatalf("expected ErrUnknownRule, got %v", err)
	}
}

func TestRuleFor_CustomCopiesDaySet(t *testing.T) {
	t.Parallel()

	days := []time.Weekday{time.Monday}
	rule, err := RuleFor(PatternCustom, days, false)
	if err != nil {
		t.Fatalf("RuleFor returned error: %v", err)
	}
	days[0] = time.Friday

	custom, ok := rule.(Custom)
	if !ok {
		t.Fatalf("expected Custom rule, got %T", rule)
	}
	if custom.Days[0] != time.Monday {
		t.Fatal("rule shares the caller's day slice")
	}
}
