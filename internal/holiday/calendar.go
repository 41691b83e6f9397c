// Package holiday defines the holiday-calendar contract consumed by
// recurrence expansion, plus a file-backed implementation for deployments
// that ship their calendar as configuration.
package holiday

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// Calendar answers whether a calendar date is a holiday in a locale.
type Calendar interface {
	IsHoliday(date time.Time, locale string) bool
}

// None is a calendar with no holidays.
type None struct{}

// IsHoliday always reports false.
func (None) IsHoliday(time.Time, string) bool { return false }

// FileCalendar serves holiday lookups from a YAML file mapping locales to
// date lists:
//
//	sv-SE:
//	  - 2026-06-19
//	  - 2026-12-25
type FileCalendar struct {
	dates map[string]map[string]struct{}
}

// LoadFile parses a holiday calendar file.
func LoadFile(path string) (*FileCalendar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("holiday: read calendar: %w", err)
	}
	return Parse(raw)
}

// Parse builds a calendar from YAML content.
func Parse(raw []byte) (*FileCalendar, error) {
	var byLocale map[string][]string
	if err := yaml.Unmarshal(raw, &byLocale); err != nil {
		return nil, fmt.Errorf("holiday: parse calendar: %w", err)
	}

	dates := make(map[string]map[string]struct{}, len(byLocale))
	for locale, entries := range byLocale {
		set := make(map[string]struct{}, len(entries))
		for _, entry := range entries {
			date, err := routine.ParseDate(entry)
			if err != nil {
				return nil, fmt.Errorf("holiday: locale %s: %w", locale, err)
			}
			set[routine.FormatDate(date)] = struct{}{}
		}
		dates[locale] = set
	}
	return &FileCalendar{dates: dates}, nil
}

// IsHoliday reports whether the date is listed for the locale.
func (c *FileCalendar) IsHoliday(date time.Time, locale string) bool {
	if c == nil {
		return false
	}
	set, ok := c.dates[locale]
	if !ok {
		return false
	}
	_, ok = set[routine.FormatDate(date)]
	return ok
}
