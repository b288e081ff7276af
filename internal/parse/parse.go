// Package parse converts spreadsheet-style cell values into typed Go values.
// Every function is total: malformed input yields the documented zero value,
// never a panic, NaN, or error.
package parse

import (
	"strconv"
	"strings"
	"time"
)

// Money parses a currency cell such as "$1,234.56" into 1234.56.
// Returns 0 when the cell is empty or malformed.
func Money(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// Percent parses "12.5%" into 12.5. The result is the numeric percentage,
// not a 0-1 fraction. Returns 0 when malformed.
func Percent(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Bool parses a yes/no cell. Only a case-insensitive "yes" is true.
func Bool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "yes")
}

// Int parses an integer cell, truncating any fractional part. Returns 0 when
// malformed.
func Int(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 3:04 PM",
	"2006-01-02 03:04 PM",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Date parses a spreadsheet date cell. Accepts "YYYY-MM-DD" and
// "YYYY-MM-DD h:mm AM/PM" first, then falls back to generic layouts.
// Returns nil when unparseable.
func Date(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
