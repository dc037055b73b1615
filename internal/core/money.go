// Package core provides the finance domain: users, transactions and the
// aggregations computed over them.
//
// This file contains the amount and date parsing used by request decoding.
package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a decimal string to a float64.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted, as is a
// leading sign. Thousands separators are not.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("-12,5")  -> -12.5, nil
//	ParseAmount("1.2.3")  -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts an RFC 3339 timestamp, a datetime-local value or a plain
// calendar date. Values without a zone are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
