package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order; day-first wins over month-first for ambiguous input.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// spreadsheetEpoch is day zero for serial dates exported from spreadsheets.
var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate parses a calendar date in any supported layout and truncates it to midnight UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return StartOfDay(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		return SerialDate(serial)
	}
	return time.Time{}, fmt.Errorf("parse date %q: unsupported layout", value)
}

// SerialDate converts a spreadsheet day serial into a date.
func SerialDate(serial float64) (time.Time, error) {
	if serial <= 0 || serial > 2958465 || math.IsNaN(serial) {
		return time.Time{}, fmt.Errorf("serial date %v out of range", serial)
	}
	return spreadsheetEpoch.AddDate(0, 0, int(serial)), nil
}

// DateValue accepts the loosely typed values found in source records and returns nil when
// nothing usable is present.
func DateValue(v any) *time.Time {
	var (
		t   time.Time
		err error
	)
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		t = StartOfDay(val)
	case *time.Time:
		if val == nil {
			return nil
		}
		t = StartOfDay(*val)
	case float64:
		t, err = SerialDate(val)
	case int:
		t, err = SerialDate(float64(val))
	case int64:
		t, err = SerialDate(float64(val))
	case string:
		t, err = ParseDate(val)
	default:
		t, err = ParseDate(fmt.Sprint(val))
	}
	if err != nil {
		return nil
	}
	return &t
}

// StartOfDay drops the clock component and moves t to UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a nullable date as YYYY-MM-DD, or "" for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
