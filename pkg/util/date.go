package util

import (
	"strconv"
	"strings"
	"time"
)

// ParseROCDate parses a Republic-of-China era date such as "113/05/20"
// (year 113 = 2024) as returned by exchange daily endpoints.
// Returns (t, true) on success.
func ParseROCDate(s string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year <= 0 {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year+1911, time.Month(month), day, 0, 0, 0, 0, taipei), true
}

// FormatROCMonth formats t as the "yyyymmdd" query parameter expected by
// exchange monthly endpoints (Gregorian year, first day of month).
func FormatROCMonth(t time.Time) string {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, taipei).Format("20060102")
}

// Taipei is the exchange's local time zone; trading days and quote
// timestamps are interpreted in it.
var taipei = mustLoadTaipei()

func mustLoadTaipei() *time.Location {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Taipei returns the exchange time zone.
func Taipei() *time.Location {
	return taipei
}
