package utils

import "time"

// NormalizeDate truncates t to midnight UTC of its calendar day.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateToUnix converts a date to Unix seconds at midnight UTC.
func DateToUnix(t time.Time) int64 {
	return NormalizeDate(t).Unix()
}

// UnixToDate converts stored Unix seconds back to a UTC time.
func UnixToDate(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}

// ParseDate parses a YYYY-MM-DD string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// MustParseDate is ParseDate that panics on malformed input. Intended for tests and constants.
func MustParseDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatDate renders t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
