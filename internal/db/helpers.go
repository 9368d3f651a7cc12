package db

import "time"

// nilIfEmpty maps an empty string to SQL NULL.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfZeroTime maps Go's zero time to SQL NULL so COALESCE defaults apply.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
