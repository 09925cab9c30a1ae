package domain

import (
	"fmt"
	"regexp"
	"time"
)

const dateLayout = "20060102"

var dateRe = regexp.MustCompile(`^\d{8}$`)

// ParseDate parses an 8-digit YYYYMMDD string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	if !dateRe.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYYMMDD", ErrInvalidDate, s)
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return t, nil
}

// FormatDate renders t as YYYYMMDD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
