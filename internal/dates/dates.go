// Package dates parses the partial dates used in the site's YAML files.
package dates

import (
	"strings"
	"time"
)

var layouts = []string{"2006-01-02", "2006-01", "2006"}

// Parse accepts YYYY-MM-DD, YYYY-MM and YYYY. Missing components default to
// the first month/day. Any other input returns the zero time and false.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Ptr is Parse returning nil for the null date.
func Ptr(s string) *time.Time {
	t, ok := Parse(s)
	if !ok {
		return nil
	}
	return &t
}
