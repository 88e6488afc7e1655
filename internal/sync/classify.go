package sync

import (
	"regexp"
	"time"
)

var logDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// LogDate extracts the rotation date embedded in a log file name, e.g.
// "error/mysql-error-2024-03-05.log". The second return is false when the
// name carries no date or the matched digits do not form a real calendar
// date.
func LogDate(name string) (time.Time, bool) {
	m := logDatePattern.FindString(name)
	if m == "" {
		return time.Time{}, false
	}
	d, err := time.Parse("2006-01-02", m)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// IsActive reports whether the file is presumed to still be appended to
// by the source. A name with no parseable rotation date is treated as
// active: re-transferring it costs bandwidth, while wrongly treating it
// as rotated would silently drop appended content. A name dated today is
// the current day's log and is likewise still growing.
//
// The classification is purely name-based and never consults size or
// modification time.
func IsActive(name string, today time.Time) bool {
	d, ok := LogDate(name)
	if !ok {
		return true
	}
	return sameDay(d, today)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
