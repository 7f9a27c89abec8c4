// Package library streams candidate photo files out of a local directory
// tree, in a best-effort chronological order derived from filenames.
package library

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Filename pattern families, tried in priority order. Keys are prefixed with
// a family tag so names from different families still sort sensibly against
// each other: date-bearing keys (tag 1) land between plain numeric IDs
// (tag 0) and unparseable names (tag 2).
var (
	// Service exports combine a numeric ID with a full date-time, e.g.
	// "photo_735927_2012-07-24_19-20-31.jpg". Date-time orders first, the
	// ID breaks ties between same-second exports.
	serviceExportPattern = regexp.MustCompile(`^[A-Za-z]*[_-]?(\d+)[_-](\d{4})-(\d{2})-(\d{2})[_ ](\d{2})-(\d{2})-(\d{2})`)

	// Camera counters, e.g. "IMG_0042.jpg", "DSC01234.jpg".
	cameraPattern = regexp.MustCompile(`^([A-Za-z]{1,5})[_-]?(\d+)`)

	// Bare numeric ID, e.g. "735927.jpg".
	bareNumericPattern = regexp.MustCompile(`^(\d+)$`)

	// Loose date-time somewhere in the name, e.g. "20230101_120000.jpg" or
	// "2023-01-01 12.00.00.jpg". Time components default to zero.
	looseDatePattern = regexp.MustCompile(`((?:19|20)\d{2})[-_.]?(\d{2})[-_.]?(\d{2})(?:[-_ T]?(\d{2})[-_.:]?(\d{2})[-_.:]?(\d{2}))?`)
)

// SortKey derives a total-order comparable key from a filename, used to
// approximate capture chronology when real metadata is absent. Best-effort
// ordering for human review, not a correctness guarantee.
func SortKey(filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))

	if m := serviceExportPattern.FindStringSubmatch(name); m != nil {
		// tag 1: date-time digits first, zero-padded ID as tiebreaker.
		return fmt.Sprintf("1%s%s%s%s%s%s_%020s", m[2], m[3], m[4], m[5], m[6], m[7], m[1])
	}

	if m := cameraPattern.FindStringSubmatch(name); m != nil {
		return fmt.Sprintf("0%020s", m[2])
	}

	if m := bareNumericPattern.FindStringSubmatch(name); m != nil {
		return fmt.Sprintf("0%020s", m[1])
	}

	if m := looseDatePattern.FindStringSubmatch(name); m != nil {
		hour, minute, second := m[4], m[5], m[6]
		if hour == "" {
			hour, minute, second = "00", "00", "00"
		}
		return fmt.Sprintf("1%s%s%s%s%s%s_%020s", m[1], m[2], m[3], hour, minute, second, "")
	}

	// Unparseable names sort last, alphabetically.
	return "2" + strings.ToLower(filename)
}

// DateFromFilename extracts a capture date from date-bearing filename
// patterns, nil when the name carries no plausible date. Used to seed a
// photo's stored date; it never overwrites a date already known.
func DateFromFilename(filename string) *time.Time {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))

	var y, mo, d, h, mi, s string
	if m := serviceExportPattern.FindStringSubmatch(name); m != nil {
		y, mo, d, h, mi, s = m[2], m[3], m[4], m[5], m[6], m[7]
	} else if m := looseDatePattern.FindStringSubmatch(name); m != nil {
		y, mo, d, h, mi, s = m[1], m[2], m[3], m[4], m[5], m[6]
		if h == "" {
			h, mi, s = "00", "00", "00"
		}
	} else {
		return nil
	}

	t, err := time.Parse("2006-01-02 15:04:05", fmt.Sprintf("%s-%s-%s %s:%s:%s", y, mo, d, h, mi, s))
	if err != nil {
		return nil
	}
	return &t
}
