// Package urldate recovers a best-effort publication date from a URL.
//
// It is only a fallback for tabs whose creation was never observed. A match
// says when the page was published, not when the tab was opened, so callers
// must never treat the result as verified.
package urldate

import (
	"regexp"
	"strconv"
	"time"
)

// MinYear is the earliest year the generic scan accepts.
const MinYear = 2000

var (
	slashPattern     = regexp.MustCompile(`/(\d{4})/(\d{1,2})/(\d{1,2})/`)
	dashPattern      = regexp.MustCompile(`[/?].*?(\d{4})-(\d{1,2})-(\d{1,2})`)
	publishedPattern = regexp.MustCompile(`(?i)published[=/](\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	blogPattern      = regexp.MustCompile(`(?i)/blog/(\d{4})/(\d{1,2})/(\d{1,2})`)

	genericPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4})/(\d{2})/(\d{2})`),
		regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`),
	}

	// Video ids are opaque and often contain digit runs that look like dates.
	videoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)youtube\.com/(watch|shorts|embed|live)`),
		regexp.MustCompile(`(?i)youtu\.be/`),
		regexp.MustCompile(`(?i)vimeo\.com/(video/)?\d+`),
	}
)

// Extract returns the first valid calendar date found in rawURL, at UTC
// midnight. Patterns are tried in order and the first candidate that is a
// real date not after now wins. ok is false when nothing matches.
func Extract(rawURL string, now time.Time) (date time.Time, ok bool) {
	if rawURL == "" || IsVideoURL(rawURL) {
		return time.Time{}, false
	}

	for _, re := range []*regexp.Regexp{slashPattern, dashPattern, publishedPattern, blogPattern} {
		if d, ok := matchDate(re, rawURL, now, false); ok {
			return d, true
		}
	}

	for _, re := range genericPatterns {
		if d, ok := matchDate(re, rawURL, now, true); ok {
			return d, true
		}
	}

	return time.Time{}, false
}

// IsVideoURL reports whether rawURL points at a known video host page.
func IsVideoURL(rawURL string) bool {
	for _, re := range videoPatterns {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// matchDate applies re once and validates the captured year, month, day.
func matchDate(re *regexp.Regexp, s string, now time.Time, boundYear bool) (time.Time, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) != 4 {
		return time.Time{}, false
	}

	year, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[3])
	if err != nil {
		return time.Time{}, false
	}

	if boundYear && (year < MinYear || year > now.Year()) {
		return time.Time{}, false
	}

	return validDate(year, month, day, now)
}

// validDate rejects dates that time.Date would silently normalize
// (2024-02-30) and dates after now.
func validDate(year, month, day int, now time.Time) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	if d.After(now) {
		return time.Time{}, false
	}
	return d, true
}
