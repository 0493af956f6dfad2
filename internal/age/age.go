// Package age maps tab creation timestamps to display buckets.
package age

import (
	"fmt"
	"math"
	"time"
)

// Bucket is one of the fixed age categories.
type Bucket string

const (
	Today   Bucket = "today"
	Recent  Bucket = "recent"
	Medium  Bucket = "medium"
	Old     Bucket = "old"
	Unknown Bucket = "unknown"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{Today, Recent, Medium, Old, Unknown}

// Upper bounds, in whole elapsed days, of the dated buckets.
const (
	RecentMaxDays = 7
	MediumMaxDays = 30
)

const day = 24 * time.Hour

// Classification is the result of classifying one timestamp.
type Classification struct {
	Bucket    Bucket  `json:"bucket"`
	AgeInDays float64 `json:"ageInDays"`
	Label     string  `json:"label"`
}

// Days returns the whole elapsed days, or -1 when the age is unknown.
func (c Classification) Days() int {
	if c.Bucket == Unknown {
		return -1
	}
	return int(math.Floor(c.AgeInDays))
}

// Classify buckets createdAt relative to now. A nil timestamp or an
// unverified one is always Unknown; use Estimate to bucket an unverified
// timestamp anyway.
func Classify(createdAt *time.Time, verified bool, now time.Time) Classification {
	if createdAt == nil || !verified {
		return unknown()
	}
	return Estimate(*createdAt, now)
}

// Estimate buckets t by elapsed time regardless of where it came from.
// Buckets use whole elapsed days: 0 is today, 1-7 recent, 8-30 medium, and
// anything older is old. A timestamp after now is Unknown.
func Estimate(t time.Time, now time.Time) Classification {
	if t.IsZero() || t.After(now) {
		return unknown()
	}

	ageInDays := float64(now.Sub(t)) / float64(day)
	days := int(math.Floor(ageInDays))

	var b Bucket
	switch {
	case days < 1:
		b = Today
	case days <= RecentMaxDays:
		b = Recent
	case days <= MediumMaxDays:
		b = Medium
	default:
		b = Old
	}

	return Classification{Bucket: b, AgeInDays: ageInDays, Label: Label(days)}
}

func unknown() Classification {
	return Classification{Bucket: Unknown, AgeInDays: 0, Label: "Unknown"}
}

// Label renders whole elapsed days the way the popup shows them.
func Label(days int) string {
	weeks := days / 7
	months := days / 30

	switch {
	case days < 0:
		return "Unknown"
	case days < 1:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days", days)
	case weeks < 4 || months < 1:
		return plural(weeks, "week")
	default:
		return plural(months, "month")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
