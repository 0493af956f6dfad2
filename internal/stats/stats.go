// Package stats derives read-only views from a registry snapshot.
//
// Nothing here fails: an empty registry yields zero counts, no oldest tab,
// and full progress.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/urldate"
)

// BucketCounts is the number of tabs in each age bucket.
type BucketCounts struct {
	Today   int `json:"today"`
	Recent  int `json:"recent"`
	Medium  int `json:"medium"`
	Old     int `json:"old"`
	Unknown int `json:"unknown"`
}

// Total returns the sum over all buckets.
func (b BucketCounts) Total() int {
	return b.Today + b.Recent + b.Medium + b.Old + b.Unknown
}

// Get returns the count for one bucket.
func (b BucketCounts) Get(k age.Bucket) int {
	switch k {
	case age.Today:
		return b.Today
	case age.Recent:
		return b.Recent
	case age.Medium:
		return b.Medium
	case age.Old:
		return b.Old
	default:
		return b.Unknown
	}
}

func (b *BucketCounts) add(k age.Bucket) {
	switch k {
	case age.Today:
		b.Today++
	case age.Recent:
		b.Recent++
	case age.Medium:
		b.Medium++
	case age.Old:
		b.Old++
	default:
		b.Unknown++
	}
}

// CountBuckets classifies every record. Unverified records are Unknown, so
// the counts always sum to the number of tracked tabs.
func CountBuckets(reg registry.Registry, now time.Time) BucketCounts {
	var b BucketCounts
	for _, r := range reg.Tabs {
		b.add(age.Classify(r.CreatedAt, r.IsVerified, now).Bucket)
	}
	return b
}

// EstimateBuckets is CountBuckets except that unverified records with a
// timestamp are bucketed by it. Only undated records are Unknown.
func EstimateBuckets(reg registry.Registry, now time.Time) BucketCounts {
	var b BucketCounts
	for _, r := range reg.Tabs {
		if r.CreatedAt == nil {
			b.add(age.Unknown)
			continue
		}
		b.add(age.Estimate(*r.CreatedAt, now).Bucket)
	}
	return b
}

// OldestTab is a record together with the date its age was computed from.
type OldestTab struct {
	Record   registry.TabRecord `json:"tab"`
	Date     time.Time          `json:"date"`
	Age      age.Classification `json:"age"`
	Inferred bool               `json:"inferred"`
}

// Oldest returns the verified record with the greatest age. When no tab is
// verified and includeInferred is set, it falls back to the oldest
// URL-inferred date. Equal ages resolve to the lower tab id.
func Oldest(reg registry.Registry, now time.Time, includeInferred bool) (OldestTab, bool) {
	records := sortedRecords(reg)

	if o, ok := oldestOf(records, now, verifiedDate); ok {
		return o, true
	}
	if !includeInferred {
		return OldestTab{}, false
	}
	return oldestOf(records, now, inferredDate)
}

type dateFunc func(registry.TabRecord, time.Time) (time.Time, bool)

func oldestOf(records []registry.TabRecord, now time.Time, date dateFunc) (OldestTab, bool) {
	var (
		best  OldestTab
		found bool
	)
	for _, r := range records {
		d, ok := date(r, now)
		if !ok || d.After(now) {
			continue
		}
		if !found || d.Before(best.Date) {
			best = OldestTab{Record: r, Date: d}
			found = true
		}
	}
	if !found {
		return OldestTab{}, false
	}
	best.Inferred = !best.Record.IsVerified
	best.Age = age.Estimate(best.Date, now)
	return best, true
}

func verifiedDate(r registry.TabRecord, _ time.Time) (time.Time, bool) {
	if !r.IsVerified || r.CreatedAt == nil || r.CreatedAt.IsZero() {
		return time.Time{}, false
	}
	return *r.CreatedAt, true
}

// inferredDate is the URL-derived date of an unverified record, either the
// one stored at capture time or one extracted now.
func inferredDate(r registry.TabRecord, now time.Time) (time.Time, bool) {
	if r.IsVerified {
		return time.Time{}, false
	}
	if r.DateSource == registry.SourceURL && r.CreatedAt != nil && !r.CreatedAt.IsZero() {
		return *r.CreatedAt, true
	}
	return urldate.Extract(r.URL, now)
}

// bestDate prefers a verified timestamp and falls back to the URL.
func bestDate(r registry.TabRecord, now time.Time) (time.Time, bool) {
	if d, ok := verifiedDate(r, now); ok {
		return d, true
	}
	return inferredDate(r, now)
}

// HistorySeries returns up to maxPoints of the most recently inserted
// entries, in date order. maxPoints <= 0 returns them all.
func HistorySeries(h []registry.HistoryEntry, maxPoints int) []registry.HistoryEntry {
	start := 0
	if maxPoints > 0 && len(h) > maxPoints {
		start = len(h) - maxPoints
	}
	out := append([]registry.HistoryEntry{}, h[start:]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// ProgressToward is how far, in percent, the tab count has come down from
// its peak. A zero peak counts as done.
func ProgressToward(peak, current int) int {
	if peak == 0 {
		return 100
	}
	p := math.Round(100 * float64(peak-current) / float64(peak))
	return int(math.Max(0, math.Min(100, p)))
}

// OldTabs is what the notification collaborator needs to build its alert.
type OldTabs struct {
	Count         int        `json:"count"`
	ThresholdDays int        `json:"thresholdDays"`
	Oldest        *OldestTab `json:"oldest,omitempty"`
}

// OldTabReport counts tabs at least thresholdDays old, dated by their
// verified timestamp or else their URL, and picks the oldest of them.
func OldTabReport(reg registry.Registry, thresholdDays int, now time.Time) OldTabs {
	report := OldTabs{ThresholdDays: thresholdDays}

	var old []registry.TabRecord
	for _, r := range sortedRecords(reg) {
		d, ok := bestDate(r, now)
		if !ok {
			continue
		}
		if age.Estimate(d, now).Days() >= thresholdDays {
			old = append(old, r)
		}
	}

	report.Count = len(old)
	if o, ok := oldestOf(old, now, bestDate); ok {
		report.Oldest = &o
	}
	return report
}

// Summary bundles the views shown on the popup and in status output.
type Summary struct {
	Count       int          `json:"count"`
	Peak        int          `json:"peakTabCount"`
	Progress    int          `json:"progress"`
	Buckets     BucketCounts `json:"buckets"`
	Estimated   BucketCounts `json:"estimated"`
	Oldest      *OldestTab   `json:"oldest,omitempty"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

// Summarize computes a Summary for s.
func Summarize(s registry.State, now time.Time) Summary {
	sum := Summary{
		Count:       s.Registry.Count,
		Peak:        s.Peak,
		Progress:    ProgressToward(s.Peak, s.Registry.Count),
		Buckets:     CountBuckets(s.Registry, now),
		Estimated:   EstimateBuckets(s.Registry, now),
		LastUpdated: s.Registry.LastUpdated,
	}
	if o, ok := Oldest(s.Registry, now, true); ok {
		sum.Oldest = &o
	}
	return sum
}

func sortedRecords(reg registry.Registry) []registry.TabRecord {
	out := make([]registry.TabRecord, 0, len(reg.Tabs))
	for _, r := range reg.Tabs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
