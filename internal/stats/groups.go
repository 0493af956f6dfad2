package stats

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/registry"
)

// UnknownDomain is reported for tabs whose URL has no host.
const UnknownDomain = "unknown"

// DomainCount pairs a domain with the number of open tabs on it.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Domain returns the host of rawURL without a leading "www.".
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return UnknownDomain
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Domains counts tabs per domain, most tabs first.
func Domains(reg registry.Registry) []DomainCount {
	counts := map[string]int{}
	for _, r := range reg.Tabs {
		counts[Domain(r.URL)]++
	}

	out := make([]DomainCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DomainCount{Domain: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

// Duplicate is a URL open in more than one tab.
type Duplicate struct {
	URL    string `json:"url"`
	TabIDs []int  `json:"tabIds"`
}

// Duplicates lists URLs open in two or more tabs, ordered by URL.
func Duplicates(reg registry.Registry) []Duplicate {
	byURL := map[string][]int{}
	for _, r := range sortedRecords(reg) {
		if r.URL == "" {
			continue
		}
		byURL[r.URL] = append(byURL[r.URL], r.ID)
	}

	out := []Duplicate{}
	for u, ids := range byURL {
		if len(ids) > 1 {
			out = append(out, Duplicate{URL: u, TabIDs: ids})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Group is a suggested set of tabs to close or organize together.
type Group struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
	TabIDs []int  `json:"tabIds"`
}

// Minimum sizes for each kind of suggested group.
const (
	minTabsForGroups = 3
	minDomainGroup   = 2
	minOldGroup      = 2
	minMediumGroup   = 3
	minTodayGroup    = 3
)

// SuggestGroups proposes groups by shared domain and by age. Ages use any
// timestamp a record has, verified or not. Larger groups come first.
func SuggestGroups(reg registry.Registry, now time.Time) []Group {
	records := sortedRecords(reg)
	if len(records) < minTabsForGroups {
		return []Group{}
	}

	var groups []Group

	byDomain := map[string][]int{}
	for _, r := range records {
		d := Domain(r.URL)
		byDomain[d] = append(byDomain[d], r.ID)
	}
	for d, ids := range byDomain {
		if len(ids) >= minDomainGroup {
			groups = append(groups, Group{
				Name:   d + " tabs",
				Reason: fmt.Sprintf("Same website (%d tabs)", len(ids)),
				Count:  len(ids),
				TabIDs: ids,
			})
		}
	}

	var old, medium, today []int
	for _, r := range records {
		if r.CreatedAt == nil {
			continue
		}
		days := age.Estimate(*r.CreatedAt, now).Days()
		switch {
		case days < 0:
		case days > age.MediumMaxDays:
			old = append(old, r.ID)
		case days > age.RecentMaxDays:
			medium = append(medium, r.ID)
		case days == 0:
			today = append(today, r.ID)
		}
	}

	if len(old) >= minOldGroup {
		groups = append(groups, Group{
			Name:   "Old tabs (30+ days)",
			Reason: fmt.Sprintf("Tabs older than 30 days (%d tabs)", len(old)),
			Count:  len(old),
			TabIDs: old,
		})
	}
	if len(medium) >= minMediumGroup {
		groups = append(groups, Group{
			Name:   "Week-old tabs (8-30 days)",
			Reason: fmt.Sprintf("Tabs between 1 and 4 weeks old (%d tabs)", len(medium)),
			Count:  len(medium),
			TabIDs: medium,
		})
	}
	if len(today) >= minTodayGroup {
		groups = append(groups, Group{
			Name:   "Recent tabs (today)",
			Reason: fmt.Sprintf("Tabs opened today (%d tabs)", len(today)),
			Count:  len(today),
			TabIDs: today,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Name < groups[j].Name
	})
	if groups == nil {
		groups = []Group{}
	}
	return groups
}
