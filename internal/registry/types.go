// Package registry holds the tab registry model and the rules for merging
// live browser tabs into it.
//
// Every operation here is a pure transform: it takes the previous State by
// value, never mutates it, and either returns a complete new State or a
// *ValidationError. Persisting the result is the caller's job.
package registry

import (
	"fmt"
	"time"
)

// DefaultTitle is applied once, when a record is built, to tabs that
// report no title.
const DefaultTitle = "New Tab"

// HistoryLimit is the number of daily history entries retained.
const HistoryLimit = 30

// DateLayout is the calendar-date format of history entries.
const DateLayout = "2006-01-02"

// DateSource records where a record's CreatedAt came from.
type DateSource string

const (
	SourceNone      DateSource = ""
	SourceObserved  DateSource = "observed"
	SourceURL       DateSource = "url"
	SourceHeuristic DateSource = "heuristic"
)

// TabRecord is one tracked browser tab.
type TabRecord struct {
	ID         int        `json:"id"`
	URL        string     `json:"url"`
	Title      string     `json:"title"`
	Favicon    string     `json:"favIconUrl,omitempty"`
	CreatedAt  *time.Time `json:"createdAt"`
	IsVerified bool       `json:"isVerified"`
	DateSource DateSource `json:"dateSource,omitempty"`
}

// LiveTab is a tab as reported by the browser.
type LiveTab struct {
	ID      int    `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Favicon string `json:"favIconUrl,omitempty"`
}

// TabChange carries the fields of an update event. Empty fields are left
// unchanged.
type TabChange struct {
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Favicon string `json:"favIconUrl,omitempty"`
}

// Registry is the set of currently tracked tabs.
type Registry struct {
	Tabs        map[int]TabRecord `json:"tabs"`
	Count       int               `json:"count"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// HistoryEntry is the tab count observed on one calendar day.
type HistoryEntry struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// State is everything persisted for one registry: the tabs, the daily
// history, and the peak tab count.
type State struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Registry    Registry       `json:"registry"`
	History     []HistoryEntry `json:"history"`
	Peak        int            `json:"peakTabCount"`
	InstalledAt *time.Time     `json:"installedAt,omitempty"`
}

// NewState returns an empty state.
func NewState(id, name string) State {
	return State{
		ID:       id,
		Name:     name,
		Registry: Registry{Tabs: map[int]TabRecord{}},
		History:  []HistoryEntry{},
	}
}

// Empty reports whether no tabs are tracked.
func (s State) Empty() bool {
	return len(s.Registry.Tabs) == 0
}

// Records returns the tracked records ordered by tab id.
func (s State) Records() []TabRecord {
	out := make([]TabRecord, 0, len(s.Registry.Tabs))
	for _, r := range s.Registry.Tabs {
		out = append(out, r)
	}
	sortRecords(out)
	return out
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.Registry.Tabs = make(map[int]TabRecord, len(s.Registry.Tabs))
	for id, r := range s.Registry.Tabs {
		c.Registry.Tabs[id] = r.clone()
	}
	c.History = append([]HistoryEntry{}, s.History...)
	if s.InstalledAt != nil {
		t := *s.InstalledAt
		c.InstalledAt = &t
	}
	return c
}

func (r TabRecord) clone() TabRecord {
	if r.CreatedAt != nil {
		t := *r.CreatedAt
		r.CreatedAt = &t
	}
	return r
}

// CaptureStrategy selects how install-time capture dates pre-existing tabs.
type CaptureStrategy string

const (
	CaptureUnknown   CaptureStrategy = "unknown"
	CaptureHeuristic CaptureStrategy = "heuristic_distribution"
	CaptureURL       CaptureStrategy = "url_inference"
)

// ParseCaptureStrategy validates s.
func ParseCaptureStrategy(s string) (CaptureStrategy, error) {
	switch c := CaptureStrategy(s); c {
	case CaptureUnknown, CaptureHeuristic, CaptureURL:
		return c, nil
	}
	return "", invalid("strategy", s, ErrInvalidStrategy)
}

// UnseenMode tells a full reconciliation what an unseen tab id means.
type UnseenMode string

const (
	// UnseenNew treats the tab as opened just now; its timestamp is verified.
	UnseenNew UnseenMode = "new"
	// UnseenPreexisting treats the tab as older than this registry; it is
	// dated by URL inference at best and never verified.
	UnseenPreexisting UnseenMode = "preexisting"
)

// ParseUnseenMode validates s.
func ParseUnseenMode(s string) (UnseenMode, error) {
	switch m := UnseenMode(s); m {
	case UnseenNew, UnseenPreexisting:
		return m, nil
	}
	return "", invalid("mode", s, ErrInvalidMode)
}

// BadgeDisplay selects what the toolbar badge shows.
type BadgeDisplay string

const (
	BadgeCount BadgeDisplay = "count"
	BadgeAge   BadgeDisplay = "age"
	BadgeNone  BadgeDisplay = "none"
)

// ParseBadgeDisplay validates s.
func ParseBadgeDisplay(s string) (BadgeDisplay, error) {
	switch b := BadgeDisplay(s); b {
	case BadgeCount, BadgeAge, BadgeNone:
		return b, nil
	}
	return "", invalid("badgeDisplay", s, ErrInvalidSetting)
}

// Settings is the externally configurable blob stored next to a registry.
type Settings struct {
	BadgeDisplay        BadgeDisplay    `json:"badgeDisplay"`
	CaptureStrategy     CaptureStrategy `json:"captureStrategy"`
	UnseenTabs          UnseenMode      `json:"unseenTabs"`
	OldTabThresholdDays int             `json:"oldTabThreshold"`
	NotifyOldTabs       bool            `json:"notifyOldTabs"`
	TabGoal             int             `json:"tabGoal"`
}

// DefaultSettings mirrors what the extension writes on install.
func DefaultSettings() Settings {
	return Settings{
		BadgeDisplay:        BadgeCount,
		CaptureStrategy:     CaptureURL,
		UnseenTabs:          UnseenNew,
		OldTabThresholdDays: 30,
		NotifyOldTabs:       true,
		TabGoal:             20,
	}
}

// Validate checks every enum and range.
func (s Settings) Validate() error {
	if _, err := ParseBadgeDisplay(string(s.BadgeDisplay)); err != nil {
		return err
	}
	if _, err := ParseCaptureStrategy(string(s.CaptureStrategy)); err != nil {
		return err
	}
	if _, err := ParseUnseenMode(string(s.UnseenTabs)); err != nil {
		return err
	}
	if s.OldTabThresholdDays < 1 {
		return invalid("oldTabThreshold", s.OldTabThresholdDays, ErrInvalidSetting)
	}
	if s.TabGoal < 0 {
		return invalid("tabGoal", s.TabGoal, ErrInvalidSetting)
	}
	return nil
}

func (s Settings) String() string {
	return fmt.Sprintf("badge=%s capture=%s unseen=%s threshold=%dd notify=%t goal=%d",
		s.BadgeDisplay, s.CaptureStrategy, s.UnseenTabs, s.OldTabThresholdDays, s.NotifyOldTabs, s.TabGoal)
}
