package registry

import "time"

// ExportData is the storage blob the extension exports and imports: the
// tabs, the daily history, and the peak.
type ExportData struct {
	TabData      ExportedTabs   `json:"tabData"`
	TabHistory   []HistoryEntry `json:"tabHistory"`
	PeakTabCount int            `json:"peakTabCount"`
}

// ExportedTabs is the registry part of ExportData.
type ExportedTabs struct {
	Tabs        []TabRecord `json:"tabs"`
	Count       int         `json:"count"`
	LastUpdated *time.Time  `json:"lastUpdated,omitempty"`
}

// Export converts s to the extension's storage shape.
func Export(s State) ExportData {
	out := ExportData{
		TabData: ExportedTabs{
			Tabs:  s.Clone().Records(),
			Count: s.Registry.Count,
		},
		TabHistory:   append([]HistoryEntry{}, s.History...),
		PeakTabCount: s.Peak,
	}
	if !s.Registry.LastUpdated.IsZero() {
		t := s.Registry.LastUpdated
		out.TabData.LastUpdated = &t
	}
	return out
}

// Import replaces the tabs and history of prev with data. Records are
// normalized like any other: timestamps after now become unknown and only
// observed timestamps stay verified. History entries are replayed in order
// so duplicate dates collapse and the retention limit applies. Identity and
// the install marker are kept from prev.
func Import(prev State, data ExportData, now time.Time) (State, error) {
	if err := checkNow(now); err != nil {
		return State{}, err
	}
	if data.PeakTabCount < 0 {
		return State{}, invalid("peakTabCount", data.PeakTabCount, ErrInvalidCount)
	}

	seen := make(map[int]struct{}, len(data.TabData.Tabs))
	for _, r := range data.TabData.Tabs {
		if err := checkTabID(r.ID); err != nil {
			return State{}, err
		}
		if _, dup := seen[r.ID]; dup {
			return State{}, invalid("id", r.ID, ErrDuplicateTabID)
		}
		seen[r.ID] = struct{}{}
	}
	for _, h := range data.TabHistory {
		if _, err := time.Parse(DateLayout, h.Date); err != nil {
			return State{}, invalid("history.date", h.Date, ErrInvalidTime)
		}
		if h.Count < 0 {
			return State{}, invalid("history.count", h.Count, ErrInvalidCount)
		}
	}

	next := prev.Clone()
	next.Registry.Tabs = make(map[int]TabRecord, len(data.TabData.Tabs))
	for _, r := range data.TabData.Tabs {
		next.Registry.Tabs[r.ID] = normalize(r.clone(), now)
	}

	next.History = []HistoryEntry{}
	for _, h := range data.TabHistory {
		next.History = UpsertHistory(next.History, h.Date, h.Count, HistoryLimit)
	}

	next.Peak = max(prev.Peak, data.PeakTabCount)
	touch(&next, now)
	return next, nil
}
