package registry

import "time"

// UpsertHistory records count for date. An existing entry for date is
// overwritten in place; otherwise a new entry is appended and the oldest
// inserted entries are evicted until at most limit remain. h is not
// modified.
func UpsertHistory(h []HistoryEntry, date string, count, limit int) []HistoryEntry {
	out := append(make([]HistoryEntry, 0, len(h)+1), h...)

	found := false
	for i := range out {
		if out[i].Date == date {
			out[i].Count = count
			found = true
			break
		}
	}
	if !found {
		out = append(out, HistoryEntry{Date: date, Count: count})
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// observe applies the bookkeeping shared by every full pass: count,
// lastUpdated, peak, and today's history entry.
func observe(s *State, now time.Time) {
	touch(s, now)
	s.History = UpsertHistory(s.History, now.UTC().Format(DateLayout), s.Registry.Count, HistoryLimit)
}

// touch updates count, lastUpdated, and peak after any mutation.
func touch(s *State, now time.Time) {
	s.Registry.Count = len(s.Registry.Tabs)
	s.Registry.LastUpdated = now
	if s.Registry.Count > s.Peak {
		s.Peak = s.Registry.Count
	}
}
