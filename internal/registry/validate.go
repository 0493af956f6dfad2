package registry

import (
	"sort"
	"time"
)

func checkNow(now time.Time) error {
	if now.IsZero() {
		return invalid("now", now, ErrInvalidTime)
	}
	return nil
}

func checkTabID(id int) error {
	if id < 0 {
		return invalid("id", id, ErrInvalidTabID)
	}
	return nil
}

// checkPrevious rejects a previous state that cannot have come from this
// package.
func checkPrevious(prev State) error {
	if prev.Registry.Count < 0 {
		return invalid("count", prev.Registry.Count, ErrInvalidCount)
	}
	if prev.Peak < 0 {
		return invalid("peakTabCount", prev.Peak, ErrInvalidCount)
	}
	for id := range prev.Registry.Tabs {
		if err := checkTabID(id); err != nil {
			return err
		}
	}
	return nil
}

// checkLive validates a browser snapshot.
func checkLive(live []LiveTab) error {
	seen := make(map[int]struct{}, len(live))
	for _, t := range live {
		if err := checkTabID(t.ID); err != nil {
			return err
		}
		if _, dup := seen[t.ID]; dup {
			return invalid("id", t.ID, ErrDuplicateTabID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

// normalize enforces the record invariants. Timestamps that are zero or
// after now are untrustworthy and become unknown.
func normalize(r TabRecord, now time.Time) TabRecord {
	if r.CreatedAt != nil && r.CreatedAt.After(now) {
		r.CreatedAt = nil
	}
	return Sanitize(r)
}

// Sanitize enforces the record invariants that do not depend on the clock.
// A zero CreatedAt is treated as unknown, an undated record is never
// verified, and the date source agrees with IsVerified.
func Sanitize(r TabRecord) TabRecord {
	if r.Title == "" {
		r.Title = DefaultTitle
	}
	if r.CreatedAt != nil && r.CreatedAt.IsZero() {
		r.CreatedAt = nil
	}

	switch {
	case r.CreatedAt == nil:
		r.IsVerified = false
		r.DateSource = SourceNone
	case r.IsVerified:
		r.DateSource = SourceObserved
	case r.DateSource == SourceObserved:
		r.DateSource = SourceNone
	}
	return r
}

func sortRecords(rs []TabRecord) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
}
