package registry

import (
	"math/rand"
	"time"

	"github.com/runnerr0/tabage/internal/urldate"
)

const day = 24 * time.Hour

// Rand is the random source used by the heuristic capture strategy.
// *rand.Rand satisfies it.
type Rand interface {
	Int63n(n int64) int64
}

// Reconcile rebuilds the registry from a full browser snapshot.
//
// Tabs already tracked keep CreatedAt, IsVerified, and DateSource; their
// URL, title, and favicon are refreshed from live unless live reports an
// empty value. Tabs no longer live are dropped. What an unseen id means is
// decided by mode. Count, LastUpdated, Peak, and today's history entry are
// updated as part of the same pass.
func Reconcile(prev State, live []LiveTab, now time.Time, mode UnseenMode) (State, error) {
	if err := checkNow(now); err != nil {
		return State{}, err
	}
	if _, err := ParseUnseenMode(string(mode)); err != nil {
		return State{}, err
	}
	if err := checkPrevious(prev); err != nil {
		return State{}, err
	}
	if err := checkLive(live); err != nil {
		return State{}, err
	}

	next := prev.Clone()
	next.Registry.Tabs = make(map[int]TabRecord, len(live))

	for _, t := range live {
		if old, ok := prev.Registry.Tabs[t.ID]; ok {
			next.Registry.Tabs[t.ID] = normalize(refresh(old.clone(), t), now)
			continue
		}

		var r TabRecord
		switch mode {
		case UnseenNew:
			r = observed(t, now)
		case UnseenPreexisting:
			r = inferred(t, now)
		}
		next.Registry.Tabs[t.ID] = normalize(r, now)
	}

	observe(&next, now)
	return next, nil
}

// CaptureInitial seeds an empty registry from the tabs that were open
// before tracking began. None of the resulting timestamps is verified; the
// strategy decides which best-effort date each tab gets. rng is only used
// by CaptureHeuristic and may be nil, in which case a source seeded from
// now is used.
func CaptureInitial(prev State, live []LiveTab, now time.Time, strategy CaptureStrategy, rng Rand) (State, error) {
	if err := checkNow(now); err != nil {
		return State{}, err
	}
	if _, err := ParseCaptureStrategy(string(strategy)); err != nil {
		return State{}, err
	}
	if err := checkPrevious(prev); err != nil {
		return State{}, err
	}
	if !prev.Empty() {
		return State{}, invalid("tabs", len(prev.Registry.Tabs), ErrNotEmpty)
	}
	if err := checkLive(live); err != nil {
		return State{}, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}

	next := prev.Clone()
	next.Registry.Tabs = make(map[int]TabRecord, len(live))

	n := len(live)
	for i, t := range live {
		var r TabRecord
		switch strategy {
		case CaptureUnknown:
			r = undated(t)
		case CaptureURL:
			r = inferred(t, now)
		case CaptureHeuristic:
			r = undated(t)
			createdAt := now.Add(-heuristicAge(i, n, rng))
			r.CreatedAt = &createdAt
			r.DateSource = SourceHeuristic
		}
		next.Registry.Tabs[t.ID] = normalize(r, now)
	}

	installed := now
	next.InstalledAt = &installed
	observe(&next, now)
	return next, nil
}

// heuristicAge places the tab at index i of n into one of four slices:
// the first 40% under a day old, then 20% each at 1-7, 8-30, and 31-90
// days.
func heuristicAge(i, n int, rng Rand) time.Duration {
	between := func(lo, hi time.Duration) time.Duration {
		return lo + time.Duration(rng.Int63n(int64(hi-lo)+1))
	}

	switch {
	case i < n*4/10:
		return time.Duration(rng.Int63n(int64(day)))
	case i < n*6/10:
		return between(1*day, 7*day)
	case i < n*8/10:
		return between(8*day, 30*day)
	default:
		return between(31*day, 90*day)
	}
}

// refresh copies the browser-owned fields of t over r, keeping r's values
// where t is empty.
func refresh(r TabRecord, t LiveTab) TabRecord {
	if t.URL != "" {
		r.URL = t.URL
	}
	if t.Title != "" {
		r.Title = t.Title
	}
	if t.Favicon != "" {
		r.Favicon = t.Favicon
	}
	return r
}

func undated(t LiveTab) TabRecord {
	return TabRecord{ID: t.ID, URL: t.URL, Title: t.Title, Favicon: t.Favicon}
}

// observed builds a record for a tab whose creation was seen live.
func observed(t LiveTab, now time.Time) TabRecord {
	r := undated(t)
	createdAt := now
	r.CreatedAt = &createdAt
	r.IsVerified = true
	r.DateSource = SourceObserved
	return r
}

// inferred builds an unverified record dated from its URL, if possible.
func inferred(t LiveTab, now time.Time) TabRecord {
	r := undated(t)
	if d, ok := urldate.Extract(t.URL, now); ok {
		r.CreatedAt = &d
		r.DateSource = SourceURL
	}
	return r
}
