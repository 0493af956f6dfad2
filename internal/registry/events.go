package registry

import "time"

// ApplyCreated records a tab creation observed live. The record is always
// verified. A tab id that is already tracked is left alone, so replaying
// the event is a no-op.
func ApplyCreated(prev State, t LiveTab, now time.Time) (State, error) {
	if err := checkNow(now); err != nil {
		return State{}, err
	}
	if err := checkTabID(t.ID); err != nil {
		return State{}, err
	}
	if err := checkPrevious(prev); err != nil {
		return State{}, err
	}
	if _, ok := prev.Registry.Tabs[t.ID]; ok {
		return prev.Clone(), nil
	}

	next := prev.Clone()
	next.Registry.Tabs[t.ID] = normalize(observed(t, now), now)
	touch(&next, now)
	return next, nil
}

// ApplyRemoved drops a closed tab. Removing an id that is not tracked
// returns prev unchanged.
func ApplyRemoved(prev State, id int, now time.Time) (State, error) {
	if err := checkNow(now); err != nil {
		return State{}, err
	}
	if err := checkTabID(id); err != nil {
		return State{}, err
	}
	if err := checkPrevious(prev); err != nil {
		return State{}, err
	}
	if _, ok := prev.Registry.Tabs[id]; !ok {
		return prev.Clone(), nil
	}

	next := prev.Clone()
	delete(next.Registry.Tabs, id)
	touch(&next, now)
	return next, nil
}

// ApplyUpdated changes the URL, title, or favicon of a tracked tab.
// CreatedAt, IsVerified, and DateSource never change once set. An update
// for an id that is not tracked means its creation event was missed while
// the tab was being opened, so it is recorded as created now.
func ApplyUpdated(prev State, id int, change TabChange, now time.Time) (State, error) {
	if err := checkNow(now); err != nil {
		return State{}, err
	}
	if err := checkTabID(id); err != nil {
		return State{}, err
	}
	if err := checkPrevious(prev); err != nil {
		return State{}, err
	}

	live := LiveTab{ID: id, URL: change.URL, Title: change.Title, Favicon: change.Favicon}

	next := prev.Clone()
	if old, ok := prev.Registry.Tabs[id]; ok {
		next.Registry.Tabs[id] = normalize(refresh(old.clone(), live), now)
	} else {
		next.Registry.Tabs[id] = normalize(observed(live, now), now)
	}
	touch(&next, now)
	return next, nil
}
