package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/stats"
)

// TabView is a record with its strict age classification.
type TabView struct {
	registry.TabRecord
	Age age.Classification `json:"age"`
}

type tabsResponse struct {
	Count       int       `json:"count"`
	Peak        int       `json:"peakTabCount"`
	LastUpdated time.Time `json:"lastUpdated"`
	Tabs        []TabView `json:"tabs"`
}

type stateResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Peak   int    `json:"peakTabCount"`
}

type snapshotRequest struct {
	Tabs []registry.LiveTab  `json:"tabs"`
	Mode registry.UnseenMode `json:"mode,omitempty"`
}

type installRequest struct {
	Tabs     []registry.LiveTab       `json:"tabs"`
	Strategy registry.CaptureStrategy `json:"strategy,omitempty"`
}

type oldestResponse struct {
	Found  bool             `json:"found"`
	Oldest *stats.OldestTab `json:"oldest,omitempty"`
}

type progressResponse struct {
	Count       int  `json:"count"`
	Peak        int  `json:"peakTabCount"`
	Progress    int  `json:"progress"`
	Goal        int  `json:"tabGoal"`
	GoalReached bool `json:"goalReached"`
}

type oldTabsResponse struct {
	stats.OldTabs
	Notify bool `json:"notify"`
}

func ok(s registry.State) stateResponse {
	return stateResponse{Status: "success", Count: s.Registry.Count, Peak: s.Peak}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	now := s.tracker.Now()

	resp := tabsResponse{
		Count:       state.Registry.Count,
		Peak:        state.Peak,
		LastUpdated: state.Registry.LastUpdated,
		Tabs:        make([]TabView, 0, len(state.Registry.Tabs)),
	}
	for _, rec := range state.Records() {
		resp.Tabs = append(resp.Tabs, TabView{
			TabRecord: rec,
			Age:       age.Classify(rec.CreatedAt, rec.IsVerified, now),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTabCreated(w http.ResponseWriter, r *http.Request) {
	var tab registry.LiveTab
	if !s.decode(w, r, &tab) {
		return
	}
	state, err := s.tracker.TabCreated(r.Context(), tab)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(state))
}

func (s *Server) handleTabUpdated(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	var change registry.TabChange
	if !s.decode(w, r, &change) {
		return
	}
	state, err := s.tracker.TabUpdated(r.Context(), id, change)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(state))
}

func (s *Server) handleTabRemoved(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := s.tracker.TabRemoved(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(state))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if !s.decode(w, r, &req) {
		return
	}
	state, err := s.tracker.Sync(r.Context(), req.Tabs, req.Mode)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(state))
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	if !s.decode(w, r, &req) {
		return
	}
	state, err := s.tracker.Install(r.Context(), req.Tabs, req.Strategy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(state))
}

func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if !s.decode(w, r, &req) {
		return
	}
	state, err := s.tracker.Startup(r.Context(), req.Tabs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(state))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Summarize(state, s.tracker.Now()))
}

func (s *Server) handleBuckets(w http.ResponseWriter, r *http.Request) {
	estimated, err := boolQuery(r, "estimated")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	now := s.tracker.Now()
	if estimated {
		writeJSON(w, http.StatusOK, stats.EstimateBuckets(state.Registry, now))
		return
	}
	writeJSON(w, http.StatusOK, stats.CountBuckets(state.Registry, now))
}

func (s *Server) handleOldest(w http.ResponseWriter, r *http.Request) {
	inferred, err := boolQuery(r, "inferred")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	o, found := stats.Oldest(state.Registry, s.tracker.Now(), inferred)
	resp := oldestResponse{Found: found}
	if found {
		resp.Oldest = &o
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	points := registry.HistoryLimit
	if v := r.URL.Query().Get("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeMessage(w, http.StatusBadRequest, "points must be a positive integer")
			return
		}
		points = n
	}
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.HistorySeries(state.History, points))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	settings, err := s.tracker.Settings(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		Count:       state.Registry.Count,
		Peak:        state.Peak,
		Progress:    stats.ProgressToward(state.Peak, state.Registry.Count),
		Goal:        settings.TabGoal,
		GoalReached: state.Registry.Count <= settings.TabGoal,
	})
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	settings, err := s.tracker.Settings(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Badge(state.Registry, settings.BadgeDisplay, s.tracker.Now()))
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Domains(state.Registry))
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Duplicates(state.Registry))
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.SuggestGroups(state.Registry, s.tracker.Now()))
}

func (s *Server) handleOldTabs(w http.ResponseWriter, r *http.Request) {
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	settings, err := s.tracker.Settings(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	report := stats.OldTabReport(state.Registry, settings.OldTabThresholdDays, s.tracker.Now())
	writeJSON(w, http.StatusOK, oldTabsResponse{
		OldTabs: report,
		Notify:  settings.NotifyOldTabs && report.Count > 0,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.tracker.Settings(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	// Start from the current values so a partial body only changes what
	// it names.
	settings, err := s.tracker.Settings(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !s.decode(w, r, &settings) {
		return
	}
	saved, err := s.tracker.UpdateSettings(r.Context(), settings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	state, err := s.tracker.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registry.Export(state))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var data registry.ExportData
	if !s.decode(w, r, &data) {
		return
	}
	state, err := s.tracker.Import(r.Context(), data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(state))
}
