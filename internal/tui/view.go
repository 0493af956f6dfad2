package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/stats"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	activeTab   = lipgloss.NewStyle().Bold(true).Underline(true).Padding(0, 1)
	inactiveTab = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(stats.ColorOld))
	cursorStyle = lipgloss.NewStyle().Bold(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
)

var bucketColors = map[age.Bucket]string{
	age.Today:   stats.ColorNew,
	age.Recent:  stats.ColorCount,
	age.Medium:  stats.ColorMedium,
	age.Old:     stats.ColorOld,
	age.Unknown: stats.ColorUnknown,
}

var bucketNames = map[age.Bucket]string{
	age.Today:   "Today",
	age.Recent:  "1-7 days",
	age.Medium:  "8-30 days",
	age.Old:     "30+ days",
	age.Unknown: "Unknown",
}

const sparkLevels = "▁▂▃▄▅▆▇█"

func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render("error: "+m.err.Error()) + "\n" + helpStyle.Render("r retry • q quit")
	}
	if !m.loaded {
		return mutedStyle.Render("Loading tabs…")
	}

	var body string
	switch m.view {
	case viewTabs:
		body = m.tabsView()
	case viewGroups:
		body = m.groupsView()
	default:
		body = m.overviewView()
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.header(), panelStyle.Render(body), m.footer())
}

func (m Model) header() string {
	s := m.snap.state
	tabs := make([]string, len(viewNames))
	for i, name := range viewNames {
		if view(i) == m.view {
			tabs[i] = activeTab.Render(name)
		} else {
			tabs[i] = inactiveTab.Render(name)
		}
	}
	summary := titleStyle.Render(fmt.Sprintf("%s tabs • peak %s • %d%% toward goal",
		humanize.Comma(int64(s.Registry.Count)),
		humanize.Comma(int64(s.Peak)),
		stats.ProgressToward(s.Peak, s.Registry.Count),
	))
	return lipgloss.JoinHorizontal(lipgloss.Top, append([]string{summary}, tabs...)...)
}

func (m Model) footer() string {
	mode := "strict"
	if m.estimated {
		mode = "estimated"
	}
	return helpStyle.Render(fmt.Sprintf("tab switch view • e buckets: %s • r refresh • q quit", mode))
}

func (m Model) overviewView() string {
	now := m.now()
	reg := m.snap.state.Registry

	counts := stats.CountBuckets(reg, now)
	if m.estimated {
		counts = stats.EstimateBuckets(reg, now)
	}

	var b strings.Builder
	b.WriteString(bucketBars(counts, m.barWidth()))
	b.WriteString("\n")

	series := stats.HistorySeries(m.snap.state.History, registry.HistoryLimit)
	b.WriteString(fmt.Sprintf("History  %s\n", Sparkline(series)))

	if o, ok := stats.Oldest(reg, now, true); ok {
		note := ""
		if o.Inferred {
			note = mutedStyle.Render(" (from URL)")
		}
		b.WriteString(fmt.Sprintf("Oldest   %s, %s%s\n", truncate(o.Record.Title, 40), o.Age.Label, note))
	} else {
		b.WriteString("Oldest   " + mutedStyle.Render("no dated tabs") + "\n")
	}

	old := stats.OldTabReport(reg, m.snap.settings.OldTabThresholdDays, now)
	if old.Count > 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(stats.ColorOld)).
			Render(fmt.Sprintf("%d tabs older than %d days", old.Count, old.ThresholdDays)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) barWidth() int {
	w := m.width - 30
	if w < 10 {
		return 10
	}
	if w > 50 {
		return 50
	}
	return w
}

// bucketBars renders one horizontal bar per bucket scaled to the largest.
func bucketBars(c stats.BucketCounts, width int) string {
	maxCount := 0
	for _, k := range age.Buckets {
		maxCount = max(maxCount, c.Get(k))
	}

	var b strings.Builder
	for _, k := range age.Buckets {
		n := c.Get(k)
		w := 0
		if maxCount > 0 {
			w = n * width / maxCount
		}
		if n > 0 && w == 0 {
			w = 1
		}
		bar := lipgloss.NewStyle().Foreground(lipgloss.Color(bucketColors[k])).Render(strings.Repeat("█", w))
		fmt.Fprintf(&b, "%-10s %s %d\n", bucketNames[k], bar, n)
	}
	return b.String()
}

// Sparkline renders history counts as block characters scaled to the
// largest count.
func Sparkline(h []registry.HistoryEntry) string {
	if len(h) == 0 {
		return "no history yet"
	}
	levels := []rune(sparkLevels)
	maxCount := 0
	for _, e := range h {
		maxCount = max(maxCount, e.Count)
	}

	out := make([]rune, len(h))
	for i, e := range h {
		idx := 0
		if maxCount > 0 {
			idx = e.Count * (len(levels) - 1) / maxCount
		}
		out[i] = levels[idx]
	}
	return string(out)
}

func (m Model) tabsView() string {
	now := m.now()
	records := m.snap.state.Records()
	if len(records) == 0 {
		return mutedStyle.Render("No open tabs")
	}

	// Keep the cursor visible on short terminals.
	rows := len(records)
	if m.height > 8 {
		rows = min(rows, m.height-8)
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}

	var b strings.Builder
	for i := start; i < len(records) && i < start+rows; i++ {
		r := records[i]
		c := age.Classify(r.CreatedAt, r.IsVerified, now)
		label := c.Label
		if c.Bucket == age.Unknown && r.CreatedAt != nil {
			label = "~" + age.Estimate(*r.CreatedAt, now).Label
		}
		ageText := lipgloss.NewStyle().Foreground(lipgloss.Color(bucketColors[c.Bucket])).Render(fmt.Sprintf("%-10s", label))

		line := fmt.Sprintf("%s %s  %s", ageText, truncate(r.Title, 40), mutedStyle.Render(stats.Domain(r.URL)))
		if i == m.cursor {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) groupsView() string {
	groups := stats.SuggestGroups(m.snap.state.Registry, m.now())
	if len(groups) == 0 {
		return mutedStyle.Render("No suggested groups")
	}

	var b strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&b, "%s %s\n", titleStyle.Render(fmt.Sprintf("%s (%d)", g.Name, g.Count)), mutedStyle.Render(g.Reason))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
