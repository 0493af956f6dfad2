package stats

import (
	"strconv"
	"time"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/registry"
)

// Badge colors.
const (
	ColorCount   = "#3498db"
	ColorNew     = "#2ecc71"
	ColorMedium  = "#f39c12"
	ColorOld     = "#e74c3c"
	ColorUnknown = "#95a5a6"
)

// BadgeState is the toolbar badge text and background color.
type BadgeState struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// Badge renders the badge for the given display mode. In age mode it shows
// the whole days of the oldest tab, preferring verified dates and falling
// back to URL-inferred ones; "?" when no tab has a date at all.
func Badge(reg registry.Registry, display registry.BadgeDisplay, now time.Time) BadgeState {
	switch display {
	case registry.BadgeNone:
		return BadgeState{}
	case registry.BadgeAge:
		o, ok := Oldest(reg, now, true)
		if !ok {
			return BadgeState{Text: "?", Color: ColorUnknown}
		}
		days := o.Age.Days()
		return BadgeState{Text: strconv.Itoa(days), Color: AgeColor(days)}
	default:
		return BadgeState{Text: strconv.Itoa(len(reg.Tabs)), Color: ColorCount}
	}
}

// AgeColor maps whole days to the badge palette.
func AgeColor(days int) string {
	switch {
	case days < 0:
		return ColorUnknown
	case days > age.MediumMaxDays:
		return ColorOld
	case days > age.RecentMaxDays:
		return ColorMedium
	default:
		return ColorNew
	}
}
