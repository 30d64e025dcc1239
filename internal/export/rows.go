package export

import (
	"github.com/dmeshram/greenloop/internal/catalog"
	"github.com/dmeshram/greenloop/internal/progress"
)

// Row is one goal in the achievements view.
type Row struct {
	GoalID     string
	Title      string
	Progress   float64
	Required   float64
	Unit       string
	Percent    float64
	Unlocked   bool
	UnlockedAt string
	Custom     bool
}

// Rows joins the catalog with progress, in catalog order.
func Rows(goals []catalog.Goal, snap map[string]progress.Entry) []Row {
	rows := make([]Row, 0, len(goals))
	for _, g := range goals {
		e := snap[g.ID]
		r := Row{
			GoalID:   g.ID,
			Title:    g.Title,
			Progress: e.Progress,
			Required: g.Required,
			Unit:     g.Unit,
			Percent:  progress.Percent(e.Progress, g.Required),
			Unlocked: e.Unlocked(),
			Custom:   g.Custom,
		}
		if e.UnlockedAt != nil {
			r.UnlockedAt = e.UnlockedAt.Local().Format(timeLayout)
		}
		rows = append(rows, r)
	}
	return rows
}
