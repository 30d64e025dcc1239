package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dmeshram/greenloop/internal/activity"
	"github.com/dmeshram/greenloop/internal/catalog"
	"github.com/dmeshram/greenloop/internal/progress"
)

type masterGoal struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Required     float64 `json:"required"`
	Unit         string  `json:"unit"`
	ActivityType string  `json:"activityType"`
	Icon         string  `json:"icon"`
}

// MasterGoals fetches the server's goal definitions. Activity types are
// parsed here so nothing downstream sees free text.
func (c *Client) MasterGoals(ctx context.Context) ([]catalog.Goal, error) {
	var rows []masterGoal
	if err := c.do(ctx, http.MethodGet, "/api/achievements/master", nil, &rows); err != nil {
		return nil, err
	}
	goals := make([]catalog.Goal, 0, len(rows))
	for _, r := range rows {
		goals = append(goals, catalog.Goal{
			ID:           r.ID,
			Title:        r.Title,
			Description:  r.Description,
			Required:     r.Required,
			Unit:         r.Unit,
			ActivityType: activity.ParseType(r.ActivityType),
			Icon:         r.Icon,
		})
	}
	return goals, nil
}

type achievementRow struct {
	ID         string     `json:"id"`
	Progress   float64    `json:"progress"`
	UnlockedAt *time.Time `json:"unlockedAt"`
}

// Achievements returns the signed-in user's server-side progress.
func (c *Client) Achievements(ctx context.Context) ([]progress.ServerRow, error) {
	var rows []achievementRow
	if err := c.do(ctx, http.MethodGet, "/api/achievements", nil, &rows); err != nil {
		return nil, err
	}
	out := make([]progress.ServerRow, 0, len(rows))
	for _, r := range rows {
		if r.ID == "" {
			continue
		}
		out = append(out, progress.ServerRow{ID: r.ID, Progress: r.Progress, UnlockedAt: r.UnlockedAt})
	}
	return out, nil
}
