package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"
)

// Views are the leaderboard windows the server understands.
var Views = []string{"all", "week", "month"}

type LeaderboardUser struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	TotalCarbonSavedKg float64 `json:"totalCarbonSavedKg"`
	WeeklyPoints       int     `json:"weeklyPoints"`
	StreakDays         int     `json:"streakDays"`
	CompletedGoals     int     `json:"completedGoals"`
	Level              string  `json:"level"`
	Percentile         float64 `json:"percentile"`
	Rank               int     `json:"rank"`
	IsCurrentUser      bool    `json:"isCurrentUser"`
}

type Leaderboard struct {
	View   string            `json:"view"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Total  int64             `json:"total"`
	Users  []LeaderboardUser `json:"users"`
}

// CurrentUser returns the signed-in user's row, if present.
func (l *Leaderboard) CurrentUser() (LeaderboardUser, bool) {
	for _, u := range l.Users {
		if u.IsCurrentUser {
			return u, true
		}
	}
	return LeaderboardUser{}, false
}

func (c *Client) Leaderboard(ctx context.Context, view string) (*Leaderboard, error) {
	q := url.Values{}
	q.Set("view", view)
	q.Set("limit", "50")
	q.Set("offset", "0")

	var out Leaderboard
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.View == "" {
		out.View = view
	}
	return &out, nil
}

// Leaderboards fetches every view concurrently and returns only when all of
// them succeeded, so callers never show a partial set.
func (c *Client) Leaderboards(ctx context.Context) (map[string]*Leaderboard, error) {
	results := make([]*Leaderboard, len(Views))
	g, gctx := errgroup.WithContext(ctx)
	for i, view := range Views {
		g.Go(func() error {
			lb, err := c.Leaderboard(gctx, view)
			if err != nil {
				return fmt.Errorf("leaderboard %s: %w", view, err)
			}
			results[i] = lb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*Leaderboard, len(Views))
	for i, view := range Views {
		out[view] = results[i]
	}
	return out, nil
}
