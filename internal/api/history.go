package api

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// HomeSummary is the signed-in user's headline numbers.
type HomeSummary struct {
	TotalPoints      int     `json:"totalPoints"`
	WeeklyPoints     int     `json:"weeklyPoints"`
	CO2SavedKg       float64 `json:"co2SavedKg"`
	CurrentStreak    int     `json:"currentStreak"`
	WeeklyGoalDays   int     `json:"weeklyGoalDays"`
	WeeklyActiveDays int     `json:"weeklyActiveDays"`
}

type HistoryAchievement struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

type HistoryActivity struct {
	Date     string  `json:"date"`
	Activity string  `json:"activity"`
	CO2Saved float64 `json:"co2Saved"`
}

// TrendPoint is one day of the weekly CO₂ trend; Day is a short weekday name.
type TrendPoint struct {
	Day string  `json:"day"`
	KG  float64 `json:"kg"`
}

type CalendarDay struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

// History covers the last 30 days: unlocked achievements, completed
// activities, a 7-day CO₂ trend and a per-day activity calendar.
type History struct {
	StreakDays          int                  `json:"streakDays"`
	Achievements        []HistoryAchievement `json:"achievements"`
	CompletedActivities []HistoryActivity    `json:"completedActivities"`
	CO2Trend            []TrendPoint         `json:"co2Trend"`
	Calendar            []CalendarDay        `json:"calendar"`
}

// TrendTotal sums the CO₂ trend.
func (h *History) TrendTotal() float64 {
	var sum float64
	for _, p := range h.CO2Trend {
		sum += p.KG
	}
	return sum
}

// ActiveDays counts calendar days with at least one activity.
func (h *History) ActiveDays() int {
	n := 0
	for _, d := range h.Calendar {
		if d.Completed {
			n++
		}
	}
	return n
}

func (c *Client) HomeSummary(ctx context.Context) (*HomeSummary, error) {
	var out HomeSummary
	if err := c.do(ctx, http.MethodGet, "/api/home/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) History(ctx context.Context) (*History, error) {
	var out History
	if err := c.do(ctx, http.MethodGet, "/api/history", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Insights fetches the summary and the history concurrently.
func (c *Client) Insights(ctx context.Context) (*HomeSummary, *History, error) {
	var (
		sum  *HomeSummary
		hist *History
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sum, err = c.HomeSummary(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		hist, err = c.History(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sum, hist, nil
}
