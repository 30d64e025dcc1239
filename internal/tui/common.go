package tui

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dmeshram/greenloop/internal/activity"
	"github.com/dmeshram/greenloop/internal/api"
	"github.com/dmeshram/greenloop/internal/auth"
	"github.com/dmeshram/greenloop/internal/catalog"
	"github.com/dmeshram/greenloop/internal/outbox"
	"github.com/dmeshram/greenloop/internal/progress"
	"github.com/dmeshram/greenloop/internal/store"
	"github.com/dmeshram/greenloop/internal/streak"
)

// viewState represents the currently active view.
type viewState int

const (
	viewAchievements viewState = iota
	viewLog
	viewLeaderboard
	viewHistory
	viewSettings
)

var viewNames = []string{"Achievements", "Log", "Leaderboard", "History", "Settings"}

// Syncer is the explicit server reconciliation surface.
type Syncer interface {
	Refresh(ctx context.Context) error
	FlushPending(ctx context.Context) error
}

type LeaderboardSource interface {
	Leaderboards(ctx context.Context) (map[string]*api.Leaderboard, error)
}

// GoalSync mirrors custom goals and their progress on the server.
type GoalSync interface {
	CreateGoal(ctx context.Context, req api.CreateGoalRequest) (*api.RemoteGoal, error)
	IncrementGoal(ctx context.Context, goalID int64, by int) (*api.RemoteProgress, error)
	SetGoalProgress(ctx context.Context, goalID int64, value int) (*api.RemoteProgress, error)
}

type RecentSource interface {
	RecentActivities(ctx context.Context) ([]api.LoggedActivity, error)
}

// InsightsSource serves the headline summary and the 30-day history.
type InsightsSource interface {
	Insights(ctx context.Context) (*api.HomeSummary, *api.History, error)
}

type History interface {
	ListActivities(f store.ActivityFilter) ([]store.LoggedActivity, error)
}

// Deps is everything the views read from or act on. Sync, Remote, Fetcher,
// Goals, Recent, Insights and History may be nil when running offline or in tests.
type Deps struct {
	Bus      *activity.Bus
	Catalog  *catalog.Catalog
	Progress *progress.Store
	Streak   *streak.Tracker
	Session  *auth.Session
	Outbox   *outbox.Queue

	Sync    Syncer
	Remote  LeaderboardSource
	Fetcher catalog.Fetcher
	Goals   GoalSync
	Recent   RecentSource
	Insights InsightsSource
	History  History

	APIBase   string
	ExportDir string
	Log       *slog.Logger
}

// --- Messages ---

// ProgressChangedMsg tells the UI that goal progress moved outside of its
// own update loop, e.g. after a background server refresh.
type ProgressChangedMsg struct{}

type statusMsg struct {
	text    string
	isError bool
}

type exportDoneMsg struct {
	path string
}

type catalogLoadedMsg struct {
	err error
}

type activityLoggedMsg struct {
	event activity.Event
}

type historyMsg struct {
	items  []store.LoggedActivity
	server bool
}

type syncDoneMsg struct {
	err error
}

// --- Helpers ---

var printer = message.NewPrinter(language.English)

// formatAmount prints whole numbers with grouping and keeps one decimal
// otherwise: 10000 -> "10,000", 12.5 -> "12.5".
func formatAmount(v float64) string {
	if v == math.Trunc(v) {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.1f", v)
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}
