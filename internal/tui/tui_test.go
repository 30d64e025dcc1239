package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dmeshram/greenloop/internal/activity"
	"github.com/dmeshram/greenloop/internal/api"
	"github.com/dmeshram/greenloop/internal/auth"
	"github.com/dmeshram/greenloop/internal/catalog"
	"github.com/dmeshram/greenloop/internal/logger"
	"github.com/dmeshram/greenloop/internal/outbox"
	"github.com/dmeshram/greenloop/internal/progress"
	"github.com/dmeshram/greenloop/internal/store"
	"github.com/dmeshram/greenloop/internal/streak"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	kv := store.NewMemoryKV()
	log := logger.Discard()

	db, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cat := catalog.New(kv, log, 0)
	return Deps{
		Bus:       activity.NewBus(log),
		Catalog:   cat,
		Progress:  progress.NewStore(kv, cat, log),
		Streak:    streak.NewTracker(kv, log),
		Session:   auth.NewSession(kv, log),
		Outbox:    outbox.New(kv, log),
		History:   db,
		APIBase:   "http://localhost:8080",
		ExportDir: t.TempDir(),
		Log:       log,
	}
}

func newTestApp(t *testing.T) App {
	t.Helper()
	app := NewApp(newTestDeps(t))
	app.width = 120
	app.height = 40
	return app
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func testToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "42",
		"name":  "Ada",
		"email": "ada@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

type fakeSyncer struct {
	flushErr   error
	refreshErr error
	flushes    int
	refreshes  int
}

func (f *fakeSyncer) FlushPending(context.Context) error {
	f.flushes++
	return f.flushErr
}

func (f *fakeSyncer) Refresh(context.Context) error {
	f.refreshes++
	return f.refreshErr
}

type fakeGoalSync struct {
	created  []api.CreateGoalRequest
	incr     []int64
	set      map[int64]int
	createID int64
}

func (f *fakeGoalSync) CreateGoal(_ context.Context, req api.CreateGoalRequest) (*api.RemoteGoal, error) {
	f.created = append(f.created, req)
	return &api.RemoteGoal{ID: f.createID, Title: req.Title, Required: req.Required}, nil
}

func (f *fakeGoalSync) IncrementGoal(_ context.Context, id int64, by int) (*api.RemoteProgress, error) {
	f.incr = append(f.incr, id)
	return &api.RemoteProgress{GoalID: id, Progress: by}, nil
}

func (f *fakeGoalSync) SetGoalProgress(_ context.Context, id int64, v int) (*api.RemoteProgress, error) {
	if f.set == nil {
		f.set = map[int64]int{}
	}
	f.set[id] = v
	return &api.RemoteProgress{GoalID: id, Progress: v}, nil
}

type fakeRecent struct {
	list []api.LoggedActivity
	err  error
}

func (f fakeRecent) RecentActivities(context.Context) ([]api.LoggedActivity, error) {
	return f.list, f.err
}

// runCmd executes cmd and any batch it expands to, returning the messages.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

type fakeInsights struct {
	summary *api.HomeSummary
	history *api.History
	err     error
	calls   int
}

func (f *fakeInsights) Insights(context.Context) (*api.HomeSummary, *api.History, error) {
	f.calls++
	return f.summary, f.history, f.err
}

func sampleHistory() *api.History {
	return &api.History{
		StreakDays: 3,
		Achievements: []api.HistoryAchievement{
			{ID: "w1", Title: "First Walk Instead Of Driving", Date: "2025-01-02"},
		},
		CompletedActivities: []api.HistoryActivity{
			{Date: "2025-01-03", Activity: "Cycled", CO2Saved: 1.5},
		},
		CO2Trend: []api.TrendPoint{
			{Day: "Mon", KG: 2}, {Day: "Tue", KG: 0}, {Day: "Wed", KG: 1},
		},
		Calendar: []api.CalendarDay{
			{Date: "2025-01-01", Completed: true}, {Date: "2025-01-02"}, {Date: "2025-01-03", Completed: true},
		},
	}
}

type fakeBoards struct {
	boards map[string]*api.Leaderboard
}

func (f fakeBoards) Leaderboards(context.Context) (map[string]*api.Leaderboard, error) {
	return f.boards, nil
}

type fakeFetcher struct {
	goals []catalog.Goal
	err   error
}

func (f fakeFetcher) MasterGoals(context.Context) ([]catalog.Goal, error) {
	return f.goals, f.err
}

// ============================================================
// Helpers
// ============================================================

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		0:      "0",
		7:      "7",
		10000:  "10,000",
		12.5:   "12.5",
	}
	for in, want := range cases {
		if got := formatAmount(in); got != want {
			t.Errorf("formatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	if v, err := parseAmount("2.5"); err != nil || v != 2.5 {
		t.Fatalf("parseAmount(2.5) = %v, %v", v, err)
	}
	for _, bad := range []string{"", "abc", "0", "-1", "NaN", "Inf"} {
		if _, err := parseAmount(bad); err == nil {
			t.Errorf("parseAmount(%q) should fail", bad)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("a very long goal title", 8); got != "a very …" {
		t.Fatalf("truncate = %q", got)
	}
}

func TestViewNames(t *testing.T) {
	if len(viewNames) != 5 {
		t.Fatalf("expected 5 view names, got %d", len(viewNames))
	}
	if viewNames[viewHistory] != "History" || viewNames[viewSettings] != "Settings" {
		t.Fatalf("unexpected view names: %v", viewNames)
	}
	if viewNames[viewLeaderboard] != "Leaderboard" {
		t.Fatalf("unexpected name for leaderboard view: %q", viewNames[viewLeaderboard])
	}
}

// ============================================================
// Achievements view
// ============================================================

func TestAchievementsListsCatalog(t *testing.T) {
	d := newTestDeps(t)
	m := newAchievementsModel(d)
	if len(m.rows) != d.Catalog.Len() {
		t.Fatalf("rows = %d, want %d", len(m.rows), d.Catalog.Len())
	}
	if m.unlockedCount() != 0 {
		t.Fatal("nothing should be unlocked yet")
	}
}

func TestAchievementsIncrementAndReset(t *testing.T) {
	d := newTestDeps(t)
	m := newAchievementsModel(d)
	m.setSize(120, 36)

	// Cursor starts on w1, which unlocks at 1.
	m, cmd := m.update(runeKey('+'))
	if got := d.Progress.Get("w1"); got.Progress != 1 || !got.Unlocked() {
		t.Fatalf("w1 after +1 = %+v", got)
	}
	if cmd == nil {
		t.Fatal("unlock should report a status")
	}
	if msg, ok := cmd().(statusMsg); !ok || !strings.Contains(msg.text, "Unlocked") {
		t.Fatalf("unexpected status: %#v", cmd())
	}
	if m.unlockedCount() != 1 {
		t.Fatalf("unlocked count = %d", m.unlockedCount())
	}

	m, _ = m.update(runeKey('r'))
	if got := d.Progress.Get("w1"); got.Progress != 0 || got.Unlocked() {
		t.Fatalf("w1 after reset = %+v", got)
	}
	if m.rows[0].Unlocked {
		t.Fatal("row not reloaded after reset")
	}
}

func TestAchievementsCursorBounds(t *testing.T) {
	d := newTestDeps(t)
	m := newAchievementsModel(d)

	m, _ = m.update(tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != 0 {
		t.Fatalf("cursor moved above top: %d", m.cursor)
	}
	for i := 0; i < 50; i++ {
		m, _ = m.update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if m.cursor != len(m.rows)-1 {
		t.Fatalf("cursor = %d, want %d", m.cursor, len(m.rows)-1)
	}
}

func TestAchievementsReloadOnProgressChanged(t *testing.T) {
	d := newTestDeps(t)
	m := newAchievementsModel(d)

	d.Progress.Increment("r2", 3)
	m, _ = m.update(ProgressChangedMsg{})

	for _, r := range m.rows {
		if r.GoalID == "r2" {
			if r.Progress != 3 {
				t.Fatalf("r2 progress = %v", r.Progress)
			}
			return
		}
	}
	t.Fatal("r2 row missing")
}

func TestAchievementsViewShowsProgress(t *testing.T) {
	d := newTestDeps(t)
	d.Progress.Increment("w1", 1)
	m := newAchievementsModel(d)
	m.setSize(140, 40)

	out := m.view()
	if !strings.Contains(out, "1/12 unlocked") {
		t.Fatalf("missing unlocked summary in view:\n%s", out)
	}
	if !strings.Contains(out, "unlocked") || !strings.Contains(out, "10,000") {
		t.Fatal("view should show unlock badge and grouped threshold")
	}
}

func TestAchievementsNewFormEscape(t *testing.T) {
	d := newTestDeps(t)
	m := newAchievementsModel(d)

	m, _ = m.update(runeKey('n'))
	if !m.formActive {
		t.Fatal("n should open the new goal form")
	}
	m, _ = m.update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.formActive {
		t.Fatal("esc should close the form")
	}
	if d.Catalog.Len() != len(catalog.Presets()) {
		t.Fatal("cancelled form must not add a goal")
	}
}

func TestAchievementsPublishesCustomGoal(t *testing.T) {
	d := newTestDeps(t)
	remote := &fakeGoalSync{createID: 17}
	d.Goals = remote
	if _, err := d.Session.Login(testToken(t)); err != nil {
		t.Fatal(err)
	}
	m := newAchievementsModel(d)

	g, _ := d.Catalog.AddCustom(catalog.NewGoal{Title: "Compost", Required: 2.5})
	runCmd(m.publishGoal(g))

	if len(remote.created) != 1 || remote.created[0].Title != "Compost" || remote.created[0].Required != 3 {
		t.Fatalf("created = %+v", remote.created)
	}
	if got, _ := d.Catalog.Lookup(g.ID); got.ServerID != 17 {
		t.Fatalf("server id = %d, want 17", got.ServerID)
	}
}

func TestAchievementsPushesLinkedGoalProgress(t *testing.T) {
	d := newTestDeps(t)
	remote := &fakeGoalSync{}
	d.Goals = remote
	if _, err := d.Session.Login(testToken(t)); err != nil {
		t.Fatal(err)
	}
	g, _ := d.Catalog.AddCustom(catalog.NewGoal{Title: "Compost", Required: 3})
	d.Catalog.LinkServer(g.ID, 9)

	m := newAchievementsModel(d)
	m.cursor = len(m.rows) - 1

	m, cmd := m.update(runeKey('+'))
	runCmd(cmd)
	if len(remote.incr) != 1 || remote.incr[0] != 9 {
		t.Fatalf("increments = %v", remote.incr)
	}
	_, cmd = m.update(runeKey('r'))
	runCmd(cmd)
	if v, ok := remote.set[9]; !ok || v != 0 {
		t.Fatalf("progress set = %v", remote.set)
	}

	// Presets stay local.
	m.cursor = 0
	_, cmd = m.update(runeKey('+'))
	runCmd(cmd)
	if len(remote.incr) != 1 {
		t.Fatalf("preset increment was pushed: %v", remote.incr)
	}
}

func TestAchievementsSignedOutStaysLocal(t *testing.T) {
	d := newTestDeps(t)
	remote := &fakeGoalSync{}
	d.Goals = remote
	m := newAchievementsModel(d)

	g, _ := d.Catalog.AddCustom(catalog.NewGoal{Title: "Compost", Required: 3})
	if m.publishGoal(g) != nil {
		t.Fatal("signed out should not publish")
	}
	if len(remote.created) != 0 {
		t.Fatal("unexpected server call")
	}
}

// ============================================================
// Log view
// ============================================================

func TestLogRecentFromServerWhenSignedIn(t *testing.T) {
	d := newTestDeps(t)
	d.Recent = fakeRecent{list: []api.LoggedActivity{
		{ID: 3, Type: "PUBLIC_TRANSPORT", Amount: 1, Date: "2025-01-03"},
	}}
	if _, err := d.Session.Login(testToken(t)); err != nil {
		t.Fatal(err)
	}

	m := newLogModel(d)
	m.setSize(120, 36)
	msg, ok := m.refresh()().(historyMsg)
	if !ok || !msg.server || len(msg.items) != 1 || msg.items[0].Type != string(activity.PublicTransport) {
		t.Fatalf("unexpected history msg: %#v", msg)
	}
	m, _ = m.update(msg)
	if out := m.view(); !strings.Contains(out, "from server") || !strings.Contains(out, activity.PublicTransport.Label()) {
		t.Fatalf("server history not rendered:\n%s", out)
	}
}

func TestLogRecentFallsBackToLocal(t *testing.T) {
	d := newTestDeps(t)
	d.Recent = fakeRecent{err: errors.New("503")}
	d.History.(*store.Store).RecordActivity("walking", 1200, "steps", "2025-01-02")
	if _, err := d.Session.Login(testToken(t)); err != nil {
		t.Fatal(err)
	}

	msg, ok := newLogModel(d).refresh()().(historyMsg)
	if !ok || msg.server || len(msg.items) != 1 || msg.items[0].Value != 1200 {
		t.Fatalf("unexpected history msg: %#v", msg)
	}
}

func TestLogSubmitEmitsOnBus(t *testing.T) {
	d := newTestDeps(t)
	var got []activity.Event
	d.Bus.Subscribe(func(e activity.Event) { got = append(got, e) })

	m := newLogModel(d)
	*m.formType = string(activity.Recycling)
	*m.formValue = "3"
	*m.formUnit = ""
	*m.formDate = "2025-01-02"

	e := m.submit()
	if len(got) != 1 {
		t.Fatalf("expected 1 bus event, got %d", len(got))
	}
	if got[0] != e {
		t.Fatalf("bus event %+v differs from submitted %+v", got[0], e)
	}
	if e.Type != activity.Recycling || e.Value != 3 || e.Unit != "items" || e.Date != "2025-01-02" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestLogShowFormDefaultsToToday(t *testing.T) {
	d := newTestDeps(t)
	m := newLogModel(d)
	m.now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.Local) }

	m, _ = m.update(runeKey('n'))
	if !m.formActive {
		t.Fatal("form should be active")
	}
	if *m.formDate != "2025-06-01" || *m.formValue != "1" {
		t.Fatalf("form defaults = %q, %q", *m.formDate, *m.formValue)
	}
}

func TestLogRendersHistory(t *testing.T) {
	d := newTestDeps(t)
	m := newLogModel(d)
	m.setSize(120, 36)

	m, _ = m.update(historyMsg{items: []store.LoggedActivity{
		{ID: 1, Type: "recycling", Value: 4, Unit: "items", Date: "2025-01-02"},
	}})
	out := m.view()
	if !strings.Contains(out, "Recycling") || !strings.Contains(out, "4 items") {
		t.Fatalf("history not rendered:\n%s", out)
	}
}

func TestLogRefreshReadsHistory(t *testing.T) {
	d := newTestDeps(t)
	db := d.History.(*store.Store)
	db.RecordActivity("walking", 1200, "steps", "2025-01-02")

	m := newLogModel(d)
	msg, ok := m.refresh()().(historyMsg)
	if !ok || len(msg.items) != 1 || msg.items[0].Value != 1200 {
		t.Fatalf("unexpected history msg: %#v", msg)
	}
}

func TestLogShowsStreakAndPending(t *testing.T) {
	d := newTestDeps(t)
	d.Streak.Advance("2025-01-02")
	d.Outbox.Add(activity.Event{Type: activity.Walking, Value: 1, Date: "2025-01-02"})

	m := newLogModel(d)
	m.setSize(120, 36)
	out := m.view()
	if !strings.Contains(out, "Streak: 1") {
		t.Fatal("streak not shown")
	}
	if !strings.Contains(out, "1 activit(ies) waiting to sync") {
		t.Fatal("pending count not shown")
	}
}

// ============================================================
// History view
// ============================================================

func TestInsightsNeedsSignIn(t *testing.T) {
	d := newTestDeps(t)
	src := &fakeInsights{history: sampleHistory()}
	d.Insights = src

	m, cmd := newInsightsModel(d).load()
	if cmd != nil || src.calls != 0 {
		t.Fatal("signed out load should not hit the server")
	}
	m.setSize(120, 40)
	if !strings.Contains(m.view(), "Log in") {
		t.Fatalf("missing sign-in notice:\n%s", m.view())
	}
}

func TestInsightsRendersTrend(t *testing.T) {
	d := newTestDeps(t)
	d.Insights = &fakeInsights{
		summary: &api.HomeSummary{TotalPoints: 1200, WeeklyPoints: 40, CO2SavedKg: 12.5, CurrentStreak: 3},
		history: sampleHistory(),
	}
	if _, err := d.Session.Login(testToken(t)); err != nil {
		t.Fatal(err)
	}

	m, cmd := newInsightsModel(d).load()
	m.setSize(140, 50)
	for _, msg := range runCmd(cmd) {
		m, _ = m.update(msg)
	}
	if m.loading || m.history == nil {
		t.Fatal("history not applied")
	}

	out := m.view()
	for _, want := range []string{"3-day streak", "1,200", "12.5", "Mon", "3 kg", "2 active", "Cycled", "First Walk"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func TestInsightsDropsStaleResult(t *testing.T) {
	d := newTestDeps(t)
	d.Insights = &fakeInsights{history: sampleHistory()}
	if _, err := d.Session.Login(testToken(t)); err != nil {
		t.Fatal(err)
	}

	m, _ := newInsightsModel(d).load()
	gen := m.gen
	m = m.stop()
	m, _ = m.update(insightsMsg{gen: gen, history: sampleHistory()})
	if m.history != nil {
		t.Fatal("result of an abandoned load was applied")
	}
}

func TestInsightsError(t *testing.T) {
	d := newTestDeps(t)
	d.Insights = &fakeInsights{err: errors.New("502")}
	if _, err := d.Session.Login(testToken(t)); err != nil {
		t.Fatal(err)
	}

	m, cmd := newInsightsModel(d).load()
	m.setSize(120, 40)
	for _, msg := range runCmd(cmd) {
		m, _ = m.update(msg)
	}
	if !strings.Contains(m.view(), "Could not load history") {
		t.Fatalf("error not shown:\n%s", m.view())
	}
}

func TestRenderTrendScalesToPeak(t *testing.T) {
	lines := renderTrend([]api.TrendPoint{{Day: "Mon", KG: 4}, {Day: "Tue", KG: 0.01}, {Day: "Wed", KG: -1}})
	if len(lines) != 3 {
		t.Fatalf("lines = %d", len(lines))
	}
	if strings.Count(lines[0], "█") != trendBarWidth {
		t.Fatalf("peak day should fill the bar: %q", lines[0])
	}
	if strings.Count(lines[1], "█") != 1 {
		t.Fatalf("small non-zero day should show one block: %q", lines[1])
	}
	if strings.Count(lines[2], "█") != 0 {
		t.Fatalf("negative day should be empty: %q", lines[2])
	}
}

// ============================================================
// Leaderboard view
// ============================================================

func sampleBoards() map[string]*api.Leaderboard {
	return map[string]*api.Leaderboard{
		"all": {View: "all", Total: 2, Users: []api.LeaderboardUser{
			{ID: 1, Name: "Grace", Rank: 1, Level: "GOLD", TotalCarbonSavedKg: 40},
			{ID: 2, Name: "Ada", Rank: 2, Level: "silver", IsCurrentUser: true, Percentile: 50},
		}},
		"week":  {View: "week", Users: []api.LeaderboardUser{{ID: 2, Name: "Ada", Rank: 1}}},
		"month": {View: "month"},
	}
}

func TestLeaderboardDropsStaleResult(t *testing.T) {
	m := newLeaderboardModel(fakeBoards{boards: sampleBoards()})

	m, _ = m.load()
	first := m.gen
	m, _ = m.load()
	second := m.gen
	if first == second {
		t.Fatal("reload should start a new generation")
	}

	m, _ = m.update(leaderboardMsg{gen: first, boards: sampleBoards()})
	if m.boards != nil || !m.loading {
		t.Fatal("stale result should be dropped")
	}

	m, _ = m.update(leaderboardMsg{gen: second, boards: sampleBoards()})
	if m.boards == nil || m.loading {
		t.Fatal("current result should be applied")
	}
}

func TestLeaderboardStopAbandonsLoad(t *testing.T) {
	m := newLeaderboardModel(fakeBoards{boards: sampleBoards()})
	m, _ = m.load()
	gen := m.gen

	m = m.stop()
	if m.loading || m.cancel != nil {
		t.Fatal("stop should clear the load in flight")
	}
	m, _ = m.update(leaderboardMsg{gen: gen, boards: sampleBoards()})
	if m.boards != nil {
		t.Fatal("result of an abandoned load was applied")
	}
}

func TestLeaderboardError(t *testing.T) {
	m := newLeaderboardModel(fakeBoards{})
	m.setSize(120, 36)
	m, _ = m.load()
	m, _ = m.update(leaderboardMsg{gen: m.gen, err: errors.New("HTTP 500")})

	if !strings.Contains(m.view(), "Could not load leaderboards") {
		t.Fatal("error not rendered")
	}
}

func TestLeaderboardSwitchBoards(t *testing.T) {
	m := newLeaderboardModel(fakeBoards{})
	m, _ = m.update(tea.KeyMsg{Type: tea.KeyRight})
	if api.Views[m.board] != "week" {
		t.Fatalf("board = %q, want week", api.Views[m.board])
	}
	m, _ = m.update(tea.KeyMsg{Type: tea.KeyLeft})
	m, _ = m.update(tea.KeyMsg{Type: tea.KeyLeft})
	if api.Views[m.board] != "month" {
		t.Fatalf("board = %q, want month (wrap around)", api.Views[m.board])
	}
}

func TestLeaderboardRendersRows(t *testing.T) {
	m := newLeaderboardModel(fakeBoards{})
	m.setSize(120, 36)
	m, _ = m.load()
	m, _ = m.update(leaderboardMsg{gen: m.gen, boards: sampleBoards()})

	out := m.view()
	for _, want := range []string{"Grace", "Ada", "Gold", "Silver", "You: #2 of 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func TestLeaderboardOffline(t *testing.T) {
	m := newLeaderboardModel(nil)
	m.setSize(120, 36)
	m, cmd := m.load()
	if cmd != nil || m.loading {
		t.Fatal("offline leaderboard should not load")
	}
	if !strings.Contains(m.view(), "Offline") {
		t.Fatal("offline notice missing")
	}
}

// ============================================================
// Settings view
// ============================================================

func TestSettingsLogin(t *testing.T) {
	d := newTestDeps(t)
	s := newSettingsModel(d)

	*s.token = testToken(t)
	msg := s.login()()
	in, ok := msg.(loggedInMsg)
	if !ok {
		t.Fatalf("expected loggedInMsg, got %#v", msg)
	}
	if in.user.Name != "Ada" || !d.Session.Authenticated() {
		t.Fatalf("login did not take effect: %+v", in.user)
	}
	if *s.token != "" {
		t.Fatal("token field should be cleared after login")
	}
	s.setSize(120, 36)
	if !strings.Contains(s.view(), "Ada") {
		t.Fatal("settings should show the signed-in user")
	}
}

func TestSettingsLoginFailure(t *testing.T) {
	d := newTestDeps(t)
	s := newSettingsModel(d)

	*s.token = "not-a-token"
	msg, ok := s.login()().(statusMsg)
	if !ok || !msg.isError {
		t.Fatalf("expected error status, got %#v", msg)
	}
	if d.Session.Authenticated() {
		t.Fatal("bad token must not authenticate")
	}
}

func TestSettingsLogout(t *testing.T) {
	d := newTestDeps(t)
	if _, err := d.Session.Login(testToken(t)); err != nil {
		t.Fatal(err)
	}
	s := newSettingsModel(d)
	s, _ = s.update(runeKey('o'))
	if d.Session.Authenticated() {
		t.Fatal("o should log out")
	}
}

func TestSettingsResetAll(t *testing.T) {
	d := newTestDeps(t)
	d.Progress.Increment("w1", 1)
	d.Streak.Advance("2025-01-02")

	s := newSettingsModel(d)
	*s.confirm = true
	if _, ok := s.resetAll()().(resetAllMsg); !ok {
		t.Fatal("expected resetAllMsg")
	}
	if len(d.Progress.Snapshot()) != 0 {
		t.Fatal("progress not cleared")
	}
	if d.Streak.State().Current != 0 {
		t.Fatal("streak not cleared")
	}
}

func TestSettingsOpensForms(t *testing.T) {
	d := newTestDeps(t)
	s := newSettingsModel(d)

	s, _ = s.update(runeKey('l'))
	if !s.formActive || s.formKind != formLogin {
		t.Fatal("l should open the login form")
	}
	s, _ = s.update(tea.KeyMsg{Type: tea.KeyEsc})
	s, _ = s.update(runeKey('X'))
	if !s.formActive || s.formKind != formResetAll {
		t.Fatal("X should open the reset confirmation")
	}
}

// ============================================================
// App model
// ============================================================

func TestNewApp(t *testing.T) {
	app := NewApp(newTestDeps(t))

	if app.activeView != viewAchievements {
		t.Fatal("default view should be achievements")
	}
	if app.showHelp {
		t.Fatal("help should be hidden by default")
	}
	if app.exportPicking {
		t.Fatal("export picker should be hidden by default")
	}
}

func TestAppIsFormActiveDefault(t *testing.T) {
	app := NewApp(newTestDeps(t))

	if app.isFormActive() {
		t.Fatal("no forms should be active initially")
	}
}

func TestAppViewStates(t *testing.T) {
	app := newTestApp(t)

	// Test all views render without panic
	views := []viewState{viewAchievements, viewLog, viewLeaderboard, viewHistory, viewSettings}
	for _, v := range views {
		app.activeView = v
		output := app.View()
		if output == "" {
			t.Fatalf("view %d rendered empty", v)
		}
	}
}

func TestAppRenderHeaderContainsAllTabs(t *testing.T) {
	app := newTestApp(t)

	header := app.renderHeader()
	for _, name := range viewNames {
		if !strings.Contains(header, name) {
			t.Fatalf("header missing tab %q", name)
		}
	}
	if !strings.Contains(header, "greenloop") {
		t.Fatal("header missing title")
	}
}

func TestAppLoadingState(t *testing.T) {
	app := NewApp(newTestDeps(t))
	// Width 0 means not yet sized
	output := app.View()
	if output != "Loading..." {
		t.Fatalf("expected 'Loading...', got %q", output)
	}
}

func TestAppStatusMessage(t *testing.T) {
	app := newTestApp(t)
	app.status = "test status"

	footer := app.renderFooter()
	if !strings.Contains(footer, "test status") {
		t.Fatal("footer should contain status message")
	}
}

func TestAppFooterShowsStreakAndPending(t *testing.T) {
	app := newTestApp(t)
	app.deps.Streak.Advance("2025-01-02")
	app.deps.Outbox.Add(activity.Event{Type: activity.Other, Value: 1, Date: "2025-01-02"})

	footer := app.renderFooter()
	if !strings.Contains(footer, "🔥 1") || !strings.Contains(footer, "⇡ 1") {
		t.Fatalf("footer missing indicators: %q", footer)
	}
}

func TestAppTabSwitching(t *testing.T) {
	app := newTestApp(t)

	model, _ := app.Update(runeKey('2'))
	app = model.(App)
	if app.activeView != viewLog {
		t.Fatalf("active view = %d, want log", app.activeView)
	}
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyTab})
	app = model.(App)
	if app.activeView != viewLeaderboard {
		t.Fatalf("active view = %d, want leaderboard", app.activeView)
	}
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyTab})
	if model.(App).activeView != viewHistory {
		t.Fatalf("active view = %d, want history", model.(App).activeView)
	}
	model, _ = model.(App).Update(tea.KeyMsg{Type: tea.KeyTab})
	model, _ = model.(App).Update(tea.KeyMsg{Type: tea.KeyTab})
	if model.(App).activeView != viewAchievements {
		t.Fatal("tab should wrap around to achievements")
	}
}

func TestAppLeavingLeaderboardStopsLoad(t *testing.T) {
	d := newTestDeps(t)
	d.Remote = fakeBoards{boards: sampleBoards()}
	app := NewApp(d)
	app.width, app.height = 120, 40

	model, _ := app.Update(runeKey('3'))
	app = model.(App)
	if !app.leaderboard.loading {
		t.Fatal("entering leaderboard should start a load")
	}
	gen := app.leaderboard.gen

	model, _ = app.Update(runeKey('1'))
	app = model.(App)
	if app.leaderboard.loading {
		t.Fatal("leaving leaderboard should stop the load")
	}

	model, _ = app.Update(leaderboardMsg{gen: gen, boards: sampleBoards()})
	if model.(App).leaderboard.boards != nil {
		t.Fatal("result of a torn-down load was applied")
	}
}

func TestAppProgressChangedReloads(t *testing.T) {
	app := newTestApp(t)
	app.deps.Progress.Increment("w1", 1)

	model, _ := app.Update(ProgressChangedMsg{})
	if model.(App).achievements.unlockedCount() != 1 {
		t.Fatal("achievements not reloaded on ProgressChangedMsg")
	}
}

func TestAppSyncCmd(t *testing.T) {
	d := newTestDeps(t)
	sync := &fakeSyncer{}
	d.Sync = sync
	app := NewApp(d)

	if msg, ok := app.syncCmd()().(statusMsg); !ok || msg.text != "Log in to sync" {
		t.Fatalf("expected login prompt, got %#v", msg)
	}

	if _, err := d.Session.Login(testToken(t)); err != nil {
		t.Fatal(err)
	}
	if msg := app.syncCmd()(); msg != (syncDoneMsg{}) {
		t.Fatalf("unexpected sync result %#v", msg)
	}
	// The flush refreshes on its own; a second pull would be redundant.
	if sync.flushes != 1 || sync.refreshes != 0 {
		t.Fatalf("flushes=%d refreshes=%d", sync.flushes, sync.refreshes)
	}

	sync.flushErr = errors.New("offline")
	msg := app.syncCmd()().(syncDoneMsg)
	if msg.err == nil {
		t.Fatal("flush failure should be reported")
	}
	if sync.refreshes != 0 {
		t.Fatal("refresh should not run after a failed flush")
	}
}

func TestAppSyncOffline(t *testing.T) {
	app := newTestApp(t)
	msg, ok := app.syncCmd()().(statusMsg)
	if !ok || !strings.Contains(msg.text, "Offline") {
		t.Fatalf("unexpected offline sync result %#v", msg)
	}
}

func TestAppLoadCatalog(t *testing.T) {
	d := newTestDeps(t)
	if NewApp(d).loadCatalog() != nil {
		t.Fatal("no fetcher and no syncer should skip loading")
	}

	d.Fetcher = fakeFetcher{goals: []catalog.Goal{{ID: "z9", Title: "Server goal", Required: 10}}}
	msg := NewApp(d).loadCatalog()().(catalogLoadedMsg)
	if msg.err != nil {
		t.Fatal(msg.err)
	}
	if _, ok := d.Catalog.Lookup("z9"); !ok {
		t.Fatal("server goal not merged")
	}

	d.Fetcher = fakeFetcher{err: errors.New("connection refused")}
	msg = NewApp(d).loadCatalog()().(catalogLoadedMsg)
	if msg.err == nil {
		t.Fatal("fetch error should be reported")
	}
	if d.Catalog.Len() == 0 {
		t.Fatal("catalog must never be empty")
	}
}

func TestAppExport(t *testing.T) {
	app := newTestApp(t)
	app.deps.Progress.Increment("w1", 1)

	for format, ext := range map[int]string{0: ".csv", 1: ".json"} {
		msg, ok := app.doExport(format)().(exportDoneMsg)
		if !ok {
			t.Fatalf("export %s failed", ext)
		}
		if filepath.Ext(msg.path) != ext || filepath.Dir(msg.path) != app.deps.ExportDir {
			t.Fatalf("unexpected export path %q", msg.path)
		}
		if _, err := os.Stat(msg.path); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAppExportPicker(t *testing.T) {
	app := newTestApp(t)

	model, _ := app.Update(runeKey('e'))
	app = model.(App)
	if !app.exportPicking {
		t.Fatal("e should open the export picker")
	}
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if model.(App).exportPicking {
		t.Fatal("esc should close the export picker")
	}
}

// ============================================================
// Key bindings
// ============================================================

func TestKeyMapShortHelp(t *testing.T) {
	bindings := keys.ShortHelp()
	if len(bindings) == 0 {
		t.Fatal("short help should have bindings")
	}
}

func TestKeyMapFullHelp(t *testing.T) {
	groups := keys.FullHelp()
	if len(groups) == 0 {
		t.Fatal("full help should have groups")
	}
	for i, g := range groups {
		if len(g) == 0 {
			t.Fatalf("full help group %d is empty", i)
		}
	}
}

// ============================================================
// Styles (smoke test, just verify they don't panic)
// ============================================================

func TestStylesRender(t *testing.T) {
	styles := []struct {
		name string
		fn   func() string
	}{
		{"activeTab", func() string { return activeTabStyle.Render("test") }},
		{"inactiveTab", func() string { return inactiveTabStyle.Render("test") }},
		{"panel", func() string { return panelStyle.Render("test") }},
		{"activePanel", func() string { return activePanelStyle.Render("test") }},
		{"title", func() string { return titleStyle.Render("test") }},
		{"subtitle", func() string { return subtitleStyle.Render("test") }},
		{"accent", func() string { return accentStyle.Render("test") }},
		{"success", func() string { return successStyle.Render("test") }},
		{"warning", func() string { return warningStyle.Render("test") }},
		{"error", func() string { return errorStyle.Render("test") }},
		{"muted", func() string { return mutedStyle.Render("test") }},
		{"highlight", func() string { return highlightStyle.Render("test") }},
		{"header", func() string { return headerStyle.Render("test") }},
		{"footer", func() string { return footerStyle.Render("test") }},
		{"selectedItem", func() string { return selectedItemStyle.Render("test") }},
		{"normalItem", func() string { return normalItemStyle.Render("test") }},
		{"unlocked", func() string { return unlockedStyle.Render("test") }},
	}

	for _, s := range styles {
		result := s.fn()
		if result == "" {
			t.Fatalf("style %q rendered empty", s.name)
		}
	}
}
