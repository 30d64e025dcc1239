package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dmeshram/greenloop/internal/api"
	"github.com/dmeshram/greenloop/internal/auth"
)

const (
	trendBarWidth  = 30
	insightsListed = 6
)

type insightsMsg struct {
	gen     uint64
	summary *api.HomeSummary
	history *api.History
	err     error
}

// insightsModel shows the server-side summary and 30-day history.
type insightsModel struct {
	source  InsightsSource
	session *auth.Session
	width   int
	height  int

	gen     uint64
	cancel  context.CancelFunc
	loading bool
	spinner spinner.Model

	summary *api.HomeSummary
	history *api.History
	err     error
}

func newInsightsModel(d Deps) insightsModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle
	return insightsModel{source: d.Insights, session: d.Session, spinner: sp}
}

func (m *insightsModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m insightsModel) signedIn() bool {
	return m.session != nil && m.session.Authenticated()
}

// load fetches summary and history, abandoning any load in flight.
func (m insightsModel) load() (insightsModel, tea.Cmd) {
	m = m.stop()
	m.err = nil
	if m.source == nil || !m.signedIn() {
		return m, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), leaderboardTimeout)
	m.cancel = cancel
	m.loading = true
	gen, src := m.gen, m.source

	fetch := func() tea.Msg {
		defer cancel()
		sum, hist, err := src.Insights(ctx)
		return insightsMsg{gen: gen, summary: sum, history: hist, err: err}
	}
	return m, tea.Batch(fetch, m.spinner.Tick)
}

func (m insightsModel) stop() insightsModel {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.loading = false
	return m
}

func (m insightsModel) update(msg tea.Msg) (insightsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case insightsMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.loading = false
		m.cancel = nil
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.summary, m.history = msg.summary, msg.history
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m insightsModel) view() string {
	w := m.width - 4
	title := titleStyle.Render("History")
	notice := func(lines ...string) string {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, append([]string{title, ""}, lines...)...))
	}

	switch {
	case m.source == nil:
		return notice(mutedStyle.Render("Offline: no server configured."))
	case !m.signedIn():
		return notice(mutedStyle.Render("Log in from Settings to see your history."))
	case m.loading:
		return notice(m.spinner.View() + " Loading history...")
	case m.err != nil:
		return notice(errorStyle.Render("Could not load history: "+m.err.Error()), "", mutedStyle.Render("  s: retry"))
	case m.history == nil:
		return notice(mutedStyle.Render("No history yet."), "", mutedStyle.Render("  s: refresh"))
	}

	h := m.history
	if h.StreakDays > 0 {
		title += "  " + accentStyle.Render(fmt.Sprintf("🔥 %d-day streak", h.StreakDays))
	}
	rows := []string{title, ""}

	if s := m.summary; s != nil {
		rows = append(rows, fmt.Sprintf("  Points %s   This week %s   CO₂ saved %s kg",
			highlightStyle.Render(formatAmount(float64(s.TotalPoints))),
			highlightStyle.Render(formatAmount(float64(s.WeeklyPoints))),
			highlightStyle.Render(formatAmount(s.CO2SavedKg))))
		if s.WeeklyGoalDays > 0 {
			rows = append(rows, mutedStyle.Render(fmt.Sprintf("  Active %d of %d days this week", s.WeeklyActiveDays, s.WeeklyGoalDays)))
		}
		rows = append(rows, "")
	}

	rows = append(rows, subtitleStyle.Render(fmt.Sprintf("CO₂ saved, last 7 days (%s kg)", formatAmount(h.TrendTotal()))))
	rows = append(rows, renderTrend(h.CO2Trend)...)

	rows = append(rows, "", subtitleStyle.Render(fmt.Sprintf("Last %d days", len(h.Calendar))))
	rows = append(rows, "  "+renderCalendar(h.Calendar)+mutedStyle.Render(fmt.Sprintf("  %d active", h.ActiveDays())))

	if len(h.CompletedActivities) > 0 {
		rows = append(rows, "", subtitleStyle.Render("Completed"))
		for _, a := range h.CompletedActivities[:min(len(h.CompletedActivities), insightsListed)] {
			rows = append(rows, fmt.Sprintf("  %s  %-28s %s",
				mutedStyle.Render(a.Date), truncate(a.Activity, 28), highlightStyle.Render(formatAmount(a.CO2Saved)+" kg")))
		}
	}

	if len(h.Achievements) > 0 {
		rows = append(rows, "", subtitleStyle.Render("Unlocked"))
		for _, a := range h.Achievements[:min(len(h.Achievements), insightsListed)] {
			rows = append(rows, unlockedStyle.Render("  ★ "+a.Title)+mutedStyle.Render("  "+a.Date))
		}
	}

	rows = append(rows, "", mutedStyle.Render("  s: refresh"))
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderTrend draws one bar per day scaled to the busiest day.
func renderTrend(points []api.TrendPoint) []string {
	if len(points) == 0 {
		return []string{mutedStyle.Render("  No activity this week.")}
	}
	peak := 0.0
	for _, p := range points {
		peak = max(peak, p.KG)
	}
	out := make([]string, 0, len(points))
	for _, p := range points {
		n := 0
		if peak > 0 {
			n = int(p.KG / peak * trendBarWidth)
		}
		if n == 0 && p.KG > 0 {
			n = 1
		}
		n = min(max(n, 0), trendBarWidth)
		bar := accentStyle.Render(strings.Repeat("█", n)) + mutedStyle.Render(strings.Repeat("░", trendBarWidth-n))
		out = append(out, fmt.Sprintf("  %-3s %s %s kg", p.Day, bar, formatAmount(p.KG)))
	}
	return out
}

func renderCalendar(days []api.CalendarDay) string {
	var b strings.Builder
	for _, d := range days {
		if d.Completed {
			b.WriteString(unlockedStyle.Render("■"))
		} else {
			b.WriteString(mutedStyle.Render("·"))
		}
	}
	return b.String()
}
