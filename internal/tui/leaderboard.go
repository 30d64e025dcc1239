package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dmeshram/greenloop/internal/api"
)

const leaderboardTimeout = 15 * time.Second

var titleCaser = cases.Title(language.English)

type leaderboardMsg struct {
	gen    uint64
	boards map[string]*api.Leaderboard
	err    error
}

type leaderboardModel struct {
	source LeaderboardSource
	width  int
	height int

	// gen identifies the load in flight. Results tagged with an older
	// generation belong to a superseded or abandoned load and are dropped.
	gen     uint64
	cancel  context.CancelFunc
	loading bool
	spinner spinner.Model

	boards map[string]*api.Leaderboard
	err    error
	board  int
}

func newLeaderboardModel(src LeaderboardSource) leaderboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle
	return leaderboardModel{source: src, spinner: sp}
}

func (l *leaderboardModel) setSize(w, h int) {
	l.width = w
	l.height = h
}

// load starts a fresh fetch of every view, abandoning any load in flight.
func (l leaderboardModel) load() (leaderboardModel, tea.Cmd) {
	l = l.stop()
	if l.source == nil {
		l.err = nil
		return l, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), leaderboardTimeout)
	l.cancel = cancel
	l.loading = true
	l.err = nil
	gen := l.gen
	src := l.source

	fetch := func() tea.Msg {
		defer cancel()
		boards, err := src.Leaderboards(ctx)
		return leaderboardMsg{gen: gen, boards: boards, err: err}
	}
	return l, tea.Batch(fetch, l.spinner.Tick)
}

// stop abandons the load in flight, if any.
func (l leaderboardModel) stop() leaderboardModel {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
	l.loading = false
	return l
}

func (l leaderboardModel) update(msg tea.Msg) (leaderboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case leaderboardMsg:
		if msg.gen != l.gen {
			return l, nil
		}
		l.loading = false
		l.cancel = nil
		if msg.err != nil {
			l.err = msg.err
			return l, nil
		}
		l.boards = msg.boards
		return l, nil

	case spinner.TickMsg:
		if !l.loading {
			return l, nil
		}
		var cmd tea.Cmd
		l.spinner, cmd = l.spinner.Update(msg)
		return l, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			l.board = (l.board + len(api.Views) - 1) % len(api.Views)
		case key.Matches(msg, keys.Right):
			l.board = (l.board + 1) % len(api.Views)
		case key.Matches(msg, keys.Sync):
			return l.load()
		}
	}
	return l, nil
}

func (l leaderboardModel) current() *api.Leaderboard {
	if l.boards == nil {
		return nil
	}
	return l.boards[api.Views[l.board]]
}

func (l leaderboardModel) renderViewTabs() string {
	var tabs []string
	for i, v := range api.Views {
		name := titleCaser.String(v)
		if i == l.board {
			tabs = append(tabs, highlightStyle.Render("["+name+"]"))
		} else {
			tabs = append(tabs, mutedStyle.Render(" "+name+" "))
		}
	}
	return strings.Join(tabs, " ")
}

func (l leaderboardModel) view() string {
	w := l.width - 4
	title := titleStyle.Render("Leaderboard") + "  " + l.renderViewTabs()

	switch {
	case l.source == nil:
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("Offline: no server configured."),
		))
	case l.loading:
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", l.spinner.View()+" Loading leaderboards...",
		))
	case l.err != nil:
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", errorStyle.Render("Could not load leaderboards: "+l.err.Error()),
			"", mutedStyle.Render("  s: retry"),
		))
	}

	board := l.current()
	if board == nil || len(board.Users) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No entries yet."), "", mutedStyle.Render("  s: refresh"),
		))
	}

	var rows []string
	rows = append(rows, title, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-5s %-22s %10s %8s %7s %-10s",
		"Rank", "Name", "CO₂ (kg)", "Points", "Streak", "Level")))

	visible := max(1, l.height-10)
	for i, u := range board.Users {
		if i >= visible {
			break
		}
		rows = append(rows, renderLeaderRow(u))
	}

	if me, ok := board.CurrentUser(); ok {
		rows = append(rows, "", accentStyle.Render(fmt.Sprintf(
			"  You: #%d of %d, top %.0f%%", me.Rank, board.Total, 100-me.Percentile)))
	}

	rows = append(rows, "", mutedStyle.Render("  ←/→: switch board  s: refresh"))
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderLeaderRow(u api.LeaderboardUser) string {
	name := u.Name
	if name == "" {
		name = u.Email
	}
	line := fmt.Sprintf("  %-5d %-22s %10.1f %8d %7d %-10s",
		u.Rank, truncate(name, 22), u.TotalCarbonSavedKg, u.WeeklyPoints, u.StreakDays,
		titleCaser.String(strings.ToLower(u.Level)))
	if u.IsCurrentUser {
		return selectedItemStyle.Render(line)
	}
	return normalItemStyle.Render(line)
}
