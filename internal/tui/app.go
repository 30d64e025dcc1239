package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dmeshram/greenloop/internal/export"
	"github.com/dmeshram/greenloop/internal/logger"
)

const syncTimeout = 20 * time.Second

// App is the root Bubble Tea model.
type App struct {
	deps   Deps
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	achievements achievementsModel
	log          logModel
	leaderboard  leaderboardModel
	insights     insightsModel
	settings     settingsModel

	help      help.Model
	status    string
	statusErr bool
}

func NewApp(d Deps) App {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	h := help.New()
	h.ShowAll = false

	return App{
		deps:         d,
		activeView:   viewAchievements,
		achievements: newAchievementsModel(d),
		log:          newLogModel(d),
		leaderboard:  newLeaderboardModel(d.Remote),
		insights:     newInsightsModel(d),
		settings:     newSettingsModel(d),
		help:         h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.loadCatalog(),
		a.log.refresh(),
	)
}

// loadCatalog refreshes goal definitions from the server, then server progress.
// The UI is usable with the cached catalog while this runs.
func (a App) loadCatalog() tea.Cmd {
	d := a.deps
	if d.Fetcher == nil && d.Sync == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		var err error
		if d.Fetcher != nil {
			if err = d.Catalog.Load(ctx, d.Fetcher); err != nil {
				d.Log.Warn("using cached goal catalog", "error", err)
			}
		}
		if d.Sync != nil {
			if rerr := d.Sync.Refresh(ctx); rerr != nil {
				d.Log.Warn("progress refresh failed", "error", rerr)
			}
		}
		return catalogLoadedMsg{err: err}
	}
}

// syncCmd replays queued activities. The flush pulls server progress itself
// once the queue is empty.
func (a App) syncCmd() tea.Cmd {
	s := a.deps.Sync
	if s == nil {
		return statusCmd("Offline: nothing to sync", false)
	}
	if a.deps.Session != nil && !a.deps.Session.Authenticated() {
		return statusCmd("Log in to sync", false)
	}
	log := a.deps.Log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		if err := s.FlushPending(ctx); err != nil {
			log.Warn("flush pending activities", "error", err)
			return syncDoneMsg{err: err}
		}
		return syncDoneMsg{}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.achievements.setSize(a.width, contentHeight)
		a.log.setSize(a.width, contentHeight)
		a.leaderboard.setSize(a.width, contentHeight)
		a.insights.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		// Export picker
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			a.leaderboard = a.leaderboard.stop()
			a.insights = a.insights.stop()
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			return a.switchTo(viewAchievements)
		case key.Matches(msg, keys.Tab2):
			return a.switchTo(viewLog)
		case key.Matches(msg, keys.Tab3):
			return a.switchTo(viewLeaderboard)
		case key.Matches(msg, keys.Tab4):
			return a.switchTo(viewHistory)
		case key.Matches(msg, keys.Tab5):
			return a.switchTo(viewSettings)
		case key.Matches(msg, keys.Tab):
			return a.switchTo((a.activeView + 1) % viewState(len(viewNames)))
		case key.Matches(msg, keys.Sync):
			cmds := []tea.Cmd{a.syncCmd()}
			var cmd tea.Cmd
			switch a.activeView {
			case viewLeaderboard:
				a.leaderboard, cmd = a.leaderboard.load()
			case viewHistory:
				a.insights, cmd = a.insights.load()
			}
			cmds = append(cmds, cmd)
			return a, tea.Batch(cmds...)
		}

	case statusMsg:
		a.status = msg.text
		a.statusErr = msg.isError
		return a, nil

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusErr = false
		a.exportPicking = false
		return a, nil

	case catalogLoadedMsg:
		if msg.err != nil {
			a.status = "Offline: showing cached goals"
			a.statusErr = false
		}
		return a.broadcast(msg)

	case syncDoneMsg:
		if msg.err != nil {
			a.status = fmt.Sprintf("Sync failed: %v", msg.err)
			a.statusErr = true
		} else {
			a.status = "Synced"
			a.statusErr = false
		}
		return a.broadcast(ProgressChangedMsg{})

	case loggedInMsg:
		name := msg.user.Name
		if name == "" {
			name = msg.user.Email
		}
		a.status = "Logged in as " + name
		a.statusErr = false
		return a, a.syncCmd()

	case resetAllMsg:
		a.status = "All progress reset"
		a.statusErr = false
		return a.broadcast(ProgressChangedMsg{})

	case ProgressChangedMsg, activityLoggedMsg, historyMsg:
		return a.broadcast(msg)

	case leaderboardMsg:
		var cmd tea.Cmd
		a.leaderboard, cmd = a.leaderboard.update(msg)
		return a, cmd

	case insightsMsg:
		var cmd tea.Cmd
		a.insights, cmd = a.insights.update(msg)
		return a, cmd

	case spinner.TickMsg:
		// Each spinner ignores ticks carrying another spinner's id.
		var lcmd, icmd tea.Cmd
		a.leaderboard, lcmd = a.leaderboard.update(msg)
		a.insights, icmd = a.insights.update(msg)
		return a, tea.Batch(lcmd, icmd)
	}

	return a.updateActiveView(msg)
}

// broadcast delivers data messages to every view that renders local state.
func (a App) broadcast(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.achievements, cmd = a.achievements.update(msg)
	cmds = append(cmds, cmd)
	a.log, cmd = a.log.update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

func (a App) switchTo(v viewState) (tea.Model, tea.Cmd) {
	if a.activeView == v {
		return a, nil
	}
	switch a.activeView {
	case viewLeaderboard:
		a.leaderboard = a.leaderboard.stop()
	case viewHistory:
		a.insights = a.insights.stop()
	}
	a.activeView = v

	switch v {
	case viewAchievements:
		a.achievements.reload()
	case viewLog:
		return a, a.log.refresh()
	case viewLeaderboard:
		var cmd tea.Cmd
		a.leaderboard, cmd = a.leaderboard.load()
		return a, cmd
	case viewHistory:
		var cmd tea.Cmd
		a.insights, cmd = a.insights.load()
		return a, cmd
	}
	return a, nil
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewAchievements:
		a.achievements, cmd = a.achievements.update(msg)
	case viewLog:
		a.log, cmd = a.log.update(msg)
	case viewLeaderboard:
		a.leaderboard, cmd = a.leaderboard.update(msg)
	case viewHistory:
		a.insights, cmd = a.insights.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewAchievements:
		return a.achievements.formActive
	case viewLog:
		return a.log.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewAchievements:
		content = a.achievements.view()
	case viewLog:
		content = a.log.view()
	case viewLeaderboard:
		content = a.leaderboard.view()
	case viewHistory:
		content = a.insights.view()
	case viewSettings:
		content = a.settings.view()
	}

	// Calculate available height for content
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(1, a.height-headerHeight-footerHeight)

	// Show export picker overlay
	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("greenloop")
	gap := max(1, a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		if a.statusErr {
			status = errorStyle.Render(" " + a.status)
		} else {
			status = mutedStyle.Render(" " + a.status)
		}
	}

	info := ""
	if a.deps.Streak != nil {
		if n := a.deps.Streak.State().Current; n > 0 {
			info += accentStyle.Render(fmt.Sprintf(" 🔥 %d", n))
		}
	}
	if a.deps.Outbox != nil {
		if n := a.deps.Outbox.Len(); n > 0 {
			info += warningStyle.Render(fmt.Sprintf(" ⇡ %d", n))
		}
	}

	left := footerStyle.Render(helpView)
	right := info + status

	gap := max(1, a.width-lipgloss.Width(left)-lipgloss.Width(right)-2)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Format")
	formats := []string{"CSV", "JSON"}
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range formats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < 1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	d := a.deps
	return func() tea.Msg {
		rows := export.Rows(d.Catalog.Goals(), d.Progress.Snapshot())

		dir := d.ExportDir
		if dir == "" {
			dir, _ = os.UserHomeDir()
		}
		dateStr := time.Now().Format("2006-01-02")

		var path string
		if format == 0 {
			path = filepath.Join(dir, fmt.Sprintf("greenloop-export-%s.csv", dateStr))
			if err := export.ToCSV(rows, path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(dir, fmt.Sprintf("greenloop-export-%s.json", dateStr))
			if err := export.ToJSON(rows, path); err != nil {
				return statusMsg{text: fmt.Sprintf("JSON error: %v", err), isError: true}
			}
		}

		d.Log.Info("exported achievements", "path", path, "goals", len(rows))
		return exportDoneMsg{path: path}
	}
}
