package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	bprogress "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/dmeshram/greenloop/internal/api"
	"github.com/dmeshram/greenloop/internal/auth"
	"github.com/dmeshram/greenloop/internal/catalog"
	"github.com/dmeshram/greenloop/internal/export"
	"github.com/dmeshram/greenloop/internal/progress"
)

type achievementsModel struct {
	catalog  *catalog.Catalog
	progress *progress.Store
	goals    GoalSync
	session  *auth.Session
	log      *slog.Logger
	width    int
	height   int

	rows   []export.Row
	cursor int
	offset int
	bar    bprogress.Model

	formActive bool
	form       *huh.Form

	// Form field pointers (survive value copies)
	formTitle    *string
	formDesc     *string
	formRequired *string
	formUnit     *string
}

func newAchievementsModel(d Deps) achievementsModel {
	title, desc, req, unit := "", "", "", ""
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	m := achievementsModel{
		catalog:      d.Catalog,
		progress:     d.Progress,
		goals:        d.Goals,
		session:      d.Session,
		log:          log,
		bar:          bprogress.New(bprogress.WithDefaultGradient(), bprogress.WithoutPercentage(), bprogress.WithWidth(24)),
		formTitle:    &title,
		formDesc:     &desc,
		formRequired: &req,
		formUnit:     &unit,
	}
	m.reload()
	return m
}

func (a *achievementsModel) setSize(w, h int) {
	a.width = w
	a.height = h
	a.bar.Width = max(10, min(30, w/4))
}

// reload re-reads the catalog and progress store.
func (a *achievementsModel) reload() {
	a.rows = export.Rows(a.catalog.Goals(), a.progress.Snapshot())
	if a.cursor >= len(a.rows) {
		a.cursor = max(0, len(a.rows)-1)
	}
}

func (a achievementsModel) unlockedCount() int {
	n := 0
	for _, r := range a.rows {
		if r.Unlocked {
			n++
		}
	}
	return n
}

func (a achievementsModel) selected() (export.Row, bool) {
	if a.cursor < 0 || a.cursor >= len(a.rows) {
		return export.Row{}, false
	}
	return a.rows[a.cursor], true
}

func (a achievementsModel) update(msg tea.Msg) (achievementsModel, tea.Cmd) {
	if a.formActive && a.form != nil {
		return a.updateForm(msg)
	}

	switch msg := msg.(type) {
	case ProgressChangedMsg, catalogLoadedMsg, activityLoggedMsg:
		a.reload()
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if a.cursor > 0 {
				a.cursor--
			}
		case key.Matches(msg, keys.Down):
			if a.cursor < len(a.rows)-1 {
				a.cursor++
			}
		case key.Matches(msg, keys.Increment):
			if r, ok := a.selected(); ok {
				before := r.Unlocked
				e := a.progress.Increment(r.GoalID, 1)
				a.reload()
				push := a.pushProgress(r.GoalID, func(ctx context.Context, g GoalSync, sid int64) error {
					_, err := g.IncrementGoal(ctx, sid, 1)
					return err
				})
				if !before && e.Unlocked() {
					return a, tea.Batch(statusCmd(fmt.Sprintf("Unlocked %q!", r.Title), false), push)
				}
				return a, push
			}
		case key.Matches(msg, keys.Reset):
			if r, ok := a.selected(); ok {
				a.progress.Reset(r.GoalID)
				a.reload()
				push := a.pushProgress(r.GoalID, func(ctx context.Context, g GoalSync, sid int64) error {
					_, err := g.SetGoalProgress(ctx, sid, 0)
					return err
				})
				return a, tea.Batch(statusCmd("Reset "+r.Title, false), push)
			}
		case key.Matches(msg, keys.New):
			return a.showNewGoalForm()
		}
	}
	return a, nil
}

func (a achievementsModel) signedIn() bool {
	return a.goals != nil && a.session != nil && a.session.Authenticated()
}

// publishGoal creates g on the server and links the returned id.
func (a achievementsModel) publishGoal(g catalog.Goal) tea.Cmd {
	if !a.signedIn() {
		return nil
	}
	remote, c, log := a.goals, a.catalog, a.log
	req := api.CreateGoalRequest{
		Title:       g.Title,
		Description: g.Description,
		Required:    int(math.Ceil(g.Required)),
		Icon:        g.Icon,
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		created, err := remote.CreateGoal(ctx, req)
		if err != nil {
			log.Warn("creating goal on server failed", "goal", g.ID, "error", err)
			return statusMsg{text: "Goal kept locally: " + err.Error(), isError: true}
		}
		if err := c.LinkServer(g.ID, created.ID); err != nil {
			log.Warn("linking server goal failed", "goal", g.ID, "error", err)
		}
		return nil
	}
}

// pushProgress mirrors a manual change of a linked custom goal.
func (a achievementsModel) pushProgress(goalID string, fn func(ctx context.Context, g GoalSync, serverID int64) error) tea.Cmd {
	if !a.signedIn() {
		return nil
	}
	g, ok := a.catalog.Lookup(goalID)
	if !ok || !g.Custom || g.ServerID == 0 {
		return nil
	}
	remote, log := a.goals, a.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := fn(ctx, remote, g.ServerID); err != nil {
			log.Warn("pushing goal progress failed", "goal", goalID, "error", err)
		}
		return nil
	}
}

func statusCmd(text string, isError bool) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: text, isError: isError} }
}

func (a achievementsModel) showNewGoalForm() (achievementsModel, tea.Cmd) {
	*a.formTitle = ""
	*a.formDesc = ""
	*a.formRequired = "1"
	*a.formUnit = "actions"

	a.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").Value(a.formTitle).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("title is required")
					}
					return nil
				}),
			huh.NewInput().Title("Description").Value(a.formDesc),
			huh.NewInput().Title("Required").Value(a.formRequired).
				Validate(func(s string) error {
					if _, err := parseAmount(s); err != nil {
						return errors.New("enter a number above zero")
					}
					return nil
				}),
			huh.NewInput().Title("Unit").Placeholder("actions").Value(a.formUnit),
		),
	).WithShowHelp(true).WithShowErrors(true)

	a.formActive = true
	return a, a.form.Init()
}

func (a achievementsModel) updateForm(msg tea.Msg) (achievementsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			a.formActive = false
			a.form = nil
			return a, nil
		}
	}

	form, cmd := a.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.form = f
	}

	if a.form.State == huh.StateCompleted {
		a.formActive = false
		required, _ := parseAmount(*a.formRequired)
		g, err := a.catalog.AddCustom(catalog.NewGoal{
			Title:       *a.formTitle,
			Description: *a.formDesc,
			Required:    required,
			Unit:        *a.formUnit,
		})
		if err != nil {
			return a, statusCmd(fmt.Sprintf("Error: %v", err), true)
		}
		a.reload()
		a.cursor = len(a.rows) - 1
		return a, tea.Batch(statusCmd("Added goal "+g.Title, false), a.publishGoal(g))
	}

	return a, cmd
}

func (a achievementsModel) view() string {
	w := a.width - 4

	if a.formActive && a.form != nil {
		title := titleStyle.Render("New Goal")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", a.form.View()),
		)
	}

	title := titleStyle.Render("Achievements") + "  " +
		highlightStyle.Render(fmt.Sprintf("%d/%d unlocked", a.unlockedCount(), len(a.rows)))

	if len(a.rows) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No goals."),
		))
	}

	var lines []string
	lines = append(lines, title, "")

	visible := max(1, a.height-8)
	start := 0
	if a.cursor >= visible {
		start = a.cursor - visible + 1
	}
	end := min(len(a.rows), start+visible)

	goals := a.catalog.Goals()
	for i := start; i < end; i++ {
		lines = append(lines, a.renderRow(i, goals))
	}

	lines = append(lines, "")
	lines = append(lines, mutedStyle.Render("  +: +1  r: reset goal  n: new goal  e: export"))
	return panelStyle.Width(w).Render(strings.Join(lines, "\n"))
}

func (a achievementsModel) renderRow(i int, goals []catalog.Goal) string {
	r := a.rows[i]
	icon := "·"
	if i < len(goals) && goals[i].ID == r.GoalID && goals[i].Icon != "" {
		icon = goals[i].Icon
	}

	cursor := "  "
	style := normalItemStyle
	if i == a.cursor {
		cursor = "> "
		style = selectedItemStyle
	}

	name := style.Render(fmt.Sprintf("%s%s %-28s", cursor, icon, truncate(r.Title, 28)))
	bar := a.bar.ViewAs(r.Percent / 100)
	amount := mutedStyle.Render(fmt.Sprintf(" %s/%s %s", formatAmount(r.Progress), formatAmount(r.Required), r.Unit))

	badge := ""
	if r.Unlocked {
		badge = unlockedStyle.Render("  ★ unlocked")
	}
	return name + " " + bar + amount + badge
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
