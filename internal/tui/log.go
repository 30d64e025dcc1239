package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/dmeshram/greenloop/internal/activity"
	"github.com/dmeshram/greenloop/internal/api"
	"github.com/dmeshram/greenloop/internal/auth"
	"github.com/dmeshram/greenloop/internal/outbox"
	"github.com/dmeshram/greenloop/internal/store"
	"github.com/dmeshram/greenloop/internal/streak"
)

const recentLimit = 8

type logModel struct {
	bus     *activity.Bus
	history History
	remote  RecentSource
	session *auth.Session
	streak  *streak.Tracker
	outbox  *outbox.Queue
	log     *slog.Logger
	width   int
	height  int
	now     func() time.Time

	recent     []store.LoggedActivity
	fromServer bool

	formActive bool
	form       *huh.Form

	// Form field pointers (survive value copies)
	formType  *string
	formValue *string
	formUnit  *string
	formDate  *string
}

func newLogModel(d Deps) logModel {
	typ, val, unit, date := "", "", "", ""
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return logModel{
		bus:       d.Bus,
		history:   d.History,
		remote:    d.Recent,
		session:   d.Session,
		streak:    d.Streak,
		outbox:    d.Outbox,
		log:       log,
		now:       time.Now,
		formType:  &typ,
		formValue: &val,
		formUnit:  &unit,
		formDate:  &date,
	}
}

func (l *logModel) setSize(w, h int) {
	l.width = w
	l.height = h
}

// refresh lists the server's recent activities when signed in and the local
// history otherwise, or when the server cannot be reached.
func (l logModel) refresh() tea.Cmd {
	h, log := l.history, l.log
	if l.remote != nil && l.session != nil && l.session.Authenticated() {
		remote := l.remote
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
			defer cancel()
			list, err := remote.RecentActivities(ctx)
			if err == nil {
				return historyMsg{items: serverItems(list), server: true}
			}
			log.Warn("recent activities unavailable, showing local history", "error", err)
			return localHistory(h, log)
		}
	}
	if h == nil {
		return nil
	}
	return func() tea.Msg { return localHistory(h, log) }
}

func localHistory(h History, log *slog.Logger) tea.Msg {
	if h == nil {
		return historyMsg{}
	}
	items, err := h.ListActivities(store.ActivityFilter{Limit: recentLimit})
	if err != nil {
		log.Warn("listing activity history failed", "error", err)
	}
	return historyMsg{items: items}
}

func serverItems(list []api.LoggedActivity) []store.LoggedActivity {
	list = list[:min(len(list), recentLimit)]
	out := make([]store.LoggedActivity, 0, len(list))
	for _, a := range list {
		out = append(out, store.LoggedActivity{
			ID:    a.ID,
			Type:  string(a.Kind()),
			Value: a.Amount,
			Unit:  a.Unit,
			Date:  a.Date,
		})
	}
	return out
}

// defaultUnit suggests the unit the matching goals count in.
func defaultUnit(t activity.Type) string {
	switch t {
	case activity.Walking:
		return "steps"
	case activity.Cycling:
		return "km"
	case activity.Recycling:
		return "items"
	}
	return ""
}

func (l logModel) update(msg tea.Msg) (logModel, tea.Cmd) {
	if l.formActive && l.form != nil {
		return l.updateForm(msg)
	}

	switch msg := msg.(type) {
	case historyMsg:
		l.recent = msg.items
		l.fromServer = msg.server
		return l, nil

	case activityLoggedMsg, ProgressChangedMsg:
		return l, l.refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.New), key.Matches(msg, keys.Enter):
			return l.showForm()
		}
	}
	return l, nil
}

func (l logModel) showForm() (logModel, tea.Cmd) {
	*l.formType = string(activity.Walking)
	*l.formValue = "1"
	*l.formUnit = ""
	*l.formDate = l.now().Format(activity.DateLayout)

	opts := make([]huh.Option[string], 0, len(activity.Loggable))
	for _, t := range activity.Loggable {
		opts = append(opts, huh.NewOption(t.Label(), string(t)))
	}

	l.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Activity").Options(opts...).Value(l.formType),
			huh.NewInput().Title("Amount").Value(l.formValue).
				Validate(func(s string) error {
					if _, err := parseAmount(strings.TrimSpace(s)); err != nil {
						return errors.New("enter a number above zero")
					}
					return nil
				}),
			huh.NewInput().Title("Unit").Placeholder("steps, km, items...").Value(l.formUnit),
			huh.NewInput().Title("Date (YYYY-MM-DD)").Value(l.formDate).
				Validate(func(s string) error {
					if _, err := time.Parse(activity.DateLayout, strings.TrimSpace(s)); err != nil {
						return errors.New("use YYYY-MM-DD")
					}
					return nil
				}),
		),
	).WithShowHelp(true).WithShowErrors(true)

	l.formActive = true
	return l, l.form.Init()
}

func (l logModel) updateForm(msg tea.Msg) (logModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			l.formActive = false
			l.form = nil
			return l, nil
		}
	}

	form, cmd := l.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		l.form = f
	}

	if l.form.State == huh.StateCompleted {
		l.formActive = false
		e := l.submit()
		logged := func() tea.Msg { return activityLoggedMsg{event: e} }
		return l, tea.Batch(logged, statusCmd("Logged "+e.Type.Label(), false))
	}

	return l, cmd
}

// submit publishes the form contents on the bus.
func (l logModel) submit() activity.Event {
	value, _ := parseAmount(strings.TrimSpace(*l.formValue))
	t := activity.ParseType(*l.formType)
	unit := strings.TrimSpace(*l.formUnit)
	if unit == "" {
		unit = defaultUnit(t)
	}
	e := activity.Event{
		Type:  t,
		Value: value,
		Unit:  unit,
		Date:  strings.TrimSpace(*l.formDate),
	}
	if l.bus != nil {
		l.bus.EmitActivity(e)
	}
	return e
}

func (l logModel) view() string {
	w := l.width - 4

	if l.formActive && l.form != nil {
		title := titleStyle.Render("Log Activity")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", l.form.View()),
		)
	}

	var rows []string
	rows = append(rows, titleStyle.Render("Log Activity"), "")

	if l.streak != nil {
		st := l.streak.State()
		line := fmt.Sprintf("  🔥 Streak: %d day(s)", st.Current)
		if st.LastDate != "" {
			line += mutedStyle.Render("  last active " + st.LastDate)
		}
		rows = append(rows, accentStyle.Render(line))
	}
	if l.outbox != nil {
		if n := l.outbox.Len(); n > 0 {
			rows = append(rows, warningStyle.Render(fmt.Sprintf("  %d activit(ies) waiting to sync", n)))
		}
	}

	heading := subtitleStyle.Render("Recent")
	if l.fromServer {
		heading += mutedStyle.Render("  from server")
	}
	rows = append(rows, "", heading)
	if len(l.recent) == 0 {
		rows = append(rows, mutedStyle.Render("  Nothing logged yet."))
	}
	for _, a := range l.recent {
		label := activity.Type(a.Type).Label()
		amount := formatAmount(a.Value)
		if a.Unit != "" {
			amount += " " + a.Unit
		}
		rows = append(rows, fmt.Sprintf("  %s  %-28s %s",
			mutedStyle.Render(a.Date), label, highlightStyle.Render(amount)))
	}

	rows = append(rows, "", mutedStyle.Render("  n/enter: log an activity"))
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
