package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/dmeshram/greenloop/internal/auth"
	"github.com/dmeshram/greenloop/internal/outbox"
	"github.com/dmeshram/greenloop/internal/progress"
	"github.com/dmeshram/greenloop/internal/streak"
)

type settingsForm int

const (
	formNone settingsForm = iota
	formLogin
	formResetAll
)

type loggedInMsg struct {
	user auth.User
}

type resetAllMsg struct{}

type settingsModel struct {
	session  *auth.Session
	progress *progress.Store
	streak   *streak.Tracker
	outbox   *outbox.Queue
	apiBase  string
	width    int
	height   int

	formActive bool
	formKind   settingsForm
	form       *huh.Form

	// Form values as pointers (survive value copies)
	token   *string
	confirm *bool
}

func newSettingsModel(d Deps) settingsModel {
	token, confirm := "", false
	return settingsModel{
		session:  d.Session,
		progress: d.Progress,
		streak:   d.Streak,
		outbox:   d.Outbox,
		apiBase:  d.APIBase,
		token:    &token,
		confirm:  &confirm,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Login):
			if s.session == nil {
				return s, nil
			}
			return s.showLoginForm()
		case key.Matches(msg, keys.Logout):
			if s.session == nil {
				return s, nil
			}
			if _, ok := s.session.User(); !ok {
				return s, statusCmd("Not logged in", false)
			}
			s.session.Logout()
			return s, statusCmd("Logged out", false)
		case key.Matches(msg, keys.ResetAll):
			return s.showResetForm()
		}
	}
	return s, nil
}

func (s settingsModel) showLoginForm() (settingsModel, tea.Cmd) {
	*s.token = ""
	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Session token").
				Description("Paste the token issued by the GreenLoop web sign-in.").
				EchoMode(huh.EchoModePassword).
				Value(s.token).
				Validate(func(v string) error {
					if strings.TrimSpace(v) == "" {
						return errors.New("token is required")
					}
					return nil
				}),
		),
	).WithShowHelp(true).WithShowErrors(true)

	s.formKind = formLogin
	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) showResetForm() (settingsModel, tea.Cmd) {
	*s.confirm = false
	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Reset all local progress?").
				Description("Clears every goal and the streak on this device.").
				Affirmative("Reset").
				Negative("Cancel").
				Value(s.confirm),
		),
	).WithShowHelp(true)

	s.formKind = formResetAll
	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		switch s.formKind {
		case formLogin:
			return s, s.login()
		case formResetAll:
			if *s.confirm {
				return s, s.resetAll()
			}
		}
		return s, nil
	}

	return s, cmd
}

func (s settingsModel) login() tea.Cmd {
	u, err := s.session.Login(*s.token)
	*s.token = ""
	if err != nil {
		return statusCmd(fmt.Sprintf("Login failed: %v", err), true)
	}
	return func() tea.Msg { return loggedInMsg{user: u} }
}

func (s settingsModel) resetAll() tea.Cmd {
	if s.progress != nil {
		s.progress.ResetAll()
	}
	if s.streak != nil {
		s.streak.Reset()
	}
	return func() tea.Msg { return resetAllMsg{} }
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Settings")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	var rows []string
	rows = append(rows, titleStyle.Render("Settings"), "")

	row := func(label, value string) {
		l := lipgloss.NewStyle().Width(18).Render(label)
		rows = append(rows, fmt.Sprintf("  %s %s", l, value))
	}

	server := s.apiBase
	if server == "" {
		server = mutedStyle.Render("offline")
	} else {
		server = highlightStyle.Render(server)
	}
	row("Server", server)

	account := mutedStyle.Render("not logged in")
	if s.session != nil {
		if u, ok := s.session.User(); ok {
			name := u.Name
			if name == "" {
				name = u.Email
			}
			account = successStyle.Render(name)
			if u.Email != "" && u.Email != name {
				account += mutedStyle.Render(" <" + u.Email + ">")
			}
			if !s.session.Authenticated() {
				account += warningStyle.Render(" (session expired)")
			}
		}
	}
	row("Account", account)

	if s.outbox != nil {
		row("Pending sync", highlightStyle.Render(fmt.Sprintf("%d", s.outbox.Len())))
	}
	if s.streak != nil {
		row("Streak", highlightStyle.Render(fmt.Sprintf("%d day(s)", s.streak.State().Current)))
	}

	rows = append(rows, "", mutedStyle.Render("  l: login  o: logout  s: sync now  X: reset all progress"))
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
