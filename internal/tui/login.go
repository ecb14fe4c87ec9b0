package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/taskdeck/internal/api"
)

const (
	modeSignIn   = "signin"
	modeRegister = "register"
)

// loginModel is the sign in / register screen shown while there is no
// valid session.
type loginModel struct {
	ctx    context.Context
	client *api.Client
	width  int

	form *huh.Form
	busy bool
	err  string

	// Form values as pointers (survive value copies)
	mode     *string
	email    *string
	password *string
	confirm  *string
}

func newLoginModel(ctx context.Context, c *api.Client) loginModel {
	mode, email, pw, confirm := modeSignIn, "", "", ""
	return loginModel{
		ctx:      ctx,
		client:   c,
		mode:     &mode,
		email:    &email,
		password: &pw,
		confirm:  &confirm,
	}
}

// reset rebuilds the form, keeping the email and mode but never the
// password.
func (l loginModel) reset(errText string) (loginModel, tea.Cmd) {
	*l.password = ""
	*l.confirm = ""
	l.err = errText
	l.busy = false

	l.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Account").
				Options(
					huh.NewOption("Sign in", modeSignIn),
					huh.NewOption("Create account", modeRegister),
				).Value(l.mode),
		),
		huh.NewGroup(
			huh.NewInput().Title("Email").
				Placeholder("you@example.com").
				Value(l.email).
				Validate(api.ValidateEmail),
			huh.NewInput().Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(l.password).
				Validate(func(s string) error {
					if s == "" {
						return api.ErrMissingCredentials
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(l.confirm).
				Validate(func(s string) error {
					return api.ValidateRegistration(*l.email, *l.password, s)
				}),
		).WithHideFunc(func() bool { return *l.mode != modeRegister }),
	).WithShowHelp(true).WithShowErrors(true)

	return l, l.form.Init()
}

func (l *loginModel) setSize(w int) {
	l.width = w
}

func (l loginModel) update(msg tea.Msg) (loginModel, tea.Cmd) {
	if l.busy || l.form == nil {
		return l, nil
	}

	form, cmd := l.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		l.form = f
	}

	switch l.form.State {
	case huh.StateAborted:
		return l, tea.Quit
	case huh.StateCompleted:
		l.busy = true
		l.err = ""
		return l, l.submit()
	}
	return l, cmd
}

// submit signs in, registering first when asked to. Values are copied so
// the command does not race later form edits.
func (l loginModel) submit() tea.Cmd {
	mode := *l.mode
	email := strings.TrimSpace(*l.email)
	password := *l.password
	ctx, client := l.ctx, l.client

	return func() tea.Msg {
		if mode == modeRegister {
			if _, err := client.Register(ctx, email, password); err != nil {
				return sessionMsg{err: fmt.Errorf("register: %w", err)}
			}
		}
		user, err := client.Login(ctx, email, password)
		return sessionMsg{user: user, err: err}
	}
}

func (l loginModel) view() string {
	w := l.width - 4
	if w < 20 {
		w = 20
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("taskdeck")
	sub := subtitleStyle.Render("Sign in to " + l.client.BaseURL())

	rows := []string{title, sub, ""}
	if l.busy {
		rows = append(rows, mutedStyle.Render("Signing in..."))
	} else if l.form != nil {
		rows = append(rows, l.form.View())
	}
	if l.err != "" {
		rows = append(rows, "", errorStyle.Render(l.err))
	}

	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
