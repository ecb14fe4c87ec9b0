package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/sadopc/taskdeck/internal/api"
	"github.com/sadopc/taskdeck/internal/export"
	"github.com/sadopc/taskdeck/internal/model"
	"github.com/sadopc/taskdeck/internal/store"
	"github.com/sadopc/taskdeck/internal/tasks"
)

// Deps are the collaborators the UI drives. Notices should be the same
// queue the task store notifies.
type Deps struct {
	Client  *api.Client
	Tasks   *tasks.Store
	Store   *store.Store
	Notices NoticeQueue
	Log     zerolog.Logger
	Now     func() time.Time
}

// NoticeQueue hands task notices to the UI. Notify never blocks; a notice
// is dropped when the buffer is full.
type NoticeQueue chan tasks.Notice

func NewNoticeQueue(size int) NoticeQueue {
	return make(NoticeQueue, size)
}

func (q NoticeQueue) Notify(n tasks.Notice) {
	select {
	case q <- n:
	default:
	}
}

// App is the root Bubble Tea model.
type App struct {
	ctx    context.Context
	deps   Deps
	width  int
	height int

	user     *model.User
	checking bool

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	login         loginModel
	dashboard     dashboardModel
	analytics     analyticsModel
	notifications notificationsModel
	settings      settingsModel
	poller        pollerModel

	help      help.Model
	status    string
	statusErr bool
}

func NewApp(ctx context.Context, d Deps) App {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := help.New()
	h.ShowAll = false

	return App{
		ctx:           ctx,
		deps:          d,
		checking:      true,
		activeView:    viewDashboard,
		login:         newLoginModel(ctx, d.Client),
		dashboard:     newDashboardModel(ctx, d.Tasks, d.Store, d.Now),
		analytics:     newAnalyticsModel(d.Now),
		notifications: newNotificationsModel(d.Store, d.Now),
		settings:      newSettingsModel(d.Store),
		poller:        newPollerModel(d.Store.RefreshInterval()),
		help:          h,
	}
}

// Run starts the UI and blocks until it exits.
func Run(ctx context.Context, d Deps) error {
	p := tea.NewProgram(NewApp(ctx, d), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.verifyCmd(),
		a.waitNotice(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) verifyCmd() tea.Cmd {
	ctx, c := a.ctx, a.deps.Client
	return func() tea.Msg {
		user, err := c.Verify(ctx)
		return sessionMsg{user: user, err: err}
	}
}

func (a App) fetchCmd() tea.Cmd {
	ctx, ts := a.ctx, a.deps.Tasks
	return func() tea.Msg {
		return fetchDoneMsg{err: ts.Fetch(ctx)}
	}
}

func (a App) waitNotice() tea.Cmd {
	q := a.deps.Notices
	if q == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-q
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

func (a App) signOutCmd() tea.Cmd {
	c, s, ts := a.deps.Client, a.deps.Store, a.deps.Tasks
	return func() tea.Msg {
		if err := c.Logout(); err != nil {
			return statusMsg{text: fmt.Sprintf("Sign out: %v", err), isError: true}
		}
		ts.Reset()
		_ = s.SetUser("", "")
		return signedOutMsg{}
	}
}

// syncTasks pushes the current snapshot into the views that show it.
func (a *App) syncTasks() {
	snap := a.deps.Tasks.Snapshot()
	a.dashboard.setSnapshot(snap)
	a.analytics.setTasks(snap.Tasks)
}

func (a *App) startFetch() tea.Cmd {
	a.poller.started()
	return a.fetchCmd()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.login.setSize(a.width)
		a.dashboard.setSize(a.width, contentHeight)
		a.analytics.setSize(a.width, contentHeight)
		a.notifications.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case sessionMsg:
		a.checking = false
		if msg.err != nil {
			a.user = nil
			text := ""
			switch {
			case errors.Is(msg.err, api.ErrSessionExpired):
				text = "Session expired. Please sign in again."
			case errors.Is(msg.err, api.ErrNotAuthenticated):
			default:
				text = msg.err.Error()
			}
			a.deps.Log.Debug().Err(msg.err).Msg("no session")
			var cmd tea.Cmd
			a.login, cmd = a.login.reset(text)
			return a, cmd
		}
		user := msg.user
		a.user = &user
		a.activeView = viewDashboard
		a.status = "Signed in as " + user.Email
		a.statusErr = false
		if err := a.deps.Store.SetUser(user.ID, user.Email); err != nil {
			a.deps.Log.Warn().Err(err).Msg("save session user")
		}
		a.syncTasks()
		fetch := a.startFetch()
		return a, tea.Batch(fetch, a.notifications.refresh())

	case signedOutMsg:
		a.user = nil
		a.status = "Signed out"
		a.syncTasks()
		var cmd tea.Cmd
		a.login, cmd = a.login.reset("")
		return a, cmd

	case tea.KeyMsg:
		if a.user == nil {
			if a.checking {
				if key.Matches(msg, keys.Quit) {
					return a, tea.Quit
				}
				return a, nil
			}
			var cmd tea.Cmd
			a.login, cmd = a.login.update(msg)
			return a, cmd
		}

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
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Refresh):
			a.status = "Refreshing..."
			a.statusErr = false
			cmd := a.startFetch()
			return a, cmd
		case key.Matches(msg, keys.Logout):
			return a, a.signOutCmd()
		case key.Matches(msg, keys.Tab1):
			return a.switchView(viewDashboard)
		case key.Matches(msg, keys.Tab2):
			return a.switchView(viewAnalytics)
		case key.Matches(msg, keys.Tab3):
			return a.switchView(viewNotifications)
		case key.Matches(msg, keys.Tab4):
			return a.switchView(viewSettings)
		case key.Matches(msg, keys.Tab):
			return a.switchView((a.activeView + 1) % viewState(len(viewNames)))
		}

	case tickMsg:
		cmds = append(cmds, tickCmd())
		if a.user != nil && a.poller.due(time.Time(msg)) {
			cmds = append(cmds, a.startFetch())
		}
		return a, tea.Batch(cmds...)

	case fetchDoneMsg:
		a.poller.finished(a.deps.Now())
		a.syncTasks()
		if msg.err != nil {
			if api.IsStatus(msg.err, http.StatusUnauthorized) {
				return a, a.verifyCmd()
			}
			a.deps.Log.Warn().Err(msg.err).Msg("refresh failed")
		} else if a.status == "Refreshing..." {
			a.status = ""
		}
		return a, nil

	case mutationDoneMsg:
		a.syncTasks()
		if api.IsStatus(msg.err, http.StatusUnauthorized) {
			return a, a.verifyCmd()
		}
		return a, nil

	case noticeMsg:
		a.status = msg.Message
		a.statusErr = msg.Level == tasks.LevelError
		cmds = append(cmds, a.waitNotice())
		if a.activeView == viewNotifications {
			cmds = append(cmds, a.notifications.refresh())
		}
		return a, tea.Batch(cmds...)

	case settingsSavedMsg:
		a.poller.setInterval(a.deps.Store.RefreshInterval())
		a.dashboard.loadSettings()
		a.status = "Settings saved"
		a.statusErr = false
		return a, nil

	case notificationsDataMsg:
		var cmd tea.Cmd
		a.notifications, cmd = a.notifications.update(msg)
		return a, cmd

	case settingsDataMsg:
		var cmd tea.Cmd
		a.settings, cmd = a.settings.update(msg)
		return a, cmd

	case statusMsg:
		a.status = msg.text
		a.statusErr = msg.isError
		return a, nil

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusErr = false
		a.exportPicking = false
		return a, nil
	}

	if a.user == nil {
		var cmd tea.Cmd
		a.login, cmd = a.login.update(msg)
		return a, cmd
	}
	return a.updateActiveView(msg)
}

func (a App) switchView(v viewState) (tea.Model, tea.Cmd) {
	a.activeView = v
	return a, a.refreshCurrentView()
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewAnalytics:
		a.analytics, cmd = a.analytics.update(msg)
	case viewNotifications:
		a.notifications, cmd = a.notifications.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.capturing()
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewNotifications:
		return tea.Sequence(a.notifications.refresh(), a.notifications.markRead())
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	if a.user == nil {
		if a.checking {
			return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
				mutedStyle.Render("Checking session..."))
		}
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, a.login.view())
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view()
	case viewAnalytics:
		content = a.analytics.view()
	case viewNotifications:
		content = a.notifications.view()
	case viewSettings:
		content = a.settings.view()
	}

	// Calculate available height for content
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(1, a.height-headerHeight-footerHeight)

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

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("task") +
		lipgloss.NewStyle().Bold(true).Foreground(colorSecondary).Render("deck")
	if a.user != nil {
		title += mutedStyle.Render("  " + a.user.Name())
	}
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
		style := mutedStyle
		if a.statusErr {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	sync := ""
	snap := a.deps.Tasks.Snapshot()
	switch {
	case snap.Loading:
		sync = warningStyle.Render(" ⟳ syncing")
	case !snap.FetchedAt.IsZero():
		if next := a.poller.nextIn(a.deps.Now()); next > 0 {
			sync = mutedStyle.Render(fmt.Sprintf(" ⟳ %s", next))
		}
	}

	left := footerStyle.Render(helpView)
	right := sync + status

	gap := max(1, a.width-lipgloss.Width(left)-lipgloss.Width(right)-2)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var exportFormats = []string{"CSV", "JSON"}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Format")
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range exportFormats {
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
		if a.exportCursor < len(exportFormats)-1 {
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
	list := a.deps.Tasks.Snapshot().Tasks
	now := a.deps.Now()
	return func() tea.Msg {
		home, _ := os.UserHomeDir()
		dateStr := now.Format("2006-01-02")

		var path string
		if format == 0 {
			path = filepath.Join(home, fmt.Sprintf("taskdeck-export-%s.csv", dateStr))
			if err := export.ToCSV(list, path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(home, fmt.Sprintf("taskdeck-export-%s.json", dateStr))
			if err := export.ToJSON(list, now, path); err != nil {
				return statusMsg{text: fmt.Sprintf("JSON error: %v", err), isError: true}
			}
		}

		return exportDoneMsg{path: path}
	}
}
