package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/taskdeck/internal/model"
	"github.com/sadopc/taskdeck/internal/stats"
	"github.com/sadopc/taskdeck/internal/store"
	"github.com/sadopc/taskdeck/internal/tasks"
)

type dashboardModel struct {
	ctx    context.Context
	tasks  *tasks.Store
	store  *store.Store
	now    func() time.Time
	width  int
	height int

	snapshot tasks.Snapshot
	stats    stats.Stats
	visible  []model.Task
	cursor   int

	sortField tasks.SortField
	sortDesc  bool

	filtering bool
	filter    textinput.Model

	confirming bool
	confirmID  string

	formActive bool
	form       *huh.Form
	editingID  string // empty when creating

	// Form field pointers (survive value copies)
	formTitle *string
	formDesc  *string
}

func newDashboardModel(ctx context.Context, ts *tasks.Store, s *store.Store, now func() time.Time) dashboardModel {
	fi := textinput.New()
	fi.Prompt = "/ "
	fi.Placeholder = "search title or description"
	fi.CharLimit = 100

	title, desc := "", ""
	d := dashboardModel{
		ctx:       ctx,
		tasks:     ts,
		store:     s,
		now:       now,
		filter:    fi,
		sortField: tasks.SortCreated,
		sortDesc:  true,
		formTitle: &title,
		formDesc:  &desc,
	}
	d.loadSettings()
	return d
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
	d.filter.Width = max(10, w-10)
}

// loadSettings picks up the saved sort order.
func (d *dashboardModel) loadSettings() {
	if f, err := tasks.ParseSortField(d.store.GetSettingOr("sort_field", string(tasks.SortCreated))); err == nil {
		d.sortField = f
	}
	d.sortDesc = d.store.GetSettingOr("sort_direction", "desc") != "asc"
	d.applyView()
}

// setSnapshot replaces the displayed tasks and recomputes the stats.
func (d *dashboardModel) setSnapshot(s tasks.Snapshot) {
	d.snapshot = s
	d.stats = stats.Compute(s.Tasks, d.now())
	d.applyView()
}

func (d *dashboardModel) applyView() {
	d.visible = tasks.Sort(tasks.Filter(d.snapshot.Tasks, d.filter.Value()), d.sortField, d.sortDesc)
	if d.cursor >= len(d.visible) {
		d.cursor = max(0, len(d.visible)-1)
	}
}

func (d dashboardModel) selected() (model.Task, bool) {
	if d.cursor < 0 || d.cursor >= len(d.visible) {
		return model.Task{}, false
	}
	return d.visible[d.cursor], true
}

// capturing reports whether the dashboard wants every key, so global
// shortcuts must not fire.
func (d dashboardModel) capturing() bool {
	return d.formActive || d.filtering || d.confirming
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if d.formActive && d.form != nil {
		return d.updateForm(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return d, nil
	}

	if d.filtering {
		return d.updateFilter(km)
	}
	if d.confirming {
		d.confirming = false
		if key.Matches(km, keys.Confirm) {
			return d, d.deleteCmd(d.confirmID)
		}
		return d, nil
	}

	switch {
	case key.Matches(km, keys.Up):
		if d.cursor > 0 {
			d.cursor--
		}
	case key.Matches(km, keys.Down):
		if d.cursor < len(d.visible)-1 {
			d.cursor++
		}
	case key.Matches(km, keys.New):
		return d.showForm(model.Task{})
	case key.Matches(km, keys.Edit):
		if t, ok := d.selected(); ok {
			return d.showForm(t)
		}
	case key.Matches(km, keys.Toggle), key.Matches(km, keys.Enter):
		if t, ok := d.selected(); ok {
			return d, d.toggleCmd(t.ID, !t.IsCompleted)
		}
	case key.Matches(km, keys.Delete):
		t, ok := d.selected()
		if !ok {
			return d, nil
		}
		if d.store.ConfirmDelete() {
			d.confirming = true
			d.confirmID = t.ID
			return d, nil
		}
		return d, d.deleteCmd(t.ID)
	case key.Matches(km, keys.Filter):
		d.filtering = true
		cmd := d.filter.Focus()
		return d, cmd
	case key.Matches(km, keys.Sort):
		d.sortField = nextSortField(d.sortField)
		d.applyView()
		return d, d.saveSort()
	case key.Matches(km, keys.Order):
		d.sortDesc = !d.sortDesc
		d.applyView()
		return d, d.saveSort()
	}
	return d, nil
}

func (d dashboardModel) updateFilter(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		d.filter.SetValue("")
		d.filtering = false
		d.filter.Blur()
		d.applyView()
		return d, nil
	case "enter":
		d.filtering = false
		d.filter.Blur()
		return d, nil
	}

	var cmd tea.Cmd
	d.filter, cmd = d.filter.Update(msg)
	d.applyView()
	return d, cmd
}

func nextSortField(f tasks.SortField) tasks.SortField {
	for i, x := range tasks.SortFields {
		if x == f {
			return tasks.SortFields[(i+1)%len(tasks.SortFields)]
		}
	}
	return tasks.SortFields[0]
}

func (d dashboardModel) saveSort() tea.Cmd {
	field, dir := string(d.sortField), "desc"
	if !d.sortDesc {
		dir = "asc"
	}
	s := d.store
	return func() tea.Msg {
		if err := s.SetSetting("sort_field", field); err != nil {
			return statusMsg{text: fmt.Sprintf("Save sort: %v", err), isError: true}
		}
		if err := s.SetSetting("sort_direction", dir); err != nil {
			return statusMsg{text: fmt.Sprintf("Save sort: %v", err), isError: true}
		}
		return nil
	}
}

// --- Forms ---

func (d dashboardModel) showForm(t model.Task) (dashboardModel, tea.Cmd) {
	d.editingID = t.ID
	*d.formTitle = t.Title
	*d.formDesc = t.Description

	heading := "New task"
	if t.ID != "" {
		heading = "Edit task"
	}

	d.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").
				CharLimit(model.MaxTitleLen).
				Value(d.formTitle).
				Validate(func(s string) error {
					_, err := tasks.ValidateDraft(model.Draft{Title: s})
					return err
				}),
			huh.NewText().Title("Description").
				CharLimit(model.MaxDescriptionLen).
				Lines(4).
				Value(d.formDesc),
		).Title(heading),
	).WithShowHelp(true).WithShowErrors(true)

	d.formActive = true
	return d, d.form.Init()
}

func (d dashboardModel) updateForm(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		d.formActive = false
		d.form = nil
		return d, nil
	}

	form, cmd := d.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.form = f
	}

	switch d.form.State {
	case huh.StateCompleted:
		d.formActive = false
		title, desc := *d.formTitle, *d.formDesc
		if d.editingID == "" {
			return d, d.createCmd(model.Draft{Title: title, Description: desc})
		}
		return d, d.updateCmd(d.editingID, model.Patch{Title: &title, Description: &desc})
	case huh.StateAborted:
		d.formActive = false
		d.form = nil
		return d, nil
	}
	return d, cmd
}

// --- Commands ---

func (d dashboardModel) createCmd(draft model.Draft) tea.Cmd {
	ctx, ts := d.ctx, d.tasks
	return func() tea.Msg {
		_, err := ts.Create(ctx, draft)
		return mutationDoneMsg{op: "create", err: err}
	}
}

func (d dashboardModel) updateCmd(id string, p model.Patch) tea.Cmd {
	ctx, ts := d.ctx, d.tasks
	return func() tea.Msg {
		_, err := ts.Update(ctx, id, p)
		return mutationDoneMsg{op: "update", err: err}
	}
}

func (d dashboardModel) toggleCmd(id string, desired bool) tea.Cmd {
	ctx, ts := d.ctx, d.tasks
	return func() tea.Msg {
		_, err := ts.ToggleCompletion(ctx, id, desired)
		return mutationDoneMsg{op: "toggle", err: err}
	}
}

func (d dashboardModel) deleteCmd(id string) tea.Cmd {
	ctx, ts := d.ctx, d.tasks
	return func() tea.Msg {
		return mutationDoneMsg{op: "delete", err: ts.Delete(ctx, id)}
	}
}

// --- View ---

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}
	w := d.width - 4

	if d.formActive && d.form != nil {
		return activePanelStyle.Width(w).Render(d.form.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		d.renderCards(),
		d.renderProductivity(w),
		d.renderTaskList(w),
	)
}

func (d dashboardModel) renderCards() string {
	card := func(label, value string, c lipgloss.Color) string {
		return cardStyle.BorderForeground(c).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				mutedStyle.Render(label),
				cardValueStyle.Foreground(c).Render(value),
			),
		)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total Tasks", fmt.Sprint(d.stats.Total), colorPrimary),
		card("Completed", fmt.Sprint(d.stats.Completed), colorSuccess),
		card("Pending", fmt.Sprint(d.stats.Pending), colorWarning),
		card("Productivity", fmt.Sprintf("%d%%", d.stats.CompletionRate), colorInfo),
	)
}

func (d dashboardModel) renderProductivity(w int) string {
	barWidth := min(40, max(10, w-40))
	bar := progressBar(d.stats.CompletionRate, barWidth)
	label := stats.Productivity(d.stats.CompletionRate)
	return headerStyle.Render(fmt.Sprintf("%s %s %3d%%  %s",
		titleStyle.Render("Productivity"), bar, d.stats.CompletionRate, highlightStyle.Render(label)))
}

// progressBar draws pct (0-100) as a bar of width cells.
func progressBar(pct, width int) string {
	pct = min(100, max(0, pct))
	filled := pct * width / 100
	return successStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", width-filled))
}

func (d dashboardModel) renderTaskList(w int) string {
	dir := "↓"
	if !d.sortDesc {
		dir = "↑"
	}
	header := fmt.Sprintf("%s %s  %s",
		titleStyle.Render("Tasks"),
		mutedStyle.Render(fmt.Sprintf("(%d)", len(d.visible))),
		mutedStyle.Render(fmt.Sprintf("sort: %s %s", d.sortField, dir)),
	)

	rows := []string{header}
	if d.filtering || d.filter.Value() != "" {
		rows = append(rows, d.filter.View())
	}
	if d.snapshot.Err != nil {
		rows = append(rows, errorStyle.Render("Refresh failed: "+d.snapshot.Err.Error()))
	}
	rows = append(rows, "")

	switch {
	case !d.snapshot.Loaded && d.snapshot.Loading:
		rows = append(rows, mutedStyle.Render("Loading tasks..."))
	case len(d.snapshot.Tasks) == 0 && d.snapshot.Loaded:
		rows = append(rows, mutedStyle.Render("No tasks yet. Press n to create one."))
	case len(d.visible) == 0 && d.filter.Value() != "":
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("No tasks match %q", d.filter.Value())))
	default:
		rows = append(rows, d.renderRows(w)...)
	}

	if d.confirming {
		title := ""
		if t, err := d.tasks.Task(d.confirmID); err == nil {
			title = t.Title
		}
		rows = append(rows, "", warningStyle.Render(fmt.Sprintf("Delete %q? y to confirm, any other key to cancel", truncate(title, 40))))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderRows(w int) []string {
	now := d.now()
	visibleRows := max(3, d.height-14)
	start := 0
	if d.cursor >= visibleRows {
		start = d.cursor - visibleRows + 1
	}
	end := min(len(d.visible), start+visibleRows)

	titleWidth := max(10, w-30)
	var rows []string
	for i := start; i < end; i++ {
		t := d.visible[i]

		cursor := "  "
		style := normalItemStyle
		if i == d.cursor {
			cursor = "> "
			style = selectedItemStyle
		}

		check := "[ ]"
		if t.IsCompleted {
			check = successStyle.Render("[x]")
			if i != d.cursor {
				style = completedTaskStyle
			}
		}

		marker := " "
		switch d.tasks.State(t.ID).Phase {
		case tasks.PhasePending:
			marker = warningStyle.Render("…")
		case tasks.PhaseFailed:
			marker = errorStyle.Render("!")
		}

		line := fmt.Sprintf("%s%s %s %s", cursor, check, marker, style.Render(truncate(t.Title, titleWidth)))
		age := mutedStyle.Render(tasks.Age(t.CreatedAt, now))
		gap := max(1, w-6-lipgloss.Width(line)-lipgloss.Width(age))
		rows = append(rows, line+strings.Repeat(" ", gap)+age)

		if i == d.cursor && t.Description != "" {
			rows = append(rows, mutedStyle.Render("        "+truncate(t.Description, titleWidth)))
		}
	}
	return rows
}
