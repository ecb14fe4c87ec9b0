package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/taskdeck/internal/store"
	"github.com/sadopc/taskdeck/internal/tasks"
)

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	settings   []store.Setting
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	refreshInterval *string
	sortField       *string
	sortDirection   *string
	confirmDelete   *bool
}

func newSettingsModel(s *store.Store) settingsModel {
	ri, sf, sd, cd := "", "", "", true
	return settingsModel{
		store:           s,
		refreshInterval: &ri,
		sortField:       &sf,
		sortDirection:   &sd,
		confirmDelete:   &cd,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings []store.Setting
}

// settingsSavedMsg tells the app to pick up new intervals and sort order.
type settingsSavedMsg struct{}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		settings, _ := s.store.GetAllSettings()
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Edit):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.refreshInterval = s.store.GetSettingOr("refresh_interval", "30")
	*s.sortField = s.store.GetSettingOr("sort_field", string(tasks.SortCreated))
	*s.sortDirection = s.store.GetSettingOr("sort_direction", "desc")
	*s.confirmDelete = s.store.ConfirmDelete()

	sortOptions := make([]huh.Option[string], 0, len(tasks.SortFields))
	for _, f := range tasks.SortFields {
		sortOptions = append(sortOptions, huh.NewOption(sortFieldLabel(f), string(f)))
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Refresh interval (seconds, 0 = off)").
				Value(s.refreshInterval).
				Validate(validateInterval),
			huh.NewConfirm().Title("Confirm before deleting").
				Value(s.confirmDelete),
		).Title("General"),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Sort by").
				Options(sortOptions...).
				Value(s.sortField),
			huh.NewSelect[string]().Title("Order").
				Options(
					huh.NewOption("Newest / Z first", "desc"),
					huh.NewOption("Oldest / A first", "asc"),
				).Value(s.sortDirection),
		).Title("Task list"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func validateInterval(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number of seconds")
	}
	return nil
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
		if err := s.saveSettings(); err != nil {
			return s, func() tea.Msg {
				return statusMsg{text: fmt.Sprintf("Save settings: %v", err), isError: true}
			}
		}
		return s, tea.Batch(s.refresh(), func() tea.Msg { return settingsSavedMsg{} })
	}

	return s, cmd
}

func (s settingsModel) saveSettings() error {
	values := map[string]string{
		"refresh_interval": *s.refreshInterval,
		"sort_field":       *s.sortField,
		"sort_direction":   *s.sortDirection,
		"confirm_delete":   strconv.FormatBool(*s.confirmDelete),
	}
	for k, v := range values {
		if err := s.store.SetSetting(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Settings")
		formView := s.form.View()
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", formView),
		)
	}

	title := titleStyle.Render("Settings")
	hint := mutedStyle.Render("Press enter to edit settings")

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	for _, setting := range s.settings {
		label := lipgloss.NewStyle().Width(24).Render(setting.Key)
		value := highlightStyle.Render(formatSettingValue(setting.Key, setting.Value))
		rows = append(rows, fmt.Sprintf("  %s %s", label, value))
	}

	rows = append(rows, "")
	rows = append(rows, hint)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatSettingValue(k, v string) string {
	switch k {
	case "refresh_interval":
		if secs, err := strconv.Atoi(v); err == nil {
			if secs == 0 {
				return "off"
			}
			return fmt.Sprintf("every %ds", secs)
		}
	case "sort_field":
		return sortFieldLabel(tasks.SortField(v))
	case "sort_direction":
		if v == "asc" {
			return "ascending"
		}
		return "descending"
	case "confirm_delete":
		if b, err := strconv.ParseBool(v); err == nil {
			if b {
				return "yes"
			}
			return "no"
		}
	}
	return v
}

func sortFieldLabel(f tasks.SortField) string {
	switch f {
	case tasks.SortTitle:
		return "Title"
	case tasks.SortCreated:
		return "Created"
	case tasks.SortUpdated:
		return "Updated"
	case tasks.SortCompleted:
		return "Status"
	}
	return string(f)
}
