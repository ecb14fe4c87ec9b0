package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/taskdeck/internal/store"
)

const notificationLimit = 50

type notificationsModel struct {
	store  *store.Store
	now    func() time.Time
	width  int
	height int

	items  []store.Notification
	unread int
	cursor int
}

func newNotificationsModel(s *store.Store, now func() time.Time) notificationsModel {
	return notificationsModel{store: s, now: now}
}

func (n *notificationsModel) setSize(w, h int) {
	n.width = w
	n.height = h
}

type notificationsDataMsg struct {
	items  []store.Notification
	unread int
}

func (n notificationsModel) refresh() tea.Cmd {
	s := n.store
	return func() tea.Msg {
		items, err := s.ListNotifications(notificationLimit)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Load notifications: %v", err), isError: true}
		}
		unread, _ := s.UnreadCount()
		return notificationsDataMsg{items: items, unread: unread}
	}
}

// markRead marks everything read once the list has been seen.
func (n notificationsModel) markRead() tea.Cmd {
	s := n.store
	return func() tea.Msg {
		if err := s.MarkAllRead(); err != nil {
			return statusMsg{text: fmt.Sprintf("Mark read: %v", err), isError: true}
		}
		return nil
	}
}

func (n notificationsModel) update(msg tea.Msg) (notificationsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case notificationsDataMsg:
		n.items = msg.items
		n.unread = msg.unread
		if n.cursor >= len(n.items) {
			n.cursor = max(0, len(n.items)-1)
		}
		return n, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if n.cursor > 0 {
				n.cursor--
			}
		case key.Matches(msg, keys.Down):
			if n.cursor < len(n.items)-1 {
				n.cursor++
			}
		case key.Matches(msg, keys.Clear):
			s := n.store
			return n, tea.Sequence(
				func() tea.Msg {
					if err := s.ClearNotifications(); err != nil {
						return statusMsg{text: fmt.Sprintf("Clear: %v", err), isError: true}
					}
					return statusMsg{text: "Notifications cleared"}
				},
				n.refresh(),
			)
		}
	}
	return n, nil
}

func (n notificationsModel) view() string {
	w := n.width - 4
	title := titleStyle.Render("Notifications")
	if n.unread > 0 {
		title += " " + highlightStyle.Render(fmt.Sprintf("(%d new)", n.unread))
	}

	rows := []string{title, ""}
	if len(n.items) == 0 {
		rows = append(rows, mutedStyle.Render("You're all caught up."))
		return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
	}

	now := n.now()
	visibleRows := max(3, n.height-8)
	start := 0
	if n.cursor >= visibleRows {
		start = n.cursor - visibleRows + 1
	}
	end := min(len(n.items), start+visibleRows)

	for i := start; i < end; i++ {
		item := n.items[i]
		icon := successStyle.Render("✓")
		if item.Level == "error" {
			icon = errorStyle.Render("✗")
		}
		cursor := "  "
		style := normalItemStyle
		if i == n.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		if !item.Read {
			icon += highlightStyle.Render("•")
		} else {
			icon += " "
		}
		rows = append(rows, fmt.Sprintf("%s%s %s  %s",
			cursor, icon, style.Render(truncate(item.Message, max(10, w-30))),
			mutedStyle.Render(item.Ago(now))))
	}

	rows = append(rows, "", mutedStyle.Render("  c: clear all"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
