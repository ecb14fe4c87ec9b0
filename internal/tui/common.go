package tui

import (
	"time"

	"github.com/sadopc/taskdeck/internal/model"
	"github.com/sadopc/taskdeck/internal/tasks"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewAnalytics
	viewNotifications
	viewSettings
)

var viewNames = []string{"Dashboard", "Analytics", "Notifications", "Settings"}

// --- Messages ---

// sessionMsg reports the outcome of a session check, sign in or register.
type sessionMsg struct {
	user model.User
	err  error
}

type signedOutMsg struct{}

type fetchDoneMsg struct {
	err error
}

// mutationDoneMsg follows any create, update, toggle or delete. The store
// already emitted the notice; err is kept for the form to react to.
type mutationDoneMsg struct {
	op  string
	err error
}

type noticeMsg tasks.Notice

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
