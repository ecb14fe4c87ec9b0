package store

import (
	"fmt"
	"time"
)

type Session struct {
	Token     string
	UserID    string
	Email     string
	UpdatedAt time.Time
}

type Notification struct {
	ID        int64
	Level     string // success, error
	Message   string
	TaskID    string
	Read      bool
	CreatedAt time.Time
}

// Ago renders how long before now the notification was raised, in the
// largest whole unit.
func (n Notification) Ago(now time.Time) string {
	d := now.Sub(n.CreatedAt)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

type Setting struct {
	Key   string
	Value string
}
