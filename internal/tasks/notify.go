package tasks

import "time"

type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	}
	return "unknown"
}

func ParseLevel(s string) Level {
	if s == "error" {
		return LevelError
	}
	return LevelSuccess
}

// Notice is a user-visible confirmation or failure.
type Notice struct {
	Level   Level
	Message string
	TaskID  string
	At      time.Time
}

type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Notifiers fans a notice out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(n Notice) {
	for _, x := range ns {
		if x != nil {
			x.Notify(n)
		}
	}
}

// Phase is where a task's latest mutation stands.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseCommitted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseCommitted:
		return "committed"
	case PhaseFailed:
		return "failed"
	}
	return "idle"
}

// MutationState tags a task with the outcome of its latest mutation.
// Err is set only for PhaseFailed.
type MutationState struct {
	Phase Phase
	Op    string
	Err   error
}
