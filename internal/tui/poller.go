package tui

import "time"

// pollerModel decides when the task list is due for a background refresh.
// The fetch itself goes through the task store, which folds overlapping
// requests into one.
type pollerModel struct {
	interval  time.Duration
	lastFetch time.Time
	inFlight  bool
}

func newPollerModel(interval time.Duration) pollerModel {
	return pollerModel{interval: interval}
}

// due reports whether a refresh should start at now. A zero interval
// disables polling.
func (p pollerModel) due(now time.Time) bool {
	if p.interval <= 0 || p.inFlight {
		return false
	}
	return p.lastFetch.IsZero() || now.Sub(p.lastFetch) >= p.interval
}

func (p *pollerModel) started() {
	p.inFlight = true
}

func (p *pollerModel) finished(now time.Time) {
	p.inFlight = false
	p.lastFetch = now
}

func (p *pollerModel) setInterval(d time.Duration) {
	p.interval = d
}

// nextIn is the time left until the next refresh, or 0 when one is due or
// polling is off.
func (p pollerModel) nextIn(now time.Time) time.Duration {
	if p.interval <= 0 || p.lastFetch.IsZero() {
		return 0
	}
	left := p.interval - now.Sub(p.lastFetch)
	if left < 0 {
		return 0
	}
	return left.Truncate(time.Second)
}
