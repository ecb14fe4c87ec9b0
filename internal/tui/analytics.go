package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/taskdeck/internal/model"
	"github.com/sadopc/taskdeck/internal/stats"
	"github.com/sadopc/taskdeck/internal/tasks"
)

type chartMode int

const (
	chartCompleted chartMode = iota
	chartRate
)

type analyticsModel struct {
	now    func() time.Time
	width  int
	height int

	mode   chartMode
	stats  stats.Stats
	recent []model.Task
	chart  barchart.Model
}

func newAnalyticsModel(now func() time.Time) analyticsModel {
	return analyticsModel{
		now:   now,
		chart: barchart.New(60, 12),
	}
}

func (a *analyticsModel) setSize(w, h int) {
	a.width = w
	a.height = h
	a.buildChart()
}

func (a *analyticsModel) setTasks(ts []model.Task) {
	a.stats = stats.Compute(ts, a.now())
	a.recent = stats.RecentlyCompleted(ts, 2)
	a.buildChart()
}

func (a analyticsModel) update(msg tea.Msg) (analyticsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Sort), key.Matches(msg, keys.Enter):
			if a.mode == chartCompleted {
				a.mode = chartRate
			} else {
				a.mode = chartCompleted
			}
			a.buildChart()
		}
	}
	return a, nil
}

func (a *analyticsModel) buildChart() {
	chartWidth := max(20, a.width-8)
	chartHeight := 12
	if a.height > 30 {
		chartHeight = 16
	}
	a.chart = barchart.New(chartWidth, chartHeight)

	color := colorSuccess
	if a.mode == chartRate {
		color = colorInfo
	}
	style := lipgloss.NewStyle().Foreground(color)

	bars := make([]barchart.BarData, 0, stats.Window)
	for i, day := range a.stats.Days {
		v := float64(a.stats.CompletedPerDay[i])
		if a.mode == chartRate {
			v = float64(a.stats.CompletionRatePerDay[i])
		}
		bars = append(bars, barchart.BarData{
			Label:  day.Format("Mon"),
			Values: []barchart.BarValue{{Name: day.Format("Jan 2"), Value: v, Style: style}},
		})
	}

	a.chart.PushAll(bars)
	a.chart.Draw()
}

func (a analyticsModel) view() string {
	w := a.width - 4

	completedTab := inactiveTabStyle.Render("Completed")
	rateTab := inactiveTabStyle.Render("Completion rate")
	if a.mode == chartCompleted {
		completedTab = activeTabStyle.Render("Completed")
	} else {
		rateTab = activeTabStyle.Render("Completion rate")
	}
	tabs := lipgloss.JoinHorizontal(lipgloss.Bottom, completedTab, rateTab)

	first, last := a.stats.Days[0], a.stats.Days[stats.Window-1]
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s to %s", first.Format("Jan 02"), last.Format("Jan 02, 2006")))

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Analytics"), "  ", tabs, "  ", dateLabel,
	)

	nav := mutedStyle.Render("  s: switch chart")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", a.chart.View(), "", a.renderTable(w), "", a.renderRecent(), "", nav,
		),
	)
}

func (a analyticsModel) renderTable(w int) string {
	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-12s %10s %8s", "Day", "Completed", "Rate")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 32))))
	for i, day := range a.stats.Days {
		rows = append(rows, fmt.Sprintf("  %-12s %10d %7d%%",
			day.Format("Mon Jan 02"), a.stats.CompletedPerDay[i], a.stats.CompletionRatePerDay[i]))
	}
	rows = append(rows, "")
	rows = append(rows, fmt.Sprintf("  Overall %s  %s",
		highlightStyle.Render(fmt.Sprintf("%d%%", a.stats.CompletionRate)),
		mutedStyle.Render(stats.Productivity(a.stats.CompletionRate))))
	return strings.Join(rows, "\n")
}

func (a analyticsModel) renderRecent() string {
	if len(a.recent) == 0 {
		return mutedStyle.Render("  Nothing completed yet")
	}
	rows := []string{titleStyle.Render("  Recently completed")}
	for _, t := range a.recent {
		rows = append(rows, fmt.Sprintf("  %s %s  %s",
			successStyle.Render("✓"), truncate(t.Title, 40), mutedStyle.Render(tasks.Age(t.UpdatedAt, a.now()))))
	}
	return strings.Join(rows, "\n")
}
