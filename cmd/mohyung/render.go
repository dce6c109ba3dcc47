package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/cbcruk/mohyung"
)

// Box border colors (ANSI palette indexes).
var (
	colorSuccess = lipgloss.Color("2")
	colorWarning = lipgloss.Color("3")
	colorInfo    = lipgloss.Color("6")
)

// box renders a titled, bordered summary.
func box(title string, lines []string, color lipgloss.Color) string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(color).Render(title)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(heading + "\n\n" + strings.Join(lines, "\n"))
}

// progressLogger returns a progress callback that logs the start and end
// of each stage at debug level.
func progressLogger(log *slog.Logger) mohyung.ProgressFunc {
	var (
		mu      sync.Mutex
		started = make(map[mohyung.ProgressStage]bool)
	)
	return func(ev mohyung.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		if !started[ev.Stage] {
			started[ev.Stage] = true
			log.Debug("stage started", "stage", ev.Stage.String(), "total", ev.Total)
		}
		if ev.Total > 0 && ev.Current == ev.Total {
			log.Debug("stage finished", "stage", ev.Stage.String(), "total", ev.Total)
		}
	}
}
