// Package theme holds the lipgloss styles used by the terminal commands.
package theme

import (
	"charm.land/lipgloss/v2"
)

// Color palette. Dark terminal first.
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	BgCard    = lipgloss.Color("#1E293B") // Dark Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

// Chat speakers
var (
	Persona = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	Student = lipgloss.NewStyle().
		Foreground(Accent).
		Bold(true)

	SystemError = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)
)

// Goal checklist
var (
	GoalDone = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	GoalTodo = lipgloss.NewStyle().
			Foreground(TextDim)

	Banner = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Success).
		Padding(0, 2)
)

// Layout
var (
	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)

	Code = lipgloss.NewStyle().
		Foreground(Text).
		Background(BgCard).
		Padding(0, 1)
)

// Check renders one checklist line.
func Check(done bool, label string) string {
	if done {
		return GoalDone.Render("[x] " + label)
	}
	return GoalTodo.Render("[ ] " + label)
}
