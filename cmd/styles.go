package cmd

import "github.com/charmbracelet/lipgloss"

// Terminal styles for the human-facing output. Logs go through zap instead.
var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	hintStyle    = lipgloss.NewStyle().Faint(true)
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	answerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)
