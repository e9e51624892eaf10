// Package ui holds the terminal styles shared by the vaultsync commands.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	accent  = lipgloss.Color("62")
	green   = lipgloss.Color("46")
	yellow  = lipgloss.Color("226")
	red     = lipgloss.Color("196")
	muted   = lipgloss.Color("245")
	dimGray = lipgloss.Color("241")

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(accent)

	Accent = lipgloss.NewStyle().
		Foreground(accent)

	Success = lipgloss.NewStyle().
		Foreground(green).
		Bold(true)

	Warn = lipgloss.NewStyle().
		Foreground(yellow)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(red).
			Bold(true)

	Muted = lipgloss.NewStyle().
		Foreground(muted)

	Help = lipgloss.NewStyle().
		Foreground(dimGray)
)

// RenderPass renders text in the success style.
func RenderPass(s string) string { return Success.Render(s) }

// RenderWarn renders text in the warning style.
func RenderWarn(s string) string { return Warn.Render(s) }

// RenderAccent renders text in the accent style.
func RenderAccent(s string) string { return Accent.Render(s) }

// RenderError renders text in the error style.
func RenderError(s string) string { return ErrorMsg.Render(s) }

// StatusStyle picks a style for a sync log status string.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return Success
	case "failed":
		return ErrorMsg
	case "in_progress":
		return Warn
	default:
		return Muted
	}
}
