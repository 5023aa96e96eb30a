package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette - coherent with charmbracelet style
var (
	Primary = lipgloss.Color("#7D56F4") // Purple (charmbracelet brand)
	Success = lipgloss.Color("#50FA7B") // Green
	Warning = lipgloss.Color("#FFB86C") // Orange
	Error   = lipgloss.Color("#FF5555") // Red
	Muted   = lipgloss.Color("#6272A4") // Muted blue-gray
	Text    = lipgloss.Color("#F8F8F2") // Light text
)

// Base styles
var (
	// Title style for headers
	Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFDF5")).
		Background(Primary).
		Padding(0, 1).
		Bold(true)

	// Muted text
	MutedText = lipgloss.NewStyle().
			Foreground(Muted)

	// Success text
	SuccessText = lipgloss.NewStyle().
			Foreground(Success)

	// Warning text
	WarningText = lipgloss.NewStyle().
			Foreground(Warning)

	// Error text
	ErrorText = lipgloss.NewStyle().
			Foreground(Error)
)

// Symbols
var (
	CheckMark = lipgloss.NewStyle().Foreground(Success).SetString("✓")
	CrossMark = lipgloss.NewStyle().Foreground(Error).SetString("✗")
	Arrow     = lipgloss.NewStyle().Foreground(Primary).SetString("→")
)

// FormatSuccess formats a success message
func FormatSuccess(msg string) string {
	return CheckMark.String() + " " + SuccessText.Render(msg)
}

// FormatError formats an error message
func FormatError(msg string) string {
	return CrossMark.String() + " " + ErrorText.Render(msg)
}

// FormatWarning formats a warning message
func FormatWarning(msg string) string {
	return WarningText.Render("! " + msg)
}

// FormatUpdateAvailable returns a styled "update available" indicator
func FormatUpdateAvailable(newer string) string {
	style := lipgloss.NewStyle().Foreground(Primary).Bold(true)
	return style.Render("↑ " + newer)
}
