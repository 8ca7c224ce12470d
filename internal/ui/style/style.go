// Package style holds the colors, icons and text styles shared by the
// logger and the progress renderer.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Iris   = lipgloss.Color("#8B5CF6")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Cached  = "≡"
	Arrow   = "→"
	Dot     = "●"
)

// Text styles.
var (
	Target  = lipgloss.NewStyle().Foreground(Iris).Bold(true)
	Muted   = lipgloss.NewStyle().Foreground(Slate)
	Success = lipgloss.NewStyle().Foreground(Green)
	Failure = lipgloss.NewStyle().Foreground(Red).Bold(true)
	Notice  = lipgloss.NewStyle().Foreground(Yellow)
)
