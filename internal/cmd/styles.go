package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	primaryColor   = lipgloss.Color("#A78BFA") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#F87171") // Red
	mutedColor     = lipgloss.Color("#9CA3AF") // Gray
	borderColor    = lipgloss.Color("#6B7280") // Gray
)

// styles renders status output. A disabled set renders text unchanged.
type styles struct {
	enabled bool

	title   lipgloss.Style
	header  lipgloss.Style
	locked  lipgloss.Style
	free    lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
	border  lipgloss.Style
}

// colorEnabled decides whether output to w is styled for the given
// output.color mode.
func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newStyles(mode string, w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	return &styles{
		enabled: colorEnabled(mode, w),
		title:   r.NewStyle().Bold(true).Foreground(primaryColor),
		header:  r.NewStyle().Bold(true).Foreground(primaryColor).Padding(0, 1),
		locked:  r.NewStyle().Foreground(warningColor),
		free:    r.NewStyle().Foreground(secondaryColor),
		warning: r.NewStyle().Foreground(warningColor),
		failure: r.NewStyle().Foreground(errorColor).Bold(true),
		muted:   r.NewStyle().Foreground(mutedColor),
		border:  r.NewStyle().Foreground(borderColor),
	}
}

func (s *styles) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}
