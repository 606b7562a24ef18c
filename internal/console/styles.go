package console

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title  lipgloss.Style
	clue   lipgloss.Style
	muted  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	prompt lipgloss.Style
}

// newStyles builds styles for out. Colors are dropped automatically when
// out is not a terminal.
func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		clue:   r.NewStyle().Foreground(lipgloss.Color("86")),
		muted:  r.NewStyle().Faint(true),
		ok:     r.NewStyle().Foreground(lipgloss.Color("42")),
		err:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		prompt: r.NewStyle().Foreground(lipgloss.Color("63")),
	}
}
