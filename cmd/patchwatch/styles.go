package main

import (
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

var (
	primaryColor = lipgloss.Color("#7D56F4")
	dimColor     = lipgloss.Color("#6272A4")
	textColor    = lipgloss.Color("#F8F8F2")
	successColor = lipgloss.Color("#50FA7B")
	warnColor    = lipgloss.Color("#FFB86C")
	errorColor   = lipgloss.Color("#FF5555")
)

type palette struct {
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	dim   lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
}

// newPalette builds styles bound to w, so pipes and NO_COLOR get plain text.
func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	if termenv.EnvNoColor() {
		r.SetColorProfile(termenv.Ascii)
	}
	return palette{
		title: r.NewStyle().Bold(true).Foreground(primaryColor),
		label: r.NewStyle().Foreground(dimColor),
		value: r.NewStyle().Foreground(textColor),
		dim:   r.NewStyle().Foreground(dimColor),
		ok:    r.NewStyle().Foreground(successColor),
		warn:  r.NewStyle().Foreground(warnColor),
		bad:   r.NewStyle().Bold(true).Foreground(errorColor),
	}
}

// renderNotes renders release notes as markdown, falling back to plain
// wrapped text.
func renderNotes(notes string, width int) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return ""
	}
	fallback := func(input string) string {
		return wordwrap.String(input, width)
	}
	if termenv.EnvNoColor() {
		return fallback(notes)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fallback(notes)
	}
	out, err := renderer.Render(notes)
	if err != nil {
		return fallback(notes)
	}
	return strings.TrimSpace(out)
}
