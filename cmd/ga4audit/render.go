package main

import (
	"fmt"
	"io"
	"strings"

	"ga4skill/internal/audit"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

var (
	passBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#2E7D32")).
			Padding(0, 1)
	failBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#C62828")).
			Padding(0, 1)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// badge renders a PASS/FAIL label for status.
func badge(status string) string {
	if status == "pass" {
		return passBadge.Render("PASS")
	}
	return failBadge.Render(strings.ToUpper(status))
}

// printPretty renders the report summary as terminal markdown. It falls back
// to the raw markdown when no renderer is available.
func printPretty(w io.Writer, r *audit.Report) {
	md := r.Markdown()
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		logger.Debug("markdown renderer unavailable", zap.Error(err))
		fmt.Fprint(w, md)
		return
	}
	out, err := renderer.Render(md)
	if err != nil {
		logger.Debug("render markdown", zap.Error(err))
		fmt.Fprint(w, md)
		return
	}
	fmt.Fprint(w, out)
}

// summaryLine is one row of a multi-target summary.
func summaryLine(status, target, detail string) string {
	line := badge(status) + " " + target
	if detail != "" {
		line += " " + mutedStyle.Render(detail)
	}
	return line
}
