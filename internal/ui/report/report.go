// Package report renders human-readable views for the CLI.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agentmail-skill/internal/model"
	"github.com/nhle/agentmail-skill/internal/theme"
	"github.com/nhle/agentmail-skill/internal/tools"
)

const timeLayout = "2006-01-02 15:04:05"

// Tools renders the tool list with the active backend.
func Tools(defs []tools.Definition, backend string) string {
	var sections []string

	header := lipgloss.JoinHorizontal(
		lipgloss.Top,
		theme.HeaderStyle.Render("agentmail tools"),
		" ",
		theme.SourceLabelStyle(backend).Render(strings.ToUpper(backend)),
	)
	sections = append(sections, header, "")

	width := 0
	for _, d := range defs {
		width = max(width, len(d.Name))
	}
	for _, d := range defs {
		name := theme.ToolNameStyle.Render(fmt.Sprintf("%-*s", width, d.Name))
		sections = append(sections, name+"  "+theme.HelpStyle.Render(d.Description))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Audit renders per-tool statistics followed by the most recent calls.
func Audit(stats []model.ToolStats, recent []model.Invocation) string {
	var sections []string
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)

	sections = append(sections, theme.HeaderStyle.Render("Tool usage"), "")
	if len(stats) == 0 {
		sections = append(sections, theme.HelpStyle.Render("No tool calls recorded."))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	nameWidth := 0
	for _, s := range stats {
		nameWidth = max(nameWidth, len(s.Tool))
	}
	for _, r := range recent {
		nameWidth = max(nameWidth, len(r.Tool))
	}

	var rows []string
	for _, s := range stats {
		counts := theme.FailureRateStyle(s.Calls, s.Failures).
			Render(fmt.Sprintf("%4d calls %4d failed", s.Calls, s.Failures))
		rows = append(rows, fmt.Sprintf("%s  %s  %s",
			theme.ToolNameStyle.Render(fmt.Sprintf("%-*s", nameWidth, s.Tool)),
			counts,
			metaStyle.Render("last "+formatTime(s.LastCall)),
		))
	}
	sections = append(sections, theme.BorderStyle.Render(strings.Join(rows, "\n")))

	if len(recent) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	sections = append(sections, "", theme.HeaderStyle.Render("Recent calls"), "")
	for _, inv := range recent {
		outcome := "ok"
		if !inv.OK {
			outcome = "fail"
		}
		line := fmt.Sprintf("%s  %s  %s  %s",
			metaStyle.Render(formatTime(inv.CreatedAt)),
			theme.OutcomeStyle(inv.OK).Render(fmt.Sprintf("%-4s", outcome)),
			fmt.Sprintf("%-*s", nameWidth, inv.Tool),
			metaStyle.Render(inv.Duration.Round(time.Millisecond).String()),
		)
		if inv.Error != "" {
			line += "  " + theme.ErrorTextStyle.Render(inv.Error)
		}
		sections = append(sections, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
