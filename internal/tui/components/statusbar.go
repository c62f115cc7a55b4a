package components

import (
	"strings"

	"github.com/theirongolddev/restock/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// StatusBarInfo is what the bottom bar shows on its right side.
type StatusBarInfo struct {
	Hints       string // tab-specific key hints
	Flash       string // last action result
	FlashErr    bool
	DataAge     string
	Refreshing  bool
	AutoRefresh bool
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, info StatusBarInfo) string {
	t := theme.Active

	base := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	flashStyle := lipgloss.NewStyle().Foreground(t.Fresh).Background(t.Surface)
	if info.FlashErr {
		flashStyle = flashStyle.Foreground(t.Critical)
	}

	left := base.Render(" ") + keyStyle.Render("[?]") + base.Render("help  ") +
		keyStyle.Render("[q]") + base.Render("uit")
	if info.Hints != "" {
		left += base.Render("  " + info.Hints)
	}

	var right []string
	if info.Flash != "" {
		right = append(right, flashStyle.Render(info.Flash))
	}
	switch {
	case info.Refreshing:
		right = append(right, keyStyle.Render("refreshing…"))
	case info.DataAge != "":
		right = append(right, base.Render("data "+info.DataAge))
	}
	if info.AutoRefresh {
		right = append(right, base.Render("auto"))
	}
	rightStr := strings.Join(right, base.Render("  ")) + base.Render(" ")

	padding := width - lipgloss.Width(left) - lipgloss.Width(rightStr)
	if padding < 1 {
		padding = 1
	}

	return left + base.Render(strings.Repeat(" ", padding)) + rightStr
}
