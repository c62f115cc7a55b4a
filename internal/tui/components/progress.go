package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/theirongolddev/restock/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// ProgressBar renders a loading bar with percentage.
func ProgressBar(pct float64, width int) string {
	t := theme.Active
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	filled := int(pct * float64(width))

	var barColor lipgloss.Color
	switch {
	case pct >= 0.8:
		barColor = t.AccentBright
	case pct >= 0.5:
		barColor = t.Accent
	default:
		barColor = t.Info
	}

	filledStyle := lipgloss.NewStyle().Foreground(barColor).Background(t.Surface)
	emptyStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(barColor).Background(t.Surface).Bold(true)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	var b strings.Builder
	b.WriteString(filledStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(emptyStyle.Render(strings.Repeat("░", width-filled)))

	return b.String() + spaceStyle.Render(" ") + pctStyle.Render(fmt.Sprintf("%.0f%%", pct*100))
}

// StockFraction maps days remaining onto [0,1] against horizon days.
// Unbounded stock is full.
func StockFraction(days, horizon float64) float64 {
	if math.IsInf(days, 1) || horizon <= 0 {
		return 1
	}
	f := days / horizon
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// StockBar renders a labeled bar of how long stock will last within horizon
// days, colored by status name.
func StockBar(label, status string, days, horizon float64, labelW, barWidth int) string {
	t := theme.Active
	color := t.Status(status)
	pct := StockFraction(days, horizon)

	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	daysStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	daysStr := "∞"
	if !math.IsInf(days, 1) {
		daysStr = fmt.Sprintf("%.1fd", days)
	}

	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, truncate(label, labelW))) +
		spaceStyle.Render(" ") +
		bar.ViewAs(pct) +
		spaceStyle.Render(" ") +
		daysStyle.Render(daysStr)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
