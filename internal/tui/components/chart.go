package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/theirongolddev/restock/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline renders a unicode sparkline from values.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	peak := values[0]
	for _, v := range values[1:] {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		peak = 1
	}

	style := lipgloss.NewStyle().Foreground(color).Background(t.Surface)

	var buf strings.Builder
	buf.Grow(len(values) * 4)
	for _, v := range values {
		idx := int(v / peak * float64(len(blocks)-1))
		if idx >= len(blocks) {
			idx = len(blocks) - 1
		}
		if idx < 0 {
			idx = 0
		}
		buf.WriteRune(blocks[idx]) //nolint:gosec // bounds checked above
	}

	return style.Render(buf.String())
}

// DaysBar is one row of a DaysChart.
type DaysBar struct {
	Label  string
	Status string
	Days   float64 // +Inf when the item is not being used
}

// DaysChart renders horizontal bars of days remaining, one row per entry,
// scaled to horizon days. Bars past the horizon are drawn full with a "+"
// marker.
func DaysChart(bars []DaysBar, horizon float64, width int) string {
	if len(bars) == 0 {
		return ""
	}
	t := theme.Active
	if horizon <= 0 {
		horizon = 14
	}

	labelW := 0
	for _, b := range bars {
		if w := lipgloss.Width(b.Label); w > labelW {
			labelW = w
		}
	}
	if labelW > 18 {
		labelW = 18
	}
	const valueW = 7
	barW := width - labelW - valueW - 3
	if barW < 5 {
		barW = 5
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	axisStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	// Partial blocks give eighth-cell resolution.
	partials := []rune{' ', '▏', '▎', '▍', '▌', '▋', '▊', '▉'}

	var b strings.Builder
	for i, bar := range bars {
		color := t.Status(bar.Status)
		barStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface)
		valueStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true)

		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", labelW, truncate(bar.Label, labelW))))
		b.WriteString(axisStyle.Render(" │"))

		frac := StockFraction(bar.Days, horizon)
		eighths := int(math.Round(frac * float64(barW) * 8))
		full := eighths / 8
		rem := eighths % 8

		var cells strings.Builder
		cells.WriteString(strings.Repeat("█", full))
		used := full
		if rem > 0 && used < barW {
			cells.WriteRune(partials[rem])
			used++
		}
		b.WriteString(barStyle.Render(cells.String()))
		b.WriteString(spaceStyle.Render(strings.Repeat(" ", barW-used)))

		value := "∞"
		if !math.IsInf(bar.Days, 1) {
			value = formatDaysLabel(bar.Days)
			if bar.Days > horizon {
				value += "+"
			}
		}
		b.WriteString(valueStyle.Render(fmt.Sprintf(" %*s", valueW-1, value)))
		if i < len(bars)-1 {
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(spaceStyle.Render(strings.Repeat(" ", labelW+1)))
	b.WriteString(axisStyle.Render("└" + strings.Repeat("─", barW)))
	b.WriteString("\n")
	b.WriteString(spaceStyle.Render(strings.Repeat(" ", labelW+2)))
	scale := fmt.Sprintf("0%*s", barW-1, formatDaysLabel(horizon))
	b.WriteString(axisStyle.Render(scale))

	return b.String()
}

func formatDaysLabel(d float64) string {
	switch {
	case d < 1:
		return "<1d"
	case d < 10:
		return fmt.Sprintf("%.1fd", d)
	default:
		return fmt.Sprintf("%.0fd", d)
	}
}
