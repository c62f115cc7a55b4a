package cli

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/tui/theme"
)

// SeparatorRow splits a table body with a horizontal rule.
var SeparatorRow = []string{"---"}

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

// Table is a bordered text table. Columns whose cells all look numeric are
// right-aligned.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Widths  []int // optional, measured from the content when nil
}

// StatusStyle returns the color used for a status.
func StatusStyle(s model.Status) lipgloss.Style {
	st := fg(theme.Active.Status(string(s)))
	if s == model.StatusCritical {
		st = st.Bold(true)
	}
	return st
}

func RenderStatus(s model.Status) string {
	return StatusStyle(s).Render(string(s))
}

// RenderPriority colors a shopping priority like the status it stems from.
func RenderPriority(p model.Priority) string {
	st := fg(theme.Active.Status(string(p)))
	if p == model.PriorityCritical {
		st = st.Bold(true)
	}
	return st.Render(string(p))
}

func RenderMuted(s string) string { return fg(theme.Active.TextMuted).Render(s) }

// RenderWarning renders a line that needs attention.
func RenderWarning(s string) string { return fg(theme.Active.Low).Render(s) }

// RenderTitle renders a centered title in a rounded box.
func RenderTitle(title string) string {
	t := theme.Active
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Width(55).
		Padding(0, 1).
		Align(lipgloss.Center)
	return box.Render(fg(t.TextPrimary).Bold(true).Render(title))
}

// RenderTable renders t with rounded box-drawing borders.
func RenderTable(t Table) string {
	cols := len(t.Headers)
	if cols == 0 && len(t.Rows) > 0 {
		cols = len(t.Rows[0])
	}
	if cols == 0 {
		return ""
	}

	widths := t.Widths
	if widths == nil {
		widths = measure(t.Headers, t.Rows, cols)
	}
	right := numericColumns(t.Rows, cols)

	th := theme.Active
	frame := fg(th.TextDim)
	head := fg(th.Accent).Bold(true)
	cell := fg(th.TextPrimary)

	rule := func(left, mid, end string) string {
		parts := make([]string, cols)
		for i := range parts {
			parts[i] = strings.Repeat("─", widths[i]+2)
		}
		return frame.Render(left+strings.Join(parts, mid)+end) + "\n"
	}
	line := func(row []string, style lipgloss.Style, align []bool) string {
		var b strings.Builder
		b.WriteString(frame.Render("│"))
		for i := 0; i < cols; i++ {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			b.WriteString(style.Render(" " + pad(v, widths[i], align != nil && align[i]) + " "))
			b.WriteString(frame.Render("│"))
		}
		return b.String() + "\n"
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  " + head.Render(t.Title) + "\n")
	}
	b.WriteString(rule("╭", "┬", "╮"))
	if len(t.Headers) > 0 {
		b.WriteString(line(t.Headers, head, nil))
		b.WriteString(rule("├", "┼", "┤"))
	}
	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == SeparatorRow[0] {
			b.WriteString(rule("├", "┼", "┤"))
			continue
		}
		b.WriteString(line(row, cell, right))
	}
	b.WriteString(rule("╰", "┴", "╯"))
	return b.String()
}

func measure(headers []string, rows [][]string, cols int) []int {
	widths := make([]int, cols)
	grow := func(row []string) {
		for i, v := range row {
			if i < cols {
				widths[i] = max(widths[i], lipgloss.Width(v))
			}
		}
	}
	grow(headers)
	for _, row := range rows {
		grow(row)
	}
	return widths
}

// numericColumns marks columns whose non-empty cells start with a digit,
// a sign or a currency symbol. The first column always stays left.
func numericColumns(rows [][]string, cols int) []bool {
	right := make([]bool, cols)
	for i := 1; i < cols; i++ {
		seen := false
		right[i] = true
		for _, row := range rows {
			if i >= len(row) || len(row) == 1 && row[0] == SeparatorRow[0] {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v == "" || v == "-" {
				continue
			}
			seen = true
			r := []rune(v)[0]
			if !unicode.IsDigit(r) && !strings.ContainsRune("+-$€£~<>∞", r) {
				right[i] = false
				break
			}
		}
		right[i] = right[i] && seen
	}
	return right
}

// pad fills s to w terminal cells, so styled and wide text lines up.
func pad(s string, w int, right bool) string {
	n := w - lipgloss.Width(s)
	if n <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

// RenderProgressBar renders a text bar with a current/total counter.
func RenderProgressBar(current, total int, width int) string {
	if total <= 0 {
		return ""
	}
	filled := min(current*width/total, width)
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %s/%s", RenderMuted(bar), FormatNumber(int64(current)), FormatNumber(int64(total)))
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// RenderSparkline scales values against their maximum, one block per value.
func RenderSparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	peak := 0.0
	for _, v := range values {
		peak = max(peak, v)
	}
	if peak == 0 {
		peak = 1
	}
	top := len(sparkBlocks) - 1
	out := make([]rune, len(values))
	for i, v := range values {
		out[i] = sparkBlocks[min(max(int(v/peak*float64(top)), 0), top)]
	}
	return string(out)
}

// RenderHorizontalBar renders one labeled bar scaled to maxValue.
func RenderHorizontalBar(label string, value, maxValue float64, maxWidth int, style lipgloss.Style) string {
	if maxValue <= 0 {
		return fmt.Sprintf("  %-10s", label)
	}
	n := max(int(value/maxValue*float64(maxWidth)), 0)
	return fmt.Sprintf("  %-10s %s %s", label, style.Render(strings.Repeat("█", n)), fg(theme.Active.TextPrimary).Render(fmt.Sprintf("%.0f", value)))
}
