package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/restock/internal/cli"
	"github.com/theirongolddev/restock/internal/tui/components"
	"github.com/theirongolddev/restock/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type receiptsState struct {
	cursor int
}

func (a App) receiptsKey(key string) (App, tea.Cmd, bool) {
	n := len(a.receipts)
	switch key {
	case "j", "down":
		a.rec.cursor = clamp(a.rec.cursor+1, n)
	case "k", "up":
		a.rec.cursor = clamp(a.rec.cursor-1, n)
	case "g", "home":
		a.rec.cursor = 0
	case "G", "end":
		a.rec.cursor = clamp(n-1, n)
	case "c":
		if a.rec.cursor >= n {
			return a, nil, true
		}
		r := a.receipts[a.rec.cursor]
		if r.Processed {
			a.setFlash("Receipt "+cli.ShortID(r.ID)+" is already reconciled", nil)
			return a, nil, true
		}
		eng := a.engine
		return a, actionCmd(func(ctx context.Context) (string, error) {
			rep, err := eng.ReconcileReceipt(ctx, r.ID)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Reconciled %s: %d matched, %d new", cli.ShortID(r.ID), len(rep.Matched), len(rep.Created)), nil
		}), true
	default:
		return a, nil, false
	}
	return a, nil, true
}

func (a App) renderReceiptsTab(cw, h int) string {
	t := theme.Active
	now := time.Now()

	listW := cw
	detailW := 0
	if !a.isCompactLayout() {
		detailW = cw / 2
		listW = cw - detailW
	}

	headerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	pendingStyle := lipgloss.NewStyle().Foreground(t.Low).Background(t.Surface)
	doneStyle := lipgloss.NewStyle().Foreground(t.Good).Background(t.Surface)
	selBg := t.SurfaceBright

	var body strings.Builder
	body.WriteString(headerStyle.Render(fmt.Sprintf("%-9s %-6s %5s %10s %9s  %s", "ID", "Source", "Lines", "Total", "Age", "State")) + "\n")

	rows := h - 4
	if rows < 1 {
		rows = 1
	}
	start := 0
	if a.rec.cursor >= rows {
		start = a.rec.cursor - rows + 1
	}

	if len(a.receipts) == 0 {
		body.WriteString(mutedStyle.Render("No receipts yet. Import with `restock receipt <file>`."))
	}
	for i := start; i < len(a.receipts) && i < start+rows; i++ {
		r := a.receipts[i]
		style, state := rowStyle, pendingStyle.Render("pending")
		if r.Processed {
			state = doneStyle.Render("done")
		}
		if i == a.rec.cursor {
			style = style.Background(selBg)
			if r.Processed {
				state = doneStyle.Background(selBg).Render("done")
			} else {
				state = pendingStyle.Background(selBg).Render("pending")
			}
		}
		body.WriteString(style.Render(fmt.Sprintf("%-9s %-6s %5d %10s %9s  ",
			cli.ShortID(r.ID), r.Source, len(r.Items),
			cli.FormatMoney(r.Total()), cli.FormatAge(r.CreatedAt, now))) + state)
		if i < len(a.receipts)-1 && i < start+rows-1 {
			body.WriteString("\n")
		}
	}

	list := components.ContentCard(fmt.Sprintf("Receipts (%d)", len(a.receipts)), body.String(), listW)
	if detailW == 0 {
		return list
	}
	return components.CardRow([]string{list, a.renderReceiptDetail(detailW)})
}

func (a App) renderReceiptDetail(w int) string {
	t := theme.Active
	if a.rec.cursor >= len(a.receipts) {
		return components.ContentCard("Lines", "", w)
	}
	r := a.receipts[a.rec.cursor]

	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	matchStyle := lipgloss.NewStyle().Foreground(t.Info).Background(t.Surface)

	innerW := components.CardInnerWidth(w)
	nameW := innerW - 12 - 10 - 8 - 3
	if nameW < 8 {
		nameW = 8
	}

	var b strings.Builder
	b.WriteString(mutedStyle.Render("Captured ") + valueStyle.Render(r.CreatedAt.Local().Format("2006-01-02 15:04")))
	if r.ProcessedAt != nil {
		b.WriteString(mutedStyle.Render("  reconciled ") + valueStyle.Render(r.ProcessedAt.Local().Format("2006-01-02 15:04")))
	}
	b.WriteString("\n\n")

	for i, line := range r.Items {
		price := ""
		if line.Price != nil {
			price = cli.FormatMoney(*line.Price)
		}
		match := line.MatchStrategy
		if match == "" {
			match = "-"
		}
		b.WriteString(valueStyle.Render(fmt.Sprintf("%-*s %12s %10s ",
			nameW, truncStr(line.Name, nameW),
			truncStr(cli.FormatQuantity(line.Quantity, line.Unit), 12),
			price)))
		b.WriteString(matchStyle.Render(fmt.Sprintf("%-8s", truncStr(match, 8))))
		if i < len(r.Items)-1 {
			b.WriteString("\n")
		}
	}
	if !r.Processed {
		b.WriteString("\n\n" + mutedStyle.Render("[c] reconcile now"))
	}

	return components.ContentCard("Receipt "+cli.ShortID(r.ID), b.String(), w)
}
