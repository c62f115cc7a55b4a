package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/restock/internal/cli"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/replenish"
	"github.com/theirongolddev/restock/internal/tui/components"
	"github.com/theirongolddev/restock/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type shoppingState struct {
	cursor  int
	showAll bool // include purchased entries
}

// visibleEntries returns open entries, plus purchased ones when toggled on.
// Order is the engine's: open first, then priority, then age.
func (a App) visibleEntries() []model.ShoppingListItem {
	if a.shop.showAll {
		return a.entries
	}
	out := make([]model.ShoppingListItem, 0, len(a.entries))
	for _, en := range a.entries {
		if en.Active() {
			out = append(out, en)
		}
	}
	return out
}

func (a App) shoppingKey(key string) (App, tea.Cmd, bool) {
	entries := a.visibleEntries()
	n := len(entries)
	switch key {
	case "j", "down":
		a.shop.cursor = clamp(a.shop.cursor+1, n)
	case "k", "up":
		a.shop.cursor = clamp(a.shop.cursor-1, n)
	case "g", "home":
		a.shop.cursor = 0
	case "G", "end":
		a.shop.cursor = clamp(n-1, n)
	case "a":
		a.shop.showAll = !a.shop.showAll
		a.shop.cursor = clamp(a.shop.cursor, len(a.visibleEntries()))
	case "b", "enter":
		if a.shop.cursor >= n {
			return a, nil, true
		}
		en := entries[a.shop.cursor]
		if en.Purchased {
			a.setFlash(en.Name+" is already bought", nil)
			return a, nil, true
		}
		eng := a.engine
		return a, actionCmd(func(ctx context.Context) (string, error) {
			if _, err := eng.MarkPurchased(ctx, en.ID); err != nil {
				return "", err
			}
			return "Bought " + en.Name, nil
		}), true
	case "p":
		eng := a.engine
		return a, actionCmd(func(ctx context.Context) (string, error) {
			changes, err := eng.RefreshShoppingList(ctx)
			if err != nil {
				return "", err
			}
			return describeChanges(changes), nil
		}), true
	default:
		return a, nil, false
	}
	return a, nil, true
}

func describeChanges(changes []replenish.Change) string {
	if len(changes) == 0 {
		return "Shopping list is up to date"
	}
	var added, updated, removed int
	for _, c := range changes {
		switch c.Kind {
		case replenish.Created:
			added++
		case replenish.Updated:
			updated++
		case replenish.Removed:
			removed++
		}
	}
	return fmt.Sprintf("Re-planned: %d added, %d updated, %d removed", added, updated, removed)
}

func (a App) renderShoppingTab(cw, h int) string {
	t := theme.Active
	entries := a.visibleEntries()
	now := time.Now()

	headerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	doneStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Strikethrough(true)
	selBg := t.SurfaceBright

	var open, critical, high int
	for _, en := range a.entries {
		if !en.Active() {
			continue
		}
		open++
		switch en.Priority {
		case model.PriorityCritical:
			critical++
		case model.PriorityHigh:
			high++
		}
	}

	metrics := []components.Metric{
		{Label: "Open", Value: cli.FormatNumber(int64(open))},
		{Label: "Critical", Value: cli.FormatNumber(int64(critical)), Color: t.Status("critical")},
		{Label: "High", Value: cli.FormatNumber(int64(high)), Color: t.Status("high")},
		{Label: "Bought", Value: cli.FormatNumber(int64(len(a.entries) - open)), Color: t.TextMuted},
	}
	cards := components.MetricCardRow(metrics, cw)

	innerW := components.CardInnerWidth(cw)
	nameW := innerW - 10 - 14 - 10 - 4
	if nameW > 40 {
		nameW = 40
	}
	if nameW < 10 {
		nameW = 10
	}

	var body strings.Builder
	body.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %-*s %14s %10s", "Priority", nameW, "Item", "Buy", "Age")) + "\n")

	rows := h - lipgloss.Height(cards) - 4
	if rows < 1 {
		rows = 1
	}
	start := 0
	if a.shop.cursor >= rows {
		start = a.shop.cursor - rows + 1
	}

	if len(entries) == 0 {
		body.WriteString(mutedStyle.Render("Nothing to buy. Press p to re-plan."))
	}
	for i := start; i < len(entries) && i < start+rows; i++ {
		en := entries[i]
		prio := lipgloss.NewStyle().Foreground(t.Status(string(en.Priority))).Background(t.Surface).Bold(true)
		style := rowStyle
		if en.Purchased {
			style = doneStyle
		}
		if i == a.shop.cursor {
			prio = prio.Background(selBg)
			style = style.Background(selBg)
		}

		age := cli.FormatAge(en.CreatedAt, now)
		if en.PurchasedAt != nil {
			age = cli.FormatAge(*en.PurchasedAt, now)
		}
		body.WriteString(prio.Render(fmt.Sprintf("%-10s", en.Priority)) +
			style.Render(fmt.Sprintf(" %-*s %14s %10s",
				nameW, truncStr(en.Name, nameW),
				truncStr(cli.FormatQuantity(en.SuggestedQuantity, en.Unit), 14),
				age)))
		if i < len(entries)-1 && i < start+rows-1 {
			body.WriteString("\n")
		}
	}

	title := "Shopping List"
	if a.shop.showAll {
		title += " (incl. bought)"
	}
	return cards + "\n" + components.ContentCard(title, body.String(), cw)
}
