package tui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/theirongolddev/restock/internal/cli"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/tui/components"
	"github.com/theirongolddev/restock/internal/tui/theme"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// inventoryState tracks the inventory tab state.
type inventoryState struct {
	cursor int

	searching bool
	query     string
	search    textinput.Model

	counting bool
	count    textinput.Model

	historyID  string
	history    []model.ConsumptionObservation
	historyErr error
}

// visibleItems returns the items matching the search query, soonest to run
// out first.
func (a App) visibleItems() []model.ItemView {
	q := strings.ToLower(strings.TrimSpace(a.inv.query))
	out := make([]model.ItemView, 0, len(a.views))
	for _, v := range a.views {
		if q != "" &&
			!strings.Contains(strings.ToLower(v.Name), q) &&
			!strings.Contains(strings.ToLower(v.Category), q) &&
			!strings.Contains(strings.ToLower(v.Location), q) {
			continue
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Days(), out[j].Days()
		if di != dj {
			return di < dj
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func (a App) selectedItem() (model.ItemView, bool) {
	items := a.visibleItems()
	if a.inv.cursor < 0 || a.inv.cursor >= len(items) {
		return model.ItemView{}, false
	}
	return items[a.inv.cursor], true
}

// syncHistory loads observations for the selected item when it changed.
func (a *App) syncHistory() tea.Cmd {
	if a.activeTab != tabInventory {
		return nil
	}
	v, ok := a.selectedItem()
	if !ok {
		a.inv.historyID = ""
		a.inv.history = nil
		return nil
	}
	if v.ID == a.inv.historyID {
		return nil
	}
	a.inv.historyID = v.ID
	a.inv.history = nil
	a.inv.historyErr = nil
	return historyCmd(a.engine, v.ID)
}

func (a App) inventoryKey(key string) (App, tea.Cmd, bool) {
	n := len(a.visibleItems())
	switch key {
	case "j", "down":
		a.inv.cursor = clamp(a.inv.cursor+1, n)
	case "k", "up":
		a.inv.cursor = clamp(a.inv.cursor-1, n)
	case "g", "home":
		a.inv.cursor = 0
	case "G", "end":
		a.inv.cursor = clamp(n-1, n)
	case "ctrl+d":
		a.inv.cursor = clamp(a.inv.cursor+halfPage(a.height), n)
	case "ctrl+u":
		a.inv.cursor = clamp(a.inv.cursor-halfPage(a.height), n)
	case "/":
		ti := textinput.New()
		ti.Prompt = "/"
		ti.CharLimit = 64
		ti.Width = 30
		ti.SetValue(a.inv.query)
		ti.Focus()
		a.inv.search = ti
		a.inv.searching = true
		return a, ti.Cursor.BlinkCmd(), true
	case "esc":
		if a.inv.query == "" {
			return a, nil, false
		}
		a.inv.query = ""
		a.inv.cursor = 0
	case "u":
		v, ok := a.selectedItem()
		if !ok {
			return a, nil, true
		}
		eng, id, name := a.engine, v.ID, v.Name
		return a, actionCmd(func(ctx context.Context) (string, error) {
			after, err := eng.Consume(ctx, id, 1)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Used 1 %s, %s left", name, cli.FormatQuantity(after.Quantity, after.Unit)), nil
		}), true
	case "c":
		v, ok := a.selectedItem()
		if !ok {
			return a, nil, true
		}
		ti := textinput.New()
		ti.Prompt = "count: "
		ti.Placeholder = formatFloat(v.Quantity)
		ti.CharLimit = 16
		ti.Width = 12
		ti.Focus()
		a.inv.count = ti
		a.inv.counting = true
		return a, ti.Cursor.BlinkCmd(), true
	default:
		return a, nil, false
	}
	cmd := a.syncHistory()
	return a, cmd, true
}

func (a App) updateInventorySearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.inv.searching = false
		return a, nil
	case "esc":
		a.inv.searching = false
		a.inv.query = ""
		a.inv.cursor = 0
		cmd := a.syncHistory()
		return a, cmd
	}

	var cmd tea.Cmd
	a.inv.search, cmd = a.inv.search.Update(msg)
	a.inv.query = a.inv.search.Value()
	a.inv.cursor = 0
	hcmd := a.syncHistory()
	return a, tea.Batch(cmd, hcmd)
}

func (a App) updateInventoryCount(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.inv.counting = false
		v, ok := a.selectedItem()
		if !ok {
			return a, nil
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(a.inv.count.Value()), 64)
		if err != nil {
			a.setFlash("", fmt.Errorf("%q is not a number", a.inv.count.Value()))
			return a, nil
		}
		eng, id, name := a.engine, v.ID, v.Name
		return a, actionCmd(func(ctx context.Context) (string, error) {
			after, err := eng.RecordQuantity(ctx, id, q)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s now %s", name, cli.FormatQuantity(after.Quantity, after.Unit)), nil
		})
	case "esc":
		a.inv.counting = false
		return a, nil
	}

	var cmd tea.Cmd
	a.inv.count, cmd = a.inv.count.Update(msg)
	return a, cmd
}

func (a App) renderInventoryTab(cw, h int) string {
	t := theme.Active
	items := a.visibleItems()

	listW := cw
	detailW := 0
	if !a.isCompactLayout() {
		detailW = cw * 2 / 5
		listW = cw - detailW
	}

	horizon := a.engine.Config().LookaheadDays

	headerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.SurfaceBright).Bold(true)

	innerW := components.CardInnerWidth(listW)
	nameW := innerW - 12 - 10 - 2
	if nameW > 28 {
		nameW = 28
	}
	if nameW < 10 {
		nameW = 10
	}
	barW := innerW - nameW - 12 - 10 - 2 - 5 // percentage label
	if barW < 6 {
		barW = 6
	}

	var body strings.Builder
	if a.inv.searching {
		body.WriteString(a.inv.search.View() + "\n")
	} else if a.inv.query != "" {
		body.WriteString(mutedStyle.Render(fmt.Sprintf("filter: %q  [Esc] clear", a.inv.query)) + "\n")
	}
	body.WriteString(headerStyle.Render(fmt.Sprintf("%-*s %12s %10s", nameW, "Item", "On hand", "Left")) + "\n")

	// Rows that fit: card border, title and header.
	rows := h - 5
	if a.inv.searching || a.inv.query != "" {
		rows--
	}
	if rows < 1 {
		rows = 1
	}
	start := 0
	if a.inv.cursor >= rows {
		start = a.inv.cursor - rows + 1
	}

	if len(items) == 0 {
		body.WriteString(mutedStyle.Render("No items. Add one with `restock add <name>`."))
	}
	for i := start; i < len(items) && i < start+rows; i++ {
		v := items[i]
		style := rowStyle
		if i == a.inv.cursor {
			style = selStyle
		}
		line := fmt.Sprintf("%-*s %12s %10s",
			nameW, truncStr(v.Name, nameW),
			truncStr(cli.FormatQuantity(v.Quantity, v.Unit), 12),
			cli.FormatDays(v.DaysRemaining))
		bar := components.ProgressBar(components.StockFraction(v.Days(), horizon), barW)
		body.WriteString(style.Render(line) + style.Render(" ") + bar)
		if i < len(items)-1 && i < start+rows-1 {
			body.WriteString("\n")
		}
	}

	if detailW == 0 && a.inv.counting {
		body.WriteString("\n" + a.inv.count.View())
	}

	title := fmt.Sprintf("Inventory (%d)", len(items))
	list := components.ContentCard(title, body.String(), listW)
	if detailW == 0 {
		return list
	}
	return components.CardRow([]string{list, a.renderItemDetail(detailW)})
}

func (a App) renderItemDetail(w int) string {
	t := theme.Active
	v, ok := a.selectedItem()
	if !ok {
		return components.ContentCard("Details", "", w)
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	statusStyle := lipgloss.NewStyle().Foreground(theme.Active.Status(string(v.Status))).Background(t.Surface).Bold(true)

	row := func(label, value string) string {
		return labelStyle.Render(fmt.Sprintf("%-11s", label)) + valueStyle.Render(value) + "\n"
	}

	var b strings.Builder
	b.WriteString(statusStyle.Render(strings.ToUpper(string(v.Status))) + "\n")
	b.WriteString(row("Category", v.Category))
	b.WriteString(row("Location", v.Location))
	b.WriteString(row("On hand", cli.FormatQuantity(v.Quantity, v.Unit)))
	b.WriteString(row("Burn rate", cli.FormatRate(v.BurnRate, v.Unit)))
	b.WriteString(row("Days left", cli.FormatDays(v.DaysRemaining)))
	threshold := "default"
	if v.ReorderThreshold != nil {
		threshold = formatFloat(*v.ReorderThreshold) + "d"
	}
	b.WriteString(row("Reorder at", threshold))
	b.WriteString(row("Auto", strconv.FormatBool(v.AutoReorder)))

	b.WriteString("\n")
	switch {
	case a.inv.historyErr != nil:
		b.WriteString(labelStyle.Render("history: " + a.inv.historyErr.Error()))
	case a.inv.historyID != v.ID || a.inv.history == nil:
		b.WriteString(labelStyle.Render("loading history…"))
	default:
		values := make([]float64, len(a.inv.history))
		for i, o := range a.inv.history {
			values[i] = o.QuantityAfter
		}
		b.WriteString(labelStyle.Render("History  ") + components.Sparkline(values, t.Accent) + "\n")
		recent := a.inv.history
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		for i := len(recent) - 1; i >= 0; i-- {
			o := recent[i]
			b.WriteString(labelStyle.Render(fmt.Sprintf("%-9s", o.Kind)) +
				valueStyle.Render(fmt.Sprintf("%-10s", cli.FormatQuantity(o.QuantityAfter, v.Unit))) +
				labelStyle.Render(o.Timestamp.Local().Format("Jan 02 15:04")))
			if i > 0 {
				b.WriteString("\n")
			}
		}
	}

	if a.inv.counting {
		b.WriteString("\n\n" + a.inv.count.View())
	}

	return components.ContentCard(truncStr(v.Name, components.CardInnerWidth(w)), b.String(), w)
}
