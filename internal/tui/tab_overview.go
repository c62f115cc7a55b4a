package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/restock/internal/cli"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/tui/components"
	"github.com/theirongolddev/restock/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// overviewChartRows caps how many items the days-left chart shows.
const overviewChartRows = 8

func (a App) renderOverviewTab(cw int) string {
	t := theme.Active
	s := a.summary
	var b strings.Builder

	// Row 1: Metric cards
	tracked := ""
	if s.UnknownRateItems > 0 {
		tracked = fmt.Sprintf("%d without a rate", s.UnknownRateItems)
	}
	cards := []components.Metric{
		{Label: "Items", Value: cli.FormatNumber(int64(s.TotalItems)), Delta: tracked},
		{Label: "Good", Value: cli.FormatNumber(int64(s.GoodItems)), Color: t.Status(string(model.StatusGood))},
		{Label: "Low", Value: cli.FormatNumber(int64(s.LowItems)), Color: t.Status(string(model.StatusLow))},
		{Label: "Critical", Value: cli.FormatNumber(int64(s.CriticalItems)), Color: t.Status(string(model.StatusCritical))},
		{Label: "To buy", Value: cli.FormatNumber(int64(s.ActiveShoppingEntries)), Delta: "spent " + cli.FormatMoney(s.RecentSpend)},
	}
	b.WriteString(components.MetricCardRow(cards, cw))
	b.WriteString("\n")

	// Row 2: items closest to running out
	horizon := a.engine.Config().LookaheadDays
	soonest := a.visibleItemsUnfiltered()
	if len(soonest) > overviewChartRows {
		soonest = soonest[:overviewChartRows]
	}
	if len(soonest) > 0 {
		innerW := components.CardInnerWidth(cw)
		var chart string
		if a.isCompactLayout() {
			lines := make([]string, len(soonest))
			for i, v := range soonest {
				lines[i] = components.StockBar(v.Name, string(v.Status), v.Days(), horizon, 16, innerW-16-10)
			}
			chart = strings.Join(lines, "\n")
		} else {
			bars := make([]components.DaysBar, len(soonest))
			for i, v := range soonest {
				bars[i] = components.DaysBar{Label: v.Name, Status: string(v.Status), Days: v.Days()}
			}
			chart = components.DaysChart(bars, horizon, innerW)
		}
		b.WriteString(components.ContentCard(
			fmt.Sprintf("Running Out (next %s days)", formatFloat(horizon)), chart, cw))
		b.WriteString("\n")
	}

	// Row 3: insights and recommendations side by side
	textStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	bullets := func(lines []string, empty string) string {
		if len(lines) == 0 {
			return mutedStyle.Render(empty)
		}
		out := make([]string, len(lines))
		for i, l := range lines {
			out[i] = mutedStyle.Render("• ") + textStyle.Render(l)
		}
		return strings.Join(out, "\n")
	}

	halves := components.LayoutRow(cw, 2)
	if a.isCompactLayout() {
		b.WriteString(components.ContentCard("Insights", bullets(s.Insights, "Nothing notable."), cw))
		b.WriteString("\n")
		b.WriteString(components.ContentCard("Recommendations", bullets(s.Recommendations, "All stocked up."), cw))
	} else {
		b.WriteString(components.CardRow([]string{
			components.ContentCard("Insights", bullets(s.Insights, "Nothing notable."), halves[0]),
			components.ContentCard("Recommendations", bullets(s.Recommendations, "All stocked up."), halves[1]),
		}))
	}

	return b.String()
}

// visibleItemsUnfiltered returns every item ordered by days left, ignoring
// the inventory search.
func (a App) visibleItemsUnfiltered() []model.ItemView {
	a.inv.query = ""
	return a.visibleItems()
}
