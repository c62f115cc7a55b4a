package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/restock/internal/model"
)

// spendWindow is how far back receipts count toward recent spend.
const spendWindow = 30 * 24 * time.Hour

// Summarize builds the household report from projected items, the shopping
// list and recent receipts. It reads only; nothing it computes is stored.
func Summarize(views []model.ItemView, entries []model.ShoppingListItem, receipts []model.Receipt, now time.Time, lookaheadDays float64) model.Summary {
	s := model.Summary{
		TotalItems:  len(views),
		RecentSpend: decimal.Zero,
		GeneratedAt: now,
	}

	var critical, low, unknown, autoCritical []string
	var soonest *model.ItemView
	runningOut := 0

	for i := range views {
		v := views[i]
		switch v.Status {
		case model.StatusCritical:
			s.CriticalItems++
			critical = append(critical, v.Name)
			if v.AutoReorder {
				autoCritical = append(autoCritical, v.Name)
			}
		case model.StatusLow:
			s.LowItems++
			low = append(low, v.Name)
		default:
			s.GoodItems++
		}
		if !v.BurnRate.Known {
			s.UnknownRateItems++
			unknown = append(unknown, v.Name)
		}
		if d := v.Days(); !math.IsInf(d, 1) {
			if d <= lookaheadDays {
				runningOut++
			}
			if soonest == nil || d < soonest.Days() {
				soonest = &views[i]
			}
		}
	}

	activeCritical := 0
	for _, e := range entries {
		if !e.Active() {
			continue
		}
		s.ActiveShoppingEntries++
		if e.Priority == model.PriorityCritical {
			activeCritical++
		}
	}

	priced := 0
	for _, r := range receipts {
		if now.Sub(r.CreatedAt) > spendWindow {
			continue
		}
		if total := r.Total(); total.IsPositive() {
			s.RecentSpend = s.RecentSpend.Add(total)
			priced++
		}
	}

	if s.TotalItems == 0 {
		s.Insights = append(s.Insights, "No items are tracked yet.")
		s.Recommendations = append(s.Recommendations, "Submit a receipt or add items to start tracking consumption.")
		return s
	}

	if s.CriticalItems > 0 {
		s.Insights = append(s.Insights, fmt.Sprintf("%s critical: %s.", plural(s.CriticalItems, "item is", "items are"), nameList(critical)))
		s.Recommendations = append(s.Recommendations, fmt.Sprintf("Reorder %s today.", nameList(critical)))
	}
	if s.LowItems > 0 {
		s.Insights = append(s.Insights, fmt.Sprintf("%s running low: %s.", plural(s.LowItems, "item is", "items are"), nameList(low)))
		s.Recommendations = append(s.Recommendations, fmt.Sprintf("Add %s to your next shopping trip.", nameList(low)))
	}
	if s.CriticalItems == 0 && s.LowItems == 0 {
		s.Insights = append(s.Insights, fmt.Sprintf("All %d items are well stocked.", s.TotalItems))
	}
	if soonest != nil {
		s.Insights = append(s.Insights, fmt.Sprintf("%s runs out first, in about %.1f days.", soonest.Name, soonest.Days()))
	}
	if runningOut > 0 {
		s.Insights = append(s.Insights, fmt.Sprintf("%s will run out within %.0f days at current usage.", plural(runningOut, "item", "items"), lookaheadDays))
	}
	if s.UnknownRateItems > 0 {
		s.Insights = append(s.Insights, fmt.Sprintf("%s without a usage estimate yet.", plural(s.UnknownRateItems, "item", "items")))
		s.Recommendations = append(s.Recommendations, fmt.Sprintf("Record quantity changes for %s so their usage can be estimated.", nameList(unknown)))
	}
	if s.ActiveShoppingEntries > 0 {
		s.Insights = append(s.Insights, fmt.Sprintf("Shopping list has %s (%d critical).", plural(s.ActiveShoppingEntries, "open entry", "open entries"), activeCritical))
	}
	if len(autoCritical) > 0 {
		s.Recommendations = append(s.Recommendations, fmt.Sprintf("Auto-reorder is on for %s; confirm the order went out.", nameList(autoCritical)))
	}
	if priced > 0 {
		s.Insights = append(s.Insights, fmt.Sprintf("Spent %s across %s in the last 30 days.", s.RecentSpend.StringFixed(2), plural(priced, "receipt", "receipts")))
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

// nameList renders up to three sorted names and a count of the rest.
func nameList(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	if len(sorted) <= 3 {
		return strings.Join(sorted, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(sorted[:3], ", "), len(sorted)-3)
}
