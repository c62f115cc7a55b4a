package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary is a point-in-time household report. It is never persisted.
type Summary struct {
	TotalItems            int             `json:"totalItems"`
	GoodItems             int             `json:"goodItems"`
	LowItems              int             `json:"lowItems"`
	CriticalItems         int             `json:"criticalItems"`
	UnknownRateItems      int             `json:"unknownRateItems"`
	ActiveShoppingEntries int             `json:"activeShoppingEntries"`
	RecentSpend           decimal.Decimal `json:"recentSpend"`
	Insights              []string        `json:"insights"`
	Recommendations       []string        `json:"recommendations"`
	GeneratedAt           time.Time       `json:"generatedAt"`
}
