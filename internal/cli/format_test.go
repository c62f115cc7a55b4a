package cli

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/restock/internal/model"
)

func TestFormatQuantity(t *testing.T) {
	cases := []struct {
		q    float64
		unit string
		want string
	}{
		{2, "l", "2 l"},
		{0.25, "kg", "0.25 kg"},
		{1.0 / 3, "", "0.33"},
	}
	for _, c := range cases {
		if got := FormatQuantity(c.q, c.unit); got != c.want {
			t.Errorf("FormatQuantity(%v, %q) = %q, want %q", c.q, c.unit, got, c.want)
		}
	}
}

func TestFormatDays(t *testing.T) {
	inf := math.Inf(1)
	cases := []struct {
		d    *float64
		want string
	}{
		{nil, "∞"},
		{&inf, "∞"},
		{ptr(0.4), "<1d"},
		{ptr(3.25), "3.2d"},
		{ptr(45.9), "45d"},
	}
	for _, c := range cases {
		if got := FormatDays(c.d); got != c.want {
			t.Errorf("FormatDays = %q, want %q", got, c.want)
		}
	}
}

func ptr(f float64) *float64 { return &f }

func TestFormatRateMoneyAge(t *testing.T) {
	if got := FormatRate(model.UnknownRate(), "l"); got != "unknown" {
		t.Errorf("FormatRate(unknown) = %q", got)
	}
	if got := FormatRate(model.KnownRate(1.5), "l"); got != "1.5 l/day" {
		t.Errorf("FormatRate = %q", got)
	}
	if got := FormatMoney(decimal.RequireFromString("3.5")); got != "$3.50" {
		t.Errorf("FormatMoney = %q", got)
	}
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	if got := FormatAge(now.Add(-50*time.Hour), now); got != "2d ago" {
		t.Errorf("FormatAge = %q", got)
	}
	if got := FormatAge(time.Time{}, now); got != "never" {
		t.Errorf("FormatAge(zero) = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	if got := FormatNumber(1234567); got != "1,234,567" {
		t.Errorf("FormatNumber = %q", got)
	}
	if got := FormatNumber(-1000); got != "-1,000" {
		t.Errorf("FormatNumber = %q", got)
	}
	if got := FormatDelta(3); got != "+3" {
		t.Errorf("FormatDelta = %q", got)
	}
}
