package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/theirongolddev/restock/internal/model"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func obs(day float64, qty float64) model.ConsumptionObservation {
	return model.ConsumptionObservation{
		ItemID:        "item",
		QuantityAfter: qty,
		Timestamp:     t0.Add(time.Duration(day * 24 * float64(time.Hour))),
	}
}

func assertRate(t *testing.T, got model.BurnRate, want float64) {
	t.Helper()
	if !got.Known {
		t.Fatalf("rate unknown, want %.4f", want)
	}
	if math.Abs(got.Value-want) > 1e-9 {
		t.Fatalf("rate = %.6f, want %.6f", got.Value, want)
	}
}

func TestEstimate_TooFewObservations(t *testing.T) {
	e := NewEstimator(5, 0.5)
	if r := e.Estimate(nil); r.Known {
		t.Fatalf("empty history rate = %+v, want unknown", r)
	}
	if r := e.Estimate([]model.ConsumptionObservation{obs(0, 4)}); r.Known {
		t.Fatalf("single observation rate = %+v, want unknown", r)
	}
}

func TestEstimate_SteadyConsumption(t *testing.T) {
	e := NewEstimator(5, 0.5)
	got := e.Estimate([]model.ConsumptionObservation{obs(0, 10), obs(1, 9), obs(2, 8), obs(3, 7)})
	assertRate(t, got, 1)
}

func TestEstimate_WeightsRecentIntervals(t *testing.T) {
	e := NewEstimator(5, 0.5)
	// intervals 1/day then 2/day: (2*1 + 1*0.5) / 1.5
	got := e.Estimate([]model.ConsumptionObservation{obs(0, 10), obs(1, 9), obs(2, 7)})
	assertRate(t, got, 2.5/1.5)
}

func TestEstimate_WindowDropsOldIntervals(t *testing.T) {
	e := NewEstimator(2, 0.5)
	// a 10/day outlier followed by two 1/day intervals
	got := e.Estimate([]model.ConsumptionObservation{obs(0, 30), obs(1, 20), obs(2, 19), obs(3, 18)})
	assertRate(t, got, 1)
}

func TestEstimate_RestockAnchorsNextInterval(t *testing.T) {
	e := NewEstimator(5, 0.5)
	got := e.Estimate([]model.ConsumptionObservation{
		obs(0, 2),
		obs(1, 1),
		obs(1.5, 6), // restock
		obs(3.5, 4),
	})
	// intervals: 1/day, then (6-4)/2 = 1/day; the restock itself is excluded
	assertRate(t, got, 1)
}

func TestEstimate_ZeroElapsedSkipped(t *testing.T) {
	e := NewEstimator(5, 0.5)
	got := e.Estimate([]model.ConsumptionObservation{obs(0, 10), obs(0, 8), obs(2, 6)})
	assertRate(t, got, 1)
}

func TestEstimate_NoConsumptionIsZeroNotUnknown(t *testing.T) {
	e := NewEstimator(5, 0.5)
	got := e.Estimate([]model.ConsumptionObservation{obs(0, 5), obs(1, 5), obs(2, 5)})
	assertRate(t, got, 0)
}

func TestEstimate_OnlyRestocksIsUnknown(t *testing.T) {
	e := NewEstimator(5, 0.5)
	if r := e.Estimate([]model.ConsumptionObservation{obs(0, 1), obs(1, 5)}); r.Known {
		t.Fatalf("restock-only rate = %+v, want unknown", r)
	}
}

func TestEstimate_UnsortedInput(t *testing.T) {
	e := NewEstimator(5, 0.5)
	got := e.Estimate([]model.ConsumptionObservation{obs(2, 8), obs(0, 10), obs(1, 9)})
	assertRate(t, got, 1)
}

func defaultProjector() Projector {
	return Projector{CriticalDays: 2, LowDays: 5, DefaultReorderDays: 5}
}

func TestProject_Examples(t *testing.T) {
	p := defaultProjector()
	tests := []struct {
		name   string
		qty    float64
		rate   model.BurnRate
		days   float64
		status model.Status
	}{
		{"critical", 4, model.KnownRate(4), 1, model.StatusCritical},
		{"low", 32, model.KnownRate(8), 4, model.StatusLow},
		{"good", 8, model.KnownRate(0.67), 8 / 0.67, model.StatusGood},
		{"boundary critical", 4, model.KnownRate(2), 2, model.StatusCritical},
		{"boundary low", 5, model.KnownRate(1), 5, model.StatusLow},
		{"empty with consumption", 0, model.KnownRate(1), 0, model.StatusCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Project(tt.qty, tt.rate, nil)
			if math.Abs(got.DaysRemaining-tt.days) > 1e-9 {
				t.Fatalf("DaysRemaining = %.4f, want %.4f", got.DaysRemaining, tt.days)
			}
			if got.Status != tt.status {
				t.Fatalf("Status = %s, want %s", got.Status, tt.status)
			}
		})
	}
}

func TestProject_UnboundedRunway(t *testing.T) {
	p := defaultProjector()
	for _, rate := range []model.BurnRate{model.UnknownRate(), model.KnownRate(0)} {
		got := p.Project(0, rate, nil)
		if !math.IsInf(got.DaysRemaining, 1) {
			t.Fatalf("rate %+v: DaysRemaining = %v, want +Inf", rate, got.DaysRemaining)
		}
		if got.Status != model.StatusGood {
			t.Fatalf("rate %+v: Status = %s, want good", rate, got.Status)
		}
	}
}

func TestProject_ReorderThresholdWidensLow(t *testing.T) {
	p := defaultProjector()
	threshold := 10.0
	if got := p.Project(8, model.KnownRate(1), &threshold); got.Status != model.StatusLow {
		t.Fatalf("Status = %s, want low with a 10-day threshold", got.Status)
	}
	narrow := 1.0
	if got := p.Project(4, model.KnownRate(1), &narrow); got.Status != model.StatusLow {
		t.Fatalf("Status = %s, want low: threshold below LowDays must not narrow it", got.Status)
	}
}

func TestView_InfiniteDaysIsNil(t *testing.T) {
	p := defaultProjector()
	v := p.View(model.InventoryItem{ID: "a", Quantity: 3})
	if v.DaysRemaining != nil {
		t.Fatalf("DaysRemaining = %v, want nil", *v.DaysRemaining)
	}
	if !math.IsInf(v.Days(), 1) {
		t.Fatalf("Days() = %v, want +Inf", v.Days())
	}
}
