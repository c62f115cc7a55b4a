// Package forecast turns quantity history into burn rates and burn rates
// into depletion projections.
package forecast

import (
	"sort"

	"github.com/theirongolddev/restock/internal/model"
)

// Estimator computes an exponentially weighted consumption rate over the
// most recent Window consumption intervals. Each older interval's weight is
// multiplied by Decay.
type Estimator struct {
	Window int
	Decay  float64
}

// NewEstimator returns an estimator, falling back to window 5 and decay 0.5.
func NewEstimator(window int, decay float64) Estimator {
	if window <= 0 {
		window = 5
	}
	if decay <= 0 || decay > 1 {
		decay = 0.5
	}
	return Estimator{Window: window, Decay: decay}
}

// Intervals returns per-day consumption for every usable pair of consecutive
// observations, oldest first. Restocks and zero-elapsed pairs are skipped;
// a restock still anchors the interval that follows it.
func Intervals(history []model.ConsumptionObservation) []float64 {
	obs := make([]model.ConsumptionObservation, len(history))
	copy(obs, history)
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Timestamp.Before(obs[j].Timestamp)
	})

	var rates []float64
	for i := 1; i < len(obs); i++ {
		prev, cur := obs[i-1], obs[i]
		elapsed := cur.Timestamp.Sub(prev.Timestamp).Hours() / 24
		if elapsed <= 0 {
			continue
		}
		if cur.QuantityAfter > prev.QuantityAfter {
			continue
		}
		rates = append(rates, (prev.QuantityAfter-cur.QuantityAfter)/elapsed)
	}
	return rates
}

// Estimate returns the burn rate for an item's history.
// The result is unknown with fewer than two observations or no usable interval.
func (e Estimator) Estimate(history []model.ConsumptionObservation) model.BurnRate {
	if len(history) < 2 {
		return model.UnknownRate()
	}
	rates := Intervals(history)
	if len(rates) == 0 {
		return model.UnknownRate()
	}
	if len(rates) > e.Window {
		rates = rates[len(rates)-e.Window:]
	}

	var sum, weights float64
	w := 1.0
	for i := len(rates) - 1; i >= 0; i-- {
		sum += w * rates[i]
		weights += w
		w *= e.Decay
	}
	return model.KnownRate(sum / weights)
}
