package tracker

import (
	"time"

	"pricewatch/internal/model"
)

// ClassifierParams are the knobs of the priority classifier.
type ClassifierParams struct {
	// Window is how many of the newest records to look at.
	Window int
	// HighChangeRate is the change-rate above which a product is high
	// priority.
	HighChangeRate float64
	// NewProductAge is the age below which a product is always high
	// priority.
	NewProductAge time.Duration
}

// Classify assigns p a priority tier from its recent history. It is
// deterministic: same inputs, same tier. A product is high priority when its
// price changes often (change-rate above HighChangeRate over the window) or
// when it is newer than NewProductAge; everything else is regular.
func Classify(p model.Product, recs []model.PriceRecord, now time.Time, params ClassifierParams) model.PriorityTier {
	if p.Age(now) < params.NewProductAge {
		return model.TierHigh
	}
	if ChangeRate(recs, params.Window) > params.HighChangeRate {
		return model.TierHigh
	}
	return model.TierRegular
}

// ChangeRate is the fraction of successful checks in the last window records
// that changed the price: changes divided by successes, always in [0,1].
// No successes yields 0.
func ChangeRate(recs []model.PriceRecord, window int) float64 {
	if window > 0 && len(recs) > window {
		recs = recs[len(recs)-window:]
	}
	hs := model.SummarizeHistory(recs)
	if hs.SuccessCount == 0 {
		return 0
	}
	return float64(hs.ChangeCount) / float64(hs.SuccessCount)
}
