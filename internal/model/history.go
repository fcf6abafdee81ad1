package model

import (
	"pricewatch/internal/misc"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HistorySummary holds the attributes derived from a product's price history.
// These are always computed from the records, never stored.
type HistorySummary struct {
	CurrentPrice float64 `json:"current_price"`
	InitialPrice float64 `json:"initial_price"`
	LowestPrice  float64 `json:"lowest_price"`
	HighestPrice float64 `json:"highest_price"`
	ChangeCount  int     `json:"change_count"`
	SuccessCount int     `json:"success_count"`
	FailureCount int     `json:"failure_count"`

	FirstCheckedAt primitive.DateTime `json:"first_checked_at"`
	LastCheckedAt  primitive.DateTime `json:"last_checked_at"`
}

// SummarizeHistory computes the derived attributes over recs, which must be
// ordered oldest to newest. Prices come from successful records only;
// ChangeCount counts adjacent pairs of successful records whose prices
// differ.
func SummarizeHistory(recs []PriceRecord) HistorySummary {
	var hs HistorySummary
	if len(recs) > 0 {
		hs.FirstCheckedAt = recs[0].Timestamp
		hs.LastCheckedAt = recs[len(recs)-1].Timestamp
	}
	var prevSuccess *PriceRecord
	for i := range recs {
		r := recs[i]
		if !r.Success {
			hs.FailureCount++
			continue
		}
		if hs.SuccessCount == 0 {
			hs.InitialPrice = r.Price
			hs.LowestPrice = r.Price
			hs.HighestPrice = r.Price
		} else {
			hs.LowestPrice = misc.Min(hs.LowestPrice, r.Price)
			hs.HighestPrice = misc.Max(hs.HighestPrice, r.Price)
			if prevSuccess != nil && prevSuccess.Price != r.Price {
				hs.ChangeCount++
			}
		}
		hs.CurrentPrice = r.Price
		hs.SuccessCount++
		prevSuccess = &recs[i]
	}
	return hs
}

// Successes returns the successful records of recs in the same order.
func Successes(recs []PriceRecord) []PriceRecord {
	out := make([]PriceRecord, 0, len(recs))
	for _, r := range recs {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}
