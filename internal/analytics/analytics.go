// Package analytics computes price statistics over a product's history.
// All functions are pure: they take records ordered oldest to newest and
// only ever look at successful ones.
package analytics

import (
	"math"
	"time"

	"pricewatch/internal/model"
)

type TrendDirection int

const (
	TrendFlat TrendDirection = iota
	TrendUp
	TrendDown
)

func (t TrendDirection) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "flat"
	}
}

// MarshalText makes the direction serialize as "up", "down" or "flat".
func (t TrendDirection) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Trend fits a least-squares line through the last window successful prices
// and reports its direction. Slopes whose magnitude stays below
// deadZonePercent of the mean price per step count as flat. Fewer than two
// successes is always flat.
func Trend(recs []model.PriceRecord, window int, deadZonePercent float64) TrendDirection {
	prices := successPrices(recs)
	if window > 0 && len(prices) > window {
		prices = prices[len(prices)-window:]
	}
	n := len(prices)
	if n < 2 {
		return TrendFlat
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range prices {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return TrendFlat
	}
	slope := (fn*sumXY - sumX*sumY) / denom

	mean := sumY / fn
	if mean == 0 {
		return TrendFlat
	}
	relSlope := slope / mean * 100
	if math.Abs(relSlope) < deadZonePercent {
		return TrendFlat
	}
	if slope > 0 {
		return TrendUp
	}
	return TrendDown
}

// Volatility is the sample standard deviation of the percent changes between
// consecutive successful prices. Fewer than three successes yields 0.
func Volatility(recs []model.PriceRecord) float64 {
	prices := successPrices(recs)
	if len(prices) < 3 {
		return 0
	}

	changes := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		changes = append(changes, (prices[i]-prices[i-1])/prices[i-1]*100)
	}
	if len(changes) < 2 {
		return 0
	}

	mean := computeMean(changes)
	var sumSq float64
	for _, ch := range changes {
		d := ch - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(changes)-1))
}

// SpreadVolatility is the full price range relative to the minimum,
// (max-min)/min*100. It is the ranking metric of the weekly report.
func SpreadVolatility(recs []model.PriceRecord) float64 {
	prices := successPrices(recs)
	if len(prices) < 2 {
		return 0
	}
	min, max := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if min == 0 {
		return 0
	}
	return (max - min) / min * 100
}

// BestPrice returns the lowest successful price and when it was seen.
// ok is false when there are no successes.
func BestPrice(recs []model.PriceRecord) (price float64, at time.Time, ok bool) {
	for _, r := range recs {
		if !r.Success {
			continue
		}
		if !ok || r.Price < price {
			price = r.Price
			at = r.Timestamp.Time()
			ok = true
		}
	}
	return price, at, ok
}

// SavingsFromInitial is the percent saved relative to the first successful
// price, (initial-current)/initial*100. Negative when the price went up.
// ok is false when there are no successes or the initial price is 0.
func SavingsFromInitial(recs []model.PriceRecord) (float64, bool) {
	prices := successPrices(recs)
	if len(prices) == 0 || prices[0] == 0 {
		return 0, false
	}
	initial, current := prices[0], prices[len(prices)-1]
	return (initial - current) / initial * 100, true
}

// Summary bundles the analytics for one product.
type Summary struct {
	Trend              TrendDirection `json:"trend"`
	Volatility         float64        `json:"volatility"`
	SpreadVolatility   float64        `json:"spread_volatility"`
	BestPrice          float64        `json:"best_price"`
	BestPriceAt        time.Time      `json:"best_price_at"`
	HasBestPrice       bool           `json:"-"`
	SavingsFromInitial float64        `json:"savings_from_initial"`
	HasSavings         bool           `json:"-"`
}

func Summarize(recs []model.PriceRecord, trendWindow int, deadZonePercent float64) Summary {
	s := Summary{
		Trend:            Trend(recs, trendWindow, deadZonePercent),
		Volatility:       Volatility(recs),
		SpreadVolatility: SpreadVolatility(recs),
	}
	s.BestPrice, s.BestPriceAt, s.HasBestPrice = BestPrice(recs)
	s.SavingsFromInitial, s.HasSavings = SavingsFromInitial(recs)
	return s
}

func successPrices(recs []model.PriceRecord) []float64 {
	prices := make([]float64, 0, len(recs))
	for _, r := range recs {
		if r.Success {
			prices = append(prices, r.Price)
		}
	}
	return prices
}

func computeMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
