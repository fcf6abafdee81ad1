package analytics

import (
	"math"
	"testing"
	"time"

	"pricewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testBase = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func succ(price float64, offset time.Duration) model.PriceRecord {
	return model.PriceRecord{
		ProductID: "p1",
		Price:     price,
		Success:   true,
		Timestamp: primitive.NewDateTimeFromTime(testBase.Add(offset)),
	}
}

func fail(offset time.Duration) model.PriceRecord {
	return model.PriceRecord{
		ProductID: "p1",
		Reason:    "timeout",
		Timestamp: primitive.NewDateTimeFromTime(testBase.Add(offset)),
	}
}

// run builds successful records from prices, one per hour.
func run(prices ...float64) []model.PriceRecord {
	recs := make([]model.PriceRecord, 0, len(prices))
	for i, p := range prices {
		recs = append(recs, succ(p, time.Duration(i)*time.Hour))
	}
	return recs
}

func TestTrend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		recs []model.PriceRecord
		want TrendDirection
	}{
		{name: "rising", recs: run(100, 101, 102, 103, 104), want: TrendUp},
		{name: "falling", recs: run(104, 103, 102, 101, 100), want: TrendDown},
		{name: "constant", recs: run(100, 100, 100, 100), want: TrendFlat},
		{name: "drift inside dead zone", recs: run(100, 100.01, 100.02), want: TrendFlat},
		{name: "single success", recs: run(100), want: TrendFlat},
		{name: "no records", recs: nil, want: TrendFlat},
		{name: "failures only", recs: []model.PriceRecord{fail(0), fail(time.Hour)}, want: TrendFlat},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Trend(tt.recs, 30, 0.1))
		})
	}
}

func TestTrend_WindowLimitsHistory(t *testing.T) {
	t.Parallel()

	recs := run(200, 190, 180, 100, 110, 120)
	assert.Equal(t, TrendDown, Trend(recs, 0, 0.1), "the whole history falls")
	assert.Equal(t, TrendUp, Trend(recs, 3, 0.1), "the recent window rises")
}

func TestTrend_IgnoresFailedChecks(t *testing.T) {
	t.Parallel()

	recs := []model.PriceRecord{
		succ(100, 0),
		fail(time.Hour),
		succ(105, 2*time.Hour),
		fail(3*time.Hour),
		succ(110, 4*time.Hour),
	}
	assert.Equal(t, TrendUp, Trend(recs, 30, 0.1))
}

func TestVolatility(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Volatility(run(100, 110)), "fewer than three successes has no volatility")
	assert.Zero(t, Volatility(nil))
	assert.Zero(t, Volatility(run(100, 100, 100)), "no movement, no volatility")

	// Changes of +10% and -10%: mean 0, sample stddev sqrt(200).
	v := Volatility(run(100, 110, 99))
	assert.InDelta(t, math.Sqrt(200), v, 1e-9)

	// Constant percent growth has (near) zero spread around its mean.
	assert.InDelta(t, 0, Volatility(run(100, 110, 121)), 1e-9)
}

func TestSpreadVolatility(t *testing.T) {
	t.Parallel()

	assert.Zero(t, SpreadVolatility(run(100)))
	assert.Zero(t, SpreadVolatility(nil))
	assert.InDelta(t, 20.0, SpreadVolatility(run(100, 110, 120, 105)), 1e-9)

	withFailures := []model.PriceRecord{
		succ(100, 0),
		fail(time.Hour),
		succ(150, 2*time.Hour),
	}
	assert.InDelta(t, 50.0, SpreadVolatility(withFailures), 1e-9)
}

func TestBestPrice(t *testing.T) {
	t.Parallel()

	recs := []model.PriceRecord{
		succ(120, 0),
		succ(95, time.Hour),
		fail(2 * time.Hour),
		succ(110, 3*time.Hour),
	}
	price, at, ok := BestPrice(recs)
	require.True(t, ok)
	assert.Equal(t, 95.0, price)
	assert.True(t, at.Equal(testBase.Add(time.Hour)), "the lowest price keeps its own timestamp")

	_, _, ok = BestPrice([]model.PriceRecord{fail(0)})
	assert.False(t, ok)
}

func TestBestPrice_TieKeepsEarliest(t *testing.T) {
	t.Parallel()

	recs := []model.PriceRecord{
		succ(95, 0),
		succ(110, time.Hour),
		succ(95, 2*time.Hour),
	}
	price, at, ok := BestPrice(recs)
	require.True(t, ok)
	assert.Equal(t, 95.0, price)
	assert.True(t, at.Equal(testBase))
}

func TestSavingsFromInitial(t *testing.T) {
	t.Parallel()

	pct, ok := SavingsFromInitial(run(200, 180, 150))
	require.True(t, ok)
	assert.InDelta(t, 25.0, pct, 1e-9)

	pct, ok = SavingsFromInitial(run(100, 110))
	require.True(t, ok)
	assert.InDelta(t, -10.0, pct, 1e-9, "a price increase is a negative saving")

	_, ok = SavingsFromInitial(nil)
	assert.False(t, ok)
	_, ok = SavingsFromInitial(run(0, 100))
	assert.False(t, ok, "a zero initial price has no baseline")
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	recs := run(200, 190, 180, 170)
	s := Summarize(recs, 30, 0.1)

	assert.Equal(t, TrendDown, s.Trend)
	assert.Greater(t, s.Volatility, 0.0)
	assert.InDelta(t, (200.0-170.0)/170.0*100, s.SpreadVolatility, 1e-6)
	require.True(t, s.HasBestPrice)
	assert.Equal(t, 170.0, s.BestPrice)
	require.True(t, s.HasSavings)
	assert.InDelta(t, 15.0, s.SavingsFromInitial, 1e-9)
}

func TestSummarize_NoHistory(t *testing.T) {
	t.Parallel()

	s := Summarize(nil, 30, 0.1)
	assert.Equal(t, TrendFlat, s.Trend)
	assert.False(t, s.HasBestPrice)
	assert.False(t, s.HasSavings)
	assert.Zero(t, s.Volatility)
}

func TestTrendDirection_Serialization(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "up", TrendUp.String())
	assert.Equal(t, "down", TrendDown.String())
	assert.Equal(t, "flat", TrendFlat.String())

	b, err := TrendDown.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "down", string(b))
}
