package notify

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	logpkg "pricewatch/internal/logger"
	"pricewatch/internal/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []PriceChangeNotification
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, n PriceChangeNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, n)
	return nil
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func testProduct() model.Product {
	return model.Product{
		ID:       "amazon_B0ABC1234D",
		URL:      "https://www.amazon.in/dp/B0ABC1234D",
		Name:     "Widget Pro",
		Site:     "amazon.in",
		ImageURL: "https://img.example.com/widget.jpg",
	}
}

func testDispatcher(policy Policy, channels ...Channel) Dispatcher {
	return Dispatcher{
		Policy:   policy,
		Channels: channels,
		Logger:   logpkg.NewLogger(logpkg.LevelOff, io.Discard),
	}
}

func defaultPolicy() Policy {
	return Policy{NotifyOnDecrease: true, MinimumChangePercent: 1.0}
}

func TestPercentChange(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, -6.0, PercentChange(100, 94), 1e-9)
	assert.InDelta(t, 10.0, PercentChange(100, 110), 1e-9)
	assert.Zero(t, PercentChange(0, 50), "a zero baseline has no percent change")
}

func TestDispatcher_Evaluate_Decrease(t *testing.T) {
	t.Parallel()

	d := testDispatcher(defaultPolicy())
	at := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	p := testProduct()

	n := d.Evaluate(p, 100, 94, at)
	require.NotNil(t, n)

	assert.Equal(t, "price_change", n.Type)
	assert.Equal(t, at, n.Timestamp)
	assert.Equal(t, NotificationProduct{
		ID:       p.ID,
		Name:     p.Name,
		URL:      p.URL,
		ImageURL: p.ImageURL,
	}, n.Product)
	assert.Equal(t, "decrease", n.PriceChange.ChangeType)
	assert.Equal(t, 100.0, n.PriceChange.OldPrice)
	assert.Equal(t, 94.0, n.PriceChange.NewPrice)
	assert.InDelta(t, -6.0, n.PriceChange.ChangeAmount, 1e-9)
	assert.InDelta(t, -6.0, n.PriceChange.ChangePercentage, 1e-9)
}

func TestDispatcher_Evaluate_StaysQuiet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		policy   Policy
		oldPrice float64
		newPrice float64
	}{
		{name: "below minimum change", policy: defaultPolicy(), oldPrice: 100, newPrice: 100.5},
		{name: "increase suppressed by default", policy: defaultPolicy(), oldPrice: 100, newPrice: 150},
		{name: "decrease disabled", policy: Policy{MinimumChangePercent: 1.0}, oldPrice: 100, newPrice: 50},
		{name: "no baseline", policy: defaultPolicy(), oldPrice: 0, newPrice: 99},
		{name: "unchanged", policy: defaultPolicy(), oldPrice: 100, newPrice: 100},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := testDispatcher(tt.policy)
			assert.Nil(t, d.Evaluate(testProduct(), tt.oldPrice, tt.newPrice, time.Now()))
		})
	}
}

func TestDispatcher_Evaluate_MinimumChangeIsInclusive(t *testing.T) {
	t.Parallel()

	d := testDispatcher(defaultPolicy())
	n := d.Evaluate(testProduct(), 100, 99, time.Now())
	require.NotNil(t, n, "a change of exactly the minimum percent qualifies")
	assert.InDelta(t, -1.0, n.PriceChange.ChangePercentage, 1e-9)
}

func TestDispatcher_Evaluate_IncreaseWhenEnabled(t *testing.T) {
	t.Parallel()

	d := testDispatcher(Policy{NotifyOnIncrease: true, MinimumChangePercent: 1.0})
	n := d.Evaluate(testProduct(), 100, 110, time.Now())
	require.NotNil(t, n)
	assert.Equal(t, "increase", n.PriceChange.ChangeType)
	assert.InDelta(t, 10.0, n.PriceChange.ChangeAmount, 1e-9)
}

func TestDispatcher_DispatchPriceChange_FansOutToEveryChannel(t *testing.T) {
	t.Parallel()

	first := &fakeChannel{name: "webhook"}
	second := &fakeChannel{name: "email"}
	d := testDispatcher(defaultPolicy(), first, second)

	sent := d.DispatchPriceChange(context.Background(), testProduct(), 100, 90, time.Now())
	require.True(t, sent)
	assert.Equal(t, 1, first.sentCount())
	assert.Equal(t, 1, second.sentCount())
}

func TestDispatcher_DispatchPriceChange_ChannelFailureIsIsolated(t *testing.T) {
	t.Parallel()

	broken := &fakeChannel{name: "webhook", err: errors.New("connection refused")}
	working := &fakeChannel{name: "email"}
	d := testDispatcher(defaultPolicy(), broken, working)

	sent := d.DispatchPriceChange(context.Background(), testProduct(), 100, 90, time.Now())
	require.True(t, sent)
	assert.Equal(t, 1, working.sentCount(), "one broken channel must not silence the rest")
}

func TestDispatcher_DispatchPriceChange_NoChannels(t *testing.T) {
	t.Parallel()

	d := testDispatcher(defaultPolicy())
	sent := d.DispatchPriceChange(context.Background(), testProduct(), 100, 90, time.Now())
	assert.False(t, sent)
}

func TestDispatcher_DispatchPriceChange_PolicySaysQuiet(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{name: "webhook"}
	d := testDispatcher(defaultPolicy(), ch)

	sent := d.DispatchPriceChange(context.Background(), testProduct(), 100, 100.2, time.Now())
	assert.False(t, sent)
	assert.Zero(t, ch.sentCount())
}
