// Package notify turns recorded price changes into outbound notifications.
// The dispatcher applies the notification policy exactly once per change and
// fans the resulting event out to every configured channel.
package notify

import (
	"context"
	"math"
	"time"

	"pricewatch/internal/misc"
	"pricewatch/internal/model"
)

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// PriceChangeNotification is the logical event delivered to every channel.
type PriceChangeNotification struct {
	Type        string              `json:"type"`
	Timestamp   time.Time           `json:"timestamp"`
	Product     NotificationProduct `json:"product"`
	PriceChange PriceChangeDetail   `json:"price_change"`
}

type NotificationProduct struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	ImageURL string `json:"image_url,omitempty"`
}

type PriceChangeDetail struct {
	OldPrice         float64 `json:"old_price"`
	NewPrice         float64 `json:"new_price"`
	ChangeType       string  `json:"change_type"`
	ChangeAmount     float64 `json:"change_amount"`
	ChangePercentage float64 `json:"change_percentage"`
}

// Channel delivers one notification over one transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, n PriceChangeNotification) error
}

// Policy decides which price moves are worth telling anyone about.
type Policy struct {
	NotifyOnDecrease     bool
	NotifyOnIncrease     bool
	MinimumChangePercent float64
}

type Dispatcher struct {
	Policy   Policy
	Channels []Channel
	Logger   logger
}

// PercentChange reports the relative move from oldPrice to newPrice in
// percent. A zero oldPrice has no meaningful baseline and yields 0.
func PercentChange(oldPrice, newPrice float64) float64 {
	if oldPrice == 0 {
		return 0
	}
	return (newPrice - oldPrice) / oldPrice * 100
}

// Evaluate builds the notification for a price move, or nil when the policy
// says to stay quiet.
func (d Dispatcher) Evaluate(p model.Product, oldPrice, newPrice float64, at time.Time) *PriceChangeNotification {
	if oldPrice == 0 || oldPrice == newPrice {
		return nil
	}
	pct := PercentChange(oldPrice, newPrice)
	if !d.shouldNotify(pct) {
		return nil
	}
	changeType := "increase"
	if newPrice < oldPrice {
		changeType = "decrease"
	}
	return &PriceChangeNotification{
		Type:      "price_change",
		Timestamp: at,
		Product: NotificationProduct{
			ID:       p.ID,
			Name:     p.Name,
			URL:      p.URL,
			ImageURL: p.ImageURL,
		},
		PriceChange: PriceChangeDetail{
			OldPrice:         oldPrice,
			NewPrice:         newPrice,
			ChangeType:       changeType,
			ChangeAmount:     newPrice - oldPrice,
			ChangePercentage: pct,
		},
	}
}

func (d Dispatcher) shouldNotify(pct float64) bool {
	if math.Abs(pct) < d.Policy.MinimumChangePercent {
		return false
	}
	if pct < 0 {
		return d.Policy.NotifyOnDecrease
	}
	return d.Policy.NotifyOnIncrease
}

// Dispatch sends n through every channel. A failing channel is logged and
// skipped; it never stops the others.
func (d Dispatcher) Dispatch(ctx context.Context, n PriceChangeNotification) {
	for _, ch := range d.Channels {
		if err := ch.Send(ctx, n); err != nil {
			d.Logger.Errorf("Dispatch: Error sending notification via %s for ProductID: %s, err: %v",
				ch.Name(), n.Product.ID, err)
			continue
		}
		d.Logger.Debugf("Dispatch: Sent %s notification via %s for ProductID: %s",
			n.PriceChange.ChangeType, ch.Name(), n.Product.ID)
	}
}

// DispatchPriceChange evaluates the policy for one recorded change and fans
// out the notification. It reports whether anything was dispatched.
func (d Dispatcher) DispatchPriceChange(ctx context.Context, p model.Product, oldPrice, newPrice float64, at time.Time) bool {
	n := d.Evaluate(p, oldPrice, newPrice, at)
	if n == nil {
		d.Logger.Debugf("DispatchPriceChange: Keeping quiet about %.2f -> %.2f for Product: %s, ID: %s",
			oldPrice, newPrice, misc.StringLimit(p.Name, 45), p.ID)
		return false
	}
	if len(d.Channels) == 0 {
		d.Logger.Warnf("DispatchPriceChange: No notification channels configured, dropping event for ProductID: %s", p.ID)
		return false
	}
	d.Logger.Infof("DispatchPriceChange: Price %s of %.1f%% for Product: %s, ID: %s",
		n.PriceChange.ChangeType, math.Abs(n.PriceChange.ChangePercentage), misc.StringLimit(p.Name, 45), p.ID)
	d.Dispatch(ctx, *n)
	return true
}
