package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotification(changeType string, oldPrice, newPrice, pct float64) PriceChangeNotification {
	return PriceChangeNotification{
		Type:      "price_change",
		Timestamp: time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC),
		Product: NotificationProduct{
			ID:   "amazon_B0ABC1234D",
			Name: "Widget Pro",
			URL:  "https://www.amazon.in/dp/B0ABC1234D",
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

func TestEmailChannel_Message_Decrease(t *testing.T) {
	t.Parallel()

	ch := EmailChannel{
		From: "alerts@example.com",
		To:   []string{"one@example.com", "two@example.com"},
	}
	msg := string(ch.message(testNotification("decrease", 100, 90, -10)))

	assert.Contains(t, msg, "From: alerts@example.com\r\n")
	assert.Contains(t, msg, "To: one@example.com, two@example.com\r\n")
	assert.Contains(t, msg, "Subject: Price Alert: Widget Pro\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain")
	assert.Contains(t, msg, "has dropped by 10.0%")
	assert.Contains(t, msg, "Old price: 100.00")
	assert.Contains(t, msg, "New price: 90.00")
	assert.Contains(t, msg, "https://www.amazon.in/dp/B0ABC1234D")
	assert.Contains(t, msg, "\r\n\r\n", "headers and body must be separated")
}

func TestEmailChannel_Message_Increase(t *testing.T) {
	t.Parallel()

	ch := EmailChannel{From: "alerts@example.com", To: []string{"one@example.com"}}
	msg := string(ch.message(testNotification("increase", 100, 112, 12)))

	assert.Contains(t, msg, "has increased by 12.0%")
}

func TestEmailChannel_Send_CanceledContext(t *testing.T) {
	t.Parallel()

	ch := EmailChannel{Host: "smtp.example.com", Port: 587, From: "alerts@example.com", To: []string{"one@example.com"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ch.Send(ctx, testNotification("decrease", 100, 90, -10))
	require.ErrorIs(t, err, context.Canceled, "a canceled context must not dial the SMTP server")
}

func TestChannelNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "email", EmailChannel{}.Name())
	assert.Equal(t, "webhook", WebhookChannel{}.Name())
}
