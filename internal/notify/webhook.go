package notify

import (
	"context"

	"pricewatch/internal/client"
)

// WebhookChannel POSTs the notification JSON to a single URL.
type WebhookChannel struct {
	URL    string
	Client client.Client
}

func (c WebhookChannel) Name() string {
	return "webhook"
}

func (c WebhookChannel) Send(ctx context.Context, n PriceChangeNotification) error {
	return c.Client.WebhookSend(ctx, c.URL, n)
}
