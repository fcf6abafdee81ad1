package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"pricewatch/internal/misc"

	"github.com/pkg/errors"
)

// WebhookSend POSTs payload as JSON to url. Any non-2xx status is a
// delivery failure.
func (c Client) WebhookSend(ctx context.Context, url string, payload any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "WebhookSend: payload JSON marshalling error, payload: %+v", payload)
	}
	req, err := newRequest(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return errors.Wrapf(err, "WebhookSend: error creating HTTP request to URL: %s", url)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "WebhookSend: error doing request to URL: %s", url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 100*1024))
	if err != nil {
		return errors.Wrapf(err, "WebhookSend: error reading response body, status: %s", resp.Status)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode > 299 {
		return errors.Errorf("WebhookSend: webhook returned status: %s, body: %s",
			resp.Status, misc.BytesLimit(body, 1000))
	}
	c.Logger.Debugf("WebhookSend: Delivered webhook to %s, status: %s", url, resp.Status)
	return nil
}
