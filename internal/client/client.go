package client

import (
	"context"
	"io"
	"net/http"

	"github.com/go-redis/redis/v9"
)

// Client does the outbound HTTP work: scraping product pages and delivering
// webhooks. Redis is optional and only backs interactive lookups, never the
// scheduled checks.
type Client struct {
	*http.Client
	Redis  *redis.Client
	Logger logger
}

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}

func newRequest(ctx context.Context, method string, url string, body io.Reader) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	setDefaultRequestHeader(r)
	return r, nil
}

// Product pages render differently for obvious bots, so the defaults look
// like a desktop browser.
func setDefaultRequestHeader(r *http.Request) {
	r.Header.Set("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
}
