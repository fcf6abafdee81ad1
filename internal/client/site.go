package client

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// ProductIdentity is the stable identity derived from a product page URL.
// ID is deterministic so the same listing never gets tracked twice, and URL
// is the canonical form the tracker fetches from then on.
type ProductIdentity struct {
	ID   string
	URL  string
	Site string
}

var (
	amazonIDRegex   = regexp.MustCompile(`(?i)(?:/dp/|/gp/product/)([A-Z0-9]{10})`)
	flipkartIDRegex = regexp.MustCompile(`(?i)/p/(itm[A-Z0-9]+)`)
	myntraIDRegex   = regexp.MustCompile(`/(\d+)/buy`)
)

// ParseProductURL extracts the product identity from a raw URL. Known
// marketplaces get their native product ID; anything else falls back to a
// hash of the URL path scoped to the host.
func ParseProductURL(rawURL string) (ProductIdentity, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ProductIdentity{}, errors.Wrapf(err, "error parsing product URL: %s", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ProductIdentity{}, errors.Errorf("product URL is not HTTP(S): %s", rawURL)
	}
	if u.Host == "" {
		return ProductIdentity{}, errors.Errorf("product URL has no host: %s", rawURL)
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))

	switch {
	case strings.HasPrefix(host, "amazon."):
		m := amazonIDRegex.FindStringSubmatch(u.Path)
		if m == nil {
			return ProductIdentity{}, errors.Errorf("no ASIN in Amazon URL: %s", rawURL)
		}
		asin := strings.ToUpper(m[1])
		return ProductIdentity{
			ID:   "amazon_" + asin,
			URL:  fmt.Sprintf("https://%s/dp/%s", u.Host, asin),
			Site: host,
		}, nil
	case strings.HasPrefix(host, "flipkart."):
		m := flipkartIDRegex.FindStringSubmatch(u.Path)
		if m == nil {
			return ProductIdentity{}, errors.Errorf("no item ID in Flipkart URL: %s", rawURL)
		}
		return ProductIdentity{ID: "flipkart_" + m[1], URL: stripQuery(u), Site: host}, nil
	case strings.HasPrefix(host, "myntra."):
		m := myntraIDRegex.FindStringSubmatch(u.Path)
		if m == nil {
			return ProductIdentity{}, errors.Errorf("no product number in Myntra URL: %s", rawURL)
		}
		return ProductIdentity{ID: "myntra_" + m[1], URL: stripQuery(u), Site: host}, nil
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(u.Path))
	return ProductIdentity{
		ID:   fmt.Sprintf("%s_%d", strings.ReplaceAll(host, ".", "_"), h.Sum32()%1000000),
		URL:  stripQuery(u),
		Site: host,
	}, nil
}

// stripQuery drops tracking parameters and fragments, which change between
// visits to the same listing.
func stripQuery(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	return c.String()
}
