package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pricewatch/internal/misc"
	"pricewatch/internal/model"
	"pricewatch/internal/tracker"

	"github.com/go-redis/redis/v9"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// ProductPage is what a scrape extracts from one product listing.
type ProductPage struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url"`
}

// GetProduct fetches and parses one product page. useCache serves and fills
// a short-lived Redis cache for interactive lookups; scheduled checks pass
// false so a recorded price is never stale.
func (c Client) GetProduct(ctx context.Context, url string, useCache bool) (ProductPage, error) {
	var pp ProductPage
	cacheKey := "PP-" + url
	if useCache && c.Redis != nil {
		cached, err := c.Redis.Get(ctx, cacheKey).Result()
		if err == nil {
			c.Logger.Infof("GetProduct: Cache found, key: %s", cacheKey)
			if err = json.Unmarshal([]byte(cached), &pp); err == nil {
				return pp, nil
			}
			c.Logger.Errorf("GetProduct: Error unmarshalling cache, key: %s, err: %v", cacheKey, err)
		} else if err != redis.Nil {
			c.Logger.Errorf("GetProduct: Error getting Redis cache with key: %s, err: %v", cacheKey, err)
		}
	}

	req, err := newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pp, errors.Wrapf(err, "error creating request to URL: %s", url)
	}

	c.Logger.Debugf("GetProduct: Sending request to %s", url)
	resp, err := c.Client.Do(req)
	if err != nil {
		return pp, errors.Wrapf(err, "error doing request to URL: %s", url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 3000*1024))
	if err != nil {
		return pp, errors.Wrapf(err, "error reading product page, status: %s, URL: %s", resp.Status, url)
	}
	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return pp, errors.Wrapf(tracker.ErrFetchBlocked, "status: %s, URL: %s, body:\n%s",
			resp.Status, url, misc.BytesLimit(body, 1000))
	case http.StatusNotFound, http.StatusGone:
		return pp, errors.Wrapf(tracker.ErrFetchParse, "product page gone, status: %s, URL: %s", resp.Status, url)
	}
	if resp.StatusCode != http.StatusOK {
		return pp, errors.Errorf("unexpected status getting product page, status: %s, URL: %s, body:\n%s",
			resp.Status, url, misc.BytesLimit(body, 1000))
	}

	pp, err = parseProductPage(body)
	if err != nil {
		return pp, errors.Wrapf(tracker.ErrFetchParse, "URL: %s, err: %v", url, err)
	}

	if useCache && c.Redis != nil {
		if ppJSON, err := json.Marshal(pp); err != nil {
			c.Logger.Errorf("GetProduct: Error marshalling ProductPage to cache, key: %s, err: %v", cacheKey, err)
		} else if err = c.Redis.Set(ctx, cacheKey, ppJSON, 1*time.Hour).Err(); err != nil {
			c.Logger.Errorf("GetProduct: Error caching ProductPage, key: %s, err: %v", cacheKey, err)
		}
	}
	return pp, nil
}

// Fetch adapts GetProduct to the engine's fetcher contract. Scheduled
// checks always hit the live page.
func (c Client) Fetch(ctx context.Context, p model.Product) (tracker.PriceSample, error) {
	pp, err := c.GetProduct(ctx, p.URL, false)
	if err != nil {
		return tracker.PriceSample{}, err
	}
	return tracker.PriceSample{Price: pp.Price, Name: pp.Name, ImageURL: pp.ImageURL}, nil
}

var _ tracker.Fetcher = Client{}

var priceElementIDs = map[string]bool{
	"priceblock_ourprice":  true,
	"priceblock_dealprice": true,
	"priceblock_saleprice": true,
}

var priceElementClasses = map[string]bool{
	"a-offscreen":   true,
	"a-price-whole": true,
	"_30jeq3":       true,
	"pdp-price":     true,
}

var fallbackPriceRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)["'](?:price|amount)["']\s*:\s*"?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
	regexp.MustCompile(`[₹$€£]\s?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
}

type pageData struct {
	ldScripts  []string
	metas      map[string]string
	title      string
	priceTexts []string
}

// parseProductPage extracts name, price and image from raw page HTML.
// Extraction order for the price: JSON-LD product data, then the known
// price elements of the big marketplaces, then a regex sweep of the raw
// page. A page without any price is a parse failure.
func parseProductPage(body []byte) (ProductPage, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ProductPage{}, errors.Wrap(err, "failed to parse product page HTML")
	}
	d := collectPageData(root)

	var pp ProductPage
	for _, raw := range d.ldScripts {
		if ld, ok := parseJSONLD(raw); ok {
			pp = ld
			break
		}
	}
	if pp.Price == 0 {
		for _, t := range d.priceTexts {
			if p, ok := parsePrice(t); ok {
				pp.Price = p
				break
			}
		}
	}
	if pp.Price == 0 {
		for _, re := range fallbackPriceRegexes {
			if m := re.FindSubmatch(body); m != nil {
				if p, ok := parsePrice(string(m[1])); ok {
					pp.Price = p
					break
				}
			}
		}
	}
	if pp.Price == 0 {
		return ProductPage{}, errors.New("no price found in product page")
	}

	if pp.Name == "" {
		pp.Name = d.metas["og:title"]
	}
	if pp.Name == "" {
		pp.Name = d.title
	}
	pp.Name = misc.CleanString(pp.Name)
	if pp.ImageURL == "" {
		pp.ImageURL = d.metas["og:image"]
	}
	return pp, nil
}

func collectPageData(root *html.Node) pageData {
	d := pageData{metas: map[string]string{}}
	walkNodes(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "script":
			if nodeAttr(n, "type") == "application/ld+json" {
				d.ldScripts = append(d.ldScripts, nodeText(n))
			}
		case "meta":
			if p := nodeAttr(n, "property"); p == "og:title" || p == "og:image" {
				if d.metas[p] == "" {
					d.metas[p] = nodeAttr(n, "content")
				}
			}
		case "title":
			if d.title == "" {
				d.title = nodeText(n)
			}
		default:
			if priceElementIDs[nodeAttr(n, "id")] {
				d.priceTexts = append(d.priceTexts, nodeText(n))
				return
			}
			for _, cl := range strings.Fields(nodeAttr(n, "class")) {
				if priceElementClasses[strings.ToLower(cl)] {
					d.priceTexts = append(d.priceTexts, nodeText(n))
					return
				}
			}
		}
	})
	return d
}

func walkNodes(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, fn)
	}
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	walkNodes(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

// parseJSONLD pulls product data out of one ld+json script. Sites embed the
// Product node directly, in an array, or under @graph.
func parseJSONLD(raw string) (ProductPage, bool) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return ProductPage{}, false
	}
	return findLDProduct(doc)
}

func findLDProduct(doc any) (ProductPage, bool) {
	switch v := doc.(type) {
	case []any:
		for _, e := range v {
			if pp, ok := findLDProduct(e); ok {
				return pp, true
			}
		}
	case map[string]any:
		if hasLDType(v["@type"], "Product") {
			if price, ok := ldOfferPrice(v["offers"]); ok {
				name, _ := v["name"].(string)
				return ProductPage{Name: name, Price: price, ImageURL: firstString(v["image"])}, true
			}
		}
		if g, ok := v["@graph"]; ok {
			return findLDProduct(g)
		}
	}
	return ProductPage{}, false
}

func hasLDType(t any, want string) bool {
	switch v := t.(type) {
	case string:
		return v == want
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func ldOfferPrice(offers any) (float64, bool) {
	switch v := offers.(type) {
	case []any:
		for _, e := range v {
			if p, ok := ldOfferPrice(e); ok {
				return p, true
			}
		}
	case map[string]any:
		for _, k := range []string{"price", "lowPrice"} {
			switch pv := v[k].(type) {
			case float64:
				if pv > 0 {
					return pv, true
				}
			case string:
				if p, ok := parsePrice(pv); ok {
					return p, true
				}
			}
		}
	}
	return 0, false
}

func firstString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				return s
			}
		}
	case map[string]any:
		s, _ := v["url"].(string)
		return s
	}
	return ""
}

var priceCleanRegex = regexp.MustCompile(`[^0-9.]`)

// parsePrice turns a price string like "₹1,23,456.78" into a number.
func parsePrice(s string) (float64, bool) {
	s = priceCleanRegex.ReplaceAllString(s, "")
	if s == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || p <= 0 {
		return 0, false
	}
	return p, true
}
