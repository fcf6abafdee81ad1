package client

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProductURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want ProductIdentity
	}{
		{
			name: "amazon dp path",
			url:  "https://www.amazon.in/Apple-iPhone-15-128GB/dp/B0ABC1234D/ref=sr_1_3?keywords=iphone&qid=1724567890",
			want: ProductIdentity{
				ID:   "amazon_B0ABC1234D",
				URL:  "https://www.amazon.in/dp/B0ABC1234D",
				Site: "amazon.in",
			},
		},
		{
			name: "amazon gp product path",
			url:  "https://amazon.com/gp/product/B0ABC1234D",
			want: ProductIdentity{
				ID:   "amazon_B0ABC1234D",
				URL:  "https://amazon.com/dp/B0ABC1234D",
				Site: "amazon.com",
			},
		},
		{
			name: "amazon lowercase asin is folded",
			url:  "https://www.amazon.in/dp/b0abc1234d",
			want: ProductIdentity{
				ID:   "amazon_B0ABC1234D",
				URL:  "https://www.amazon.in/dp/B0ABC1234D",
				Site: "amazon.in",
			},
		},
		{
			name: "flipkart item page with tracking params",
			url:  "https://www.flipkart.com/acme-phone-x/p/itmABC123XYZ?pid=MOBG6VF5&lid=LSTMOB123",
			want: ProductIdentity{
				ID:   "flipkart_itmABC123XYZ",
				URL:  "https://www.flipkart.com/acme-phone-x/p/itmABC123XYZ",
				Site: "flipkart.com",
			},
		},
		{
			name: "myntra buy page",
			url:  "https://www.myntra.com/watches/casio/casio-men-analog-watch/1234567/buy",
			want: ProductIdentity{
				ID:   "myntra_1234567",
				URL:  "https://www.myntra.com/watches/casio/casio-men-analog-watch/1234567/buy",
				Site: "myntra.com",
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseProductURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProductURL_GenericSite(t *testing.T) {
	t.Parallel()

	id, err := ParseProductURL("https://shop.example.com/products/widget-pro?utm_source=news#reviews")
	require.NoError(t, err)

	assert.Equal(t, "shop.example.com", id.Site)
	assert.Regexp(t, regexp.MustCompile(`^shop_example_com_\d{1,6}$`), id.ID)
	assert.Equal(t, "https://shop.example.com/products/widget-pro", id.URL, "tracking params and fragments are dropped")

	// The same listing resolves to the same identity no matter how it was
	// linked.
	again, err := ParseProductURL("https://www.shop.example.com/products/widget-pro?utm_source=mail")
	require.NoError(t, err)
	assert.Equal(t, id.ID, again.ID)
	assert.Equal(t, id.Site, again.Site)
}

func TestParseProductURL_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := ParseProductURL("https://store.example.org/item/42")
	require.NoError(t, err)
	second, err := ParseProductURL("https://store.example.org/item/42")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseProductURL_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
	}{
		{name: "not http", url: "ftp://example.com/catalog/item"},
		{name: "no scheme", url: "example.com/catalog/item"},
		{name: "no host", url: "https:///catalog/item"},
		{name: "empty", url: ""},
		{name: "amazon without asin", url: "https://www.amazon.in/gift-cards"},
		{name: "flipkart without item id", url: "https://www.flipkart.com/offers-store"},
		{name: "myntra without product number", url: "https://www.myntra.com/personal-care"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseProductURL(tt.url)
			assert.Error(t, err)
		})
	}
}
