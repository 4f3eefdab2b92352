package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// QuoteSource returns a single positive exchange quote.
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context) (decimal.Decimal, error)
}

// TokenPriceClient reads the native token price in the reference currency
// from a CoinGecko-compatible simple price endpoint
// (GET <endpoint>?ids=<token>&vs_currencies=<reference>).
type TokenPriceClient struct {
	*quoteClient
	endpoint  string
	tokenID   string
	reference string
}

// NewTokenPriceClient quotes tokenID (the ledger's fee token, "gas" on Neo
// N3) in the reference currency. A non-empty apiKey is sent as the
// x-cg-demo-api-key header.
func NewTokenPriceClient(endpoint, tokenID, reference, apiKey string, opts ...ClientOption) *TokenPriceClient {
	c := &TokenPriceClient{
		quoteClient: newQuoteClient("token_price", opts...),
		endpoint:    endpoint,
		tokenID:     strings.ToLower(tokenID),
		reference:   strings.ToLower(reference),
	}
	if apiKey != "" {
		c.header.Set("x-cg-demo-api-key", apiKey)
	}
	return c
}

func (c *TokenPriceClient) Name() string { return c.name }

func (c *TokenPriceClient) Quote(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("ids", c.tokenID)
	q.Set("vs_currencies", c.reference)

	var resp map[string]map[string]json.Number
	if err := c.getJSON(ctx, withQuery(c.endpoint, q), &resp); err != nil {
		return decimal.Zero, err
	}
	price, ok := resp[c.tokenID][c.reference]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no %s price in %s", ErrInvalidQuote, c.tokenID, c.reference)
	}
	return parsePositive(price.String())
}

// FXRateClient reads the reference→operating currency rate from an
// exchangerate-api compatible endpoint (GET <base>/<reference>).
type FXRateClient struct {
	*quoteClient
	baseURL   string
	reference string
	target    string
}

func NewFXRateClient(baseURL, reference, target string, opts ...ClientOption) *FXRateClient {
	return &FXRateClient{
		quoteClient: newQuoteClient("fx_rate", opts...),
		baseURL:     strings.TrimRight(baseURL, "/"),
		reference:   strings.ToUpper(reference),
		target:      strings.ToUpper(target),
	}
}

type fxRateResponse struct {
	Rates map[string]json.Number `json:"rates"`
}

func (c *FXRateClient) Name() string { return c.name }

func (c *FXRateClient) Quote(ctx context.Context) (decimal.Decimal, error) {
	var resp fxRateResponse
	if err := c.getJSON(ctx, c.baseURL+"/"+url.PathEscape(c.reference), &resp); err != nil {
		return decimal.Zero, err
	}
	rate, ok := resp.Rates[c.target]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no %s rate", ErrInvalidQuote, c.target)
	}
	return parsePositive(rate.String())
}

func parsePositive(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidQuote, raw)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive %s", ErrInvalidQuote, d)
	}
	return d, nil
}

func withQuery(endpoint string, q url.Values) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + q.Encode()
}
