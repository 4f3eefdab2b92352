// Package pricing converts fiat plan amounts into native ledger currency
// using live token price and FX quotes.
package pricing

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"notary/internal/platform/metrics"
	dErrors "notary/pkg/domain-errors"
)

// NativePrecision is the number of decimal places of the native token.
const NativePrecision = 8

// Oracle answers "how much native currency is this fiat amount worth now".
// Quotes are fetched fresh on every call.
type Oracle struct {
	tokenPrice QuoteSource
	fxRate     QuoteSource
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Oracle)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Oracle) {
		o.metrics = m
	}
}

func NewOracle(tokenPrice, fxRate QuoteSource, opts ...Option) *Oracle {
	o := &Oracle{
		tokenPrice: tokenPrice,
		fxRate:     fxRate,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NativeAmountFor returns fiat / (tokenPrice * fxRate), rounded to the
// native token precision. Both quotes must be obtained in the same call.
func (o *Oracle) NativeAmountFor(ctx context.Context, fiat decimal.Decimal) (decimal.Decimal, error) {
	if !fiat.IsPositive() {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "fiat amount must be positive")
	}

	price, err := o.quote(ctx, o.tokenPrice)
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := o.quote(ctx, o.fxRate)
	if err != nil {
		return decimal.Zero, err
	}

	native := fiat.DivRound(price.Mul(rate), NativePrecision)
	if !native.IsPositive() {
		return decimal.Zero, dErrors.New(dErrors.CodePriceUnavailable, "converted amount rounds to zero")
	}
	return native, nil
}

func (o *Oracle) quote(ctx context.Context, src QuoteSource) (decimal.Decimal, error) {
	q, err := src.Quote(ctx)
	if err == nil && !q.IsPositive() {
		err = ErrInvalidQuote
	}
	if err != nil {
		if o.metrics != nil {
			o.metrics.IncQuoteFailures(src.Name())
		}
		o.logger.WarnContext(ctx, "rate quote unavailable",
			"provider", src.Name(),
			"error", err,
		)
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodePriceUnavailable, "exchange rate unavailable")
	}
	return q, nil
}
