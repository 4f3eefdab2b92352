package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"notary/pkg/platform/circuit"
)

var (
	ErrCircuitOpen  = errors.New("pricing: provider circuit open")
	ErrInvalidQuote = errors.New("pricing: invalid quote")
	errTransient    = errors.New("pricing: transient provider failure")
)

// quoteClient is the HTTP plumbing shared by every quote provider: it
// throttles outgoing calls, retries transient failures with backoff and
// trips a breaker after repeated failures.
type quoteClient struct {
	name            string
	http            *http.Client
	limiter         *rate.Limiter
	breaker         *circuit.Breaker
	maxRetries      uint64
	initialInterval time.Duration
	header          http.Header
	logger          *slog.Logger
}

// ClientOption configures a quote provider client.
type ClientOption func(*quoteClient)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(q *quoteClient) {
		q.http = c
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables throttling.
func WithRateLimit(rps float64) ClientOption {
	return func(q *quoteClient) {
		if rps > 0 {
			q.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func WithRetries(maxRetries uint64, initial time.Duration) ClientOption {
	return func(q *quoteClient) {
		q.maxRetries = maxRetries
		if initial > 0 {
			q.initialInterval = initial
		}
	}
}

func WithBreaker(b *circuit.Breaker) ClientOption {
	return func(q *quoteClient) {
		q.breaker = b
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(q *quoteClient) {
		q.logger = logger
	}
}

func newQuoteClient(name string, opts ...ClientOption) *quoteClient {
	q := &quoteClient{
		name:            name,
		http:            &http.Client{Timeout: 10 * time.Second},
		breaker:         circuit.New(name),
		maxRetries:      2,
		initialInterval: 250 * time.Millisecond,
		header:          http.Header{},
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// getJSON fetches url and decodes the JSON body into out.
func (q *quoteClient) getJSON(ctx context.Context, url string, out any) error {
	if !q.breaker.Allow() {
		return ErrCircuitOpen
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = q.initialInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, q.maxRetries), ctx)

	err := backoff.Retry(func() error {
		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		err := q.fetch(ctx, url, out)
		if err != nil && !errors.Is(err, errTransient) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)

	if err != nil {
		if _, change := q.breaker.RecordFailure(); change.Opened {
			q.logger.WarnContext(ctx, "quote provider circuit opened",
				"provider", q.name,
				"error", err,
			)
		}
		return err
	}
	q.breaker.RecordSuccess()
	return nil
}

func (q *quoteClient) fetch(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, v := range q.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := q.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", errTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d", errTransient, q.name, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s returned %d", q.name, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrInvalidQuote, q.name, err)
	}
	return nil
}
