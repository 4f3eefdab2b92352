// Package content content-addresses submitted bytes into a durable store.
package content

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ipfs/go-cid"

	"notary/internal/platform/metrics"
	dErrors "notary/pkg/domain-errors"
)

// Addresser stores content and returns its CID. Transient store failures are
// retried a bounded number of times before surfacing StorageUnavailable.
type Addresser struct {
	cas             CAS
	maxRetries      uint64
	initialInterval time.Duration
	logger          *slog.Logger
	metrics         *metrics.Metrics
}

type Option func(*Addresser)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Addresser) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Addresser) {
		a.metrics = m
	}
}

// WithRetry sets the retry budget and first backoff interval.
func WithRetry(maxRetries uint64, initial time.Duration) Option {
	return func(a *Addresser) {
		a.maxRetries = maxRetries
		if initial > 0 {
			a.initialInterval = initial
		}
	}
}

func NewAddresser(cas CAS, opts ...Option) *Addresser {
	a := &Addresser{
		cas:             cas,
		maxRetries:      3,
		initialInterval: 200 * time.Millisecond,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store persists data and returns its CID.
func (a *Addresser) Store(ctx context.Context, data []byte) (cid.Cid, error) {
	if len(data) == 0 {
		return cid.Undef, dErrors.New(dErrors.CodeValidation, "content is empty")
	}
	want, err := ComputeCID(data)
	if err != nil {
		return cid.Undef, dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive content id")
	}

	var got cid.Cid
	err = a.retry(ctx, func() error {
		var putErr error
		got, putErr = a.cas.Put(ctx, data)
		return putErr
	})
	if err != nil {
		a.storageFailed(ctx, "put", want, err)
		return cid.Undef, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "content store unavailable")
	}
	if !got.Equals(want) {
		a.storageFailed(ctx, "put", want, ErrCIDMismatch)
		return cid.Undef, dErrors.Wrap(ErrCIDMismatch, dErrors.CodeStorageUnavailable, "content store returned a different content id")
	}
	return want, nil
}

// Fetch returns the bytes stored under id.
func (a *Addresser) Fetch(ctx context.Context, id cid.Cid) ([]byte, error) {
	var data []byte
	err := a.retry(ctx, func() error {
		var getErr error
		data, getErr = a.cas.Get(ctx, id)
		return getErr
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "content not found")
		}
		a.storageFailed(ctx, "get", id, err)
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "content store unavailable")
	}
	return data, nil
}

func (a *Addresser) retry(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.initialInterval
	eb.MaxInterval = 5 * time.Second
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, a.maxRetries), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil || isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

// Only backend reachability problems are retried.
func isTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func (a *Addresser) storageFailed(ctx context.Context, op string, id cid.Cid, err error) {
	if a.metrics != nil {
		a.metrics.IncStorageFailures()
	}
	a.logger.ErrorContext(ctx, "content store operation failed",
		"op", op,
		"cid", id.String(),
		"error", err,
	)
}
