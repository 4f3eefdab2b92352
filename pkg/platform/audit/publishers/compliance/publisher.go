// Package compliance provides the fail-closed audit log for account actions.
//
// Every append is synchronous. If the entry cannot be persisted an error is
// returned and the calling operation must fail; nothing is buffered.
package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	audit "notary/pkg/platform/audit"
	"notary/pkg/requestcontext"
)

// Record is what callers hand to the publisher.
type Record struct {
	AccountID   id.AccountID
	Action      audit.ActionKind
	Outcome     audit.Outcome
	ContentHash string
	Details     any
	Timestamp   time.Time
}

// Publisher emits audit entries with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher over an outbox-backed store.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Append records a successful action for an account.
func (p *Publisher) Append(ctx context.Context, accountID id.AccountID, action audit.ActionKind, details any) error {
	return p.Emit(ctx, Record{AccountID: accountID, Action: action, Outcome: audit.OutcomeSuccess, Details: details})
}

// Emit validates and persists a record. The returned error carries
// CodeAuditWriteFailed when persistence fails.
func (p *Publisher) Emit(ctx context.Context, rec Record) error {
	start := time.Now()

	if rec.AccountID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires an account")
	}
	if !rec.Action.Valid() {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("unknown audit action %q", rec.Action))
	}
	if rec.Outcome == "" {
		rec.Outcome = audit.OutcomeSuccess
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = requestcontext.Now(ctx)
	}

	var details json.RawMessage
	if rec.Details != nil {
		raw, err := json.Marshal(rec.Details)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "audit details are not serializable")
		}
		details = raw
	}

	entry := audit.Entry{
		ID:          id.NewEntryID(),
		AccountID:   rec.AccountID,
		Action:      rec.Action,
		Outcome:     rec.Outcome,
		ContentHash: rec.ContentHash,
		Details:     details,
		RequestID:   requestcontext.RequestID(ctx),
		Timestamp:   rec.Timestamp,
	}

	if err := p.store.Append(ctx, entry); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures(string(rec.Action))
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", rec.Action,
				"account_id", rec.AccountID,
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "audit log write failed")
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEntries(string(rec.Action), string(rec.Outcome))
	}
	return nil
}
