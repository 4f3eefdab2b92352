// Package service runs the notarization pipeline: store the content, charge
// the account, record the content hash on the ledger, write the receipt and
// its audit entry together, then stamp a proof document.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/shopspring/decimal"

	billing "notary/internal/billing/models"
	"notary/internal/notarization/guard"
	"notary/internal/notarization/models"
	"notary/internal/platform/metrics"
	"notary/internal/registry"
	"notary/internal/stamp"
	id "notary/pkg/domain"
	"notary/pkg/platform/audit/publishers/compliance"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ContentStore,Ledger,Registry,Stamper

// DefaultGasCost is the fixed per-submission charge in the native token.
var DefaultGasCost = decimal.RequireFromString("0.0069")

// ContentStore persists content under its CID.
type ContentStore interface {
	Store(ctx context.Context, data []byte) (cid.Cid, error)
	Fetch(ctx context.Context, c cid.Cid) ([]byte, error)
}

// Ledger is the balance ledger the pipeline charges.
type Ledger interface {
	Balance(ctx context.Context, accountID id.AccountID) (*billing.Account, error)
	Charge(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (*billing.Account, error)
}

// Registry records content hashes on the ledger.
type Registry interface {
	Notarize(ctx context.Context, c cid.Cid, sub registry.Submitter, opts ...registry.NotarizeOption) (*registry.Submission, error)
	Status(ctx context.Context, txID string, validUntilBlock uint32) (registry.Status, error)
}

// Store persists submissions and receipts. RunInTx must let the ledger and
// audit writes made through ctx join the same unit of work.
type Store interface {
	FindSubmission(ctx context.Context, accountID id.AccountID, contentHash string) (*models.Submission, error)
	SaveSubmission(ctx context.Context, sub *models.Submission) error
	InsertReceipt(ctx context.Context, r *models.Receipt) error
	FindReceipt(ctx context.Context, accountID id.AccountID, contentHash string) (*models.Receipt, error)
	FindReceiptByTx(ctx context.Context, accountID id.AccountID, txID string) (*models.Receipt, error)
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditPublisher writes fail-closed audit entries.
type AuditPublisher interface {
	Emit(ctx context.Context, rec compliance.Record) error
}

// Stamper renders the proof document.
type Stamper interface {
	Stamp(content []byte, label stamp.Label) ([]byte, error)
}

// Guard serializes work on one key across requests.
type Guard interface {
	Acquire(ctx context.Context, key string) (guard.ReleaseFunc, error)
}

type Service struct {
	content  ContentStore
	ledger   Ledger
	registry Registry
	store    Store
	auditor  AuditPublisher
	stamper  Stamper
	guard    Guard

	gasCost         decimal.Decimal
	finalizeTimeout time.Duration
	now             func() time.Time
	logger          *slog.Logger
	metrics         *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithGasCost overrides the per-submission charge.
func WithGasCost(cost decimal.Decimal) Option {
	return func(s *Service) {
		if cost.IsPositive() {
			s.gasCost = cost
		}
	}
}

// WithFinalizeTimeout bounds the receipt and audit write after the ledger
// confirmed a submission.
func WithFinalizeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.finalizeTimeout = d
		}
	}
}

// WithGuard replaces the in-process guard, e.g. with the Redis one.
func WithGuard(g Guard) Option {
	return func(s *Service) {
		s.guard = g
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(content ContentStore, ledger Ledger, reg Registry, store Store, auditor AuditPublisher, stamper Stamper, opts ...Option) *Service {
	s := &Service{
		content:         content,
		ledger:          ledger,
		registry:        reg,
		store:           store,
		auditor:         auditor,
		stamper:         stamper,
		guard:           guard.NewMemory(2 * time.Minute),
		gasCost:         DefaultGasCost,
		finalizeTimeout: 15 * time.Second,
		now:             time.Now,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) observeStep(step string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveStep(step, start)
	}
}

func (s *Service) observeOutcome(state models.State, code string) {
	if s.metrics != nil {
		s.metrics.ObservePipelineOutcome(string(state), code)
	}
}

func (s *Service) trackInFlight(delta float64) {
	if s.metrics != nil {
		s.metrics.SubmissionsPending.Add(delta)
	}
}
