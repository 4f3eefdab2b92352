package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"notary/internal/billing/models"
	"notary/internal/platform/metrics"
	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/audit/publishers/compliance"
	"notary/pkg/platform/sentinel"
)

// DefaultAutoTopUpPlan is bought whenever a charge finds the balance short,
// regardless of the size of the shortfall.
const DefaultAutoTopUpPlan = "mensal_10"

// Ledger owns every balance mutation. Each operation is one serialized unit
// per account. A Ledger without a FundingAgent never tops up.
type Ledger struct {
	accounts      AccountStore
	funding       *FundingAgent
	auditor       AuditPublisher
	autoTopUpPlan string
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type LedgerOption func(*Ledger)

func WithLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) LedgerOption {
	return func(l *Ledger) {
		l.metrics = m
	}
}

func WithAutoTopUpPlan(planID string) LedgerOption {
	return func(l *Ledger) {
		if planID != "" {
			l.autoTopUpPlan = planID
		}
	}
}

func NewLedger(accounts AccountStore, funding *FundingAgent, auditor AuditPublisher, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		accounts:      accounts,
		funding:       funding,
		auditor:       auditor,
		autoTopUpPlan: DefaultAutoTopUpPlan,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Balance returns the current account state.
func (l *Ledger) Balance(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	acct, err := l.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, translate(err)
	}
	return acct, nil
}

// EnsureFunds tops the balance up with the auto top-up plan when it does not
// cover required. A top-up that still leaves the balance short is kept and
// InsufficientFunds is returned.
func (l *Ledger) EnsureFunds(ctx context.Context, accountID id.AccountID, required decimal.Decimal) (*models.Account, error) {
	if err := requirePositive(required); err != nil {
		return nil, err
	}
	var short bool
	acct, err := l.accounts.UpdateBalances(ctx, accountID, func(ctx context.Context, acct *models.Account) error {
		var err error
		short, err = l.ensure(ctx, acct, required)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	if short {
		return acct, insufficient()
	}
	return acct, nil
}

// Debit subtracts amount without funding.
func (l *Ledger) Debit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (*models.Account, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	acct, err := l.accounts.UpdateBalances(ctx, accountID, func(_ context.Context, acct *models.Account) error {
		if !acct.Covers(amount) {
			return insufficient()
		}
		acct.NativeBalance = acct.NativeBalance.Sub(amount)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return acct, nil
}

// Credit adds amount to the native balance.
func (l *Ledger) Credit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (*models.Account, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	acct, err := l.accounts.UpdateBalances(ctx, accountID, func(_ context.Context, acct *models.Account) error {
		acct.NativeBalance = acct.NativeBalance.Add(amount)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return acct, nil
}

// Charge is EnsureFunds followed by Debit under one account lock, so two
// concurrent charges can never both spend the same funds.
func (l *Ledger) Charge(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (*models.Account, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	var short bool
	acct, err := l.accounts.UpdateBalances(ctx, accountID, func(ctx context.Context, acct *models.Account) error {
		var err error
		short, err = l.ensure(ctx, acct, amount)
		if err != nil || short {
			return err
		}
		acct.NativeBalance = acct.NativeBalance.Sub(amount)
		return nil
	})
	if err != nil {
		l.countCharge("failure")
		return nil, translate(err)
	}
	if short {
		l.countCharge("insufficient")
		return acct, insufficient()
	}
	l.countCharge("success")
	l.logger.InfoContext(ctx, "balance charged",
		"account_id", accountID.String(),
		"amount", amount.String(),
		"balance_after", acct.NativeBalance.String(),
	)
	return acct, nil
}

type depositDetails struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Reference    string `json:"reference"`
	BalanceAfter string `json:"crypto_balance_after"`
}

// RecordDeposit credits an externally confirmed crypto deposit to the legacy
// crypto balance and audits it.
func (l *Ledger) RecordDeposit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal, currency, reference string) (*models.Account, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "deposit reference is required")
	}
	acct, err := l.accounts.UpdateBalances(ctx, accountID, func(ctx context.Context, acct *models.Account) error {
		acct.CryptoBalance = acct.CryptoBalance.Add(amount)
		return l.auditor.Emit(ctx, compliance.Record{
			AccountID: accountID,
			Action:    audit.ActionCryptoDeposit,
			Outcome:   audit.OutcomeSuccess,
			Details: depositDetails{
				Amount:       amount.String(),
				Currency:     currency,
				Reference:    reference,
				BalanceAfter: acct.CryptoBalance.String(),
			},
		})
	})
	if err != nil {
		return nil, translate(err)
	}
	return acct, nil
}

// ensure must run inside UpdateBalances. It reports short=true when the
// balance remains below required after funding.
func (l *Ledger) ensure(ctx context.Context, acct *models.Account, required decimal.Decimal) (bool, error) {
	if !acct.IsActive() {
		return false, dErrors.New(dErrors.CodeForbidden, "account is disabled")
	}
	if acct.Covers(required) {
		return false, nil
	}
	if l.funding == nil {
		return true, nil
	}

	plan, err := l.funding.resolvePlan(l.autoTopUpPlan)
	if err != nil {
		return false, err
	}
	l.logger.InfoContext(ctx, "balance below required amount, topping up",
		"account_id", acct.ID.String(),
		"balance", acct.NativeBalance.String(),
		"required", required.String(),
		"plan", plan.ID,
	)
	if _, err := l.funding.fund(ctx, acct, plan); err != nil {
		return false, err
	}
	return !acct.Covers(required), nil
}

func (l *Ledger) countCharge(outcome string) {
	if l.metrics != nil {
		l.metrics.IncCharge(outcome)
	}
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func insufficient() error {
	return dErrors.New(dErrors.CodeInsufficientFunds, "insufficient balance")
}

func translate(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "balance update failed")
}
