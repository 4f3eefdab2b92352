package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"notary/internal/billing/models"
	"notary/internal/platform/metrics"
	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/audit/publishers/compliance"
	txcontext "notary/pkg/platform/tx"
)

// FundingAgent buys native balance for an account according to a plan.
type FundingAgent struct {
	accounts AccountStore
	catalog  models.Catalog
	oracle   PriceOracle
	treasury Treasury
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type FundingOption func(*FundingAgent)

func WithFundingLogger(logger *slog.Logger) FundingOption {
	return func(f *FundingAgent) {
		f.logger = logger
	}
}

func WithFundingMetrics(m *metrics.Metrics) FundingOption {
	return func(f *FundingAgent) {
		f.metrics = m
	}
}

func WithCatalog(c models.Catalog) FundingOption {
	return func(f *FundingAgent) {
		f.catalog = c
	}
}

func NewFundingAgent(accounts AccountStore, oracle PriceOracle, treasury Treasury, auditor AuditPublisher, opts ...FundingOption) *FundingAgent {
	f := &FundingAgent{
		accounts: accounts,
		catalog:  models.DefaultCatalog(),
		oracle:   oracle,
		treasury: treasury,
		auditor:  auditor,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type topUpDetails struct {
	Plan         string `json:"plan"`
	Fiat         string `json:"fiat_amount,omitempty"`
	Credited     string `json:"credited,omitempty"`
	BalanceAfter string `json:"balance_after,omitempty"`
	Reference    string `json:"treasury_reference,omitempty"`
	Error        string `json:"error,omitempty"`
}

// TopUp credits the account with the native equivalent of planID and returns
// the credited amount.
func (f *FundingAgent) TopUp(ctx context.Context, accountID id.AccountID, planID string) (decimal.Decimal, error) {
	plan, err := f.resolvePlan(planID)
	if err != nil {
		return decimal.Zero, err
	}

	var credited decimal.Decimal
	_, err = f.accounts.UpdateBalances(ctx, accountID, func(ctx context.Context, acct *models.Account) error {
		if !acct.IsActive() {
			return dErrors.New(dErrors.CodeForbidden, "account is disabled")
		}
		var fundErr error
		credited, fundErr = f.fund(ctx, acct, plan)
		return fundErr
	})
	if err != nil {
		return decimal.Zero, translate(err)
	}
	return credited, nil
}

// resolvePlan rejects unknown and non-purchasable plans before any side
// effect takes place.
func (f *FundingAgent) resolvePlan(planID string) (models.NumericPlan, error) {
	plan, err := f.catalog.Lookup(planID)
	if err != nil {
		return models.NumericPlan{}, dErrors.New(dErrors.CodeValidation, "unknown plan: "+planID)
	}
	switch p := plan.(type) {
	case models.NumericPlan:
		return p, nil
	case models.ContactSalesPlan:
		return models.NumericPlan{}, dErrors.New(dErrors.CodePlanNotPurchasable, "plan "+p.ID+" requires contacting sales")
	default:
		return models.NumericPlan{}, dErrors.New(dErrors.CodeInternal, "unsupported plan type")
	}
}

// fund runs inside the caller's locked account unit. acct is credited in
// place; the caller persists it.
func (f *FundingAgent) fund(ctx context.Context, acct *models.Account, plan models.NumericPlan) (decimal.Decimal, error) {
	details := topUpDetails{Plan: plan.ID, Fiat: plan.Fiat.String()}

	amount, err := f.oracle.NativeAmountFor(ctx, plan.Fiat)
	if err != nil {
		return decimal.Zero, f.fail(ctx, acct.ID, details, err)
	}
	details.Credited = amount.String()

	ref, err := f.treasury.Transfer(ctx, acct, amount)
	if err != nil {
		return decimal.Zero, f.fail(ctx, acct.ID, details,
			dErrors.Wrap(err, dErrors.CodeTreasuryTransferFailed, "treasury transfer failed"))
	}
	details.Reference = ref

	acct.NativeBalance = acct.NativeBalance.Add(amount)
	details.BalanceAfter = acct.NativeBalance.String()

	if err := f.auditor.Emit(ctx, compliance.Record{
		AccountID: acct.ID,
		Action:    audit.ActionAddBalance,
		Outcome:   audit.OutcomeSuccess,
		Details:   details,
	}); err != nil {
		acct.NativeBalance = acct.NativeBalance.Sub(amount)
		if revErr := f.treasury.Reverse(ctx, acct, amount, ref); revErr != nil {
			f.logger.ErrorContext(ctx, "treasury reversal failed",
				"account_id", acct.ID.String(),
				"treasury_reference", ref,
				"error", revErr,
			)
		}
		f.countTopUp(plan.ID, "failure")
		return decimal.Zero, err
	}

	f.countTopUp(plan.ID, "success")
	f.logger.InfoContext(ctx, "balance topped up",
		"account_id", acct.ID.String(),
		"plan", plan.ID,
		"credited", amount.String(),
	)
	return amount, nil
}

// fail records the failed attempt outside the surrounding transaction so the
// entry survives its rollback. A failing audit write takes precedence.
func (f *FundingAgent) fail(ctx context.Context, accountID id.AccountID, details topUpDetails, cause error) error {
	f.countTopUp(details.Plan, "failure")
	details.Error = string(dErrors.CodeOf(cause))
	f.logger.WarnContext(ctx, "balance top-up failed",
		"account_id", accountID.String(),
		"plan", details.Plan,
		"error", cause,
	)
	if err := f.auditor.Emit(txcontext.Detach(ctx), compliance.Record{
		AccountID: accountID,
		Action:    audit.ActionAddBalance,
		Outcome:   audit.OutcomeFailure,
		Details:   details,
	}); err != nil {
		return err
	}
	return cause
}

func (f *FundingAgent) countTopUp(plan, outcome string) {
	if f.metrics != nil {
		f.metrics.IncTopUp(plan, outcome)
	}
}
