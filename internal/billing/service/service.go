// Package service implements the prepaid balance ledger and the funding agent
// that tops balances up from the treasury.
package service

import (
	"context"

	"github.com/shopspring/decimal"

	"notary/internal/billing/models"
	"notary/internal/billing/store"
	id "notary/pkg/domain"
	"notary/pkg/platform/audit/publishers/compliance"
)

// AccountStore persists accounts. UpdateBalances serializes writers per
// account and applies the callback's changes only when it returns nil.
type AccountStore interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	UpdateBalances(ctx context.Context, accountID id.AccountID, fn store.BalanceFunc) (*models.Account, error)
}

// PriceOracle converts a fiat amount into native currency.
type PriceOracle interface {
	NativeAmountFor(ctx context.Context, fiat decimal.Decimal) (decimal.Decimal, error)
}

// Treasury moves native funds to an account. Reverse undoes a transfer whose
// credit could not be committed.
type Treasury interface {
	Transfer(ctx context.Context, to *models.Account, amount decimal.Decimal) (string, error)
	Reverse(ctx context.Context, to *models.Account, amount decimal.Decimal, reference string) error
}

// AuditPublisher is the fail-closed audit log.
type AuditPublisher interface {
	Emit(ctx context.Context, rec compliance.Record) error
}
