// Package treasury moves native funds from the operator treasury to customer
// accounts during top-ups.
package treasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"notary/internal/billing/models"
	id "notary/pkg/domain"
)

var (
	ErrDepleted     = errors.New("treasury: insufficient treasury balance")
	ErrSelfTransfer = errors.New("treasury: cannot fund the treasury account")
	ErrIrreversible = errors.New("treasury: on-chain transfers cannot be reversed")
)

// Withdrawer is the subset of the account store the bookkeeping treasury
// needs.
type Withdrawer interface {
	WithdrawIfSufficient(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (bool, error)
	Deposit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) error
}

// Bookkeeping keeps the treasury as an ordinary account row. A transfer is a
// conditional decrement of that row; the caller credits the recipient in the
// same transaction.
type Bookkeeping struct {
	store      Withdrawer
	treasuryID id.AccountID
}

func NewBookkeeping(store Withdrawer, treasuryID id.AccountID) *Bookkeeping {
	return &Bookkeeping{store: store, treasuryID: treasuryID}
}

func (b *Bookkeeping) Transfer(ctx context.Context, to *models.Account, amount decimal.Decimal) (string, error) {
	if to.ID == b.treasuryID {
		return "", ErrSelfTransfer
	}
	ok, err := b.store.WithdrawIfSufficient(ctx, b.treasuryID, amount)
	if err != nil {
		return "", fmt.Errorf("withdraw from treasury: %w", err)
	}
	if !ok {
		return "", ErrDepleted
	}
	return "ledger:" + uuid.NewString(), nil
}

// Reverse returns amount to the treasury after a failed top-up.
func (b *Bookkeeping) Reverse(ctx context.Context, _ *models.Account, amount decimal.Decimal, _ string) error {
	return b.store.Deposit(ctx, b.treasuryID, amount)
}
