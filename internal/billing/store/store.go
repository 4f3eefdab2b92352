// Package store persists billing accounts.
//
// UpdateBalances is the only mutation path for balances: it serializes all
// writers of one account (row lock in Postgres, mutex in memory), hands the
// callback a mutable copy and persists it only when the callback succeeds.
package store

import (
	"context"

	"notary/internal/billing/models"
)

// BalanceFunc mutates acct in place. Returning an error discards the change.
type BalanceFunc func(ctx context.Context, acct *models.Account) error
