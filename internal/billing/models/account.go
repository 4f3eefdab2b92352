package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "notary/pkg/domain"
)

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusDisabled AccountStatus = "disabled"
)

// Account is a prepaid billing account. NativeBalance is denominated in the
// ledger's native token and never goes negative.
type Account struct {
	ID                  id.AccountID
	ChainAddress        string
	EncryptedSigningKey []byte
	NativeBalance       decimal.Decimal
	FiatBalance         decimal.Decimal
	CryptoBalance       decimal.Decimal
	Status              AccountStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// Covers reports whether the native balance can pay amount.
func (a *Account) Covers(amount decimal.Decimal) bool {
	return a.NativeBalance.GreaterThanOrEqual(amount)
}

// Clone returns a deep copy safe to mutate.
func (a *Account) Clone() *Account {
	cp := *a
	if a.EncryptedSigningKey != nil {
		cp.EncryptedSigningKey = append([]byte(nil), a.EncryptedSigningKey...)
	}
	return &cp
}

// BalanceView is the client-facing balance representation.
type BalanceView struct {
	AccountID     string `json:"account_id"`
	ChainAddress  string `json:"chain_address"`
	NativeBalance string `json:"native_balance"`
	FiatBalance   string `json:"fiat_balance"`
	CryptoBalance string `json:"crypto_balance"`
}

func (a *Account) View() BalanceView {
	return BalanceView{
		AccountID:     a.ID.String(),
		ChainAddress:  a.ChainAddress,
		NativeBalance: a.NativeBalance.String(),
		FiatBalance:   a.FiatBalance.String(),
		CryptoBalance: a.CryptoBalance.String(),
	}
}
