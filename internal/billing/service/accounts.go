package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"notary/internal/billing/models"
	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	"notary/pkg/platform/sentinel"
)

// AccountCreator inserts new accounts. Create returns sentinel.ErrConflict
// when the id is taken.
type AccountCreator interface {
	Create(ctx context.Context, acct *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
}

// SignerIssuer creates the ledger identity an account submits with. The key
// is returned sealed to the address.
type SignerIssuer func() (address string, sealedKey []byte, err error)

// Provisioner opens billing accounts for authenticated identities.
type Provisioner struct {
	accounts AccountCreator
	issue    SignerIssuer
	logger   *slog.Logger
}

func NewProvisioner(accounts AccountCreator, issue SignerIssuer, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{accounts: accounts, issue: issue, logger: logger}
}

// Open returns the account for accountID, creating it with an empty balance
// and a fresh signing key on first use.
func (p *Provisioner) Open(ctx context.Context, accountID id.AccountID) (*models.Account, bool, error) {
	if accountID.IsNil() {
		return nil, false, dErrors.New(dErrors.CodeUnauthorized, "account is required")
	}
	existing, err := p.accounts.FindByID(ctx, accountID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, translate(err)
	}

	address, sealed, err := p.issue()
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue signing key")
	}
	now := time.Now()
	acct := &models.Account{
		ID:                  accountID,
		ChainAddress:        address,
		EncryptedSigningKey: sealed,
		NativeBalance:       decimal.Zero,
		FiatBalance:         decimal.Zero,
		CryptoBalance:       decimal.Zero,
		Status:              models.AccountStatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := p.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a race with a concurrent first request.
			existing, ferr := p.accounts.FindByID(ctx, accountID)
			if ferr == nil {
				return existing, false, nil
			}
		}
		return nil, false, translate(err)
	}

	p.logger.InfoContext(ctx, "account opened",
		"account_id", accountID.String(),
		"chain_address", address,
	)
	return acct, true, nil
}
