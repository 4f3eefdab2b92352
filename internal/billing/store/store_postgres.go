package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"notary/internal/billing/models"
	"notary/internal/platform/postgres"
	id "notary/pkg/domain"
	"notary/pkg/platform/sentinel"
	txcontext "notary/pkg/platform/tx"
)

// PostgresStore persists accounts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const accountColumns = `id, chain_address, encrypted_signing_key, native_balance, fiat_balance, crypto_balance, status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, acct *models.Account) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(acct.ID),
		acct.ChainAddress,
		acct.EncryptedSigningKey,
		acct.NativeBalance,
		acct.FiatBalance,
		acct.CryptoBalance,
		string(acct.Status),
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	acct, err := scanAccount(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, uuid.UUID(accountID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return acct, nil
}

// UpdateBalances locks the account row with SELECT ... FOR UPDATE for the
// duration of fn. Concurrent callers for the same account queue on the lock.
func (s *PostgresStore) UpdateBalances(ctx context.Context, accountID id.AccountID, fn BalanceFunc) (*models.Account, error) {
	var out *models.Account
	err := txcontext.Run(ctx, s.db, nil, func(ctx context.Context) error {
		exec := s.execer(ctx)
		acct, err := scanAccount(exec.QueryRowContext(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, uuid.UUID(accountID)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock account: %w", err)
		}

		if err := fn(ctx, acct); err != nil {
			return err
		}
		acct.UpdatedAt = time.Now()

		_, err = exec.ExecContext(ctx, `
			UPDATE accounts
			SET native_balance = $2, fiat_balance = $3, crypto_balance = $4, updated_at = $5
			WHERE id = $1
		`,
			uuid.UUID(accountID),
			acct.NativeBalance,
			acct.FiatBalance,
			acct.CryptoBalance,
			acct.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update balances: %w", err)
		}
		out = acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WithdrawIfSufficient is a single conditional UPDATE; it never lets the
// balance drop below zero.
func (s *PostgresStore) WithdrawIfSufficient(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE accounts
		SET native_balance = native_balance - $2, updated_at = NOW()
		WHERE id = $1 AND native_balance >= $2
	`, uuid.UUID(accountID), amount)
	if err != nil {
		return false, fmt.Errorf("withdraw: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("withdraw rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := s.FindByID(ctx, accountID); err != nil {
			return false, err
		}
	}
	return rows > 0, nil
}

func (s *PostgresStore) Deposit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE accounts SET native_balance = native_balance + $2, updated_at = NOW() WHERE id = $1
	`, uuid.UUID(accountID), amount)
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		acct      models.Account
		accountID uuid.UUID
		status    string
	)
	err := row.Scan(
		&accountID,
		&acct.ChainAddress,
		&acct.EncryptedSigningKey,
		&acct.NativeBalance,
		&acct.FiatBalance,
		&acct.CryptoBalance,
		&status,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	acct.ID = id.AccountID(accountID)
	acct.Status = models.AccountStatus(status)
	return &acct, nil
}
