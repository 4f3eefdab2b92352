package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notary/internal/notarization/models"
	"notary/internal/platform/postgres"
	id "notary/pkg/domain"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/sentinel"
	txcontext "notary/pkg/platform/tx"
)

// PostgresStore persists submissions and receipts. Writes join a transaction
// carried in ctx.
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

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.Run(ctx, s.db, nil, fn)
}

const submissionColumns = `account_id, content_hash, cid, action, submitter, tx_id, valid_until_block, status, gas_charged, submitted_at, updated_at`

func (s *PostgresStore) FindSubmission(ctx context.Context, accountID id.AccountID, contentHash string) (*models.Submission, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM notarization_submissions WHERE account_id = $1 AND content_hash = $2`,
		uuid.UUID(accountID), contentHash)

	var (
		sub         models.Submission
		acct        uuid.UUID
		action      string
		status      string
		txID        sql.NullString
		submittedAt sql.NullTime
		vub         int64
	)
	err := row.Scan(&acct, &sub.ContentHash, &sub.CID, &action, &sub.Submitter, &txID, &vub,
		&status, &sub.GasCharged, &submittedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	sub.AccountID = id.AccountID(acct)
	sub.Action = audit.ActionKind(action)
	sub.Status = models.SubmissionStatus(status)
	sub.TxID = txID.String
	sub.ValidUntilBlock = uint32(vub)
	sub.SubmittedAt = submittedAt.Time
	return &sub, nil
}

// SaveSubmission upserts the submission. An accepted submission is final.
func (s *PostgresStore) SaveSubmission(ctx context.Context, sub *models.Submission) error {
	var txID *string
	if sub.TxID != "" {
		txID = &sub.TxID
	}
	var submittedAt *time.Time
	if !sub.SubmittedAt.IsZero() {
		submittedAt = &sub.SubmittedAt
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now()
	}

	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO notarization_submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_id, content_hash) DO UPDATE SET
			cid = EXCLUDED.cid,
			action = EXCLUDED.action,
			submitter = EXCLUDED.submitter,
			tx_id = EXCLUDED.tx_id,
			valid_until_block = EXCLUDED.valid_until_block,
			status = EXCLUDED.status,
			gas_charged = EXCLUDED.gas_charged,
			submitted_at = EXCLUDED.submitted_at,
			updated_at = EXCLUDED.updated_at
		WHERE notarization_submissions.status <> 'accepted' OR EXCLUDED.status = 'accepted'
	`,
		uuid.UUID(sub.AccountID),
		sub.ContentHash,
		sub.CID,
		string(sub.Action),
		sub.Submitter,
		txID,
		int64(sub.ValidUntilBlock),
		string(sub.Status),
		sub.GasCharged,
		submittedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) InsertReceipt(ctx context.Context, r *models.Receipt) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO notarization_receipts (account_id, content_hash, cid, action, submitter, tx_id, gas_charged, submitted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(r.AccountID),
		r.ContentHash,
		r.CID,
		string(r.Action),
		r.Submitter,
		r.TxID,
		r.GasCharged,
		r.SubmittedAt,
		r.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

const receiptColumns = `account_id, content_hash, cid, action, submitter, tx_id, gas_charged, submitted_at, created_at`

func (s *PostgresStore) FindReceipt(ctx context.Context, accountID id.AccountID, contentHash string) (*models.Receipt, error) {
	return s.findReceipt(ctx,
		`SELECT `+receiptColumns+` FROM notarization_receipts WHERE account_id = $1 AND content_hash = $2`,
		uuid.UUID(accountID), contentHash)
}

func (s *PostgresStore) FindReceiptByTx(ctx context.Context, accountID id.AccountID, txID string) (*models.Receipt, error) {
	return s.findReceipt(ctx,
		`SELECT `+receiptColumns+` FROM notarization_receipts WHERE account_id = $1 AND tx_id = $2`,
		uuid.UUID(accountID), txID)
}

func (s *PostgresStore) findReceipt(ctx context.Context, query string, args ...any) (*models.Receipt, error) {
	var (
		r      models.Receipt
		acct   uuid.UUID
		action string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, args...).Scan(
		&acct, &r.ContentHash, &r.CID, &action, &r.Submitter, &r.TxID, &r.GasCharged, &r.SubmittedAt, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find receipt: %w", err)
	}
	r.AccountID = id.AccountID(acct)
	r.Action = audit.ActionKind(action)
	return &r, nil
}
