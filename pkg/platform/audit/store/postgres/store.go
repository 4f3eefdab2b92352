package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "notary/pkg/domain"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/sentinel"
	txcontext "notary/pkg/platform/tx"
)

// Store writes audit entries and their outbox rows in one transaction.
// When the caller already holds a transaction in ctx both rows join it, so a
// rollback of the business operation also drops the audit entry.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts the entry and its outbox row.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	body, err := audit.OutboxPayload(entry)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	return txcontext.Run(ctx, s.db, nil, func(ctx context.Context) error {
		exec := s.execer(ctx)
		var contentHash *string
		if entry.ContentHash != "" {
			contentHash = &entry.ContentHash
		}
		details := []byte(entry.Details)
		if len(details) == 0 {
			details = []byte("{}")
		}
		_, err := exec.ExecContext(ctx, `
			INSERT INTO audit_entries (id, account_id, action, outcome, content_hash, details, request_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			uuid.UUID(entry.ID),
			uuid.UUID(entry.AccountID),
			string(entry.Action),
			string(entry.Outcome),
			contentHash,
			string(details),
			entry.RequestID,
			entry.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}

		_, err = exec.ExecContext(ctx, `
			INSERT INTO audit_outbox (id, aggregate_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`,
			uuid.New(),
			entry.AccountID.String(),
			string(entry.Action),
			string(body),
			time.Now(),
		)
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
		return nil
	})
}

// ListByAccount returns an account's entries, newest first.
func (s *Store) ListByAccount(ctx context.Context, accountID id.AccountID) ([]audit.Entry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, account_id, action, outcome, content_hash, details, request_id, created_at
		FROM audit_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, uuid.UUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// FindNotarization returns the successful notarization entry for a content hash.
func (s *Store) FindNotarization(ctx context.Context, accountID id.AccountID, contentHash string) (*audit.Entry, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, account_id, action, outcome, content_hash, details, request_id, created_at
		FROM audit_entries
		WHERE account_id = $1 AND content_hash = $2 AND outcome = 'success'
		  AND action IN ('register_document', 'register_content')
		ORDER BY created_at
		LIMIT 1
	`, uuid.UUID(accountID), contentHash)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return entry, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*audit.Entry, error) {
	var (
		entryID, accountID uuid.UUID
		action, outcome    string
		contentHash        sql.NullString
		details            []byte
		entry              audit.Entry
	)
	err := row.Scan(&entryID, &accountID, &action, &outcome, &contentHash, &details, &entry.RequestID, &entry.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan audit entry: %w", err)
	}
	entry.ID = id.EntryID(entryID)
	entry.AccountID = id.AccountID(accountID)
	entry.Action = audit.ActionKind(action)
	entry.Outcome = audit.Outcome(outcome)
	entry.ContentHash = contentHash.String
	entry.Details = details
	return &entry, nil
}

// Pending returns unpublished outbox rows, locking them for this relay.
// Must run inside a transaction so the lock holds until MarkPublished.
func (s *Store) Pending(ctx context.Context, limit int) ([]audit.OutboxRecord, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var records []audit.OutboxRecord
	for rows.Next() {
		var (
			rec   audit.OutboxRecord
			rowID uuid.UUID
		)
		if err := rows.Scan(&rowID, &rec.Key, &rec.EventType, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		rec.ID = rowID.String()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return records, nil
}

// MarkPublished stamps rows as delivered.
func (s *Store) MarkPublished(ctx context.Context, ids []string) error {
	exec := s.execer(ctx)
	for _, rowID := range ids {
		if _, err := exec.ExecContext(ctx,
			`UPDATE audit_outbox SET published_at = NOW() WHERE id = $1`, rowID); err != nil {
			return fmt.Errorf("mark outbox row published: %w", err)
		}
	}
	return nil
}

// RunInTx lets the relay hold row locks across Pending and MarkPublished.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.Run(ctx, s.db, nil, fn)
}
