package audit

import (
	"context"
	"encoding/json"
	"time"

	id "notary/pkg/domain"
)

// ActionKind names the account action an entry records.
type ActionKind string

const (
	ActionRegisterDocument ActionKind = "register_document"
	ActionRegisterContent  ActionKind = "register_content"
	ActionAddBalance       ActionKind = "add_balance"
	ActionCryptoDeposit    ActionKind = "crypto_deposit"
)

// Valid reports whether a is one of the known action kinds.
func (a ActionKind) Valid() bool {
	switch a {
	case ActionRegisterDocument, ActionRegisterContent, ActionAddBalance, ActionCryptoDeposit:
		return true
	}
	return false
}

// IsNotarization reports whether a records a ledger notarization.
func (a ActionKind) IsNotarization() bool {
	return a == ActionRegisterDocument || a == ActionRegisterContent
}

// Outcome records whether the audited action succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is an append-only audit record. Details is opaque JSON owned by the
// emitting component; ContentHash is set for notarization entries so receipts
// can be joined to their audit record.
type Entry struct {
	ID          id.EntryID
	AccountID   id.AccountID
	Action      ActionKind
	Outcome     Outcome
	ContentHash string
	Details     json.RawMessage
	RequestID   string
	Timestamp   time.Time
}

// OutboxRecord is an entry waiting to be streamed to the compliance topic.
type OutboxRecord struct {
	ID        string
	Key       string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// Store persists entries. Append must join a transaction carried in ctx.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]Entry, error)
	FindNotarization(ctx context.Context, accountID id.AccountID, contentHash string) (*Entry, error)
}

// OutboxStore exposes entries not yet published to the stream.
type OutboxStore interface {
	Pending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// payload is the JSON shape published to the compliance stream.
type payload struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Action      string          `json:"action"`
	Outcome     string          `json:"outcome"`
	ContentHash string          `json:"content_hash,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
	Timestamp   string          `json:"timestamp"`
}

// OutboxPayload renders the stream payload for an entry.
func OutboxPayload(e Entry) ([]byte, error) {
	return json.Marshal(payload{
		ID:          e.ID.String(),
		AccountID:   e.AccountID.String(),
		Action:      string(e.Action),
		Outcome:     string(e.Outcome),
		ContentHash: e.ContentHash,
		Details:     e.Details,
		RequestID:   e.RequestID,
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}
