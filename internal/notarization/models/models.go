package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "notary/pkg/domain"
	audit "notary/pkg/platform/audit"
)

// State is a step of the notarization pipeline.
type State string

const (
	StateReceived      State = "received"
	StateStored        State = "stored"
	StateFundsVerified State = "funds_verified"
	StateSubmitted     State = "submitted"
	StateAudited       State = "audited"
	StateStamped       State = "stamped"
	StateComplete      State = "complete"
	StateFailed        State = "failed"
)

// SubmissionStatus tracks a ledger submission for one (account, content).
type SubmissionStatus string

const (
	// SubmissionPending: the account was charged; TxID is set once the node
	// accepted the transaction.
	SubmissionPending SubmissionStatus = "pending"
	// SubmissionAccepted: the transaction executed successfully on the ledger.
	SubmissionAccepted SubmissionStatus = "accepted"
	// SubmissionUnknown: the wait for inclusion ran out.
	SubmissionUnknown SubmissionStatus = "unknown"
	// SubmissionExpired: the transaction can no longer be included; the
	// charge was not consumed.
	SubmissionExpired SubmissionStatus = "expired"
	// SubmissionRejected: the ledger refused or faulted the transaction.
	SubmissionRejected SubmissionStatus = "rejected"
)

// Submission is the durable record of a ledger submission attempt.
type Submission struct {
	AccountID       id.AccountID
	ContentHash     string
	CID             string
	Action          audit.ActionKind
	Submitter       string
	TxID            string
	ValidUntilBlock uint32
	Status          SubmissionStatus
	GasCharged      decimal.Decimal
	SubmittedAt     time.Time
	UpdatedAt       time.Time
}

// Receipt is the append-only proof that content was notarized and audited.
type Receipt struct {
	AccountID   id.AccountID
	ContentHash string
	CID         string
	Action      audit.ActionKind
	Submitter   string
	TxID        string
	GasCharged  decimal.Decimal
	SubmittedAt time.Time
	CreatedAt   time.Time
}

// ReceiptView is the client-facing receipt.
type ReceiptView struct {
	TransactionID string    `json:"transaction_id"`
	ContentHash   string    `json:"content_hash"`
	CID           string    `json:"cid"`
	Action        string    `json:"action"`
	Submitter     string    `json:"submitter"`
	GasCharged    string    `json:"gas_charged"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

func (r *Receipt) View() ReceiptView {
	return ReceiptView{
		TransactionID: r.TxID,
		ContentHash:   r.ContentHash,
		CID:           r.CID,
		Action:        string(r.Action),
		Submitter:     r.Submitter,
		GasCharged:    r.GasCharged.String(),
		SubmittedAt:   r.SubmittedAt.UTC(),
	}
}
