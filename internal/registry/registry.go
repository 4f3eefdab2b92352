// Package registry records content hashes on the Neo N3 ledger through the
// notarization contract.
package registry

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"golang.org/x/crypto/sha3"

	dErrors "notary/pkg/domain-errors"
)

const notarizeMethod = "notarize"

// Status is the ledger's view of a previously sent transaction.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusPending  Status = "pending"
	StatusExpired  Status = "expired"
)

// Submitter identifies the ledger account that signs a notarization.
type Submitter struct {
	Address   string
	SealedKey []byte
}

// Submission describes a transaction the ledger accepted into its mempool.
type Submission struct {
	TxID            string
	ValidUntilBlock uint32
	ContentHash     string
	Submitter       string
	GasConsumed     int64
	SubmittedAt     time.Time
}

// PendingError is returned when a sent transaction was not confirmed within
// the wait budget. Its outcome is unknown.
type PendingError struct {
	Submission Submission
	Err        error
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed: %v", e.Submission.TxID, e.Err)
}

func (e *PendingError) Unwrap() error { return e.Err }

// ExpiredError is returned when a sent transaction passed its valid-until
// block without being included. It can never be persisted later.
type ExpiredError struct {
	Submission Submission
	Err        error
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("transaction %s expired before inclusion: %v", e.Submission.TxID, e.Err)
}

func (e *ExpiredError) Unwrap() error { return e.Err }

// ErrNotSent marks a send whose outcome the node did not report. The
// transaction may or may not have reached the mempool.
var ErrNotSent = errors.New("transaction send failed")

// Actor signs, sends and awaits contract calls for a single account.
type Actor interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
	WaitAny(ctx context.Context, vub uint32, hashes ...util.Uint256) (*state.AppExecResult, error)
}

// ActorFactory builds an Actor signing with acc.
type ActorFactory func(acc *wallet.Account) (Actor, error)

// ChainReader reads ledger state.
type ChainReader interface {
	GetBlockCount() (uint32, error)
	GetApplicationLog(hash util.Uint256, trig *trigger.Type) (*result.ApplicationLog, error)
}

// KeyOpener decrypts sealed signing keys.
type KeyOpener interface {
	Open(sealed, additionalData []byte) ([]byte, error)
}

type Registry struct {
	contract    util.Uint160
	reader      ChainReader
	newActor    ActorFactory
	keys        KeyOpener
	maxGas      int64
	waitTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMaxGas caps the estimated execution cost, in GAS fractions (1e-8).
func WithMaxGas(maxGas int64) Option {
	return func(r *Registry) {
		r.maxGas = maxGas
	}
}

func WithWaitTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.waitTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(contract util.Uint160, reader ChainReader, newActor ActorFactory, keys KeyOpener, opts ...Option) *Registry {
	r := &Registry{
		contract:    contract,
		reader:      reader,
		newActor:    newActor,
		keys:        keys,
		waitTimeout: 60 * time.Second,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ContentHash is the Keccak-256 digest of the CID's string form, hex encoded
// with a 0x prefix.
func ContentHash(c cid.Cid) string {
	return "0x" + hex.EncodeToString(contentDigest(c))
}

func contentDigest(c cid.Cid) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(c.String()))
	return h.Sum(nil)
}

type notarizeOptions struct {
	onAccepted func(context.Context, Submission) error
}

type NotarizeOption func(*notarizeOptions)

// OnAccepted runs as soon as the node accepts the transaction and before the
// wait for inclusion starts. An error from fn is logged; the wait continues.
func OnAccepted(fn func(context.Context, Submission) error) NotarizeOption {
	return func(o *notarizeOptions) {
		o.onAccepted = fn
	}
}

// Notarize records c on the ledger signed by sub. It estimates the cost with
// a test invocation, sends the transaction and waits a bounded time for it
// to be persisted. It never retries.
func (r *Registry) Notarize(ctx context.Context, c cid.Cid, sub Submitter, opts ...NotarizeOption) (*Submission, error) {
	var o notarizeOptions
	for _, opt := range opts {
		opt(&o)
	}

	acc, err := r.account(sub)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSubmissionRejected, "submitter key unavailable")
	}
	act, err := r.newActor(acc)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSubmissionRejected, "ledger node unavailable")
	}

	digest := contentDigest(c)
	inv, err := act.Call(r.contract, notarizeMethod, digest, acc.ScriptHash())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSubmissionRejected, "cost estimation failed")
	}
	if inv.State != vmstate.Halt.String() {
		return nil, dErrors.New(dErrors.CodeSubmissionRejected, "contract rejected notarization: "+inv.FaultException)
	}
	if r.maxGas > 0 && inv.GasConsumed > r.maxGas {
		return nil, dErrors.New(dErrors.CodeSubmissionRejected,
			fmt.Sprintf("estimated cost %d exceeds limit %d", inv.GasConsumed, r.maxGas))
	}

	txHash, vub, err := act.SendCall(r.contract, notarizeMethod, digest, acc.ScriptHash())
	if err != nil {
		return nil, dErrors.Wrap(fmt.Errorf("%w: %w", ErrNotSent, err), dErrors.CodeSubmissionRejected, "ledger refused transaction")
	}

	submission := Submission{
		TxID:            txHash.StringLE(),
		ValidUntilBlock: vub,
		ContentHash:     "0x" + hex.EncodeToString(digest),
		Submitter:       sub.Address,
		GasConsumed:     inv.GasConsumed,
		SubmittedAt:     r.now(),
	}
	r.logger.InfoContext(ctx, "notarization sent",
		"tx_id", submission.TxID,
		"valid_until_block", vub,
		"content_hash", submission.ContentHash,
	)
	if o.onAccepted != nil {
		if err := o.onAccepted(ctx, submission); err != nil {
			r.logger.ErrorContext(ctx, "failed to record accepted submission",
				"tx_id", submission.TxID,
				"error", err,
			)
		}
	}

	return r.await(ctx, act, txHash, submission)
}

func (r *Registry) await(ctx context.Context, act Actor, txHash util.Uint256, submission Submission) (*Submission, error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.waitTimeout)
	defer cancel()

	res, err := act.WaitAny(waitCtx, submission.ValidUntilBlock, txHash)
	if err != nil {
		if errors.Is(err, waiter.ErrTxNotAccepted) {
			return nil, dErrors.Wrap(&ExpiredError{Submission: submission, Err: err},
				dErrors.CodeSubmissionRejected, "transaction expired before inclusion")
		}
		return nil, dErrors.Wrap(&PendingError{Submission: submission, Err: err},
			dErrors.CodeSubmissionTimeout, "ledger confirmation timed out")
	}
	if res.VMState != vmstate.Halt {
		return nil, dErrors.New(dErrors.CodeSubmissionRejected, "notarization faulted: "+res.FaultException)
	}
	submission.GasConsumed = res.GasConsumed
	return &submission, nil
}

// Status reports what became of txID, sent with the given valid-until block.
// Expired and rejected transactions can never be persisted later.
func (r *Registry) Status(_ context.Context, txID string, validUntilBlock uint32) (Status, error) {
	hash, err := util.Uint256DecodeStringLE(txID)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "malformed transaction id")
	}

	appLog, err := r.reader.GetApplicationLog(hash, nil)
	if err == nil {
		for _, exec := range appLog.Executions {
			if exec.Trigger == trigger.Application {
				if exec.VMState == vmstate.Halt {
					return StatusAccepted, nil
				}
				return StatusRejected, nil
			}
		}
		return StatusRejected, nil
	}
	if !errors.Is(err, neorpc.ErrUnknownScriptContainer) {
		return StatusPending, fmt.Errorf("application log for %s: %w", txID, err)
	}

	count, err := r.reader.GetBlockCount()
	if err != nil {
		return StatusPending, fmt.Errorf("block count: %w", err)
	}
	if count > validUntilBlock {
		return StatusExpired, nil
	}
	return StatusPending, nil
}

func (r *Registry) account(sub Submitter) (*wallet.Account, error) {
	wif, err := r.keys.Open(sub.SealedKey, []byte(sub.Address))
	if err != nil {
		return nil, fmt.Errorf("open signing key: %w", err)
	}
	acc, err := wallet.NewAccountFromWIF(string(wif))
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	if acc.Address != sub.Address {
		return nil, fmt.Errorf("signing key does not match address %s", sub.Address)
	}
	return acc, nil
}
