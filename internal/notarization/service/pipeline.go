package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"notary/internal/notarization/guard"
	"notary/internal/notarization/models"
	"notary/internal/registry"
	"notary/internal/stamp"
	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/audit/publishers/compliance"
	"notary/pkg/platform/sentinel"
)

var tracer = otel.Tracer("notary/notarization")

// Request asks for content to be notarized on behalf of an account.
type Request struct {
	AccountID id.AccountID
	Action    audit.ActionKind
	Content   []byte
}

// Result is a completed notarization. Resumed is set when no new charge was
// taken because an earlier attempt for the same content already paid.
type Result struct {
	TransactionID string
	ContentHash   string
	CID           string
	Document      []byte
	State         models.State
	Resumed       bool
}

// pipeline carries what one registration learned so far.
type pipeline struct {
	req       Request
	cid       cid.Cid
	hash      string
	submitter registry.Submitter
}

func failed(state models.State, txID string, err error) error {
	return &PipelineError{State: state, TxID: txID, Err: err}
}

// receiptDetails is the audit payload of a notarization entry.
type receiptDetails struct {
	TxID        string `json:"tx_id"`
	CID         string `json:"cid"`
	Submitter   string `json:"submitter"`
	GasCharged  string `json:"gas_charged"`
	GasConsumed int64  `json:"gas_consumed,omitempty"`
}

// Register notarizes req.Content. Repeating a registration for content the
// account already notarized returns a fresh proof for the existing receipt
// without charging again. Failures are *PipelineError values.
func (s *Service) Register(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "notarization.register", trace.WithAttributes(
		attribute.String("account_id", req.AccountID.String()),
		attribute.String("action", string(req.Action)),
	))
	defer span.End()

	res, err := s.register(ctx, req)
	if err != nil {
		state, txID := models.StateReceived, ""
		var pe *PipelineError
		if errors.As(err, &pe) {
			state, txID = pe.State, pe.TxID
		}
		code := dErrors.CodeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		s.observeOutcome(models.StateFailed, string(code))
		s.logger.WarnContext(ctx, "notarization failed",
			"account_id", req.AccountID.String(),
			"action", string(req.Action),
			"state", string(state),
			"code", string(code),
			"tx_id", txID,
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("tx_id", res.TransactionID),
		attribute.String("content_hash", res.ContentHash),
		attribute.Bool("resumed", res.Resumed),
	)
	s.observeOutcome(models.StateComplete, "")
	s.logger.InfoContext(ctx, "notarization complete",
		"account_id", req.AccountID.String(),
		"action", string(req.Action),
		"tx_id", res.TransactionID,
		"content_hash", res.ContentHash,
		"cid", res.CID,
		"resumed", res.Resumed,
	)
	return res, nil
}

func (s *Service) register(ctx context.Context, req Request) (*Result, error) {
	if req.AccountID.IsNil() {
		return nil, failed(models.StateReceived, "", dErrors.New(dErrors.CodeUnauthorized, "account is required"))
	}
	if !req.Action.IsNotarization() {
		return nil, failed(models.StateReceived, "", dErrors.New(dErrors.CodeValidation, "unsupported notarization action"))
	}

	// Received -> Stored
	var c cid.Cid
	err := s.step(ctx, "store", func(ctx context.Context) error {
		var err error
		c, err = s.content.Store(ctx, req.Content)
		return err
	})
	if err != nil {
		return nil, failed(models.StateReceived, "", err)
	}
	p := &pipeline{req: req, cid: c, hash: registry.ContentHash(c)}

	release, err := s.guard.Acquire(ctx, req.AccountID.String()+":"+p.hash)
	if errors.Is(err, guard.ErrHeld) {
		return nil, failed(models.StateStored, "",
			dErrors.New(dErrors.CodeInFlight, "this content is already being notarized for the account"))
	}
	if err != nil {
		return nil, failed(models.StateStored, "", dErrors.Wrap(err, dErrors.CodeInternal, "in-flight guard unavailable"))
	}
	defer release()

	receipt, err := s.store.FindReceipt(ctx, req.AccountID, p.hash)
	if err == nil {
		return s.proof(ctx, receipt, req.Content, true)
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, failed(models.StateStored, "", dErrors.Wrap(err, dErrors.CodeInternal, "receipt lookup failed"))
	}

	acct, err := s.ledger.Balance(ctx, req.AccountID)
	if err != nil {
		return nil, failed(models.StateStored, "", err)
	}
	p.submitter = registry.Submitter{Address: acct.ChainAddress, SealedKey: acct.EncryptedSigningKey}

	sub, charge, err := s.resume(ctx, p)
	if err != nil {
		return nil, err
	}
	if sub != nil && sub.Status == models.SubmissionAccepted {
		return s.complete(ctx, p, sub, 0, true)
	}

	// Stored -> FundsVerified
	if charge {
		sub, err = s.charge(ctx, p)
		if err != nil {
			return nil, err
		}
	} else {
		if !acct.IsActive() {
			return nil, failed(models.StateStored, "", dErrors.New(dErrors.CodeForbidden, "account is disabled"))
		}
		if err := s.reuseCharge(ctx, p, sub); err != nil {
			return nil, err
		}
	}

	// The account paid; finish regardless of the caller going away.
	ctx = context.WithoutCancel(ctx)

	// FundsVerified -> Submitted
	confirmed, err := s.submit(ctx, p, sub)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, p, sub, confirmed.GasConsumed, !charge)
}

// resume inspects an earlier submission for the same content. It returns the
// submission to continue from (nil for none) and whether a new charge is due.
func (s *Service) resume(ctx context.Context, p *pipeline) (*models.Submission, bool, error) {
	prior, err := s.store.FindSubmission(ctx, p.req.AccountID, p.hash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, failed(models.StateStored, "", dErrors.Wrap(err, dErrors.CodeInternal, "submission lookup failed"))
	}

	switch prior.Status {
	case models.SubmissionAccepted, models.SubmissionExpired:
		return prior, false, nil
	case models.SubmissionRejected:
		return prior, true, nil
	case models.SubmissionPending:
		if prior.TxID == "" {
			// Charged, but the node never took the transaction.
			return prior, false, nil
		}
	}

	status, err := s.registry.Status(ctx, prior.TxID, prior.ValidUntilBlock)
	if err != nil {
		return nil, false, failed(models.StateSubmitted, prior.TxID,
			dErrors.Wrap(err, dErrors.CodeSubmissionTimeout, "previous submission status unavailable"))
	}
	s.logger.InfoContext(ctx, "resuming earlier submission",
		"account_id", p.req.AccountID.String(),
		"tx_id", prior.TxID,
		"previous_status", string(prior.Status),
		"ledger_status", string(status),
	)

	switch status {
	case registry.StatusAccepted:
		prior.Status = models.SubmissionAccepted
		return prior, false, nil
	case registry.StatusExpired, registry.StatusRejected:
		prior.Status = models.SubmissionExpired
		if status == registry.StatusRejected {
			prior.Status = models.SubmissionRejected
		}
		prior.UpdatedAt = s.now()
		if err := s.store.SaveSubmission(ctx, prior); err != nil {
			return nil, false, failed(models.StateStored, prior.TxID,
				dErrors.Wrap(err, dErrors.CodeInternal, "failed to record submission status"))
		}
		return prior, status == registry.StatusRejected, nil
	default:
		return nil, false, failed(models.StateSubmitted, prior.TxID,
			dErrors.New(dErrors.CodeSubmissionTimeout, "previous submission is still awaiting confirmation"))
	}
}

// charge debits the per-submission cost and records the pending submission
// in one unit of work. A top-up made while checking funds is kept even when
// the balance is still short.
func (s *Service) charge(ctx context.Context, p *pipeline) (*models.Submission, error) {
	now := s.now()
	sub := &models.Submission{
		AccountID:   p.req.AccountID,
		ContentHash: p.hash,
		CID:         p.cid.String(),
		Action:      p.req.Action,
		Submitter:   p.submitter.Address,
		Status:      models.SubmissionPending,
		GasCharged:  s.gasCost,
		UpdatedAt:   now,
	}

	var short error
	err := s.step(ctx, "charge", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context) error {
			if _, err := s.ledger.Charge(ctx, p.req.AccountID, s.gasCost); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInsufficientFunds) {
					short = err
					return nil
				}
				return err
			}
			return s.store.SaveSubmission(ctx, sub)
		})
	})
	if err == nil {
		err = short
	}
	if err != nil {
		return nil, failed(models.StateStored, "", ensureCode(err, dErrors.CodeInternal, "charge failed"))
	}
	return sub, nil
}

// reuseCharge prepares a resubmission paid for by an earlier attempt whose
// transaction never reached the ledger.
func (s *Service) reuseCharge(ctx context.Context, p *pipeline, sub *models.Submission) error {
	sub.Action = p.req.Action
	sub.Submitter = p.submitter.Address
	sub.TxID = ""
	sub.ValidUntilBlock = 0
	sub.SubmittedAt = time.Time{}
	sub.Status = models.SubmissionPending
	sub.UpdatedAt = s.now()
	if err := s.store.SaveSubmission(ctx, sub); err != nil {
		return failed(models.StateStored, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to record submission"))
	}
	return nil
}

func (s *Service) submit(ctx context.Context, p *pipeline, sub *models.Submission) (*registry.Submission, error) {
	s.trackInFlight(1)
	defer s.trackInFlight(-1)

	var confirmed *registry.Submission
	err := s.step(ctx, "submit", func(ctx context.Context) error {
		var err error
		confirmed, err = s.registry.Notarize(ctx, p.cid, p.submitter, registry.OnAccepted(
			func(ctx context.Context, rs registry.Submission) error {
				recordSent(sub, rs)
				sub.UpdatedAt = s.now()
				return s.store.SaveSubmission(ctx, sub)
			}))
		return err
	})
	if err == nil {
		recordSent(sub, *confirmed)
		return confirmed, nil
	}

	state := models.StateFundsVerified
	var (
		pending *registry.PendingError
		expired *registry.ExpiredError
	)
	switch {
	case errors.As(err, &pending):
		state = models.StateSubmitted
		recordSent(sub, pending.Submission)
		sub.Status = models.SubmissionUnknown
	case errors.As(err, &expired):
		// Never included, so the charge carries over to the next attempt.
		state = models.StateSubmitted
		recordSent(sub, expired.Submission)
		sub.Status = models.SubmissionExpired
	case errors.Is(err, registry.ErrNotSent):
		// The node may or may not hold the transaction; keep the charge
		// pending so a retry resubmits without paying again.
		sub.TxID = ""
		sub.ValidUntilBlock = 0
		sub.SubmittedAt = time.Time{}
		sub.Status = models.SubmissionPending
	default:
		sub.Status = models.SubmissionRejected
	}
	sub.UpdatedAt = s.now()
	if serr := s.store.SaveSubmission(ctx, sub); serr != nil {
		s.logger.ErrorContext(ctx, "failed to record submission outcome",
			"account_id", sub.AccountID.String(),
			"tx_id", sub.TxID,
			"status", string(sub.Status),
			"error", serr,
		)
	}
	return nil, failed(state, sub.TxID, ensureCode(err, dErrors.CodeSubmissionRejected, "ledger submission failed"))
}

func recordSent(sub *models.Submission, rs registry.Submission) {
	sub.TxID = rs.TxID
	sub.ValidUntilBlock = rs.ValidUntilBlock
	sub.SubmittedAt = rs.SubmittedAt
}

// complete writes the receipt and audit entry for a confirmed submission and
// stamps the proof.
func (s *Service) complete(ctx context.Context, p *pipeline, sub *models.Submission, gasConsumed int64, resumed bool) (*Result, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.finalizeTimeout)
	defer cancel()

	// Submitted -> Audited
	receipt, err := s.finalize(fctx, sub, gasConsumed)
	if err != nil {
		sub.Status = models.SubmissionAccepted
		sub.UpdatedAt = s.now()
		if serr := s.store.SaveSubmission(fctx, sub); serr != nil {
			s.logger.ErrorContext(ctx, "failed to record confirmed submission",
				"account_id", sub.AccountID.String(),
				"tx_id", sub.TxID,
				"error", serr,
			)
		}
		return nil, failed(models.StateSubmitted, sub.TxID, err)
	}

	// Audited -> Stamped -> Complete
	return s.proof(ctx, receipt, p.req.Content, resumed)
}

// finalize inserts the receipt, its audit entry and the accepted submission
// together; none of them persists unless all do.
func (s *Service) finalize(ctx context.Context, sub *models.Submission, gasConsumed int64) (*models.Receipt, error) {
	now := s.now()
	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = now
	}
	receipt := &models.Receipt{
		AccountID:   sub.AccountID,
		ContentHash: sub.ContentHash,
		CID:         sub.CID,
		Action:      sub.Action,
		Submitter:   sub.Submitter,
		TxID:        sub.TxID,
		GasCharged:  sub.GasCharged,
		SubmittedAt: submittedAt,
		CreatedAt:   now,
	}

	err := s.step(ctx, "audit", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.store.InsertReceipt(ctx, receipt); err != nil {
				return fmt.Errorf("insert receipt: %w", err)
			}
			err := s.auditor.Emit(ctx, compliance.Record{
				AccountID:   sub.AccountID,
				Action:      sub.Action,
				Outcome:     audit.OutcomeSuccess,
				ContentHash: sub.ContentHash,
				Details: receiptDetails{
					TxID:        sub.TxID,
					CID:         sub.CID,
					Submitter:   sub.Submitter,
					GasCharged:  sub.GasCharged.String(),
					GasConsumed: gasConsumed,
				},
				Timestamp: now,
			})
			if err != nil {
				return err
			}
			accepted := *sub
			accepted.Status = models.SubmissionAccepted
			accepted.SubmittedAt = submittedAt
			accepted.UpdatedAt = now
			return s.store.SaveSubmission(ctx, &accepted)
		})
	})
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeAuditWriteFailed) {
			err = dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "failed to record notarization")
		}
		return nil, err
	}
	return receipt, nil
}

// proof stamps content with the receipt's seal.
func (s *Service) proof(ctx context.Context, receipt *models.Receipt, content []byte, resumed bool) (*Result, error) {
	var doc []byte
	err := s.step(ctx, "stamp", func(context.Context) error {
		var err error
		doc, err = s.stamper.Stamp(content, stamp.Label{
			TransactionID: receipt.TxID,
			Timestamp:     receipt.SubmittedAt,
		})
		return err
	})
	if err != nil {
		return nil, failed(models.StateAudited, receipt.TxID,
			ensureCode(err, dErrors.CodeRenderError, "proof rendering failed"))
	}
	return &Result{
		TransactionID: receipt.TxID,
		ContentHash:   receipt.ContentHash,
		CID:           receipt.CID,
		Document:      doc,
		State:         models.StateComplete,
		Resumed:       resumed,
	}, nil
}

// step runs fn in its own span and records its duration.
func (s *Service) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "notarization."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.observeStep(name, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	return err
}
