package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"notary/internal/content"
	"notary/internal/notarization/models"
	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	"notary/pkg/platform/sentinel"
)

// RestampProof renders the proof for an earlier notarization again from the
// stored content. It never touches the ledger or the balance.
func (s *Service) RestampProof(ctx context.Context, accountID id.AccountID, txID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "notarization.restamp", trace.WithAttributes(
		attribute.String("account_id", accountID.String()),
		attribute.String("tx_id", txID),
	))
	defer span.End()

	txID = strings.TrimSpace(txID)
	if txID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "transaction id is required")
	}
	receipt, err := s.store.FindReceiptByTx(ctx, accountID, txID)
	if err != nil {
		return nil, receiptError(err)
	}
	c, err := content.ParseCID(receipt.CID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored receipt has an invalid cid")
	}
	data, err := s.content.Fetch(ctx, c)
	if err != nil {
		return nil, err
	}

	res, err := s.proof(ctx, receipt, data, true)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "proof re-stamped",
		"account_id", accountID.String(),
		"tx_id", txID,
		"content_hash", receipt.ContentHash,
	)
	return res, nil
}

// GetReceipt returns the receipt for content the account notarized.
func (s *Service) GetReceipt(ctx context.Context, accountID id.AccountID, contentHash string) (*models.Receipt, error) {
	contentHash = strings.ToLower(strings.TrimSpace(contentHash))
	if contentHash == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "content hash is required")
	}
	if !strings.HasPrefix(contentHash, "0x") {
		contentHash = "0x" + contentHash
	}
	receipt, err := s.store.FindReceipt(ctx, accountID, contentHash)
	if err != nil {
		return nil, receiptError(err)
	}
	return receipt, nil
}

func receiptError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "notarization not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "receipt lookup failed")
}
