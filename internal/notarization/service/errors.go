package service

import (
	"errors"
	"fmt"

	"notary/internal/notarization/models"
	dErrors "notary/pkg/domain-errors"
)

// PipelineError reports the last state a registration reached before it
// failed. TxID is set once the ledger accepted a transaction, so the client
// can resume or re-stamp.
type PipelineError struct {
	State models.State
	TxID  string
	Err   error
}

func (e *PipelineError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("notarization failed after %s (tx %s): %v", e.State, e.TxID, e.Err)
	}
	return fmt.Sprintf("notarization failed after %s: %v", e.State, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Code is the domain code of the underlying failure.
func (e *PipelineError) Code() dErrors.Code {
	return dErrors.CodeOf(e.Err)
}

// ensureCode keeps an existing domain code and otherwise wraps err with code.
func ensureCode(err error, code dErrors.Code, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, code, msg)
}
