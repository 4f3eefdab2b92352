// Package domain holds typed identifiers shared across packages.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "notary/pkg/domain-errors"
)

// AccountID identifies a billed account that submits content.
type AccountID uuid.UUID

// EntryID identifies an audit entry.
type EntryID uuid.UUID

func (a AccountID) String() string { return uuid.UUID(a).String() }
func (a AccountID) IsNil() bool    { return uuid.UUID(a) == uuid.Nil }

func (e EntryID) String() string { return uuid.UUID(e).String() }
func (e EntryID) IsNil() bool    { return uuid.UUID(e) == uuid.Nil }

// NewAccountID returns a random account ID.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewEntryID returns a random entry ID.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

// ParseAccountID parses a client supplied account identifier.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account_id")
	return AccountID(u), err
}

// ParseEntryID parses an audit entry identifier.
func ParseEntryID(s string) (EntryID, error) {
	u, err := parseUUID(s, "entry_id")
	return EntryID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return u, nil
}
