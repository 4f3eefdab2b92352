//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "notary/pkg/domain"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/sentinel"
	"notary/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = New(s.postgres.DB)
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_entries", "audit_outbox"))
}

func entry(account id.AccountID, action audit.ActionKind, outcome audit.Outcome, hash string, at time.Time) audit.Entry {
	return audit.Entry{
		ID:          id.NewEntryID(),
		AccountID:   account,
		Action:      action,
		Outcome:     outcome,
		ContentHash: hash,
		Details:     json.RawMessage(`{"tx_id":"0xbeef"}`),
		RequestID:   "req-1",
		Timestamp:   at,
	}
}

func (s *StoreSuite) TestAppendWritesEntryAndOutbox() {
	ctx := context.Background()
	account := id.NewAccountID()
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	s.Require().NoError(s.store.Append(ctx, entry(account, audit.ActionAddBalance, audit.OutcomeSuccess, "", base)))
	s.Require().NoError(s.store.Append(ctx, entry(account, audit.ActionRegisterContent, audit.OutcomeSuccess, "0xabc", base.Add(time.Second))))

	entries, err := s.store.ListByAccount(ctx, account)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(audit.ActionRegisterContent, entries[0].Action)
	s.Equal("0xabc", entries[0].ContentHash)
	s.Empty(entries[1].ContentHash)
	s.JSONEq(`{"tx_id":"0xbeef"}`, string(entries[0].Details))

	var pending []audit.OutboxRecord
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		pending, err = s.store.Pending(ctx, 10)
		return err
	})
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(account.String(), pending[0].Key)
	s.Equal(string(audit.ActionAddBalance), pending[0].EventType)
}

func (s *StoreSuite) TestFindNotarizationIgnoresFailuresAndOtherActions() {
	ctx := context.Background()
	account := id.NewAccountID()
	now := time.Now().UTC()

	s.Require().NoError(s.store.Append(ctx, entry(account, audit.ActionRegisterDocument, audit.OutcomeFailure, "0xabc", now)))
	s.Require().NoError(s.store.Append(ctx, entry(account, audit.ActionAddBalance, audit.OutcomeSuccess, "0xabc", now)))

	_, err := s.store.FindNotarization(ctx, account, "0xabc")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Append(ctx, entry(account, audit.ActionRegisterDocument, audit.OutcomeSuccess, "0xabc", now)))
	found, err := s.store.FindNotarization(ctx, account, "0xabc")
	s.Require().NoError(err)
	s.Equal(audit.OutcomeSuccess, found.Outcome)
	s.Equal(audit.ActionRegisterDocument, found.Action)
}

func (s *StoreSuite) TestMarkPublishedHidesRows() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, entry(id.NewAccountID(), audit.ActionAddBalance, audit.OutcomeSuccess, "", time.Now())))

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		pending, err := s.store.Pending(ctx, 10)
		if err != nil {
			return err
		}
		s.Require().Len(pending, 1)
		return s.store.MarkPublished(ctx, []string{pending[0].ID})
	})
	s.Require().NoError(err)

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		pending, err := s.store.Pending(ctx, 10)
		if err != nil {
			return err
		}
		if len(pending) != 0 {
			return errors.New("published row still pending")
		}
		return nil
	})
	s.NoError(err)
}

func (s *StoreSuite) TestAppendJoinsCallerTransaction() {
	ctx := context.Background()
	account := id.NewAccountID()

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Append(ctx, entry(account, audit.ActionAddBalance, audit.OutcomeSuccess, "", time.Now())); err != nil {
			return err
		}
		return errors.New("receipt insert failed")
	})
	s.Error(err)

	entries, err := s.store.ListByAccount(ctx, account)
	s.Require().NoError(err)
	s.Empty(entries)
}
