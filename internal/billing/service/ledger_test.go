package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"notary/internal/billing/models"
	"notary/internal/billing/store"
	"notary/internal/billing/treasury"
	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/audit/publishers/compliance"
	auditmemory "notary/pkg/platform/audit/store/memory"
)

var gasCost = decimal.RequireFromString("0.0069")

type stubOracle struct {
	amount decimal.Decimal
	err    error
	calls  atomic.Int32
}

func (o *stubOracle) NativeAmountFor(context.Context, decimal.Decimal) (decimal.Decimal, error) {
	o.calls.Add(1)
	return o.amount, o.err
}

type LedgerSuite struct {
	suite.Suite
	ctx        context.Context
	accounts   *store.InMemoryStore
	auditStore *auditmemory.InMemoryStore
	oracle     *stubOracle
	vault      *models.Account
	funding    *FundingAgent
	ledger     *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.accounts = store.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.oracle = &stubOracle{amount: decimal.RequireFromString("0.02")}
	s.vault = s.createAccount("100")

	publisher := compliance.New(s.auditStore)
	s.funding = NewFundingAgent(s.accounts, s.oracle, treasury.NewBookkeeping(s.accounts, s.vault.ID), publisher)
	s.ledger = NewLedger(s.accounts, s.funding, publisher)
}

func (s *LedgerSuite) createAccount(balance string) *models.Account {
	now := time.Now()
	acct := &models.Account{
		ID:            id.NewAccountID(),
		NativeBalance: decimal.RequireFromString(balance),
		Status:        models.AccountStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	acct.ChainAddress = "N" + acct.ID.String()
	s.Require().NoError(s.accounts.Create(s.ctx, acct))
	return acct
}

func (s *LedgerSuite) balanceOf(accountID id.AccountID) decimal.Decimal {
	acct, err := s.accounts.FindByID(s.ctx, accountID)
	s.Require().NoError(err)
	return acct.NativeBalance
}

func (s *LedgerSuite) entries(accountID id.AccountID) []audit.Entry {
	entries, err := s.auditStore.ListByAccount(s.ctx, accountID)
	s.Require().NoError(err)
	return entries
}

func (s *LedgerSuite) TestChargeWithSufficientBalanceSkipsFunding() {
	acct := s.createAccount("0.01")

	got, err := s.ledger.Charge(s.ctx, acct.ID, gasCost)
	s.Require().NoError(err)

	s.True(decimal.RequireFromString("0.0031").Equal(got.NativeBalance), got.NativeBalance.String())
	s.Equal(int32(0), s.oracle.calls.Load())
	s.Empty(s.entries(acct.ID))
}

func (s *LedgerSuite) TestChargeWithEmptyBalanceTopsUp() {
	acct := s.createAccount("0")

	got, err := s.ledger.Charge(s.ctx, acct.ID, gasCost)
	s.Require().NoError(err)

	s.True(decimal.RequireFromString("0.0131").Equal(got.NativeBalance), got.NativeBalance.String())
	s.True(decimal.RequireFromString("99.98").Equal(s.balanceOf(s.vault.ID)))

	entries := s.entries(acct.ID)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionAddBalance, entries[0].Action)
	s.Equal(audit.OutcomeSuccess, entries[0].Outcome)
	s.Contains(string(entries[0].Details), `"plan":"mensal_10"`)
}

func (s *LedgerSuite) TestChargeStillShortAfterTopUpKeepsTopUp() {
	acct := s.createAccount("0")
	s.oracle.amount = decimal.RequireFromString("0.001")

	got, err := s.ledger.Charge(s.ctx, acct.ID, gasCost)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	s.True(decimal.RequireFromString("0.001").Equal(got.NativeBalance))
	s.True(decimal.RequireFromString("0.001").Equal(s.balanceOf(acct.ID)))
}

func (s *LedgerSuite) TestChargeWithoutFundingAgentNeverTopsUp() {
	acct := s.createAccount("0.005")
	ledger := NewLedger(s.accounts, nil, compliance.New(s.auditStore))

	_, err := ledger.Charge(s.ctx, acct.ID, gasCost)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	s.True(decimal.RequireFromString("0.005").Equal(s.balanceOf(acct.ID)))
	s.Equal(int32(0), s.oracle.calls.Load())
	s.Empty(s.entries(acct.ID))
}

func (s *LedgerSuite) TestChargeFundingFailures() {
	s.Run("price unavailable", func() {
		acct := s.createAccount("0")
		s.oracle.err = dErrors.New(dErrors.CodePriceUnavailable, "down")
		defer func() { s.oracle.err = nil }()

		_, err := s.ledger.Charge(s.ctx, acct.ID, gasCost)
		s.True(dErrors.HasCode(err, dErrors.CodePriceUnavailable))
		s.True(s.balanceOf(acct.ID).IsZero())

		entries := s.entries(acct.ID)
		s.Require().Len(entries, 1)
		s.Equal(audit.OutcomeFailure, entries[0].Outcome)
	})

	s.Run("treasury depleted", func() {
		acct := s.createAccount("0")
		s.oracle.amount = decimal.NewFromInt(1000)
		defer func() { s.oracle.amount = decimal.RequireFromString("0.02") }()

		_, err := s.ledger.Charge(s.ctx, acct.ID, gasCost)
		s.True(dErrors.HasCode(err, dErrors.CodeTreasuryTransferFailed))
		s.True(s.balanceOf(acct.ID).IsZero())
		s.True(decimal.NewFromInt(100).Equal(s.balanceOf(s.vault.ID)))
	})

	s.Run("audit failure reverses the treasury transfer", func() {
		acct := s.createAccount("0")
		s.auditStore.FailWith(errors.New("disk full"))
		defer s.auditStore.FailWith(nil)

		_, err := s.ledger.Charge(s.ctx, acct.ID, gasCost)
		s.True(dErrors.HasCode(err, dErrors.CodeAuditWriteFailed))
		s.True(s.balanceOf(acct.ID).IsZero())
		s.True(decimal.NewFromInt(100).Equal(s.balanceOf(s.vault.ID)))
	})
}

func (s *LedgerSuite) TestEnsureFunds() {
	s.Run("never passes silently when short", func() {
		acct := s.createAccount("0")
		s.oracle.amount = decimal.RequireFromString("0.0001")
		defer func() { s.oracle.amount = decimal.RequireFromString("0.02") }()

		_, err := s.ledger.EnsureFunds(s.ctx, acct.ID, gasCost)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	})

	s.Run("does not debit", func() {
		acct := s.createAccount("0")
		got, err := s.ledger.EnsureFunds(s.ctx, acct.ID, gasCost)
		s.Require().NoError(err)
		s.True(decimal.RequireFromString("0.02").Equal(got.NativeBalance))
	})
}

func (s *LedgerSuite) TestDebitAndCredit() {
	acct := s.createAccount("0.005")

	_, err := s.ledger.Debit(s.ctx, acct.ID, gasCost)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	s.Equal(int32(0), s.oracle.calls.Load())

	_, err = s.ledger.Credit(s.ctx, acct.ID, decimal.RequireFromString("0.002"))
	s.Require().NoError(err)

	got, err := s.ledger.Debit(s.ctx, acct.ID, gasCost)
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("0.0001").Equal(got.NativeBalance))

	_, err = s.ledger.Credit(s.ctx, acct.ID, decimal.NewFromInt(-1))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.ledger.Debit(s.ctx, id.NewAccountID(), gasCost)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LedgerSuite) TestChargeRejectsDisabledAccount() {
	acct := s.createAccount("1")
	_, err := s.accounts.UpdateBalances(s.ctx, acct.ID, func(_ context.Context, a *models.Account) error {
		a.Status = models.AccountStatusDisabled
		return nil
	})
	s.Require().NoError(err)

	_, err = s.ledger.Charge(s.ctx, acct.ID, gasCost)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *LedgerSuite) TestConcurrentChargesNeverOverspend() {
	acct := s.createAccount("0.0345")
	s.oracle.err = dErrors.New(dErrors.CodePriceUnavailable, "no funding in this test")

	const workers = 20
	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ledger.Charge(s.ctx, acct.ID, gasCost); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(5), succeeded.Load())
	s.True(s.balanceOf(acct.ID).IsZero(), s.balanceOf(acct.ID).String())
}

func (s *LedgerSuite) TestRecordDeposit() {
	acct := s.createAccount("0")

	got, err := s.ledger.RecordDeposit(s.ctx, acct.ID, decimal.RequireFromString("12.5"), "USDT", "0xabc")
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("12.5").Equal(got.CryptoBalance))
	s.True(got.NativeBalance.IsZero())

	entries := s.entries(acct.ID)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionCryptoDeposit, entries[0].Action)

	_, err = s.ledger.RecordDeposit(s.ctx, acct.ID, decimal.NewFromInt(1), "USDT", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.auditStore.FailWith(errors.New("down"))
	_, err = s.ledger.RecordDeposit(s.ctx, acct.ID, decimal.NewFromInt(1), "USDT", "0xdef")
	s.True(dErrors.HasCode(err, dErrors.CodeAuditWriteFailed))
	acctAfter, _ := s.accounts.FindByID(s.ctx, acct.ID)
	s.True(decimal.RequireFromString("12.5").Equal(acctAfter.CryptoBalance))
}
