package service

import (
	"github.com/shopspring/decimal"

	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	audit "notary/pkg/platform/audit"
)

func (s *LedgerSuite) TestTopUp() {
	s.Run("numeric plan credits the converted amount", func() {
		acct := s.createAccount("0.5")

		credited, err := s.funding.TopUp(s.ctx, acct.ID, "anual_20")
		s.Require().NoError(err)
		s.True(decimal.RequireFromString("0.02").Equal(credited))
		s.True(decimal.RequireFromString("0.52").Equal(s.balanceOf(acct.ID)))
	})

	s.Run("contact sales plan is refused before any side effect", func() {
		acct := s.createAccount("0")
		before := s.oracle.calls.Load()

		_, err := s.funding.TopUp(s.ctx, acct.ID, "corporativo")
		s.True(dErrors.HasCode(err, dErrors.CodePlanNotPurchasable))
		s.Equal(before, s.oracle.calls.Load())
		s.Empty(s.entries(acct.ID))
	})

	s.Run("unknown plan is a validation error", func() {
		acct := s.createAccount("0")

		_, err := s.funding.TopUp(s.ctx, acct.ID, "gold")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.entries(acct.ID))
	})

	s.Run("missing account", func() {
		_, err := s.funding.TopUp(s.ctx, id.NewAccountID(), "mensal_10")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("treasury failure leaves no credit and a failure entry", func() {
		acct := s.createAccount("0")
		s.oracle.amount = decimal.NewFromInt(500)
		defer func() { s.oracle.amount = decimal.RequireFromString("0.02") }()

		_, err := s.funding.TopUp(s.ctx, acct.ID, "mensal_20")
		s.True(dErrors.HasCode(err, dErrors.CodeTreasuryTransferFailed))
		s.True(s.balanceOf(acct.ID).IsZero())

		entries := s.entries(acct.ID)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionAddBalance, entries[0].Action)
		s.Equal(audit.OutcomeFailure, entries[0].Outcome)
		s.Contains(string(entries[0].Details), string(dErrors.CodeTreasuryTransferFailed))
	})
}
