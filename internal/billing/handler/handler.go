// Package handler exposes balance inspection and funding over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"notary/internal/billing/models"
	"notary/internal/platform/middleware"
	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	"notary/pkg/platform/httputil"
)

// Ledger is the balance side of the billing service.
type Ledger interface {
	Balance(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	RecordDeposit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal, currency, reference string) (*models.Account, error)
}

// Funder buys balance through a plan.
type Funder interface {
	TopUp(ctx context.Context, accountID id.AccountID, planID string) (decimal.Decimal, error)
}

// Opener provisions the account on first use.
type Opener interface {
	Open(ctx context.Context, accountID id.AccountID) (*models.Account, bool, error)
}

type Handler struct {
	ledger Ledger
	funder Funder
	opener Opener
	logger *slog.Logger
}

func New(ledger Ledger, funder Funder, opener Opener, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, funder: funder, opener: opener, logger: logger}
}

// Register mounts the balance routes. Authentication is applied by the
// caller's router group.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/accounts", h.handleOpenAccount)
	r.Get("/v1/balance", h.handleGetBalance)
	r.Post("/v1/balance/top-ups", h.handleTopUp)
	r.Post("/v1/balance/deposits", h.handleDeposit)
}

type topUpRequest struct {
	Plan string `json:"plan"`
}

type topUpResponse struct {
	Plan     string             `json:"plan"`
	Credited string             `json:"credited"`
	Balance  models.BalanceView `json:"balance"`
}

type depositRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference"`
}

func (h *Handler) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, created, err := h.opener.Open(ctx, middleware.GetAccountID(ctx))
	if err != nil {
		h.writeError(ctx, w, "open account", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, acct.View())
}

func (h *Handler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct, err := h.ledger.Balance(ctx, middleware.GetAccountID(ctx))
	if err != nil {
		h.writeError(ctx, w, "get balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct.View())
}

func (h *Handler) handleTopUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := middleware.GetAccountID(ctx)

	var req topUpRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Plan == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "plan is required"))
		return
	}

	credited, err := h.funder.TopUp(ctx, accountID, req.Plan)
	if err != nil {
		h.writeError(ctx, w, "top up", err)
		return
	}
	acct, err := h.ledger.Balance(ctx, accountID)
	if err != nil {
		h.writeError(ctx, w, "get balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, topUpResponse{
		Plan:     req.Plan,
		Credited: credited.String(),
		Balance:  acct.View(),
	})
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req depositRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Currency == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "currency is required"))
		return
	}

	acct, err := h.ledger.RecordDeposit(ctx, middleware.GetAccountID(ctx), req.Amount, req.Currency, req.Reference)
	if err != nil {
		h.writeError(ctx, w, "record deposit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct.View())
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if httputil.StatusFor(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, op+" rejected",
			"request_id", middleware.GetRequestID(ctx),
			"code", code,
		)
	}
	httputil.WriteError(w, err)
}
