// Package handler exposes content registration and proofs over HTTP.
package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"notary/internal/notarization/models"
	"notary/internal/notarization/service"
	"notary/internal/platform/middleware"
	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the notarization pipeline.
type Service interface {
	Register(ctx context.Context, req service.Request) (*service.Result, error)
	RestampProof(ctx context.Context, accountID id.AccountID, txID string) (*service.Result, error)
	GetReceipt(ctx context.Context, accountID id.AccountID, contentHash string) (*models.Receipt, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the notarization routes. Authentication is applied by the
// caller's router group.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/documents", h.handleRegister(audit.ActionRegisterDocument))
	r.Post("/v1/content", h.handleRegister(audit.ActionRegisterContent))
	r.Post("/v1/notarizations/{txID}/proof", h.handleRestamp)
	r.Get("/v1/notarizations/{contentHash}", h.handleGetReceipt)
}

// registerRequest carries either base64 bytes or plain text, not both.
type registerRequest struct {
	Content *string `json:"content,omitempty"`
	Text    *string `json:"text,omitempty"`
}

func (r registerRequest) bytes() ([]byte, error) {
	switch {
	case r.Content != nil && r.Text != nil:
		return nil, dErrors.New(dErrors.CodeValidation, "send either content or text, not both")
	case r.Content != nil:
		data, err := base64.StdEncoding.DecodeString(*r.Content)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "content must be base64 encoded")
		}
		return data, nil
	case r.Text != nil:
		return []byte(*r.Text), nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "content or text is required")
	}
}

type proofResponse struct {
	TransactionID string `json:"transaction_id"`
	ContentHash   string `json:"content_hash"`
	CID           string `json:"cid"`
	Document      string `json:"document"`
	Resumed       bool   `json:"resumed,omitempty"`
}

func toResponse(res *service.Result) proofResponse {
	return proofResponse{
		TransactionID: res.TransactionID,
		ContentHash:   res.ContentHash,
		CID:           res.CID,
		Document:      base64.StdEncoding.EncodeToString(res.Document),
		Resumed:       res.Resumed,
	}
}

func (h *Handler) handleRegister(action audit.ActionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accountID := middleware.GetAccountID(ctx)

		var req registerRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
		data, err := req.bytes()
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		h.logger.InfoContext(ctx, "registration received",
			"request_id", middleware.GetRequestID(ctx),
			"account_id", accountID.String(),
			"action", string(action),
			"size", len(data),
		)
		res, err := h.service.Register(ctx, service.Request{AccountID: accountID, Action: action, Content: data})
		if err != nil {
			h.writeError(ctx, w, string(action), err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toResponse(res))
	}
}

func (h *Handler) handleRestamp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.service.RestampProof(ctx, middleware.GetAccountID(ctx), chi.URLParam(r, "txID"))
	if err != nil {
		h.writeError(ctx, w, "restamp proof", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(res))
}

func (h *Handler) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	receipt, err := h.service.GetReceipt(ctx, middleware.GetAccountID(ctx), chi.URLParam(r, "contentHash"))
	if err != nil {
		h.writeError(ctx, w, "get receipt", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipt.View())
}

// writeError adds the failed pipeline state and any transaction id so the
// client can resume or re-stamp.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	details := map[string]string{}
	var pe *service.PipelineError
	if errors.As(err, &pe) {
		details["state"] = string(pe.State)
		details["transaction_id"] = pe.TxID
	}

	if httputil.StatusFor(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed",
			"request_id", middleware.GetRequestID(ctx),
			"code", code,
			"state", details["state"],
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, op+" rejected",
			"request_id", middleware.GetRequestID(ctx),
			"code", code,
			"state", details["state"],
		)
	}
	httputil.WriteErrorDetails(w, err, details)
}
