package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"notary/internal/notarization/handler/mocks"
	"notary/internal/notarization/models"
	"notary/internal/notarization/service"
	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	audit "notary/pkg/platform/audit"
	"notary/pkg/testutil"
)

const txID = "0x9a8b7c6d5e4f30211203f4e5d6c7b8a99a8b7c6d5e4f30211203f4e5d6c7b8a9"

func newRouter(svc Service, accountID id.AccountID) http.Handler {
	r := chi.NewRouter()
	r.Use(testutil.AsAccount(accountID))
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	return testutil.DoRequest(router, testutil.NewJSONRequest(http.MethodPost, path, body))
}

func result() *service.Result {
	return &service.Result{
		TransactionID: txID,
		ContentHash:   "0xfeed",
		CID:           "bafkreigh2akiscaildc",
		Document:      []byte("%PDF-1.3 proof"),
		State:         models.StateComplete,
	}
}

func TestRegisterHandlers(t *testing.T) {
	accountID := id.NewAccountID()

	t.Run("document as base64", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Register(gomock.Any(), service.Request{
			AccountID: accountID,
			Action:    audit.ActionRegisterDocument,
			Content:   []byte("scanned deed"),
		}).Return(result(), nil)

		body := `{"content":"` + base64.StdEncoding.EncodeToString([]byte("scanned deed")) + `"}`
		rec := post(newRouter(svc, accountID), "/v1/documents", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		got := testutil.DecodeBody(t, rec)
		assert.Equal(t, txID, got["transaction_id"])
		assert.Equal(t, "0xfeed", got["content_hash"])
		assert.Equal(t, "bafkreigh2akiscaildc", got["cid"])
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.3 proof")), got["document"])
		assert.NotContains(t, got, "resumed")
	})

	t.Run("content as text", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Register(gomock.Any(), service.Request{
			AccountID: accountID,
			Action:    audit.ActionRegisterContent,
			Content:   []byte("hello ledger"),
		}).Return(result(), nil)

		rec := post(newRouter(svc, accountID), "/v1/content", `{"text":"hello ledger"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid bodies never reach the pipeline", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		router := newRouter(mocks.NewMockService(ctrl), accountID)

		for name, body := range map[string]string{
			"both fields":   `{"content":"aGk=","text":"hi"}`,
			"neither field": `{}`,
			"bad base64":    `{"content":"***"}`,
			"unknown field": `{"file":"x"}`,
		} {
			rec := post(router, "/v1/content", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		}
	})

	t.Run("failure carries state and transaction id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, &service.PipelineError{
			State: models.StateSubmitted,
			TxID:  txID,
			Err:   dErrors.New(dErrors.CodeSubmissionTimeout, "ledger confirmation timed out"),
		})

		rec := post(newRouter(svc, accountID), "/v1/content", `{"text":"x"}`)
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		got := testutil.DecodeBody(t, rec)
		assert.Equal(t, "submission_timeout", got["error"])
		assert.Equal(t, "submitted", got["state"])
		assert.Equal(t, txID, got["transaction_id"])
	})

	t.Run("early failure has no transaction id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, &service.PipelineError{
			State: models.StateStored,
			Err:   dErrors.New(dErrors.CodeInsufficientFunds, "insufficient balance"),
		})

		rec := post(newRouter(svc, accountID), "/v1/documents", `{"text":"x"}`)
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		got := testutil.DecodeBody(t, rec)
		assert.Equal(t, "stored", got["state"])
		assert.NotContains(t, got, "transaction_id")
	})

	t.Run("audit failures hide their description", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, &service.PipelineError{
			State: models.StateSubmitted,
			TxID:  txID,
			Err:   dErrors.Wrap(io.ErrClosedPipe, dErrors.CodeAuditWriteFailed, "audit log write failed"),
		})

		rec := post(newRouter(svc, accountID), "/v1/content", `{"text":"x"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		got := testutil.DecodeBody(t, rec)
		assert.Equal(t, "audit_write_failed", got["error"])
		assert.NotContains(t, got, "error_description")
		assert.Equal(t, txID, got["transaction_id"])
	})
}

func TestProofHandlers(t *testing.T) {
	accountID := id.NewAccountID()

	t.Run("restamp", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		res := result()
		res.Resumed = true
		svc.EXPECT().RestampProof(gomock.Any(), accountID, txID).Return(res, nil)

		rec := post(newRouter(svc, accountID), "/v1/notarizations/"+txID+"/proof", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, testutil.DecodeBody(t, rec)["resumed"])
	})

	t.Run("receipt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().GetReceipt(gomock.Any(), accountID, "0xfeed").Return(&models.Receipt{
			AccountID:   accountID,
			ContentHash: "0xfeed",
			CID:         "bafkreigh2akiscaildc",
			Action:      audit.ActionRegisterContent,
			Submitter:   "NXaddr",
			TxID:        txID,
			GasCharged:  decimal.RequireFromString("0.0069"),
			SubmittedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		}, nil)

		rec := httptest.NewRecorder()
		newRouter(svc, accountID).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/notarizations/0xfeed", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		got := testutil.DecodeBody(t, rec)
		assert.Equal(t, txID, got["transaction_id"])
		assert.Equal(t, "0.0069", got["gas_charged"])
		assert.Equal(t, "2026-03-14T09:30:00Z", got["submitted_at"])
	})

	t.Run("unknown receipt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().GetReceipt(gomock.Any(), accountID, "0xbeef").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "notarization not found"))

		rec := httptest.NewRecorder()
		newRouter(svc, accountID).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/notarizations/0xbeef", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
