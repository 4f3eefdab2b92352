package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "notary/pkg/domain-errors"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "internal_error", body["error"])
		_, ok := body["error_description"]
		assert.False(t, ok)
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "bad_request", body["error"])
		assert.Equal(t, "invalid input", body["error_description"])
	})

	t.Run("pipeline codes map to distinct statuses", func(t *testing.T) {
		cases := map[dErrors.Code]int{
			dErrors.CodeInsufficientFunds:      http.StatusPaymentRequired,
			dErrors.CodePlanNotPurchasable:     http.StatusUnprocessableEntity,
			dErrors.CodeStorageUnavailable:     http.StatusServiceUnavailable,
			dErrors.CodePriceUnavailable:       http.StatusServiceUnavailable,
			dErrors.CodeTreasuryTransferFailed: http.StatusBadGateway,
			dErrors.CodeSubmissionTimeout:      http.StatusGatewayTimeout,
			dErrors.CodeAuditWriteFailed:       http.StatusInternalServerError,
		}
		for code, status := range cases {
			assert.Equal(t, status, StatusFor(code), string(code))
		}
	})

	t.Run("details are merged into body", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteErrorDetails(w, dErrors.New(dErrors.CodeSubmissionTimeout, "no confirmation"),
			map[string]string{"transaction_id": "0xabc", "state": "Submitted", "empty": ""})

		body := decodeBody(t, w)
		assert.Equal(t, "0xabc", body["transaction_id"])
		assert.Equal(t, "Submitted", body["state"])
		_, ok := body["empty"]
		assert.False(t, ok)
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Plan string `json:"plan"`
	}

	t.Run("rejects unknown fields", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"plan":"mensal_10","x":1}`))
		var p payload
		err := DecodeJSON(r, &p)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var p payload
		err := DecodeJSON(r, &p)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("decodes valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"plan":"mensal_10"}`))
		var p payload
		require.NoError(t, DecodeJSON(r, &p))
		assert.Equal(t, "mensal_10", p.Plan)
	})
}
