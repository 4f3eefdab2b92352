package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"notary/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) { return v.claims, v.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoAccount() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.AccountID(r.Context()).String()))
	})
}

func TestRequireAuth(t *testing.T) {
	account := uuid.New()

	tests := []struct {
		name       string
		header     string
		validator  stubValidator
		wantStatus int
		wantBody   string
	}{
		{"missing header", "", stubValidator{}, http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", stubValidator{}, http.StatusUnauthorized, ""},
		{"invalid token", "Bearer bad", stubValidator{err: errors.New("invalid")}, http.StatusUnauthorized, ""},
		{"token without account", "Bearer ok", stubValidator{claims: &JWTClaims{}}, http.StatusUnauthorized, ""},
		{"valid token", "Bearer ok", stubValidator{claims: &JWTClaims{AccountID: account.String()}}, http.StatusOK, account.String()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireAuth(tt.validator, discardLogger())(echoAccount())
			req := httptest.NewRequest(http.MethodGet, "/v1/balance", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestAuthenticate_TrustedHeader(t *testing.T) {
	h := Authenticate(false, nil, discardLogger())(echoAccount())

	account := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/balance", nil)
	req.Header.Set(AccountHeader, account.String())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, account.String(), rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/v1/balance", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "abc-123", seen)
}

func TestRecovery(t *testing.T) {
	h := Recovery(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, rec.Body.String())
}
