// Package httputil holds JSON response helpers shared by HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "notary/pkg/domain-errors"
)

const maxBodyBytes = 32 << 20

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInFlight:
		return http.StatusConflict
	case dErrors.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case dErrors.CodePlanNotPurchasable, dErrors.CodeSubmissionRejected:
		return http.StatusUnprocessableEntity
	case dErrors.CodeStorageUnavailable, dErrors.CodePriceUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTreasuryTransferFailed:
		return http.StatusBadGateway
	case dErrors.CodeSubmissionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes {"error": code, "error_description": msg}. The
// description is omitted for 5xx internal failures.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorDetails(w, err, nil)
}

// WriteErrorDetails is WriteError with extra string fields in the body.
func WriteErrorDetails(w http.ResponseWriter, err error, details map[string]string) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal && code != dErrors.CodeAuditWriteFailed {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}
	for k, v := range details {
		if v != "" {
			body[k] = v
		}
	}
	WriteJSON(w, status, body)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes a bounded request body into v.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "request body is empty")
		}
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
