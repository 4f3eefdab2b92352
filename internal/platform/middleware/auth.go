package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	id "notary/pkg/domain"
	"notary/pkg/requestcontext"
)

// AccountHeader carries the account ID from trusted internal callers when
// token authentication is disabled.
const AccountHeader = "X-Account-ID"

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims are the claims the middleware relies on.
type JWTClaims struct {
	AccountID string
	JTI       string
}

// GetAccountID returns the authenticated account.
var GetAccountID = requestcontext.AccountID

func writeJSONError(w http.ResponseWriter, status int, code, desc string) {
	body := map[string]string{"error": code}
	if desc != "" {
		body["error_description"] = desc
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// RequireAuth validates the bearer token and stores the account in context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			accountID, err := id.ParseAccountID(claims.AccountID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - token without account",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Token does not identify an account")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAccountID(ctx, accountID)))
		})
	}
}

// TrustedAccountHeader reads the account from X-Account-ID. Only mount it
// behind a gateway that strips the header from external traffic.
func TrustedAccountHeader(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			accountID, err := id.ParseAccountID(r.Header.Get(AccountHeader))
			if err != nil {
				logger.WarnContext(ctx, "missing or invalid account header",
					"request_id", GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid "+AccountHeader+" header")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithAccountID(ctx, accountID)))
		})
	}
}

// Authenticate picks the authentication strategy for the capability flag.
func Authenticate(required bool, validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	if required {
		return RequireAuth(validator, logger)
	}
	return TrustedAccountHeader(logger)
}
