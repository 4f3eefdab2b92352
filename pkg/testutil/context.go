package testutil

import (
	"net/http"

	id "notary/pkg/domain"
	"notary/pkg/requestcontext"
)

// WithAccount attaches accountID to the request the way the authentication
// middleware does.
func WithAccount(req *http.Request, accountID id.AccountID) *http.Request {
	return req.WithContext(requestcontext.WithAccountID(req.Context(), accountID))
}

// AsAccount is a middleware that authenticates every request as accountID.
func AsAccount(accountID id.AccountID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithAccount(r, accountID))
		})
	}
}
