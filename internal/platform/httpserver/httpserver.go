package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server. WriteTimeout stays above the handler timeout so
// slow notarizations can still report their outcome.
func New(addr string, handler http.Handler, readHeaderTimeout, requestTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
