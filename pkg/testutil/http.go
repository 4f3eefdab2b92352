// Package testutil provides helpers for handler tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest builds a request with a raw JSON body. An empty body sends
// no payload.
func NewJSONRequest(method, path, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, path, nil)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest serves req and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// DecodeBody parses the response as a JSON object.
func DecodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "response is not a JSON object: %s", rr.Body.String())
	return body
}

// AssertError checks the status and the machine-readable error code.
func AssertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()
	assert.Equal(t, status, rr.Code, "unexpected status code")
	body := DecodeBody(t, rr)
	assert.Equal(t, code, body["error"], "unexpected error code")
	return body
}
