// Package testutil carries the shared helpers for handler tests: request
// construction, recorder plumbing and assertions over the JSON envelopes the
// service emits.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest builds a request whose body is the JSON encoding of v.
// A nil v produces an empty body, still tagged as JSON.
func NewJSONRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()

	var body io.Reader
	if v != nil {
		body = bytes.NewReader([]byte(MustMarshal(t, v)))
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRequest builds a bodyless request.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRequestWithBody builds a request around a raw JSON string, for cases
// where the test needs to send something json.Marshal would refuse to
// produce.
func NewRequestWithBody(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest runs the request through the handler and hands back the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// MustMarshal JSON-encodes v, failing the test instead of returning an error.
func MustMarshal(t *testing.T, v any) string {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err, "marshalling request payload")
	return string(body)
}

// ReadBody returns the recorded response body without draining it, so a
// test can assert against the same body more than once.
func ReadBody(t *testing.T, rec *httptest.ResponseRecorder) []byte {
	t.Helper()
	return rec.Body.Bytes()
}

// UnmarshalResponse decodes the recorded body into T.
func UnmarshalResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(ReadBody(t, rec), &out), "decoding response body")
	return &out
}

// UnmarshalErrorResponse decodes the flat error envelope the error writer
// emits, i.e. {"error": <code>, "error_description": <text>}.
func UnmarshalErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(ReadBody(t, rec), &out), "decoding error response")
	return out
}

// AssertStatus checks the recorded status code.
func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	assert.Equal(t, want, rec.Code, "unexpected status code")
}

// AssertStatusOK checks for 200 OK.
func AssertStatusOK(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	AssertStatus(t, rec, http.StatusOK)
}

// AssertErrorCode checks the coded-error slug in the error envelope.
func AssertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, wantCode string) {
	t.Helper()
	envelope := UnmarshalErrorResponse(t, rec)
	assert.Equal(t, wantCode, envelope["error"], "unexpected error code")
}

// AssertStatusAndError checks the status code and the error slug together.
func AssertStatusAndError(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	AssertStatus(t, rec, wantStatus)
	AssertErrorCode(t, rec, wantCode)
}

// AssertJSONContains checks one top-level key of the response JSON.
func AssertJSONContains(t *testing.T, rec *httptest.ResponseRecorder, key string, want any) {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ReadBody(t, rec), &out), "decoding response body")
	assert.Equal(t, want, out[key], "unexpected value for key %q", key)
}

// AssertJSONHasKey checks a top-level key is present, whatever its value.
func AssertJSONHasKey(t *testing.T, rec *httptest.ResponseRecorder, key string) {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ReadBody(t, rec), &out), "decoding response body")
	_, ok := out[key]
	assert.True(t, ok, "expected key %q in response", key)
}
