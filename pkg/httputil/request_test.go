package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"docs"}`))

	var body struct {
		Name string `json:"name"`
	}
	require.NoError(t, ParseJSON(r, &body))
	assert.Equal(t, "docs", body.Name)
}

func TestParseJSONInvalid(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))

	var body map[string]string
	err := ParseJSON(r, &body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParsePathString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/items/abc", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "abc"})

	val, err := ParsePathString(r, "id")
	require.NoError(t, err)
	assert.Equal(t, "abc", val)

	_, err = ParsePathString(r, "missing")
	assert.Error(t, err)
}

func TestParseQueryBool(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?purge_below=true", nil)

	val, err := ParseQueryBool(r, "purge_below", false)
	require.NoError(t, err)
	assert.True(t, val)

	val, err = ParseQueryBool(r, "absent", true)
	require.NoError(t, err)
	assert.True(t, val)

	r = httptest.NewRequest(http.MethodGet, "/?purge_below=nope", nil)
	_, err = ParseQueryBool(r, "purge_below", false)
	assert.Error(t, err)
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25", nil)

	val, err := ParseQueryInt(r, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 25, val)

	val, err = ParseQueryInt(r, "absent", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, val)
}

func TestRequestIDMiddleware(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = w.Header().Get("X-Request-ID")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, captured)

	// An incoming header is preserved
	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "req-123")
	handler.ServeHTTP(rec, r)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
