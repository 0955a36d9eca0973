package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, []string{"a", "b"}, r.URL.Query()["tag"])

		var in map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(map[string]int{"got": in["n"] * 2})
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(time.Second), WithHeader("Authorization", "Bearer tok"))
	var out map[string]int
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodPost,
		URL:         srv.URL,
		QueryParams: map[string][]string{"tag": {"a", "b"}},
		Body:        map[string]int{"n": 21},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out["got"])
}

func TestSendAndParseStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/busy":
			http.Error(w, "slow down", http.StatusTooManyRequests)
		default:
			http.Error(w, "nope", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := NewClient()
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL + "/busy"}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Retryable())
	assert.True(t, IsStatus(err, http.StatusTooManyRequests))

	err = c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL + "/bad"}, nil)
	require.ErrorAs(t, err, &se)
	assert.False(t, se.Retryable())
	assert.Contains(t, se.Body, "nope")
}
