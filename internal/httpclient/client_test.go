package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetchSetsUserAgent(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := New(WithUserAgent("SecForm/0.1 ops@example.com"), WithRateLimit(0))
	body, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
	require.Equal(t, "SecForm/0.1 ops@example.com", agent)
}

func TestFetchClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(WithRateLimit(0), WithMaxRetries(3), WithRetryBackoff(time.Millisecond))
	_, err := c.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrFetch)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusNotFound, fe.StatusCode)
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(WithRateLimit(0), WithMaxRetries(2), WithRetryBackoff(time.Millisecond))
	body, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	require.Equal(t, int32(3), calls.Load())
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(WithRateLimit(0), WithMaxRetries(1), WithRetryBackoff(time.Millisecond))
	_, err := c.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrFetch)
	require.Equal(t, int32(2), calls.Load())
}

func TestFetchTimeoutIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
		WithRateLimit(0),
		WithMaxRetries(0),
	)
	_, err := c.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrFetch)
}

func TestFetchBadURL(t *testing.T) {
	c := New(WithRateLimit(0), WithMaxRetries(2), WithRetryBackoff(time.Millisecond))
	_, err := c.Fetch(context.Background(), "http://[::1]:namedport")
	require.ErrorIs(t, err, ErrFetch)
}
