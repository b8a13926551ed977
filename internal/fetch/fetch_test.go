package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{Timeout: 2 * time.Second, RetryDelay: time.Millisecond, Retries: 2}
}

func TestFetchSendsIdentityHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("<html><h1>ok</h1></html>"))
	}))
	defer srv.Close()

	f := New(fastConfig(), srv.Client(), nil)
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html><h1>ok</h1></html>", string(body))
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.True(t, strings.HasPrefix(gotAccept, "text/html"))
}

func TestFetchNon2xxIsTypedAndNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New(fastConfig(), srv.Client(), nil).Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, srv.URL+"/missing", fe.URL)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("finally"))
	}))
	defer srv.Close()

	body, err := New(fastConfig(), srv.Client(), nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "finally", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.Retries = 1
	_, err := New(cfg, srv.Client(), nil).Fetch(context.Background(), srv.URL)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	cfg := Config{Timeout: 20 * time.Millisecond, Retries: -1}
	_, err := New(cfg, nil, nil).Fetch(context.Background(), srv.URL)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
	assert.Error(t, fe.Err)
}

func TestFetchCapsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxBodyBytes = 10
	body, err := New(cfg, srv.Client(), nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, body, 10)
}

func TestFetchInvalidURL(t *testing.T) {
	_, err := New(fastConfig(), nil, nil).Fetch(context.Background(), "://bad")
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.False(t, fe.Retryable())
}

func TestConfigWithDefaults(t *testing.T) {
	c := Config{Retries: -5}.WithDefaults()
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.Equal(t, DefaultUserAgent, c.UserAgent)
	assert.Equal(t, int64(DefaultMaxBodyBytes), c.MaxBodyBytes)
	assert.Equal(t, 0, c.Retries)
	assert.Equal(t, DefaultRetryDelay, c.RetryDelay)
}
