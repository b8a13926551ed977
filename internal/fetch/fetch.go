// Package fetch retrieves recipe pages over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"ricettario/pkg/logger"
)

const (
	DefaultUserAgent    = "ricettario-ingest/1.0 (+https://github.com/ricettario)"
	DefaultTimeout      = 20 * time.Second
	DefaultMaxBodyBytes = 5 << 20
	DefaultRetries      = 2
	DefaultRetryDelay   = 500 * time.Millisecond

	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	maxRetryDelay  = 5 * time.Second
	errorBodyBytes = 512
)

// ErrInvalidURL marks a request that could not be built.
var ErrInvalidURL = errors.New("invalid url")

// FetchError is returned for any failed page retrieval. StatusCode is zero
// for network failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed.
func (e *FetchError) Retryable() bool {
	switch e.StatusCode {
	case 0:
		return !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, ErrInvalidURL)
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Config mirrors the fetch.* configuration keys.
type Config struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	Retries      int           `mapstructure:"retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

// WithDefaults fills zero values. Negative Retries disables retrying.
func (c Config) WithDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}

// Fetcher performs GET requests with a fixed client identity.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	executor failsafe.Executor[[]byte]
	log      logger.Logger
}

// New creates a Fetcher. A nil client gets one with cfg.Timeout.
func New(cfg Config, client *http.Client, log logger.Logger) *Fetcher {
	cfg = cfg.WithDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logger.NewNop()
	}

	maxDelay := maxRetryDelay
	if maxDelay < cfg.RetryDelay {
		maxDelay = cfg.RetryDelay
	}
	policy := retrypolicy.NewBuilder[[]byte]().
		HandleIf(func(_ []byte, err error) bool {
			var fe *FetchError
			return errors.As(err, &fe) && fe.Retryable()
		}).
		WithBackoff(cfg.RetryDelay, maxDelay).
		WithJitterFactor(0.1).
		WithMaxRetries(cfg.Retries).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[[]byte]) {
			log.Debug("Retrying fetch",
				logger.Int("attempt", e.Attempts()),
				logger.Error(e.LastError()),
			)
		}).
		Build()

	return &Fetcher{
		cfg:      cfg,
		client:   client,
		executor: failsafe.With[[]byte](policy),
		log:      log,
	}
}

// Fetch returns the body of url. Every failure is a *FetchError; callers in a
// batch treat it as zero candidates for that page.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := f.executor.WithContext(ctx).Get(func() ([]byte, error) {
		return f.get(ctx, url)
	})
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{URL: url, Err: err}
		}
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("%w: %v", ErrInvalidURL, err)}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", acceptHTML)
	req.Header.Set("Accept-Language", "it-IT,it;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyBytes))
		return nil, &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", string(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
