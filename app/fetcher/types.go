package fetcher

import (
	"fmt"
	"net/http"
	"time"
)

const (
	DefaultConnectTimeout   = 5 * time.Second
	DefaultReadTimeout      = 12 * time.Second
	DefaultRetries          = 3
	DefaultBackoff          = 500 * time.Millisecond
	DefaultMaxBackoff       = 30 * time.Second
	DefaultReadTimeoutBonus = 10 * time.Second
	DefaultMaxBodyBytes     = 8 << 20
)

// Policy is the effective timeout/retry policy of one request.
type Policy struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Retries        int
}

// DomainPolicy overrides Policy fields for one host; zero values inherit.
type DomainPolicy struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Retries        *int
}

type Config struct {
	Default          Policy
	Domains          map[string]DomainPolicy
	Backoff          time.Duration
	MaxBackoff       time.Duration
	ReadTimeoutBonus time.Duration
	MaxBodyBytes     int64
	UserAgent        string
}

func DefaultConfig() Config {
	return Config{
		Default: Policy{
			ConnectTimeout: DefaultConnectTimeout,
			ReadTimeout:    DefaultReadTimeout,
			Retries:        DefaultRetries,
		},
		Backoff:          DefaultBackoff,
		MaxBackoff:       DefaultMaxBackoff,
		ReadTimeoutBonus: DefaultReadTimeoutBonus,
		MaxBodyBytes:     DefaultMaxBodyBytes,
	}
}

type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Elapsed    time.Duration
	Attempts   int
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type ErrorKind string

const (
	KindConnection  ErrorKind = "connection"
	KindReadTimeout ErrorKind = "read_timeout"
	KindCanceled    ErrorKind = "canceled"
	KindRequest     ErrorKind = "request"
)

// FetchError is returned once a request failed without producing a response.
type FetchError struct {
	URL      string
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s after %d attempt(s): %v", e.Kind, e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
