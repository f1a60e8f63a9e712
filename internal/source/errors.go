package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

var (
	// ErrParse means the source returned data in an unexpected format.
	ErrParse = errors.New("parse error")
	// ErrAuthRequired means the content needs a valid session.
	ErrAuthRequired = errors.New("authentication required")
	// ErrNetwork means a transport failure persisted after retries.
	ErrNetwork = errors.New("network error")
)

// RateLimitError signals that the source throttled the request. It is a
// policy signal, not a failure: the caller should wait RetryAfter and try
// the same request again. A zero RetryAfter means no suggestion was made.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Kind classifies an error for presentation and policy decisions.
type Kind string

const (
	KindNone      Kind = ""
	KindRateLimit Kind = "rateLimit"
	KindParse     Kind = "parse"
	KindAuth      Kind = "auth"
	KindIO        Kind = "io"
	KindNetwork   Kind = "network"
	KindCancelled Kind = "cancelled"
	KindUnknown   Kind = "unknown"
)

// Classify returns the Kind of err.
func Classify(err error) Kind {
	var rl *RateLimitError
	var pe *fs.PathError
	var le *os.LinkError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &rl):
		return KindRateLimit
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrAuthRequired):
		return KindAuth
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	case errors.As(err, &pe), errors.As(err, &le):
		return KindIO
	}
	return KindUnknown
}

// AsRateLimit returns the rate-limit signal carried by err, if any.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
