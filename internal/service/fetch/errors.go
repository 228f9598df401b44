package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"

	xhttp "TwsePulse/pkg/http"
)

// Kind classifies an upstream failure for retry policy.
type Kind int

const (
	// Transient failures are retried with exponential backoff.
	Transient Kind = iota
	// RateLimited failures are retried with linear backoff.
	RateLimited
	// Permanent failures abort immediately; retrying cannot help.
	Permanent
)

func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case Permanent:
		return "permanent"
	default:
		return "transient"
	}
}

// ErrUnavailable marks retry exhaustion: the upstream could not serve the
// request after all attempts.
var ErrUnavailable = errors.New("upstream unavailable")

// ErrRejected marks a permanent upstream rejection of the request itself.
var ErrRejected = errors.New("upstream rejected request")

// Error wraps an upstream failure with its retry classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps an upstream error to a retry kind. HTTP 429 is rate
// limited, other 4xx are permanent, 5xx and network/deadline failures are
// transient. Unknown errors default to transient.
func Classify(err error) Kind {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 429:
			return RateLimited
		case se.StatusCode >= 500:
			return Transient
		case se.StatusCode >= 400:
			return Permanent
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return Transient
	}

	return Transient
}
