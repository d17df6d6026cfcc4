package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// HTTPError is a failed REST call carrying its status code, so the policy
// can tell client errors from transient server/network faults.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// AuthError marks an authentication failure. Permanent means the credential
// itself is invalid (disabled account, revoked refresh token) and no amount
// of retrying can help.
type AuthError struct {
	Permanent bool
	Message   string
}

func (e *AuthError) Error() string {
	return "auth: " + e.Message
}

// Policy is a bounded exponential-backoff retry helper. An operation is
// attempted up to MaxRetries+1 times; the delay before retry k is
// BaseDelay * 2^(k-1), with no jitter so the schedule is deterministic.
type Policy struct {
	BaseDelay  time.Duration
	MaxRetries uint64
}

func NewPolicy(baseDelay time.Duration, maxRetries int) Policy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return Policy{BaseDelay: baseDelay, MaxRetries: uint64(maxRetries)}
}

// Do runs op until it succeeds, a non-retryable error occurs, the retry
// budget is exhausted, or ctx is canceled. The last error is returned.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0

	retried401 := false
	wrapped := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err, &retried401) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx))
}

// retryable classifies errors. A 401 is allowed one retry, since it may
// reflect a momentarily stale token fixed by refresh; other 4xx never are.
func retryable(err error, retried401 *bool) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return !authErr.Permanent
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status == http.StatusUnauthorized {
			if *retried401 {
				return false
			}
			*retried401 = true
			return true
		}
		if httpErr.Status >= 400 && httpErr.Status < 500 {
			return false
		}
		return true
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseProtocolError,
			websocket.CloseUnsupportedData,
			websocket.ClosePolicyViolation,
			websocket.CloseMandatoryExtension:
			// Protocol-level rejection, not transient network loss.
			return false
		}
		return true
	}

	return true
}
