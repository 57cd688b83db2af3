package backendclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"
)

// Retry policy constants (spec 4.2).
const (
	maxRetries       = 2
	perAttemptDeadline = 5 * time.Second
	totalDeadline       = 15 * time.Second
	backoffBase1        = 500 * time.Millisecond
	backoffBase2        = 1000 * time.Millisecond
	jitterFraction      = 0.20
)

// idempotent reports whether method may be retried on transport failure and
// on 502/503/504 without risking a duplicate side effect.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// retryableStatus reports whether status is one of the retried 5xx codes.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryableStatusError marks a completed response whose status code is one
// of the retried 5xx codes (spec 4.2), as distinct from a transport error
// where no response was received at all. do() retries on this the same way
// it retries on a transport error; if retries are exhausted it classifies
// the terminal Result as ServerError rather than TransportError.
type retryableStatusError struct {
	status int
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("backend returned retryable status %d", e.status)
}

// isTransportError classifies an error returned by http.Client.Do as a
// genuine transport failure (connection never produced a response), as
// opposed to a context cancellation the caller is responsible for.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "broken pipe", "no such host", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// backoffFor returns the jittered backoff duration before retry attempt n
// (n is 1 for the first retry, 2 for the second).
func backoffFor(n int) time.Duration {
	base := backoffBase1
	if n >= 2 {
		base = backoffBase2
	}
	jitter := (rand.Float64()*2 - 1) * jitterFraction
	return time.Duration(float64(base) * (1 + jitter))
}
