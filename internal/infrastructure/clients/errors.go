package clients

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// HTTPError carries the status code of a non-2xx upstream response so
// callers can classify it without string matching.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.Status, e.Body)
}

// IsTransient reports whether an external-call error is worth retrying:
// network timeouts, rate limiting and 5xx responses. 4xx responses other
// than 429 are permanent.
func IsTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status == http.StatusTooManyRequests {
			return true
		}
		return httpErr.Status >= 500
	}

	// Connection resets and DNS hiccups arrive as plain url.Errors.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
