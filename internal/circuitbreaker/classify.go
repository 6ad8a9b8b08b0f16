package circuitbreaker

import (
	"context"
	"errors"
	"net"
	"os"
)

// httpStatusError is satisfied by remote.StatusError.
type httpStatusError interface {
	HTTPStatus() int
}

// ClassifyError returns the error weight for circuit breaker tracking.
//
// Weights:
//   - nil, context.Canceled -> 0.0 (the caller gave up, the host is fine)
//   - 4xx (except 429) -> 0.0 (bad id, unknown tour)
//   - 429 -> 0.5
//   - 5xx -> 1.0
//   - timeout (deadline exceeded) -> 1.5
//   - network and other errors -> 1.0
func ClassifyError(err error) float64 {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return 1.5
	}

	var he httpStatusError
	if errors.As(err, &he) {
		return classifyStatus(he.HTTPStatus())
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return 1.5
		}
		return 1.0
	}
	return 1.0
}

func classifyStatus(code int) float64 {
	switch {
	case code == 429:
		return 0.5
	case code >= 500:
		return 1.0
	default:
		return 0.0
	}
}
