package wxpay

import (
	"errors"
	"fmt"
)

// ErrSignatureMismatch marks an inbound payload whose sign does not verify.
// It is never retried and never partially applied.
var ErrSignatureMismatch = errors.New("wxpay: signature mismatch")

// ErrGatewayUnavailable wraps transport-level failures: network errors,
// timeouts, non-200 responses and transport-level FAIL. Retryable by the
// caller; this package never retries on its own.
var ErrGatewayUnavailable = errors.New("wxpay: gateway unavailable")

// GatewayError is a business-level rejection reported by the gateway. Not
// retryable: the request itself was refused.
type GatewayError struct {
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("wxpay: gateway rejected request: %s (%s)", e.Code, e.Description)
}
