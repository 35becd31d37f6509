package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/aws/smithy-go"

	"github.com/sells-group/opslens/internal/model"
)

// TransientError wraps an error that is safe to retry (429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// StatusError is a non-2xx response from an upstream HTTP API.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, body)
}

// CheckStatus returns nil for 2xx responses. Other statuses become a
// StatusError, wrapped as transient when the status is retryable.
func CheckStatus(service string, statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	err := &StatusError{Service: service, StatusCode: statusCode, Body: string(body)}
	if IsTransientHTTPStatus(statusCode) {
		return NewTransientError(err, statusCode)
	}
	return err
}

// IsTransient reports whether the error (or any error in its chain) is worth
// retrying: an explicit TransientError, a network timeout, a reset
// connection, or an AWS throttling/server fault.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorFault() == smithy.FaultServer {
			return true
		}
		return awsKind(apiErr.ErrorCode()) == model.KindRateLimited
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Classify maps an upstream error onto the adapter error taxonomy.
func Classify(err error) model.ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrInvalidConfig):
		return model.KindInvalidConfig
	case errors.Is(err, context.DeadlineExceeded):
		return model.KindTimeout
	case errors.Is(err, ErrCircuitOpen):
		return model.KindRateLimited
	}

	var se *StatusError
	if errors.As(err, &se) {
		return httpKind(se.StatusCode)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return awsKind(apiErr.ErrorCode())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.KindTimeout
	}

	return model.KindInternal
}

func httpKind(status int) model.ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.KindUnauthorized
	case http.StatusTooManyRequests:
		return model.KindRateLimited
	case http.StatusNotFound, http.StatusGone:
		return model.KindNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return model.KindTimeout
	default:
		return model.KindInternal
	}
}

func awsKind(code string) model.ErrorKind {
	switch code {
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation",
		"UnrecognizedClientException", "InvalidClientTokenId", "ExpiredToken",
		"ExpiredTokenException", "AuthFailure", "SignatureDoesNotMatch":
		return model.KindUnauthorized
	case "Throttling", "ThrottlingException", "RequestLimitExceeded",
		"TooManyRequestsException", "LimitExceededException", "SlowDown":
		return model.KindRateLimited
	case "NoSuchEntity", "NotFoundException", "ResourceNotFoundException",
		"NoSuchBucket", "DBInstanceNotFound", "DataUnavailableException":
		return model.KindNotFound
	case "RequestTimeout", "RequestTimeoutException":
		return model.KindTimeout
	default:
		return model.KindInternal
	}
}
