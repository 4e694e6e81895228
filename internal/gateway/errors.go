package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure for propagation policy decisions.
type Kind string

const (
	// KindTransport is a network-level failure with no HTTP response.
	KindTransport Kind = "transport"
	// KindNotFound is a 404: the entity was deleted or never existed.
	KindNotFound Kind = "not_found"
	// KindAuthExpired is a 401 that survived the single refresh attempt.
	KindAuthExpired Kind = "auth_expired"
	// KindValidation is a 400 rejection of the request payload.
	KindValidation Kind = "validation"
	// KindUnavailable is a 503 from a downstream generation service.
	KindUnavailable Kind = "unavailable"
	// KindShape is a response that did not match the expected structure.
	// Recoverable: callers fall back, they do not crash.
	KindShape Kind = "shape_mismatch"
	// KindServer covers remaining non-2xx statuses.
	KindServer Kind = "server"
)

// Error is a classified gateway failure.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("gateway: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("gateway: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrSessionExpired indicates the refresh flow failed and the session was
// invalidated. Surfaced once; callers stop retrying and route to login.
var ErrSessionExpired = errors.New("session expired")

// KindOf extracts the failure kind, defaulting to transport for plain
// network errors.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	if errors.Is(err, ErrSessionExpired) {
		return KindAuthExpired
	}
	return KindTransport
}

// IsNotFound reports whether the error is a 404 classification.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

func classifyStatus(status int) Kind {
	switch status {
	case 400:
		return KindValidation
	case 401:
		return KindAuthExpired
	case 404:
		return KindNotFound
	case 503:
		return KindUnavailable
	default:
		return KindServer
	}
}
