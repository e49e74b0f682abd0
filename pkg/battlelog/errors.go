package battlelog

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrBlocked is returned on HTTP 403, which Battlelog uses to signal
	// an IP or account block. The whole run must stop when it appears.
	ErrBlocked = errors.New("access forbidden (likely IP or account block)")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassBlocked represents a 403 IP/account block.
	ErrorClassBlocked ErrorClass = "blocked"

	// ErrorClassNetwork represents connection-level transport errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassGateway represents 504 gateway timeouts.
	ErrorClassGateway ErrorClass = "gateway"

	// ErrorClassRateLimit represents unexpected statuses on report fetches,
	// which Battlelog uses as a soft throttle signal.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassDecode represents a response that lacked an expected field.
	ErrorClassDecode ErrorClass = "decode"
)

// Error is a Battlelog-specific error with request context attached.
type Error struct {
	StatusCode int
	Class      ErrorClass
	Endpoint   string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("battlelog %s error (status %d) on %s: %v",
			e.Class, e.StatusCode, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("battlelog %s error on %s: %v", e.Class, e.Endpoint, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsBlocked reports whether err is a 403 block from Battlelog.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}
