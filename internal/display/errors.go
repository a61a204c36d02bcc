package display

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes display coordination failures.
type ErrorCode string

const (
	// CodeDataUnavailable means there was no payload to render. The prior
	// display stays intact or a placeholder is shown; never fatal.
	CodeDataUnavailable ErrorCode = "DATA_UNAVAILABLE"

	// CodeRenderFailure means the renderer failed for one item. Isolated
	// to that item; an inline error marker is substituted.
	CodeRenderFailure ErrorCode = "RENDER_FAILURE"

	// CodeLockTimeout means the render lock was held past its watchdog
	// and had to be force-released.
	CodeLockTimeout ErrorCode = "LOCK_TIMEOUT"

	// CodeInvalidPayload means a payload failed validation at the
	// scheduler boundary.
	CodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"

	// CodeCleanupFailed means background maintenance gave up after
	// repeated failures and requires a manual reset.
	CodeCleanupFailed ErrorCode = "CLEANUP_FAILED"
)

// Error is a coded display failure with the item it was scoped to, if any.
type Error struct {
	Code    ErrorCode
	Message string
	Item    string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: %s (item=%s)", e.Code, e.Message, e.Item)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// IsCode reports whether err is a display Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
