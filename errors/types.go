package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Build pipeline errors
	ErrCodeBuildFailed    ErrorCode = "BUILD_FAILED"
	ErrCodeBuildCancelled ErrorCode = "BUILD_CANCELLED"

	// Hub connection errors
	ErrCodeConnectFailed   ErrorCode = "CONNECT_FAILED"
	ErrCodeEndpointInvalid ErrorCode = "ENDPOINT_INVALID"
	ErrCodeNotConnected    ErrorCode = "NOT_CONNECTED"
	ErrCodeDisposed        ErrorCode = "DISPOSED"

	// Notification ledger errors
	ErrCodeLedgerPersist ErrorCode = "LEDGER_PERSIST"
	ErrCodeLedgerLoad    ErrorCode = "LEDGER_LOAD"

	// Daemon errors
	ErrCodeDaemonUnavailable ErrorCode = "DAEMON_UNAVAILABLE"

	// General errors
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
)

// PeerError represents a structured error with context
type PeerError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *PeerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *PeerError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *PeerError) WithDetail(key string, value interface{}) *PeerError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *PeerError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new PeerError
func New(code ErrorCode, message string) *PeerError {
	return &PeerError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a PeerError
func Wrap(err error, code ErrorCode, message string) *PeerError {
	return &PeerError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific PeerError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	peerErr, ok := err.(*PeerError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return peerErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	peerErr, ok := err.(*PeerError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return peerErr.Code
}

// As finds the first PeerError in err's chain and stores it in target.
func As(err error, target **PeerError) bool {
	for err != nil {
		if peerErr, ok := err.(*PeerError); ok {
			*target = peerErr
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
