package errors

import "errors"

// Code identifies a structured error type used across the application.
type Code string

const (
	// Generic codes
	CodeUnknown Code = "unknown"

	// Environment and configuration errors
	CodeEnvMissing         Code = "env_missing"
	CodeConfigurationError Code = "configuration_error"

	// Process errors
	CodeExecutableNotFound Code = "executable_not_found"
	CodeSpawnFailed        Code = "spawn_failed"

	// Download errors
	CodeHTTPStatus          Code = "http_status"
	CodeAlreadyExists       Code = "already_exists"
	CodeDownloadInterrupted Code = "download_interrupted"
	CodeIO                  Code = "io"
)

// Error represents a structured error with a machine-readable code plus message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// New wraps an error with a code/message.
func New(code Code, msg string, err error) Error {
	return Error{Code: code, Message: msg, Err: err}
}

// EnvMissing reports an unset environment variable the current step depends on.
func EnvMissing(name string) Error {
	return Error{Code: CodeEnvMissing, Message: "environment variable " + name + " is not set"}
}

// CodeOf walks the error chain and returns the first structured code found.
func CodeOf(err error) Code {
	var structured Error
	if errors.As(err, &structured) {
		return structured.Code
	}
	return CodeUnknown
}

// IsCode reports whether the error (or its unwrap chain) matches the provided code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
