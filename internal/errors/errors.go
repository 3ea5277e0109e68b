// Package errors provides the error kinds shared by every ledupdater component.
//
// Every fallible step returns an error that wraps exactly one base kind, so
// front ends can show a short category next to the message and scripts can
// branch on it.
//
// # Error Kinds
//
// Base errors (sentinel errors):
//   - ErrNetwork - transport failure talking to GitHub
//   - ErrHTTPStatus - server answered with a non-2xx status
//   - ErrIO - local file I/O error
//   - ErrArchive - archive could not be read or extracted
//   - ErrProcess - external tool failed to start or exited non-zero
//   - ErrInvalid - bad input or malformed data
//   - ErrNotFound - release, layout or file not found
//   - ErrCanceled - the user canceled the operation
//   - ErrUnsupported - operation not available on this host
//
// Wrapped error types (add context):
//   - OpError{Op, Kind, Target, Err} - a step that failed on a URL or path
//   - ProcessError{Op, Cmd, ExitCode, Err} - external command failures
//   - ConfigError{Path, Err} - configuration errors
//
// # Usage
//
//	// Attach a kind and a target to a low level error
//	return errors.E("download", errors.ErrNetwork, url, err)
//
//	// Check the kind
//	if errors.IsHTTPStatus(err) {
//	    // server said no
//	}
//
//	// Show it
//	fmt.Printf("[%s] %v\n", errors.Kind(err), err)
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Base error types (sentinel errors).
var (
	// ErrNetwork indicates the request never got a response.
	ErrNetwork = baseError("network error")

	// ErrHTTPStatus indicates the server answered with a non-2xx status.
	ErrHTTPStatus = baseError("unexpected HTTP status")

	// ErrIO indicates a file I/O error.
	ErrIO = baseError("I/O error")

	// ErrArchive indicates a corrupt or unsafe archive.
	ErrArchive = baseError("archive error")

	// ErrProcess indicates an external process failed.
	ErrProcess = baseError("process failed")

	// ErrInvalid indicates validation failed.
	ErrInvalid = baseError("invalid")

	// ErrNotFound indicates a resource was not found.
	ErrNotFound = baseError("not found")

	// ErrCanceled indicates the user canceled an operation.
	ErrCanceled = baseError("canceled")

	// ErrUnsupported indicates the operation is not available on this platform.
	ErrUnsupported = baseError("unsupported")
)

// kinds in the order Kind checks them.
var kinds = []baseError{
	ErrCanceled,
	ErrHTTPStatus,
	ErrNetwork,
	ErrArchive,
	ErrProcess,
	ErrIO,
	ErrInvalid,
	ErrNotFound,
	ErrUnsupported,
}

// baseError is a string that implements error.
type baseError string

func (e baseError) Error() string { return string(e) }

// OpError is a failed step with its kind and the URL or path it worked on.
type OpError struct {
	// Op is the step being performed (e.g., "download", "unpack", "fetch releases").
	Op string
	// Kind is one of the base errors.
	Kind error
	// Target is the URL or path involved (optional).
	Target string
	// Err is the underlying error (optional).
	Err error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Target != "" {
		fmt.Fprintf(&b, " %s", e.Target)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(e.Kind.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// E builds an OpError. A context cancellation cause overrides kind.
func E(op string, kind error, target string, err error) error {
	if err != nil && errors.Is(err, context.Canceled) {
		kind = ErrCanceled
	}
	return &OpError{Op: op, Kind: kind, Target: target, Err: err}
}

// StatusError reports a non-2xx HTTP response.
func StatusError(op, target string, code int) error {
	return &OpError{
		Op:     op,
		Kind:   ErrHTTPStatus,
		Target: target,
		Err:    fmt.Errorf("%w %d", ErrHTTPStatus, code),
	}
}

// ProcessError represents an external command that failed.
type ProcessError struct {
	// Op is the step that ran the command (e.g., "flash", "install driver").
	Op string
	// Cmd is the command line that was executed (optional).
	Cmd string
	// ExitCode is the process exit status, -1 if it never ran.
	ExitCode int
	// Err is the underlying error (optional).
	Err error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("%s: exit code %d", e.Op, e.ExitCode)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	if e.Cmd != "" {
		msg += "\n  cmd: " + e.Cmd
	}
	return msg
}

func (e *ProcessError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProcess}
	}
	return []error{ErrProcess, e.Err}
}

// ConfigError represents an error related to configuration.
type ConfigError struct {
	// Path is the configuration file path (optional).
	Path string
	// Err is the underlying error.
	Err error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %s", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Kind returns the short name of the first base kind err wraps, or "error".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ErrCanceled.Error()
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "error"
}

// IsNetwork reports whether err is or wraps ErrNetwork.
func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }

// IsHTTPStatus reports whether err is or wraps ErrHTTPStatus.
func IsHTTPStatus(err error) bool { return errors.Is(err, ErrHTTPStatus) }

// IsIO reports whether err is or wraps ErrIO.
func IsIO(err error) bool { return errors.Is(err, ErrIO) }

// IsArchive reports whether err is or wraps ErrArchive.
func IsArchive(err error) bool { return errors.Is(err, ErrArchive) }

// IsProcess reports whether err is or wraps ErrProcess.
func IsProcess(err error) bool { return errors.Is(err, ErrProcess) }

// IsInvalid reports whether err is or wraps ErrInvalid.
func IsInvalid(err error) bool { return errors.Is(err, ErrInvalid) }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsCanceled reports whether err is or wraps ErrCanceled or context.Canceled.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsUnsupported reports whether err is or wraps ErrUnsupported.
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }

// AsOpError extracts an OpError from err.
func AsOpError(err error) (*OpError, bool) {
	var oe *OpError
	ok := errors.As(err, &oe)
	return oe, ok
}

// AsProcessError extracts a ProcessError from err.
func AsProcessError(err error) (*ProcessError, bool) {
	var pe *ProcessError
	ok := errors.As(err, &pe)
	return pe, ok
}

// AsConfigError extracts a ConfigError from err.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	ok := errors.As(err, &ce)
	return ce, ok
}
