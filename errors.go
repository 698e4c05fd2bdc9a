// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
)

// ErrorKind classifies an EosError
type ErrorKind int

const (
	// KindTransport means the connection failed, timed out or the endpoint
	// returned a non-success status. Device state for in-flight commands is unknown.
	KindTransport ErrorKind = iota + 1

	// KindAuthorization means the privilege check failed before any
	// configuration command was sent
	KindAuthorization

	// KindCommand means the device rejected a command
	KindCommand

	// KindDecode means the device response could not be parsed
	KindDecode

	// KindUnsupported means the requested behavior is unavailable on this
	// device or transport (for example replace without configuration sessions)
	KindUnsupported
)

// String returns the string representation of an ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuthorization:
		return "authorization"
	case KindCommand:
		return "command rejected"
	case KindDecode:
		return "decode"
	case KindUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Sentinel errors matched by errors.Is against an *EosError of the same kind
var (
	ErrTransport       = errors.New("eos: transport error")
	ErrAuthorization   = errors.New("eos: configuration operations require privilege escalation")
	ErrCommandRejected = errors.New("eos: command rejected by device")
	ErrDecode          = errors.New("eos: unable to decode device response")
	ErrUnsupported     = errors.New("eos: operation not supported")
)

// EosError represents a structured device error with operation context
type EosError struct {
	// Operation name that failed (RunCommands, LoadConfig, ...)
	Operation string

	// Kind classifies the failure
	Kind ErrorKind

	// Human-readable error message (device message where available)
	Message string

	// InternalMsg contains detailed error information for internal logging
	InternalMsg string

	// Code is the device-reported error code (eAPI) or gRPC status code (gNMI)
	Code int

	// Command is the offending command, if it could be identified
	Command string

	// Commands lists the commands that were attempted
	Commands []string

	// Session is the configuration session the failure occurred in, if any
	Session string

	// Retries is the number of retry attempts made (gNMI reads only)
	Retries int

	// Err is the underlying cause
	Err error
}

// Error implements the error interface
func (e *EosError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "eos: %s failed: %s", e.Operation, e.Message)
	if e.Command != "" {
		fmt.Fprintf(&b, " (command: %q)", e.Command)
	}
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code: %d)", e.Code)
	}
	if e.Retries > 0 {
		fmt.Fprintf(&b, " (retries: %d)", e.Retries)
	}
	return b.String()
}

// DetailedError returns the full error message including internal details
//
// This should only be used in secure logging contexts where sensitive information
// disclosure is acceptable (e.g., server-side logs, debug output).
func (e *EosError) DetailedError() string {
	if e.InternalMsg == "" && e.Session == "" {
		return e.Error()
	}
	details := make([]string, 0, 2)
	if e.InternalMsg != "" {
		details = append(details, "internal: "+e.InternalMsg)
	}
	if e.Session != "" {
		details = append(details, "session: "+e.Session)
	}
	return fmt.Sprintf("%s (%s)", e.Error(), strings.Join(details, ", "))
}

// Unwrap returns the underlying cause
func (e *EosError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the same kind
func (e *EosError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrAuthorization:
		return e.Kind == KindAuthorization
	case ErrCommandRejected:
		return e.Kind == KindCommand
	case ErrDecode:
		return e.Kind == KindDecode
	case ErrUnsupported:
		return e.Kind == KindUnsupported
	}
	return false
}

// withOperation returns a copy of err tagged with the public operation name.
// Errors that are not *EosError are wrapped as transport errors; each member
// of a joined error is tagged individually.
func withOperation(op string, err error) error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		tagged := make([]error, 0, len(errs))
		for _, e := range errs {
			tagged = append(tagged, withOperation(op, e))
		}
		return errors.Join(tagged...)
	}
	var eosErr *EosError
	if errors.As(err, &eosErr) {
		tagged := *eosErr
		tagged.Operation = op
		return &tagged
	}
	return &EosError{
		Operation: op,
		Kind:      KindTransport,
		Message:   err.Error(),
		Err:       err,
	}
}

// TransientErrors defines the list of gRPC status codes that trigger an
// automatic retry of gNMI read operations
//
// codes.Internal is excluded: it is a catch-all that covers many permanent
// failures. eAPI and CLI operations are never retried.
var TransientErrors = []codes.Code{
	codes.Unavailable,
	codes.ResourceExhausted,
	codes.DeadlineExceeded,
	codes.Aborted,
}
