package utils

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind classifies failures raised by the engine
type ErrorKind int

const (
	// ContractViolation is a host-side precondition failure caught before any driver call
	ContractViolation ErrorKind = iota + 1
	// DriverFailure is a non-success status returned by the compute driver
	DriverFailure
	// DeviceFallback marks a recoverable substitution (never returned as fatal)
	DeviceFallback
)

func (k ErrorKind) String() string {
	switch k {
	case ContractViolation:
		return "contract violation"
	case DriverFailure:
		return "driver failure"
	case DeviceFallback:
		return "device fallback"
	default:
		return "unknown"
	}
}

// Error carries the kind, the call site and, for driver failures, the status code.
// Build failures additionally carry the build log and the generated source.
type Error struct {
	Kind     ErrorKind
	Op       string // call site, e.g. "Kernel.Setup" or "clBuildProgram"
	Status   int
	Msg      string
	BuildLog string
	Source   string
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.Kind == DriverFailure {
		sb.WriteString(fmt.Sprintf(" (status %d)", e.Status))
	}
	return sb.String()
}

// Contract returns a ContractViolation raised at op
func Contract(op, format string, args ...interface{}) error {
	return errors.WithStack(&Error{
		Kind: ContractViolation,
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
	})
}

// Driver returns a DriverFailure raised at op with the given status
func Driver(op string, status int, format string, args ...interface{}) error {
	return errors.WithStack(&Error{
		Kind:   DriverFailure,
		Op:     op,
		Status: status,
		Msg:    fmt.Sprintf(format, args...),
	})
}

// BuildFailure returns a DriverFailure that keeps the build log and source for diagnostics
func BuildFailure(op string, status int, buildLog, source string) error {
	return errors.WithStack(&Error{
		Kind:     DriverFailure,
		Op:       op,
		Status:   status,
		Msg:      "program build failed",
		BuildLog: buildLog,
		Source:   source,
	})
}

// AsError extracts the typed error from a wrapped chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of a typed error, 0 for anything else
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return 0
}

// StatusOf returns the driver status of a typed error, 0 for anything else
func StatusOf(err error) int {
	if e, ok := AsError(err); ok {
		return e.Status
	}
	return 0
}

// Fallback records a recoverable substitution made at op
func Fallback(op, format string, args ...interface{}) error {
	return errors.WithStack(&Error{
		Kind: DeviceFallback,
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
	})
}
