// Package errz defines the error types produced by the Atlas backend:
// compile-time diagnostics and runtime errors. The two taxonomies are
// disjoint. Diagnostics are accumulated so one compile reports every
// problem; runtime errors are fail-fast and halt execution.
package errz

import (
	"fmt"
	"strings"

	"github.com/atlas-lang/atlas/token"
)

// Kind categorizes a runtime error.
type Kind int

const (
	// TypeError indicates an operation applied to an unsupported type.
	TypeError Kind = iota
	// UndefinedVariable indicates a read of a global that was never set.
	UndefinedVariable
	// DivideByZero indicates division or modulo by zero.
	DivideByZero
	// OutOfBounds indicates an array index outside [0, len).
	OutOfBounds
	// InvalidNumericResult indicates an operation produced NaN or an
	// infinity.
	InvalidNumericResult
	// UnknownOpcode indicates the VM encountered an undefined opcode
	// byte. This is a VM self-check, not a user-facing condition.
	UnknownOpcode
	// StackUnderflow indicates a pop from an empty operand stack. This is
	// a VM self-check, not a user-facing condition.
	StackUnderflow
	// UnknownFunction indicates a call to a name that resolves to
	// neither a function nor a builtin.
	UnknownFunction
	// InvalidArgument indicates a builtin received an argument of the
	// wrong type or an incorrect argument count.
	InvalidArgument
	// InvalidIndex indicates a non-numeric array index.
	InvalidIndex
	// FilesystemPermissionDenied indicates the security policy denied a
	// filesystem operation.
	FilesystemPermissionDenied
	// NetworkPermissionDenied indicates the security policy denied a
	// network operation.
	NetworkPermissionDenied
	// ProcessPermissionDenied indicates the security policy denied
	// spawning a process.
	ProcessPermissionDenied
	// EnvironmentPermissionDenied indicates the security policy denied
	// environment variable access.
	EnvironmentPermissionDenied
	// IoError indicates a failed I/O operation.
	IoError
	// UnhashableType indicates a value that cannot be used as a hash key.
	UnhashableType
)

// String returns the name of the error kind.
func (k Kind) String() string {
	switch k {
	case TypeError:
		return "type error"
	case UndefinedVariable:
		return "undefined variable"
	case DivideByZero:
		return "division by zero"
	case OutOfBounds:
		return "index out of bounds"
	case InvalidNumericResult:
		return "invalid numeric result"
	case UnknownOpcode:
		return "unknown opcode"
	case StackUnderflow:
		return "stack underflow"
	case UnknownFunction:
		return "unknown function"
	case InvalidArgument:
		return "invalid argument"
	case InvalidIndex:
		return "invalid index"
	case FilesystemPermissionDenied:
		return "filesystem permission denied"
	case NetworkPermissionDenied:
		return "network permission denied"
	case ProcessPermissionDenied:
		return "process permission denied"
	case EnvironmentPermissionDenied:
		return "environment permission denied"
	case IoError:
		return "io error"
	case UnhashableType:
		return "unhashable type"
	default:
		return "runtime error"
	}
}

// Frame is one entry of the call stack captured when a runtime error is
// raised.
type Frame struct {
	Function string
	Span     token.Span
}

func (f Frame) String() string {
	return fmt.Sprintf("at %s (%s)", f.Function, f.Span)
}

// RuntimeError is an error raised during VM execution. It carries the
// source span of the offending instruction and the call stack at the time
// of the failure so surrounding tooling can render a precise diagnostic.
type RuntimeError struct {
	Kind    Kind
	Message string
	Span    token.Span
	Frames  []Frame
	Cause   error
}

// NewRuntimeError returns a runtime error of the given kind.
func NewRuntimeError(kind Kind, span token.Span, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	}
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Span.IsZero() {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Span)
}

// Unwrap returns the underlying cause, if any.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is matching on another RuntimeError of the same kind.
func (e *RuntimeError) Is(target error) bool {
	t, ok := target.(*RuntimeError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// StackTrace formats the captured call stack, innermost frame first.
func (e *RuntimeError) StackTrace() string {
	if len(e.Frames) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("stack trace:\n")
	for _, f := range e.Frames {
		b.WriteString("  ")
		b.WriteString(f.String())
		b.WriteString("\n")
	}
	return b.String()
}
