package errz

import (
	"fmt"

	"github.com/atlas-lang/atlas/token"
)

// DiagnosticKind categorizes a compile-time diagnostic.
type DiagnosticKind int

const (
	// Redeclaration indicates a name declared twice in the same scope.
	Redeclaration DiagnosticKind = iota
	// ImmutableAssignment indicates an assignment to a binding declared
	// with let.
	ImmutableAssignment
	// TooManyConstants indicates the constant pool exceeded the u16
	// index space.
	TooManyConstants
	// TooManyLocals indicates a scope exceeded the u16 slot index space.
	TooManyLocals
	// TooManyArguments indicates a call with more arguments than the
	// one-byte argc operand can carry.
	TooManyArguments
	// JumpTooLarge indicates a jump distance outside the i16 operand
	// range.
	JumpTooLarge
	// Internal indicates a compiler inconsistency. Reported as a
	// diagnostic instead of panicking.
	Internal
)

func (k DiagnosticKind) String() string {
	switch k {
	case Redeclaration:
		return "redeclaration"
	case ImmutableAssignment:
		return "immutable assignment"
	case TooManyConstants:
		return "too many constants"
	case TooManyLocals:
		return "too many locals"
	case TooManyArguments:
		return "too many arguments"
	case JumpTooLarge:
		return "jump too large"
	case Internal:
		return "internal"
	default:
		return "compile error"
	}
}

// Diagnostic is a single compile-time problem. The compiler accumulates
// diagnostics rather than stopping at the first one.
type Diagnostic struct {
	Kind    DiagnosticKind
	Message string
	Span    token.Span
	Notes   []string
}

// NewDiagnostic returns a diagnostic of the given kind.
func NewDiagnostic(kind DiagnosticKind, span token.Span, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	}
}

// WithNote attaches an explanatory note and returns the diagnostic.
func (d *Diagnostic) WithNote(format string, args ...any) *Diagnostic {
	d.Notes = append(d.Notes, fmt.Sprintf(format, args...))
	return d
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if d.Span.IsZero() {
		return fmt.Sprintf("compile error: %s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("compile error: %s: %s (%s)", d.Kind, d.Message, d.Span)
}

// Is supports errors.Is matching on another Diagnostic of the same kind.
func (d *Diagnostic) Is(target error) bool {
	t, ok := target.(*Diagnostic)
	if !ok {
		return false
	}
	return d.Kind == t.Kind
}
