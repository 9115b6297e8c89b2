// Package object defines the runtime values manipulated by the Atlas
// virtual machine.
//
// The value model is deliberately small: numbers, strings, booleans, null,
// arrays, and function references. Arrays have reference semantics: a value
// holds a pointer to shared element storage, mutation is visible through
// every alias, and equality between arrays is pointer identity rather than
// a deep comparison.
package object

import "context"

// Type identifies the runtime type of a Value.
type Type string

const (
	NUMBER   Type = "number"
	STRING   Type = "string"
	BOOL     Type = "bool"
	NULL     Type = "null"
	ARRAY    Type = "array"
	FUNCTION Type = "function"
	BUILTIN  Type = "builtin"
)

// Value is the interface implemented by all Atlas runtime values.
type Value interface {
	// Type returns the runtime type of the value.
	Type() Type

	// Inspect returns a display string for the value.
	Inspect() string

	// Truthy reports whether the value counts as true in a condition.
	// Truthiness is strict: only the boolean true is truthy. Numbers,
	// strings, arrays, and null are all falsy regardless of content.
	Truthy() bool

	// Equals reports whether the value equals another value. Arrays
	// compare by reference identity, never by contents.
	Equals(other Value) bool
}

// BuiltinFunc is the signature of a native function callable from Atlas
// code. The context carries the security policy and output writer for the
// current VM run.
type BuiltinFunc func(ctx context.Context, args ...Value) (Value, error)
