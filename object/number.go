package object

import (
	"math"
	"strconv"
)

// Number is an IEEE 754 double-precision numeric value.
type Number struct {
	value float64
}

// NewNumber returns a new Number value.
func NewNumber(v float64) *Number {
	return &Number{value: v}
}

// Value returns the underlying float64.
func (n *Number) Value() float64 {
	return n.value
}

func (n *Number) Type() Type {
	return NUMBER
}

func (n *Number) Inspect() string {
	return strconv.FormatFloat(n.value, 'f', -1, 64)
}

func (n *Number) Truthy() bool {
	return false
}

// Equals tolerates the usual floating-point wobble: two numbers within
// one machine epsilon compare equal. The optimizer folds constant
// comparisons with the same rule.
func (n *Number) Equals(other Value) bool {
	o, ok := other.(*Number)
	if !ok {
		return false
	}
	return math.Abs(n.value-o.value) < epsilon
}

const epsilon = 2.220446049250313e-16
