package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStrictTruthiness(t *testing.T) {
	require.True(t, True.Truthy())
	require.False(t, False.Truthy())

	// Everything that is not the boolean true is falsy, including values
	// most dynamic languages treat as truthy.
	require.False(t, NewNumber(1).Truthy())
	require.False(t, NewNumber(-1).Truthy())
	require.False(t, NewString("nonempty").Truthy())
	require.False(t, Null.Truthy())
	require.False(t, NewArray([]Value{NewNumber(1)}).Truthy())
	require.False(t, (&Function{Name: "f"}).Truthy())
}

func TestNumberInspect(t *testing.T) {
	require.Equal(t, "5", NewNumber(5).Inspect())
	require.Equal(t, "2.5", NewNumber(2.5).Inspect())
	require.Equal(t, "-0.125", NewNumber(-0.125).Inspect())
}

func TestArrayReferenceSemantics(t *testing.T) {
	a := NewArray([]Value{NewNumber(1)})
	b := a

	a.Append(NewNumber(2))
	require.Equal(t, 2, b.Len())

	// Same storage: identical.
	require.True(t, a.Equals(b))

	// Structurally equal but distinct storage: not equal.
	fresh := NewArray([]Value{NewNumber(1), NewNumber(2)})
	require.False(t, a.Equals(fresh))
}

func TestArrayMutation(t *testing.T) {
	a := NewArray([]Value{NewNumber(1), NewNumber(2)})
	a.Set(0, NewString("x"))
	require.Equal(t, `[x, 2]`, a.Inspect())

	v, ok := a.PopLast()
	require.True(t, ok)
	require.True(t, v.Equals(NewNumber(2)))
	require.Equal(t, 1, a.Len())
}

func TestScalarEquality(t *testing.T) {
	require.True(t, NewNumber(3).Equals(NewNumber(3)))
	require.False(t, NewNumber(3).Equals(NewNumber(4)))
	require.False(t, NewNumber(3).Equals(NewString("3")))
	require.True(t, NewString("a").Equals(NewString("a")))
	require.True(t, Null.Equals(&NullType{}))
	require.True(t, NewBool(true).Equals(True))
}

func TestSharedBools(t *testing.T) {
	require.Same(t, True, NewBool(true))
	require.Same(t, False, NewBool(false))
}
