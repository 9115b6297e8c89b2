package object

import "strings"

// Array is a growable sequence of values with reference semantics. Copying
// an Array value copies the pointer, so mutation through one alias is
// visible through all of them. Equality between arrays is reference
// identity, never element comparison; downstream cache and dedup logic
// depends on this.
type Array struct {
	elements []Value
}

// NewArray returns a new Array holding the given elements. The slice is
// owned by the array afterwards.
func NewArray(elements []Value) *Array {
	return &Array{elements: elements}
}

// Elements returns the backing element slice.
func (a *Array) Elements() []Value {
	return a.elements
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.elements)
}

// Get returns the element at index i. The caller is responsible for bounds
// checking.
func (a *Array) Get(i int) Value {
	return a.elements[i]
}

// Set replaces the element at index i. The caller is responsible for
// bounds checking.
func (a *Array) Set(i int, v Value) {
	a.elements[i] = v
}

// Append adds a value to the end of the array.
func (a *Array) Append(v Value) {
	a.elements = append(a.elements, v)
}

// PopLast removes and returns the final element, or false if empty.
func (a *Array) PopLast() (Value, bool) {
	if len(a.elements) == 0 {
		return nil, false
	}
	last := a.elements[len(a.elements)-1]
	a.elements = a.elements[:len(a.elements)-1]
	return last, true
}

func (a *Array) Type() Type {
	return ARRAY
}

func (a *Array) Inspect() string {
	var b strings.Builder
	b.WriteString("[")
	for i, el := range a.elements {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(el.Inspect())
	}
	b.WriteString("]")
	return b.String()
}

func (a *Array) Truthy() bool {
	return false
}

func (a *Array) Equals(other Value) bool {
	o, ok := other.(*Array)
	if !ok {
		return false
	}
	return a == o
}
