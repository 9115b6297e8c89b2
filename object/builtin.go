package object

import "fmt"

// Builtin is a native function implemented in Go and dispatched by name
// through the VM's builtin registry.
type Builtin struct {
	// Name the builtin is registered under.
	Name string

	// Fn is the native implementation.
	Fn BuiltinFunc
}

// NewBuiltin returns a new Builtin value.
func NewBuiltin(name string, fn BuiltinFunc) *Builtin {
	return &Builtin{Name: name, Fn: fn}
}

func (b *Builtin) Type() Type {
	return BUILTIN
}

func (b *Builtin) Inspect() string {
	return fmt.Sprintf("<builtin %s>", b.Name)
}

func (b *Builtin) Truthy() bool {
	return false
}

func (b *Builtin) Equals(other Value) bool {
	o, ok := other.(*Builtin)
	if !ok {
		return false
	}
	return b.Name == o.Name
}
