package object

import "fmt"

// Function is a reference to a compiled function: where its body starts in
// the instruction stream and how many stack slots a call frame needs. The
// compiler stores Functions in the constant pool; the VM reads them when
// executing Call.
type Function struct {
	// Name is the declared function name.
	Name string

	// Arity is the number of declared parameters.
	Arity int

	// BytecodeOffset is the instruction offset of the function body.
	BytecodeOffset int

	// LocalCount is the total number of local slots the function needs,
	// parameters included.
	LocalCount int
}

func (f *Function) Type() Type {
	return FUNCTION
}

func (f *Function) Inspect() string {
	return fmt.Sprintf("<fn %s/%d>", f.Name, f.Arity)
}

func (f *Function) Truthy() bool {
	return false
}

func (f *Function) Equals(other Value) bool {
	o, ok := other.(*Function)
	if !ok {
		return false
	}
	return f == o
}
