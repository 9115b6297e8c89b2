package object

// NullType is the null value. The single instance Null is shared.
type NullType struct{}

// Null is the shared null value.
var Null = &NullType{}

func (n *NullType) Type() Type {
	return NULL
}

func (n *NullType) Inspect() string {
	return "null"
}

func (n *NullType) Truthy() bool {
	return false
}

func (n *NullType) Equals(other Value) bool {
	_, ok := other.(*NullType)
	return ok
}
