package object

// String is an immutable string value.
type String struct {
	value string
}

// NewString returns a new String value.
func NewString(v string) *String {
	return &String{value: v}
}

// Value returns the underlying Go string.
func (s *String) Value() string {
	return s.value
}

func (s *String) Type() Type {
	return STRING
}

func (s *String) Inspect() string {
	return s.value
}

func (s *String) Truthy() bool {
	return false
}

func (s *String) Equals(other Value) bool {
	o, ok := other.(*String)
	if !ok {
		return false
	}
	return s.value == o.value
}
