package object

// Bool is a boolean value. The two instances True and False are shared;
// use NewBool to select one.
type Bool struct {
	value bool
}

var (
	True  = &Bool{value: true}
	False = &Bool{value: false}
)

// NewBool returns the shared Bool for the given value.
func NewBool(v bool) *Bool {
	if v {
		return True
	}
	return False
}

// Value returns the underlying bool.
func (b *Bool) Value() bool {
	return b.value
}

func (b *Bool) Type() Type {
	return BOOL
}

func (b *Bool) Inspect() string {
	if b.value {
		return "true"
	}
	return "false"
}

func (b *Bool) Truthy() bool {
	return b.value
}

func (b *Bool) Equals(other Value) bool {
	o, ok := other.(*Bool)
	if !ok {
		return false
	}
	return b.value == o.value
}
