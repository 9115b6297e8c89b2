package bytecode

import (
	"testing"

	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
	"github.com/atlas-lang/atlas/token"
	"github.com/stretchr/testify/require"
)

func TestEmit(t *testing.T) {
	b := New()
	b.Emit(op.Constant, token.NewSpan(0, 2))
	b.EmitU16(7)
	b.Emit(op.Halt, token.NewSpan(2, 3))

	require.Equal(t, []byte{byte(op.Constant), 0x00, 0x07, byte(op.Halt)}, b.Instructions)
	require.Equal(t, 4, b.CurrentOffset())
	require.Equal(t, uint16(7), b.ReadU16(1))
}

func TestEmitI16(t *testing.T) {
	b := New()
	b.Emit(op.Loop, token.Span{})
	b.EmitI16(-7)
	require.Equal(t, int16(-7), b.ReadI16(1))
}

func TestAddConstant(t *testing.T) {
	b := New()
	require.Equal(t, uint16(0), b.AddConstant(object.NewNumber(1)))
	require.Equal(t, uint16(1), b.AddConstant(object.NewString("x")))
	require.Len(t, b.Constants, 2)
}

func TestPatchJump(t *testing.T) {
	b := New()
	jumpPos := b.CurrentOffset()
	b.Emit(op.JumpIfFalse, token.Span{})
	b.EmitI16(0x7FFF) // placeholder
	b.Emit(op.Pop, token.Span{})
	b.Emit(op.Null, token.Span{})
	b.PatchJump(jumpPos)

	// Offsets are measured from the position after the operand: two
	// one-byte instructions follow the jump.
	require.Equal(t, int16(2), b.ReadI16(jumpPos+1))
}

func TestSpanAt(t *testing.T) {
	b := New()
	b.Emit(op.Constant, token.NewSpan(0, 2))
	b.EmitU16(0)
	b.Emit(op.Negate, token.NewSpan(0, 3))
	b.Emit(op.Halt, token.Span{})

	require.Equal(t, token.NewSpan(0, 2), b.SpanAt(0))
	require.Equal(t, token.NewSpan(0, 3), b.SpanAt(3))
	require.True(t, b.SpanAt(1).IsZero()) // operand byte, no entry
	require.True(t, b.SpanAt(99).IsZero())
}

func TestMarshalRoundTrip(t *testing.T) {
	b := New()
	b.AddConstant(object.NewNumber(2.5))
	b.AddConstant(object.NewString("hello"))
	b.AddConstant(object.NewBool(true))
	b.AddConstant(object.Null)
	b.AddConstant(&object.Function{
		Name:           "f",
		Arity:          2,
		BytecodeOffset: 10,
		LocalCount:     3,
	})
	b.Emit(op.Constant, token.NewSpan(0, 3))
	b.EmitU16(0)
	b.Emit(op.Halt, token.NewSpan(3, 4))

	data, err := b.MarshalBinary(true)
	require.NoError(t, err)

	got, err := UnmarshalBinary(data)
	require.NoError(t, err)
	require.Equal(t, b.Instructions, got.Instructions)
	require.Equal(t, b.DebugInfo, got.DebugInfo)
	require.Len(t, got.Constants, 5)
	require.InEpsilon(t, 2.5, got.Constants[0].(*object.Number).Value(), 1e-12)
	require.Equal(t, "hello", got.Constants[1].(*object.String).Value())
	require.True(t, got.Constants[2].(*object.Bool).Value())
	require.Equal(t, object.NULL, got.Constants[3].Type())
	fn := got.Constants[4].(*object.Function)
	require.Equal(t, "f", fn.Name)
	require.Equal(t, 2, fn.Arity)
	require.Equal(t, 10, fn.BytecodeOffset)
	require.Equal(t, 3, fn.LocalCount)
}

func TestMarshalWithoutDebugInfo(t *testing.T) {
	b := New()
	b.Emit(op.Halt, token.NewSpan(0, 1))

	data, err := b.MarshalBinary(false)
	require.NoError(t, err)

	got, err := UnmarshalBinary(data)
	require.NoError(t, err)
	require.Equal(t, b.Instructions, got.Instructions)
	require.Empty(t, got.DebugInfo)
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := UnmarshalBinary([]byte("XYZ"))
	require.Error(t, err)

	_, err = UnmarshalBinary([]byte{'B', 'A', 'D', 0, 0, 1, 0})
	require.ErrorContains(t, err, "bad magic")

	// Valid magic, unsupported version.
	_, err = UnmarshalBinary([]byte{'A', 'T', 'B', 0, 0, 99, 0})
	require.ErrorContains(t, err, "unsupported version")
}

func TestUnmarshalRejectsOversizedLengths(t *testing.T) {
	// Header declaring zero constants and a 4 GiB instruction stream
	// with no bytes behind it. The decoder must reject the length up
	// front instead of allocating for it.
	// Magic, version, flags, zero constants, instruction length 0xFFFFFFFF.
	data := []byte{
		'A', 'T', 'B', 0,
		0x00, 0x01,
		0x00,
		0x00, 0x00, 0x00, 0x00,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	_, err := UnmarshalBinary(data)
	require.ErrorContains(t, err, "truncated instructions")

	// Same trick on a string constant's length prefix: one constant with
	// the string tag and length 0xFFFFFFFF.
	data = []byte{
		'A', 'T', 'B', 0,
		0x00, 0x01,
		0x00,
		0x00, 0x00, 0x00, 0x01,
		1,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	_, err = UnmarshalBinary(data)
	require.ErrorContains(t, err, "string constant")
}
