package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
	"github.com/atlas-lang/atlas/token"
)

func TestValidateAcceptsWellFormedBytecode(t *testing.T) {
	b := New()
	a := b.AddConstant(object.NewNumber(3))
	c := b.AddConstant(object.NewNumber(4))
	b.Emit(op.Constant, token.Span{})
	b.EmitU16(a)
	b.Emit(op.Constant, token.Span{})
	b.EmitU16(c)
	b.Emit(op.Add, token.Span{})
	b.Emit(op.Halt, token.Span{})

	require.NoError(t, Validate(b))
}

func TestValidateRejectsUnknownOpcode(t *testing.T) {
	b := &Bytecode{Instructions: []byte{0xEE, byte(op.Halt)}}
	err := Validate(b)
	require.ErrorContains(t, err, "unknown opcode 0xEE")
}

func TestValidateRejectsTruncatedOperand(t *testing.T) {
	// A Constant opcode with no operand bytes behind it.
	b := &Bytecode{Instructions: []byte{byte(op.Constant)}}
	err := Validate(b)
	require.ErrorContains(t, err, "truncated CONSTANT operand")

	// A jump with only one of its two operand bytes.
	b = &Bytecode{Instructions: []byte{byte(op.Jump), 0x00}}
	err = Validate(b)
	require.ErrorContains(t, err, "truncated JUMP operand")
}

func TestValidateRejectsJumpOutOfBounds(t *testing.T) {
	b := New()
	b.Emit(op.Jump, token.Span{})
	b.EmitI16(100)
	b.Emit(op.Halt, token.Span{})

	err := Validate(b)
	require.ErrorContains(t, err, "jump target 103 outside instructions")
}

func TestValidateRejectsMisalignedJump(t *testing.T) {
	// The jump lands in the middle of the Constant's operand.
	b := New()
	idx := b.AddConstant(object.NewNumber(1))
	b.Emit(op.Jump, token.Span{})
	b.EmitI16(1)
	b.Emit(op.Constant, token.Span{})
	b.EmitU16(idx)
	b.Emit(op.Halt, token.Span{})

	err := Validate(b)
	require.ErrorContains(t, err, "not an instruction boundary")
}

func TestValidateRejectsConstantIndexOutOfRange(t *testing.T) {
	b := New()
	b.Emit(op.Constant, token.Span{})
	b.EmitU16(5)
	b.Emit(op.Pop, token.Span{})
	b.Emit(op.Halt, token.Span{})

	err := Validate(b)
	require.ErrorContains(t, err, "constant index 5 out of range for pool of 0")
}

func TestValidateRejectsStackUnderflow(t *testing.T) {
	b := New()
	b.Emit(op.Add, token.Span{})
	b.Emit(op.Halt, token.Span{})

	err := Validate(b)
	require.ErrorContains(t, err, "ADD would underflow a stack of depth 0")
}

func TestValidateRejectsMissingTerminator(t *testing.T) {
	b := New()
	err := Validate(b)
	require.ErrorContains(t, err, "missing Halt or Return terminator")

	b.Emit(op.True, token.Span{})
	b.Emit(op.Pop, token.Span{})
	err = Validate(b)
	require.ErrorContains(t, err, "missing Halt or Return terminator")
}

func TestValidateCollectsAllDefects(t *testing.T) {
	// One stream with a bad constant index, an out-of-bounds jump, and no
	// terminator: all three must surface in one pass.
	b := New()
	b.Emit(op.Constant, token.Span{})
	b.EmitU16(9)
	b.Emit(op.Jump, token.Span{})
	b.EmitI16(50)

	err := Validate(b)
	require.ErrorContains(t, err, "constant index 9")
	require.ErrorContains(t, err, "jump target 56 outside instructions")
	require.ErrorContains(t, err, "missing Halt or Return terminator")
}
