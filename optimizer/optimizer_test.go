package optimizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-lang/atlas/bytecode"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
	"github.com/atlas-lang/atlas/token"
)

func emitNumber(bc *bytecode.Bytecode, v float64) {
	idx := bc.AddConstant(object.NewNumber(v))
	bc.Emit(op.Constant, token.Span{})
	bc.EmitU16(idx)
}

func TestConstantFoldingArithmetic(t *testing.T) {
	bc := bytecode.New()
	emitNumber(bc, 2)
	emitNumber(bc, 3)
	bc.Emit(op.Add, token.Span{})
	bc.Emit(op.Halt, token.Span{})

	pass := NewConstantFoldingPass()
	result, stats := pass.Optimize(bc)
	require.Equal(t, 1, stats.ConstantsFolded)
	require.Len(t, result.Instructions, 4) // Constant + operand + Halt

	require.Equal(t, op.Constant, op.Code(result.Instructions[0]))
	idx := result.ReadU16(1)
	folded, ok := result.Constants[idx].(*object.Number)
	require.True(t, ok)
	require.Equal(t, 5.0, folded.Value())
	require.Equal(t, op.Halt, op.Code(result.Instructions[3]))
}

func TestConstantFoldingComparison(t *testing.T) {
	bc := bytecode.New()
	emitNumber(bc, 2)
	emitNumber(bc, 3)
	bc.Emit(op.Less, token.Span{})
	bc.Emit(op.Halt, token.Span{})

	result, stats := NewConstantFoldingPass().Optimize(bc)
	require.Equal(t, 1, stats.ConstantsFolded)
	require.Equal(t, op.True, op.Code(result.Instructions[0]))
	require.Equal(t, op.Halt, op.Code(result.Instructions[1]))
}

func TestConstantFoldingSkipsDivideByZero(t *testing.T) {
	bc := bytecode.New()
	emitNumber(bc, 10)
	emitNumber(bc, 0)
	bc.Emit(op.Div, token.Span{})
	bc.Emit(op.Halt, token.Span{})
	before := append([]byte(nil), bc.Instructions...)

	result, stats := NewConstantFoldingPass().Optimize(bc)
	require.Equal(t, 0, stats.ConstantsFolded)
	require.Equal(t, before, result.Instructions)
}

func TestConstantFoldingNegate(t *testing.T) {
	bc := bytecode.New()
	emitNumber(bc, 7)
	bc.Emit(op.Negate, token.Span{})
	bc.Emit(op.Halt, token.Span{})

	result, stats := NewConstantFoldingPass().Optimize(bc)
	require.Equal(t, 1, stats.ConstantsFolded)
	idx := result.ReadU16(1)
	n, ok := result.Constants[idx].(*object.Number)
	require.True(t, ok)
	require.Equal(t, -7.0, n.Value())
}

func TestConstantFoldingNot(t *testing.T) {
	bc := bytecode.New()
	bc.Emit(op.True, token.Span{})
	bc.Emit(op.Not, token.Span{})
	bc.Emit(op.Halt, token.Span{})

	result, stats := NewConstantFoldingPass().Optimize(bc)
	require.Equal(t, 1, stats.ConstantsFolded)
	require.Equal(t, op.False, op.Code(result.Instructions[0]))
}

func TestPeepholeDupPop(t *testing.T) {
	bc := bytecode.New()
	bc.Emit(op.True, token.Span{})
	bc.Emit(op.Dup, token.Span{})
	bc.Emit(op.Pop, token.Span{})
	bc.Emit(op.Halt, token.Span{})

	result, stats := NewPeepholePass().Optimize(bc)
	require.Equal(t, 1, stats.PeepholePatternsApplied)
	require.Equal(t, []byte{byte(op.True), byte(op.Halt)}, result.Instructions)
}

func TestPeepholeDoubleNot(t *testing.T) {
	bc := bytecode.New()
	bc.Emit(op.False, token.Span{})
	bc.Emit(op.Not, token.Span{})
	bc.Emit(op.Not, token.Span{})
	bc.Emit(op.Halt, token.Span{})

	result, stats := NewPeepholePass().Optimize(bc)
	require.Equal(t, 1, stats.PeepholePatternsApplied)
	require.Equal(t, []byte{byte(op.False), byte(op.Halt)}, result.Instructions)
}

func TestPeepholeJumpToNext(t *testing.T) {
	bc := bytecode.New()
	bc.Emit(op.Jump, token.Span{})
	bc.EmitI16(0)
	bc.Emit(op.Halt, token.Span{})

	result, stats := NewPeepholePass().Optimize(bc)
	require.Equal(t, 1, stats.PeepholePatternsApplied)
	require.Equal(t, []byte{byte(op.Halt)}, result.Instructions)
}

func TestPeepholeJumpThreading(t *testing.T) {
	// A conditional jump landing on an unconditional jump should land
	// directly on the final destination instead.
	bc := bytecode.New()
	bc.Emit(op.True, token.Span{}) // 0
	bc.Emit(op.JumpIfFalse, token.Span{})
	bc.EmitI16(0) // 1: target 4
	bc.Emit(op.Jump, token.Span{})
	bc.EmitI16(1)                 // 4: target 8
	bc.Emit(op.Pop, token.Span{}) // 7
	bc.Emit(op.Halt, token.Span{})

	result, stats := NewPeepholePass().Optimize(bc)
	require.Equal(t, 1, stats.PeepholePatternsApplied)
	// JumpIfFalse at offset 1 now reaches offset 8 directly.
	require.Equal(t, int16(4), result.ReadI16(2))
}

func TestDeadCodeRemovesUnreachable(t *testing.T) {
	// A function body followed by an unreachable instruction before the
	// main code resumes.
	bc := bytecode.New()
	fn := &object.Function{Name: "f", BytecodeOffset: 3}
	bc.AddConstant(fn)

	bc.Emit(op.Jump, token.Span{})
	bc.EmitI16(3)                    // 0: skip body, target 6
	bc.Emit(op.Null, token.Span{})   // 3: body
	bc.Emit(op.Return, token.Span{}) // 4
	bc.Emit(op.Pop, token.Span{})    // 5: unreachable
	bc.Emit(op.Halt, token.Span{})   // 6

	result, stats := NewDeadCodeEliminationPass().Optimize(bc)
	require.Equal(t, 1, stats.DeadInstructionsRemoved)
	require.Equal(t, []byte{
		byte(op.Jump), 0x00, 0x02,
		byte(op.Null),
		byte(op.Return),
		byte(op.Halt),
	}, result.Instructions)

	// The function entry survives unchanged, via a fresh constant.
	moved, ok := result.Constants[0].(*object.Function)
	require.True(t, ok)
	require.Equal(t, 3, moved.BytecodeOffset)
}

func TestDeadCodePreservesFunctionEntry(t *testing.T) {
	bc := bytecode.New()
	fn := &object.Function{Name: "f", BytecodeOffset: 5}
	bc.AddConstant(fn)

	bc.Emit(op.Jump, token.Span{})
	bc.EmitI16(4)                    // 0: target 7
	bc.Emit(op.Pop, token.Span{})    // 3: unreachable
	bc.Emit(op.Pop, token.Span{})    // 4: unreachable
	bc.Emit(op.Null, token.Span{})   // 5: body
	bc.Emit(op.Return, token.Span{}) // 6
	bc.Emit(op.Halt, token.Span{})   // 7

	result, stats := NewDeadCodeEliminationPass().Optimize(bc)
	require.Equal(t, 2, stats.DeadInstructionsRemoved)

	moved, ok := result.Constants[0].(*object.Function)
	require.True(t, ok)
	require.Equal(t, 3, moved.BytecodeOffset)
	// The original constant is left alone.
	require.Equal(t, 5, fn.BytecodeOffset)

	// The jump over the body now lands on the relocated Halt.
	require.Equal(t, int16(2), result.ReadI16(1))
}

func TestOptimizerConvergesAndIsIdempotent(t *testing.T) {
	bc := bytecode.New()
	emitNumber(bc, 2)
	emitNumber(bc, 3)
	bc.Emit(op.Add, token.Span{})
	bc.Emit(op.Not, token.Span{})
	bc.Emit(op.Not, token.Span{})
	bc.Emit(op.Pop, token.Span{})
	bc.Emit(op.Halt, token.Span{})

	o := New()
	once, stats := o.Optimize(bc)
	require.True(t, stats.Changed())

	twice, stats2 := o.Optimize(once)
	require.False(t, stats2.Changed())
	require.Equal(t, once.Instructions, twice.Instructions)
}

func TestOptimizerLevel0IsNoOp(t *testing.T) {
	bc := bytecode.New()
	emitNumber(bc, 2)
	emitNumber(bc, 3)
	bc.Emit(op.Add, token.Span{})
	bc.Emit(op.Halt, token.Span{})
	before := append([]byte(nil), bc.Instructions...)

	o := New(WithLevel(Level0))
	result, stats := o.Optimize(bc)
	require.False(t, stats.Changed())
	require.Equal(t, before, result.Instructions)
}

func TestFoldedInstructionKeepsMergedSpan(t *testing.T) {
	bc := bytecode.New()
	a := bc.AddConstant(object.NewNumber(2))
	bc.Emit(op.Constant, token.NewSpan(0, 1))
	bc.EmitU16(a)
	b := bc.AddConstant(object.NewNumber(3))
	bc.Emit(op.Constant, token.NewSpan(4, 5))
	bc.EmitU16(b)
	bc.Emit(op.Add, token.NewSpan(2, 3))
	bc.Emit(op.Halt, token.NewSpan(5, 6))

	result, _ := NewConstantFoldingPass().Optimize(bc)
	span := result.SpanAt(0)
	require.Equal(t, token.NewSpan(0, 5), span)
}

func TestDeadCodeToleratesTruncatedJump(t *testing.T) {
	// A stream ending in a jump whose operand was cut short can arrive
	// from a hand-edited or damaged .atb file. The pass must skip the
	// unreadable jump edge rather than panic.
	bc := &bytecode.Bytecode{
		Instructions: []byte{byte(op.Jump), 0x00},
	}
	require.NotPanics(t, func() {
		NewDeadCodeEliminationPass().Optimize(bc)
	})

	bc = &bytecode.Bytecode{
		Instructions: []byte{byte(op.True), byte(op.JumpIfFalse), 0x00},
	}
	require.NotPanics(t, func() {
		NewDeadCodeEliminationPass().Optimize(bc)
	})
}
