package optimizer

import (
	"math"

	"github.com/atlas-lang/atlas/bytecode"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
)

// ConstantFoldingPass evaluates constant expressions at optimization
// time: two constant pushes followed by a binary opcode collapse into a
// single push of the result, and constant operands of Negate and Not
// collapse likewise.
//
// Division and modulo by a constant zero are never folded: the program
// must still raise its divide-by-zero error at runtime. Folds whose
// result would be NaN or infinite are skipped for the same reason.
type ConstantFoldingPass struct{}

// NewConstantFoldingPass creates a constant folding pass.
func NewConstantFoldingPass() *ConstantFoldingPass {
	return &ConstantFoldingPass{}
}

func (p *ConstantFoldingPass) Name() string {
	return "constant-folding"
}

func (p *ConstantFoldingPass) Optimize(code *bytecode.Bytecode) (*bytecode.Bytecode, Stats) {
	stats := Stats{
		BytecodeSizeBefore: len(code.Instructions),
		PassesRun:          1,
	}
	instrs := decode(code)
	if len(instrs) == 0 {
		stats.BytecodeSizeAfter = len(code.Instructions)
		return code, stats
	}
	constants := make([]object.Value, len(code.Constants))
	copy(constants, code.Constants)

	folded := 0
	for {
		targets := jumpTargets(instrs)
		changed := false
		for i := 0; i+1 < len(instrs); i++ {
			if n, ok := p.foldAt(instrs, i, targets, &constants); ok {
				instrs = n
				folded++
				changed = true
				break
			}
		}
		if !changed {
			break
		}
	}
	stats.ConstantsFolded = folded
	if folded == 0 {
		stats.BytecodeSizeAfter = len(code.Instructions)
		return code, stats
	}

	constants = fixAllReferences(instrs, constants)
	result := encode(instrs, constants)
	stats.BytecodeSizeAfter = len(result.Instructions)
	return result, stats
}

// foldAt tries to fold the pattern starting at index i. On success it
// returns the rewritten instruction list.
func (p *ConstantFoldingPass) foldAt(
	instrs []DecodedInstruction,
	i int,
	targets map[int]bool,
	constants *[]object.Value,
) ([]DecodedInstruction, bool) {
	// A jump landing inside the pattern would observe intermediate
	// stack state; leave such sequences alone.
	patternSafe := func(length int) bool {
		for j := i + 1; j < i+length && j < len(instrs); j++ {
			if targets[instrs[j].Offset] {
				return false
			}
		}
		return true
	}

	// Constant, Constant, <binop>
	if i+2 < len(instrs) &&
		instrs[i].Opcode == op.Constant && len(instrs[i].Operands) == 2 &&
		instrs[i+1].Opcode == op.Constant && len(instrs[i+1].Operands) == 2 &&
		patternSafe(3) {

		a, aok := constantNumber(*constants, instrs[i].ReadU16())
		b, bok := constantNumber(*constants, instrs[i+1].ReadU16())
		if aok && bok {
			if repl, ok := foldBinary(a, b, instrs[i+2].Opcode, constants); ok {
				repl.Offset = instrs[i].Offset
				repl.Span = instrs[i].Span.Merge(instrs[i+1].Span).Merge(instrs[i+2].Span)
				return replace(instrs, i, 3, repl), true
			}
		}
	}

	// Constant, Negate
	if instrs[i].Opcode == op.Constant && len(instrs[i].Operands) == 2 &&
		instrs[i+1].Opcode == op.Negate && patternSafe(2) {
		if n, ok := constantNumber(*constants, instrs[i].ReadU16()); ok {
			repl := constantInstruction(addConstant(constants, object.NewNumber(-n)))
			repl.Offset = instrs[i].Offset
			repl.Span = instrs[i].Span.Merge(instrs[i+1].Span)
			return replace(instrs, i, 2, repl), true
		}
	}

	// <boolean-ish>, Not
	if instrs[i+1].Opcode == op.Not && patternSafe(2) {
		var value object.Value
		switch instrs[i].Opcode {
		case op.True:
			value = object.False
		case op.False:
			value = object.True
		case op.Null:
			// Null is falsy, so its negation is always true.
			value = object.True
		case op.Constant:
			if len(instrs[i].Operands) == 2 {
				if b, ok := constantBool(*constants, instrs[i].ReadU16()); ok {
					value = object.NewBool(!b)
				}
			}
		}
		if value != nil {
			repl := boolInstruction(value == object.True)
			repl.Offset = instrs[i].Offset
			repl.Span = instrs[i].Span.Merge(instrs[i+1].Span)
			return replace(instrs, i, 2, repl), true
		}
	}

	return instrs, false
}

// foldBinary evaluates a binary opcode over two constant numbers.
// Returns false for opcodes that cannot be folded safely.
func foldBinary(a, b float64, opcode op.Code, constants *[]object.Value) (DecodedInstruction, bool) {
	pushNumber := func(v float64) (DecodedInstruction, bool) {
		// Folding a non-finite result would erase the runtime's
		// invalid-numeric-result error.
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return DecodedInstruction{}, false
		}
		return constantInstruction(addConstant(constants, object.NewNumber(v))), true
	}
	switch opcode {
	case op.Add:
		return pushNumber(a + b)
	case op.Sub:
		return pushNumber(a - b)
	case op.Mul:
		return pushNumber(a * b)
	case op.Div:
		if b == 0 {
			// Preserve the runtime divide-by-zero error.
			return DecodedInstruction{}, false
		}
		return pushNumber(a / b)
	case op.Mod:
		if b == 0 {
			return DecodedInstruction{}, false
		}
		return pushNumber(math.Mod(a, b))
	case op.Equal:
		return boolInstruction(numbersEqual(a, b)), true
	case op.NotEqual:
		return boolInstruction(!numbersEqual(a, b)), true
	case op.Less:
		return boolInstruction(a < b), true
	case op.LessEqual:
		return boolInstruction(a <= b), true
	case op.Greater:
		return boolInstruction(a > b), true
	case op.GreaterEqual:
		return boolInstruction(a >= b), true
	}
	return DecodedInstruction{}, false
}

// numbersEqual matches the runtime's numeric equality exactly, so a
// folded comparison agrees with the unfolded program.
func numbersEqual(a, b float64) bool {
	return object.NewNumber(a).Equals(object.NewNumber(b))
}

func constantNumber(constants []object.Value, idx uint16) (float64, bool) {
	if int(idx) >= len(constants) {
		return 0, false
	}
	n, ok := constants[idx].(*object.Number)
	if !ok {
		return 0, false
	}
	return n.Value(), true
}

func constantBool(constants []object.Value, idx uint16) (bool, bool) {
	if int(idx) >= len(constants) {
		return false, false
	}
	b, ok := constants[idx].(*object.Bool)
	if !ok {
		return false, false
	}
	return b.Value(), true
}

// addConstant appends to the pool and returns the new index. Existing
// indices are never disturbed.
func addConstant(constants *[]object.Value, v object.Value) uint16 {
	*constants = append(*constants, v)
	return uint16(len(*constants) - 1)
}

func constantInstruction(idx uint16) DecodedInstruction {
	return DecodedInstruction{
		Opcode:   op.Constant,
		Operands: []byte{byte(idx >> 8), byte(idx)},
	}
}

func boolInstruction(v bool) DecodedInstruction {
	if v {
		return DecodedInstruction{Opcode: op.True}
	}
	return DecodedInstruction{Opcode: op.False}
}

// replace substitutes count instructions starting at i with one
// replacement.
func replace(instrs []DecodedInstruction, i, count int, repl DecodedInstruction) []DecodedInstruction {
	out := make([]DecodedInstruction, 0, len(instrs)-count+1)
	out = append(out, instrs[:i]...)
	out = append(out, repl)
	out = append(out, instrs[i+count:]...)
	return out
}
