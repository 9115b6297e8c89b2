package optimizer

import (
	"github.com/atlas-lang/atlas/bytecode"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
)

// DeadCodeEliminationPass removes instructions that no control flow can
// reach. Reachability starts at the program entry and at the body of
// every function constant, then follows jumps and fallthrough edges.
type DeadCodeEliminationPass struct{}

// NewDeadCodeEliminationPass creates a dead code elimination pass.
func NewDeadCodeEliminationPass() *DeadCodeEliminationPass {
	return &DeadCodeEliminationPass{}
}

func (p *DeadCodeEliminationPass) Name() string {
	return "dead_code"
}

func (p *DeadCodeEliminationPass) Optimize(code *bytecode.Bytecode) (*bytecode.Bytecode, Stats) {
	stats := Stats{
		BytecodeSizeBefore: len(code.Instructions),
		PassesRun:          1,
	}
	instrs := decode(code)
	if len(instrs) == 0 {
		stats.BytecodeSizeAfter = len(code.Instructions)
		return code, stats
	}

	reachable := markReachable(instrs, code.Constants)

	live := make([]DecodedInstruction, 0, len(instrs))
	removed := 0
	for _, instr := range instrs {
		if reachable[instr.Offset] {
			live = append(live, instr)
		} else {
			removed++
		}
	}
	if removed == 0 {
		stats.BytecodeSizeAfter = len(code.Instructions)
		return code, stats
	}

	stats.DeadInstructionsRemoved = removed
	constants := fixAllReferences(live, code.Constants)
	result := encode(live, constants)
	stats.BytecodeSizeAfter = len(result.Instructions)
	return result, stats
}

// markReachable walks the control flow graph from every entry point and
// returns the set of reachable instruction offsets.
func markReachable(instrs []DecodedInstruction, constants []object.Value) map[int]bool {
	roots := []int{instrs[0].Offset}
	for _, c := range constants {
		if fn, ok := c.(*object.Function); ok && fn.BytecodeOffset > 0 {
			roots = append(roots, fn.BytecodeOffset)
		}
	}

	reachable := make(map[int]bool, len(instrs))
	work := roots
	for len(work) > 0 {
		offset := work[len(work)-1]
		work = work[:len(work)-1]
		i := instructionAt(instrs, offset)
		if i < 0 || reachable[offset] {
			continue
		}
		reachable[offset] = true

		instr := &instrs[i]
		next := instr.Offset + instr.ByteSize()
		switch instr.Opcode {
		case op.Jump, op.Loop:
			if len(instr.Operands) == 2 {
				work = append(work, instr.Offset+3+int(instr.ReadI16()))
			}
		case op.JumpIfFalse:
			if len(instr.Operands) == 2 {
				work = append(work, instr.Offset+3+int(instr.ReadI16()))
			}
			work = append(work, next)
		case op.Return, op.Halt:
			// flow ends here
		default:
			work = append(work, next)
		}
	}
	return reachable
}
