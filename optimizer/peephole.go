package optimizer

import (
	"github.com/atlas-lang/atlas/bytecode"
	"github.com/atlas-lang/atlas/op"
)

// PeepholePass removes short instruction sequences with no observable
// effect and shortens jump chains:
//
//   - Dup, Pop: a duplicate immediately discarded
//   - Not, Not: double negation
//   - Jump +0: a jump to the very next instruction
//   - jump threading: a jump whose target is an unconditional Jump is
//     rewritten to land on that jump's final target
type PeepholePass struct{}

// NewPeepholePass creates a peephole pass.
func NewPeepholePass() *PeepholePass {
	return &PeepholePass{}
}

func (p *PeepholePass) Name() string {
	return "peephole"
}

func (p *PeepholePass) Optimize(code *bytecode.Bytecode) (*bytecode.Bytecode, Stats) {
	stats := Stats{
		BytecodeSizeBefore: len(code.Instructions),
		PassesRun:          1,
	}
	instrs := decode(code)
	if len(instrs) == 0 {
		stats.BytecodeSizeAfter = len(code.Instructions)
		return code, stats
	}

	applied := 0
	for {
		targets := jumpTargets(instrs)
		changed := false

		for i := 0; i < len(instrs); i++ {
			// Dup, Pop: net zero. Unsafe when a jump lands on the Pop,
			// because the jumper expects a pop to happen.
			if i+1 < len(instrs) &&
				instrs[i].Opcode == op.Dup && instrs[i+1].Opcode == op.Pop &&
				!targets[instrs[i+1].Offset] {
				instrs = remove(instrs, i, 2)
				applied++
				changed = true
				break
			}

			// Not, Not: double negation.
			if i+1 < len(instrs) &&
				instrs[i].Opcode == op.Not && instrs[i+1].Opcode == op.Not &&
				!targets[instrs[i+1].Offset] {
				instrs = remove(instrs, i, 2)
				applied++
				changed = true
				break
			}

			// Jump to the very next instruction.
			if instrs[i].Opcode == op.Jump && len(instrs[i].Operands) == 2 &&
				instrs[i].ReadI16() == 0 {
				instrs = remove(instrs, i, 1)
				applied++
				changed = true
				break
			}

			// Jump threading for Jump and JumpIfFalse.
			if threadJump(instrs, i) {
				applied++
				changed = true
				break
			}
		}
		if !changed {
			break
		}
	}

	stats.PeepholePatternsApplied = applied
	if applied == 0 {
		stats.BytecodeSizeAfter = len(code.Instructions)
		return code, stats
	}

	constants := fixAllReferences(instrs, code.Constants)
	result := encode(instrs, constants)
	stats.BytecodeSizeAfter = len(result.Instructions)
	return result, stats
}

// threadJump rewrites a jump whose target is an unconditional Jump to
// land directly on the final target. Self-referential chains are left
// alone to avoid manufacturing an infinite loop.
func threadJump(instrs []DecodedInstruction, i int) bool {
	instr := &instrs[i]
	if (instr.Opcode != op.Jump && instr.Opcode != op.JumpIfFalse) ||
		len(instr.Operands) != 2 {
		return false
	}
	target := instr.Offset + 3 + int(instr.ReadI16())
	j := instructionAt(instrs, target)
	if j < 0 || j == i {
		return false
	}
	inner := &instrs[j]
	if inner.Opcode != op.Jump || len(inner.Operands) != 2 {
		return false
	}
	final := inner.Offset + 3 + int(inner.ReadI16())
	if final == instr.Offset || final == target {
		return false
	}
	newRel := final - (instr.Offset + 3)
	if newRel < -0x8000 || newRel > 0x7FFF {
		return false
	}
	instr.putI16(int16(newRel))
	return true
}

// remove deletes count instructions starting at index i.
func remove(instrs []DecodedInstruction, i, count int) []DecodedInstruction {
	out := make([]DecodedInstruction, 0, len(instrs)-count)
	out = append(out, instrs[:i]...)
	out = append(out, instrs[i+count:]...)
	return out
}
