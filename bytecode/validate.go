package bytecode

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
)

// ValidationError describes one defect Validate found in a bytecode
// container.
type ValidationError struct {
	Offset  int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Message)
}

// validatedInstruction is the minimal decoding Validate works with. Jump
// operands are stored sign-extended, everything else zero-extended.
type validatedInstruction struct {
	offset  int
	opcode  op.Code
	operand int
}

// Validate statically checks a bytecode container without executing it:
// the instruction stream must decode cleanly, jump targets must land on
// instruction boundaries, constant-pool references must be in range, the
// operand stack must never underflow on the straight-line path, and the
// stream must end in Halt or Return. All defects are collected and
// returned together.
//
// Validate is advisory. The VM does not require it, but callers loading
// bytecode from untrusted files should reject anything it flags.
func Validate(b *Bytecode) error {
	var result *multierror.Error

	instrs, boundaries := decodeForValidation(b, &result)
	checkJumpTargets(instrs, boundaries, len(b.Instructions), &result)
	checkConstantRefs(instrs, b.Constants, &result)
	checkStackDepth(instrs, &result)
	checkTerminator(instrs, &result)

	return result.ErrorOrNil()
}

// decodeForValidation walks the instruction stream, recording the decoded
// instructions and the set of valid instruction boundaries. An unknown
// opcode is reported and skipped one byte at a time; a truncated operand
// ends the walk.
func decodeForValidation(b *Bytecode, result **multierror.Error) ([]validatedInstruction, map[int]bool) {
	var instrs []validatedInstruction
	boundaries := make(map[int]bool)

	code := b.Instructions
	for offset := 0; offset < len(code); {
		boundaries[offset] = true
		opcode := op.Code(code[offset])
		if !op.IsValid(opcode) {
			*result = multierror.Append(*result, &ValidationError{
				Offset:  offset,
				Message: fmt.Sprintf("unknown opcode 0x%02X", byte(opcode)),
			})
			offset++
			continue
		}

		width := op.Width(opcode)
		if offset+width >= len(code) && width > 0 {
			*result = multierror.Append(*result, &ValidationError{
				Offset:  offset,
				Message: fmt.Sprintf("truncated %s operand", opcode),
			})
			break
		}

		var operand int
		switch width {
		case 2:
			raw := uint16(code[offset+1])<<8 | uint16(code[offset+2])
			if op.IsJump(opcode) {
				operand = int(int16(raw))
			} else {
				operand = int(raw)
			}
		case 1:
			operand = int(code[offset+1])
		}

		instrs = append(instrs, validatedInstruction{
			offset:  offset,
			opcode:  opcode,
			operand: operand,
		})
		offset += 1 + width
	}
	return instrs, boundaries
}

// checkJumpTargets verifies that every jump lands inside the stream and on
// an instruction boundary. Offsets are relative to the byte after the
// operand, matching the VM.
func checkJumpTargets(instrs []validatedInstruction, boundaries map[int]bool, length int, result **multierror.Error) {
	for _, instr := range instrs {
		if !op.IsJump(instr.opcode) {
			continue
		}
		target := instr.offset + 3 + instr.operand
		if target < 0 || target >= length {
			*result = multierror.Append(*result, &ValidationError{
				Offset:  instr.offset,
				Message: fmt.Sprintf("jump target %d outside instructions of length %d", target, length),
			})
			continue
		}
		if !boundaries[target] {
			*result = multierror.Append(*result, &ValidationError{
				Offset:  instr.offset,
				Message: fmt.Sprintf("jump target %d is not an instruction boundary", target),
			})
		}
	}
}

// checkConstantRefs verifies that every constant-pool index is in range.
func checkConstantRefs(instrs []validatedInstruction, constants []object.Value, result **multierror.Error) {
	for _, instr := range instrs {
		switch instr.opcode {
		case op.Constant, op.GetGlobal, op.SetGlobal:
		default:
			continue
		}
		if instr.operand >= len(constants) {
			*result = multierror.Append(*result, &ValidationError{
				Offset:  instr.offset,
				Message: fmt.Sprintf("constant index %d out of range for pool of %d", instr.operand, len(constants)),
			})
		}
	}
}

// stackDelta returns the net stack effect of an instruction, or false for
// instructions whose effect depends on a runtime operand count.
func stackDelta(opcode op.Code) (int, bool) {
	switch opcode {
	case op.Constant, op.Null, op.True, op.False, op.GetLocal, op.GetGlobal, op.Dup:
		return 1, true
	case op.SetLocal, op.SetGlobal, op.Negate, op.Not, op.Jump, op.Loop, op.Halt:
		return 0, true
	case op.Pop, op.JumpIfFalse,
		op.Add, op.Sub, op.Mul, op.Div, op.Mod,
		op.Equal, op.NotEqual, op.Less, op.LessEqual, op.Greater, op.GreaterEqual,
		op.And, op.Or, op.GetIndex:
		return -1, true
	case op.SetIndex:
		return -2, true
	default:
		// Call and Array consume a variable number of operands; Return
		// drains the frame.
		return 0, false
	}
}

// checkStackDepth simulates stack depth along the straight-line path and
// reports operations that would pop from an empty stack. Tracking stops at
// the first Return and resets after an underflow so later defects still
// surface.
func checkStackDepth(instrs []validatedInstruction, result **multierror.Error) {
	depth := 0
	for _, instr := range instrs {
		delta, ok := stackDelta(instr.opcode)
		if !ok {
			if instr.opcode == op.Return {
				break
			}
			continue
		}
		if delta < 0 && depth+delta < 0 {
			*result = multierror.Append(*result, &ValidationError{
				Offset:  instr.offset,
				Message: fmt.Sprintf("%s would underflow a stack of depth %d", instr.opcode, depth),
			})
			depth = 0
			continue
		}
		depth += delta
	}
}

// checkTerminator verifies the stream ends in Halt or Return, so the VM
// cannot run off the end of the instructions.
func checkTerminator(instrs []validatedInstruction, result **multierror.Error) {
	if len(instrs) == 0 {
		*result = multierror.Append(*result, &ValidationError{
			Offset:  0,
			Message: "missing Halt or Return terminator",
		})
		return
	}
	last := instrs[len(instrs)-1]
	if last.opcode != op.Halt && last.opcode != op.Return {
		*result = multierror.Append(*result, &ValidationError{
			Offset:  last.offset,
			Message: "missing Halt or Return terminator",
		})
	}
}
