// Package dis supports analysis of Atlas bytecode by disassembling it.
// This works with the opcodes defined in the op package and renders one
// line per instruction with its offset, mnemonic, operands, and an
// annotation resolving constant references and jump targets.
package dis

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/atlas-lang/atlas/bytecode"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
)

var (
	opcodeColor     = color.New(color.Bold)
	numberColor     = color.New(color.FgYellow)
	stringColor     = color.New(color.FgGreen)
	functionColor   = color.New(color.FgMagenta)
	annotationColor = color.New(color.FgCyan)
)

// Instruction represents a single bytecode instruction and its operands.
type Instruction struct {
	Offset     int
	Name       string
	Opcode     op.Code
	Operands   []int
	Annotation string
}

// Disassemble returns a parsed representation of the given bytecode.
func Disassemble(code *bytecode.Bytecode) ([]Instruction, error) {
	var instructions []Instruction
	instrs := code.Instructions
	offset := 0
	for offset < len(instrs) {
		opcode := op.Code(instrs[offset])
		info := op.GetInfo(opcode)
		if !op.IsValid(opcode) {
			return nil, fmt.Errorf("unknown opcode 0x%02X at offset %d", byte(opcode), offset)
		}
		if offset+info.OperandWidth >= len(instrs) && info.OperandWidth > 0 {
			return nil, fmt.Errorf("truncated operand for %s at offset %d", info.Name, offset)
		}

		var operands []int
		switch info.OperandWidth {
		case 1:
			operands = []int{int(instrs[offset+1])}
		case 2:
			operands = []int{int(code.ReadU16(offset + 1))}
		}

		instructions = append(instructions, Instruction{
			Offset:     offset,
			Name:       info.Name,
			Opcode:     opcode,
			Operands:   operands,
			Annotation: annotate(code, opcode, offset),
		})
		offset += 1 + info.OperandWidth
	}
	return instructions, nil
}

// annotate resolves what an instruction's operand refers to.
func annotate(code *bytecode.Bytecode, opcode op.Code, offset int) string {
	switch opcode {
	case op.Constant:
		idx := int(code.ReadU16(offset + 1))
		if idx >= len(code.Constants) {
			return "<bad constant index>"
		}
		return formatConstant(code.Constants[idx])
	case op.GetGlobal, op.SetGlobal:
		idx := int(code.ReadU16(offset + 1))
		if idx >= len(code.Constants) {
			return "<bad constant index>"
		}
		if s, ok := code.Constants[idx].(*object.String); ok {
			return annotationColor.Sprint(s.Value())
		}
		return "<bad name constant>"
	case op.GetLocal, op.SetLocal:
		return annotationColor.Sprintf("slot %d", code.ReadU16(offset+1))
	case op.Jump, op.JumpIfFalse, op.Loop:
		target := offset + 3 + int(code.ReadI16(offset+1))
		return annotationColor.Sprintf("-> %d", target)
	}
	return ""
}

func formatConstant(v object.Value) string {
	switch v := v.(type) {
	case *object.Number:
		return numberColor.Sprint(v.Inspect())
	case *object.String:
		s := v.Value()
		if len(s) > 80 {
			s = s[:77] + "..."
		}
		return stringColor.Sprintf("%q", s)
	case *object.Function:
		return functionColor.Sprintf("func:%s -> %d", v.Name, v.BytecodeOffset)
	default:
		return v.Inspect()
	}
}

// Print writes a string representation of the given instructions to the
// given writer.
func Print(instructions []Instruction, writer io.Writer) error {
	tw := tabwriter.NewWriter(writer, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tOPCODE\tOPERANDS\tINFO")
	for _, instr := range instructions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			instr.Offset,
			opcodeColor.Sprint(instr.Name),
			formatOperands(instr.Operands),
			instr.Annotation,
		)
	}
	return tw.Flush()
}

// Fprint disassembles the bytecode and writes it to the given writer.
func Fprint(code *bytecode.Bytecode, writer io.Writer) error {
	instructions, err := Disassemble(code)
	if err != nil {
		return err
	}
	return Print(instructions, writer)
}

func formatOperands(operands []int) string {
	parts := make([]string, len(operands))
	for i, operand := range operands {
		parts[i] = fmt.Sprintf("%d", operand)
	}
	return strings.Join(parts, ", ")
}
