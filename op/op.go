// Package op defines opcodes used by the Atlas compiler and virtual machine.
package op

import "fmt"

// Code is a single-byte opcode that indicates an operation to execute.
type Code byte

const (
	Invalid Code = 0x00

	// Constants
	Constant Code = 0x01
	Null     Code = 0x02
	True     Code = 0x03
	False    Code = 0x04

	// Variables
	GetLocal  Code = 0x10
	SetLocal  Code = 0x11
	GetGlobal Code = 0x12
	SetGlobal Code = 0x13

	// Arithmetic
	Add    Code = 0x20
	Sub    Code = 0x21
	Mul    Code = 0x22
	Div    Code = 0x23
	Mod    Code = 0x24
	Negate Code = 0x25

	// Comparison
	Equal        Code = 0x30
	NotEqual     Code = 0x31
	Less         Code = 0x32
	LessEqual    Code = 0x33
	Greater      Code = 0x34
	GreaterEqual Code = 0x35

	// Logical
	Not Code = 0x40
	And Code = 0x41
	Or  Code = 0x42

	// Control flow
	Jump        Code = 0x50
	JumpIfFalse Code = 0x51
	Loop        Code = 0x52

	// Functions
	Call   Code = 0x60
	Return Code = 0x61

	// Arrays
	Array    Code = 0x70
	GetIndex Code = 0x71
	SetIndex Code = 0x72

	// Stack
	Pop Code = 0x80
	Dup Code = 0x81

	// Execution
	Halt Code = 0xFF
)

// Info contains information about an opcode.
type Info struct {
	Code Code
	Name string

	// OperandWidth is the number of operand bytes that follow the opcode
	// byte in the instruction stream. Always 0, 1, or 2 and fixed per
	// opcode, which is what makes jump patching and optimizer rewrites
	// well-defined.
	OperandWidth int
}

var infos = make([]Info, 256)

func init() {
	type opInfo struct {
		op    Code
		name  string
		width int
	}
	ops := []opInfo{
		{Constant, "CONSTANT", 2},
		{Null, "NULL", 0},
		{True, "TRUE", 0},
		{False, "FALSE", 0},
		{GetLocal, "GET_LOCAL", 2},
		{SetLocal, "SET_LOCAL", 2},
		{GetGlobal, "GET_GLOBAL", 2},
		{SetGlobal, "SET_GLOBAL", 2},
		{Add, "ADD", 0},
		{Sub, "SUB", 0},
		{Mul, "MUL", 0},
		{Div, "DIV", 0},
		{Mod, "MOD", 0},
		{Negate, "NEGATE", 0},
		{Equal, "EQUAL", 0},
		{NotEqual, "NOT_EQUAL", 0},
		{Less, "LESS", 0},
		{LessEqual, "LESS_EQUAL", 0},
		{Greater, "GREATER", 0},
		{GreaterEqual, "GREATER_EQUAL", 0},
		{Not, "NOT", 0},
		{And, "AND", 0},
		{Or, "OR", 0},
		{Jump, "JUMP", 2},
		{JumpIfFalse, "JUMP_IF_FALSE", 2},
		{Loop, "LOOP", 2},
		{Call, "CALL", 1},
		{Return, "RETURN", 0},
		{Array, "ARRAY", 2},
		{GetIndex, "GET_INDEX", 0},
		{SetIndex, "SET_INDEX", 0},
		{Pop, "POP", 0},
		{Dup, "DUP", 0},
		{Halt, "HALT", 0},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Code:         o.op,
			Name:         o.name,
			OperandWidth: o.width,
		}
	}
}

// GetInfo returns information about the given opcode.
func GetInfo(c Code) Info {
	return infos[c]
}

// IsValid returns true if the byte corresponds to a defined opcode.
func IsValid(c Code) bool {
	return infos[c].Name != ""
}

// Width returns the operand width in bytes for the given opcode.
func Width(c Code) int {
	return infos[c].OperandWidth
}

// IsJump returns true for opcodes whose operand is a signed relative
// jump offset.
func IsJump(c Code) bool {
	switch c {
	case Jump, JumpIfFalse, Loop:
		return true
	}
	return false
}

// String returns the opcode mnemonic, or a hex value for undefined bytes.
func (c Code) String() string {
	if info := infos[c]; info.Name != "" {
		return info.Name
	}
	return fmt.Sprintf("0x%02X", byte(c))
}
