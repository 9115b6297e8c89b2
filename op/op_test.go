package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo(Constant)
	require.Equal(t, "CONSTANT", info.Name)
	require.Equal(t, 2, info.OperandWidth)
	require.Equal(t, Constant, info.Code)
}

func TestOperandWidths(t *testing.T) {
	tests := []struct {
		code  Code
		name  string
		width int
	}{
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
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := GetInfo(tt.code)
			require.Equal(t, tt.name, info.Name)
			require.Equal(t, tt.width, info.OperandWidth)
			require.Equal(t, tt.width, Width(tt.code))
			require.True(t, IsValid(tt.code))
		})
	}
}

func TestIsJump(t *testing.T) {
	require.True(t, IsJump(Jump))
	require.True(t, IsJump(JumpIfFalse))
	require.True(t, IsJump(Loop))
	require.False(t, IsJump(Constant))
	require.False(t, IsJump(Call))
}

func TestInvalidOpcode(t *testing.T) {
	require.False(t, IsValid(Code(0xEE)))
	require.Equal(t, "0xEE", Code(0xEE).String())
	require.Equal(t, "HALT", Halt.String())
}
