// Package bytecode defines the compiled form executed by the Atlas VM: an
// instruction byte stream, a constant pool, and a debug table mapping
// instruction offsets to source spans.
package bytecode

import (
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
	"github.com/atlas-lang/atlas/token"
)

// SpanEntry associates an instruction offset with the source span it was
// compiled from. The table is consulted only for diagnostics and
// debugging, never during execution.
type SpanEntry struct {
	Offset int
	Span   token.Span
}

// Bytecode is a complete compiled program. Instructions and Constants are
// append-only: constant indices embedded in the instruction stream stay
// valid for the lifetime of the container.
type Bytecode struct {
	Instructions []byte
	Constants    []object.Value
	DebugInfo    []SpanEntry
}

// New returns an empty Bytecode container.
func New() *Bytecode {
	return &Bytecode{}
}

// CurrentOffset returns the offset at which the next instruction will be
// emitted.
func (b *Bytecode) CurrentOffset() int {
	return len(b.Instructions)
}

// Emit appends an opcode byte and records the span it was compiled from.
func (b *Bytecode) Emit(code op.Code, span token.Span) {
	b.DebugInfo = append(b.DebugInfo, SpanEntry{
		Offset: len(b.Instructions),
		Span:   span,
	})
	b.Instructions = append(b.Instructions, byte(code))
}

// EmitU8 appends a single operand byte.
func (b *Bytecode) EmitU8(v uint8) {
	b.Instructions = append(b.Instructions, v)
}

// EmitU16 appends an unsigned 16-bit operand, big-endian.
func (b *Bytecode) EmitU16(v uint16) {
	b.Instructions = append(b.Instructions, byte(v>>8), byte(v))
}

// EmitI16 appends a signed 16-bit operand, big-endian two's complement.
func (b *Bytecode) EmitI16(v int16) {
	b.EmitU16(uint16(v))
}

// AddConstant appends a value to the constant pool and returns its index.
func (b *Bytecode) AddConstant(v object.Value) uint16 {
	b.Constants = append(b.Constants, v)
	return uint16(len(b.Constants) - 1)
}

// PatchJump overwrites the placeholder operand of the jump emitted at
// offset with the distance from the end of that operand to the current
// offset. The offset names the opcode byte; its two operand bytes follow.
func (b *Bytecode) PatchJump(offset int) {
	jump := len(b.Instructions) - offset - 3
	b.Instructions[offset+1] = byte(uint16(int16(jump)) >> 8)
	b.Instructions[offset+2] = byte(uint16(int16(jump)))
}

// ReadU16 reads a big-endian unsigned 16-bit value at the given offset.
func (b *Bytecode) ReadU16(offset int) uint16 {
	return uint16(b.Instructions[offset])<<8 | uint16(b.Instructions[offset+1])
}

// ReadI16 reads a big-endian signed 16-bit value at the given offset.
func (b *Bytecode) ReadI16(offset int) int16 {
	return int16(b.ReadU16(offset))
}

// SpanAt returns the source span recorded for the instruction at the
// given offset, or the zero span if none was recorded.
func (b *Bytecode) SpanAt(offset int) token.Span {
	// Binary search: entries are appended in offset order.
	lo, hi := 0, len(b.DebugInfo)
	for lo < hi {
		mid := (lo + hi) / 2
		if b.DebugInfo[mid].Offset < offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(b.DebugInfo) && b.DebugInfo[lo].Offset == offset {
		return b.DebugInfo[lo].Span
	}
	return token.Span{}
}
