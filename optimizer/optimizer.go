// Package optimizer rewrites Atlas bytecode without changing its
// observable behavior.
//
// Passes share one algorithm shape: decode the byte stream into a list of
// DecodedInstructions preserving original offsets and spans, repeatedly
// scan left to right applying local rewrites until a full scan changes
// nothing, then run a global fixup that recomputes every jump offset and
// function entry point against the new layout, and re-encode. New
// constants are appended to the pool, never replacing existing entries,
// so untouched references stay valid.
//
// Passes never fail. A rewrite whose preconditions are not exactly met is
// skipped; the output is always at least as correct as the input.
package optimizer

import (
	"github.com/rs/zerolog"

	"github.com/atlas-lang/atlas/bytecode"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
	"github.com/atlas-lang/atlas/token"
)

// Stats reports what an optimization run changed.
type Stats struct {
	ConstantsFolded         int
	DeadInstructionsRemoved int
	PeepholePatternsApplied int
	BytecodeSizeBefore      int
	BytecodeSizeAfter       int
	PassesRun               int
}

// Changed reports whether any rewrite was applied.
func (s Stats) Changed() bool {
	return s.ConstantsFolded > 0 || s.DeadInstructionsRemoved > 0 || s.PeepholePatternsApplied > 0
}

func (s *Stats) merge(other Stats) {
	s.ConstantsFolded += other.ConstantsFolded
	s.DeadInstructionsRemoved += other.DeadInstructionsRemoved
	s.PeepholePatternsApplied += other.PeepholePatternsApplied
	s.PassesRun += other.PassesRun
}

// Pass is a single bytecode-to-bytecode optimization.
type Pass interface {
	// Name identifies the pass in logs and stats.
	Name() string

	// Optimize returns rewritten bytecode and what changed. It must be
	// semantics-preserving and idempotent: applying it to its own output
	// is a no-op.
	Optimize(code *bytecode.Bytecode) (*bytecode.Bytecode, Stats)
}

// Level selects a predefined pass pipeline.
type Level int

const (
	// Level0 disables optimization.
	Level0 Level = iota
	// Level1 runs peephole cleanup only.
	Level1
	// Level2 adds constant folding.
	Level2
	// Level3 adds dead-code elimination.
	Level3
)

// Optimizer runs a pipeline of passes to convergence.
type Optimizer struct {
	passes        []Pass
	maxIterations int
	logger        zerolog.Logger
}

// OptimizerOption configures an Optimizer.
type OptimizerOption func(*Optimizer)

// WithPasses replaces the default pass pipeline.
func WithPasses(passes ...Pass) OptimizerOption {
	return func(o *Optimizer) {
		o.passes = passes
	}
}

// WithLevel selects a predefined pipeline.
func WithLevel(level Level) OptimizerOption {
	return func(o *Optimizer) {
		switch level {
		case Level0:
			o.passes = nil
		case Level1:
			o.passes = []Pass{NewPeepholePass()}
		case Level2:
			o.passes = []Pass{NewConstantFoldingPass(), NewPeepholePass()}
		default:
			o.passes = []Pass{
				NewConstantFoldingPass(),
				NewDeadCodeEliminationPass(),
				NewPeepholePass(),
			}
		}
	}
}

// WithMaxIterations bounds the number of full pipeline repetitions.
func WithMaxIterations(n int) OptimizerOption {
	return func(o *Optimizer) {
		o.maxIterations = n
	}
}

// WithLogger sets the logger used for per-pass stats.
func WithLogger(logger zerolog.Logger) OptimizerOption {
	return func(o *Optimizer) {
		o.logger = logger
	}
}

// New creates an Optimizer. The default pipeline is constant folding,
// dead-code elimination, then peephole cleanup, repeated to convergence.
func New(options ...OptimizerOption) *Optimizer {
	o := &Optimizer{
		maxIterations: 10,
		logger:        zerolog.Nop(),
	}
	WithLevel(Level3)(o)
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Optimize runs the pipeline until no pass applies a rewrite, up to the
// iteration bound.
func (o *Optimizer) Optimize(code *bytecode.Bytecode) (*bytecode.Bytecode, Stats) {
	total := Stats{BytecodeSizeBefore: len(code.Instructions)}
	for i := 0; i < o.maxIterations; i++ {
		changed := false
		for _, pass := range o.passes {
			var stats Stats
			code, stats = pass.Optimize(code)
			total.merge(stats)
			if stats.Changed() {
				changed = true
			}
			o.logger.Debug().
				Str("pass", pass.Name()).
				Int("folded", stats.ConstantsFolded).
				Int("dead_removed", stats.DeadInstructionsRemoved).
				Int("peephole", stats.PeepholePatternsApplied).
				Int("size", len(code.Instructions)).
				Msg("optimization pass")
		}
		if !changed {
			break
		}
	}
	total.BytecodeSizeAfter = len(code.Instructions)
	return code, total
}

// ---------------------------------------------------------------------
// Decoded instruction form

// DecodedInstruction is one instruction lifted out of the byte stream so
// passes can insert and delete instructions, then renumber jumps and
// constant references in one global fixup instead of editing raw bytes
// in place.
type DecodedInstruction struct {
	// Offset is the instruction's byte offset in the stream it was
	// decoded from.
	Offset int

	Opcode   op.Code
	Operands []byte

	// Span is the carried-through source span for the debug table.
	Span token.Span
}

// ByteSize is the encoded size: one opcode byte plus the operands.
func (d *DecodedInstruction) ByteSize() int {
	return 1 + len(d.Operands)
}

// ReadU16 reads the operand as a big-endian unsigned 16-bit value.
func (d *DecodedInstruction) ReadU16() uint16 {
	return uint16(d.Operands[0])<<8 | uint16(d.Operands[1])
}

// ReadI16 reads the operand as a big-endian signed 16-bit value.
func (d *DecodedInstruction) ReadI16() int16 {
	return int16(d.ReadU16())
}

func (d *DecodedInstruction) putU16(v uint16) {
	d.Operands[0] = byte(v >> 8)
	d.Operands[1] = byte(v)
}

func (d *DecodedInstruction) putI16(v int16) {
	d.putU16(uint16(v))
}

// decode lifts the instruction stream into decoded form. An undefined
// opcode byte is kept as an opaque zero-operand instruction; truncated
// trailing operands are kept as-is so re-encoding reproduces the input.
func decode(code *bytecode.Bytecode) []DecodedInstruction {
	var instrs []DecodedInstruction
	offset := 0
	for offset < len(code.Instructions) {
		opcode := op.Code(code.Instructions[offset])
		width := op.Width(opcode)
		if offset+1+width > len(code.Instructions) {
			width = len(code.Instructions) - offset - 1
		}
		operands := make([]byte, width)
		copy(operands, code.Instructions[offset+1:offset+1+width])
		instrs = append(instrs, DecodedInstruction{
			Offset:   offset,
			Opcode:   opcode,
			Operands: operands,
			Span:     code.SpanAt(offset),
		})
		offset += 1 + width
	}
	return instrs
}

// encode rebuilds a Bytecode container from decoded instructions and a
// constant pool.
func encode(instrs []DecodedInstruction, constants []object.Value) *bytecode.Bytecode {
	result := bytecode.New()
	result.Constants = constants
	for _, instr := range instrs {
		result.Emit(instr.Opcode, instr.Span)
		result.Instructions = append(result.Instructions, instr.Operands...)
	}
	return result
}

// fixAllReferences renumbers instruction offsets after insertions or
// deletions: every jump's relative offset is recomputed against the new
// layout, and every function constant's entry offset is remapped. A
// reference to a deleted instruction resolves to the next surviving one.
// Function constants are copied before mutation so the input container
// stays untouched.
func fixAllReferences(instrs []DecodedInstruction, constants []object.Value) []object.Value {
	oldToNew := make(map[int]int, len(instrs))
	newOffset := 0
	for i := range instrs {
		oldToNew[instrs[i].Offset] = newOffset
		newOffset += instrs[i].ByteSize()
	}
	endOffset := newOffset

	remap := func(oldTarget int) int {
		if target, found := oldToNew[oldTarget]; found {
			return target
		}
		// The target was deleted: land on the next surviving
		// instruction instead.
		best := endOffset
		bestOld := -1
		for old, updated := range oldToNew {
			if old >= oldTarget && (bestOld < 0 || old < bestOld) {
				bestOld = old
				best = updated
			}
		}
		return best
	}

	// Recompute jump operands. Relative offsets are measured from the
	// position immediately after the two operand bytes.
	for i := range instrs {
		instr := &instrs[i]
		newBase := oldToNew[instr.Offset]
		if op.IsJump(instr.Opcode) && len(instr.Operands) == 2 {
			oldTarget := instr.Offset + 3 + int(instr.ReadI16())
			instr.putI16(int16(remap(oldTarget) - (newBase + 3)))
		}
		instr.Offset = newBase
	}

	fixed := make([]object.Value, len(constants))
	copy(fixed, constants)
	for i, c := range fixed {
		if fn, ok := c.(*object.Function); ok && fn.BytecodeOffset > 0 {
			updated := *fn
			updated.BytecodeOffset = remap(fn.BytecodeOffset)
			fixed[i] = &updated
		}
	}
	return fixed
}

// jumpTargets returns the set of offsets that some jump lands on.
// Rewrites that delete or replace a targeted instruction are unsafe and
// must be skipped.
func jumpTargets(instrs []DecodedInstruction) map[int]bool {
	targets := make(map[int]bool)
	for i := range instrs {
		if op.IsJump(instrs[i].Opcode) && len(instrs[i].Operands) == 2 {
			targets[instrs[i].Offset+3+int(instrs[i].ReadI16())] = true
		}
	}
	return targets
}

// instructionAt returns the index of the instruction at the given byte
// offset, or -1.
func instructionAt(instrs []DecodedInstruction, offset int) int {
	for i := range instrs {
		if instrs[i].Offset == offset {
			return i
		}
	}
	return -1
}
