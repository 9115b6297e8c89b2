// Package compiler translates an Atlas syntax tree into bytecode.
//
// The compiler walks the tree once, emitting instructions into a Bytecode
// container. Local variables live directly on the VM's operand stack:
// declaring one leaves its value in place and records a compile-time Local
// entry whose position doubles as the runtime slot index. At block exit
// the compiler discards its Local entries for the closing scope and emits
// one Pop per entry; the two must stay numerically in sync or every later
// slot index is silently wrong.
//
// Forward jumps are emitted with a placeholder operand and patched once
// the target offset is known. Loops record their header offset and the
// offsets of pending break jumps in a LoopContext so break and continue
// can be patched when the loop ends.
package compiler

import (
	"github.com/hashicorp/go-multierror"

	"github.com/atlas-lang/atlas/ast"
	"github.com/atlas-lang/atlas/bytecode"
	"github.com/atlas-lang/atlas/errz"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
	"github.com/atlas-lang/atlas/token"
)

const (
	// MaxArgs is the largest argument count the one-byte Call operand can
	// carry.
	MaxArgs = 255

	// placeholder is the operand written for forward jumps before their
	// target is known. Always overwritten before compilation completes.
	placeholder = int16(0x7FFF)
)

// Local is the compiler's bookkeeping for one stack-resident variable. It
// never appears in emitted bytecode; accesses compile to the entry's slot
// index.
type Local struct {
	Name    string
	Depth   int
	Mutable bool
	Span    token.Span
}

// LoopContext tracks one enclosing loop: where its header starts and
// which break jumps still need patching.
type LoopContext struct {
	StartOffset int
	BreakJumps  []int
}

// globalInfo records how a global was declared, for redeclaration and
// mutability diagnostics.
type globalInfo struct {
	mutable bool
	span    token.Span
}

// Config holds compiler options.
type Config struct {
	// DebugInfo controls whether instruction spans are recorded. On by
	// default via Compile; disable for size-sensitive output.
	DebugInfo bool
}

// Compiler translates a syntax tree into bytecode.
type Compiler struct {
	code       *bytecode.Bytecode
	locals     []Local
	scopeDepth int
	loops      []LoopContext
	globals    map[string]globalInfo
	diags      []*errz.Diagnostic

	// maxLocals is the high-water mark of locals inside the function
	// currently being compiled. Only meaningful when fnDepth > 0.
	maxLocals int
	fnDepth   int

	debugInfo bool
}

// Compile translates a program into directly executable bytecode,
// terminated by Halt. The returned error aggregates every diagnostic
// found during the walk.
func Compile(program *ast.Program) (*bytecode.Bytecode, error) {
	return New(&Config{DebugInfo: true}).Compile(program)
}

// New creates a Compiler. Pass nil for cfg to use defaults.
func New(cfg *Config) *Compiler {
	c := &Compiler{
		code:      bytecode.New(),
		globals:   map[string]globalInfo{},
		debugInfo: true,
	}
	if cfg != nil {
		c.debugInfo = cfg.DebugInfo
	}
	return c
}

// Compile compiles the given program.
func (c *Compiler) Compile(program *ast.Program) (*bytecode.Bytecode, error) {
	for _, stmt := range program.Stmts {
		c.compileStmt(stmt)
	}
	c.emit(op.Halt, program.Span())
	if len(c.diags) > 0 {
		var result *multierror.Error
		for _, d := range c.diags {
			result = multierror.Append(result, d)
		}
		return nil, result.ErrorOrNil()
	}
	return c.code, nil
}

// Diagnostics returns the diagnostics accumulated so far.
func (c *Compiler) Diagnostics() []*errz.Diagnostic {
	return c.diags
}

func (c *Compiler) report(d *errz.Diagnostic) {
	c.diags = append(c.diags, d)
}

// ---------------------------------------------------------------------
// Emission helpers

func (c *Compiler) emit(code op.Code, span token.Span) {
	if !c.debugInfo {
		span = token.Span{}
	}
	c.code.Emit(code, span)
}

func (c *Compiler) emitU16(code op.Code, operand uint16, span token.Span) {
	c.emit(code, span)
	c.code.EmitU16(operand)
}

// emitJump emits a forward jump with a placeholder operand and returns
// the offset of the opcode byte for later patching.
func (c *Compiler) emitJump(code op.Code, span token.Span) int {
	offset := c.code.CurrentOffset()
	c.emit(code, span)
	c.code.EmitI16(placeholder)
	return offset
}

// patchJump resolves a previously emitted forward jump to land at the
// current offset.
func (c *Compiler) patchJump(offset int, span token.Span) {
	distance := c.code.CurrentOffset() - offset - 3
	if distance > int(placeholder) {
		c.report(errz.NewDiagnostic(errz.JumpTooLarge, span,
			"jump distance %d exceeds the 16-bit operand range", distance))
		return
	}
	c.code.PatchJump(offset)
}

// emitLoop emits a backward jump to the loop header at startOffset. The
// operand is relative to the position after the operand itself.
func (c *Compiler) emitLoop(startOffset int, span token.Span) {
	distance := startOffset - (c.code.CurrentOffset() + 3)
	if distance < -int(placeholder)-1 {
		c.report(errz.NewDiagnostic(errz.JumpTooLarge, span,
			"loop distance %d exceeds the 16-bit operand range", distance))
		return
	}
	c.emit(op.Loop, span)
	c.code.EmitI16(int16(distance))
}

func (c *Compiler) constant(v object.Value, span token.Span) uint16 {
	if len(c.code.Constants) >= 0xFFFF {
		c.report(errz.NewDiagnostic(errz.TooManyConstants, span,
			"constant pool is full"))
		return 0
	}
	return c.code.AddConstant(v)
}

func (c *Compiler) nameConstant(name string, span token.Span) uint16 {
	return c.constant(object.NewString(name), span)
}

// ---------------------------------------------------------------------
// Scopes and variable resolution

func (c *Compiler) beginScope() {
	c.scopeDepth++
}

// endScope discards the closing scope's Local entries and emits a Pop for
// each, keeping the runtime stack in step with the compile-time list.
func (c *Compiler) endScope(span token.Span) {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].Depth > c.scopeDepth {
		c.locals = c.locals[:len(c.locals)-1]
		c.emit(op.Pop, span)
	}
}

// resolveLocal returns the slot of the innermost local with the given
// name, searching newest-first so shadowing picks the nearest
// declaration. Returns -1 when the name is not a local.
func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].Name == name {
			return i
		}
	}
	return -1
}

// declareLocal records a new stack-resident variable whose value the
// caller has just compiled onto the stack.
func (c *Compiler) declareLocal(name string, mutable bool, span token.Span) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].Depth < c.scopeDepth {
			break
		}
		if c.locals[i].Name == name {
			c.report(errz.NewDiagnostic(errz.Redeclaration, span,
				"variable %q already declared in this scope", name).
				WithNote("previous declaration at %s", c.locals[i].Span))
			return
		}
	}
	if len(c.locals) >= 0xFFFF {
		c.report(errz.NewDiagnostic(errz.TooManyLocals, span,
			"too many local variables in scope"))
		return
	}
	c.locals = append(c.locals, Local{
		Name:    name,
		Depth:   c.scopeDepth,
		Mutable: mutable,
		Span:    span,
	})
	if c.fnDepth > 0 && len(c.locals) > c.maxLocals {
		c.maxLocals = len(c.locals)
	}
}

// ---------------------------------------------------------------------
// Statements

func (c *Compiler) compileStmt(stmt ast.Stmt) {
	switch stmt := stmt.(type) {
	case *ast.ExprStmt:
		c.compileExpr(stmt.Expr)
		c.emit(op.Pop, stmt.Span())
	case *ast.Declare:
		c.compileDeclare(stmt)
	case *ast.Block:
		c.beginScope()
		for _, s := range stmt.Stmts {
			c.compileStmt(s)
		}
		c.endScope(stmt.Span())
	case *ast.If:
		c.compileIf(stmt)
	case *ast.While:
		c.compileWhile(stmt)
	case *ast.For:
		c.compileFor(stmt)
	case *ast.Break:
		c.compileBreak(stmt)
	case *ast.Continue:
		c.compileContinue(stmt)
	case *ast.FuncDecl:
		c.compileFuncDecl(stmt)
	case *ast.Return:
		c.compileReturn(stmt)
	default:
		c.report(errz.NewDiagnostic(errz.Internal, stmt.Span(),
			"unknown statement node %T", stmt))
	}
}

func (c *Compiler) compileDeclare(stmt *ast.Declare) {
	if stmt.Value != nil {
		c.compileExpr(stmt.Value)
	} else {
		c.emit(op.Null, stmt.Span())
	}
	if c.scopeDepth > 0 {
		// The value stays on the stack as the local's slot.
		c.declareLocal(stmt.Name, stmt.Mutable, stmt.Span())
		return
	}
	if prev, found := c.globals[stmt.Name]; found {
		c.report(errz.NewDiagnostic(errz.Redeclaration, stmt.Span(),
			"variable %q already declared in this scope", stmt.Name).
			WithNote("previous declaration at %s", prev.span))
	}
	c.globals[stmt.Name] = globalInfo{mutable: stmt.Mutable, span: stmt.Span()}
	nameIdx := c.nameConstant(stmt.Name, stmt.Span())
	c.emitU16(op.SetGlobal, nameIdx, stmt.Span())
	// SetGlobal peeks; discard the value in statement position.
	c.emit(op.Pop, stmt.Span())
}

func (c *Compiler) compileIf(stmt *ast.If) {
	c.compileExpr(stmt.Cond)
	elseJump := c.emitJump(op.JumpIfFalse, stmt.Cond.Span())
	c.compileStmt(stmt.Then)
	if stmt.Else != nil {
		endJump := c.emitJump(op.Jump, stmt.Span())
		c.patchJump(elseJump, stmt.Span())
		c.compileStmt(stmt.Else)
		c.patchJump(endJump, stmt.Span())
	} else {
		c.patchJump(elseJump, stmt.Span())
	}
}

func (c *Compiler) compileWhile(stmt *ast.While) {
	loopStart := c.code.CurrentOffset()
	c.loops = append(c.loops, LoopContext{StartOffset: loopStart})

	c.compileExpr(stmt.Cond)
	exitJump := c.emitJump(op.JumpIfFalse, stmt.Cond.Span())
	c.compileStmt(stmt.Body)
	c.emitLoop(loopStart, stmt.Span())
	c.patchJump(exitJump, stmt.Span())

	c.patchBreaks(stmt.Span())
}

func (c *Compiler) compileFor(stmt *ast.For) {
	// The init statement's scope covers the whole loop.
	c.beginScope()
	if stmt.Init != nil {
		c.compileStmt(stmt.Init)
	}

	loopStart := c.code.CurrentOffset()
	c.loops = append(c.loops, LoopContext{StartOffset: loopStart})

	exitJump := -1
	if stmt.Cond != nil {
		c.compileExpr(stmt.Cond)
		exitJump = c.emitJump(op.JumpIfFalse, stmt.Cond.Span())
	}
	c.compileStmt(stmt.Body)
	if stmt.Step != nil {
		c.compileStmt(stmt.Step)
	}
	c.emitLoop(loopStart, stmt.Span())
	if exitJump >= 0 {
		c.patchJump(exitJump, stmt.Span())
	}

	c.patchBreaks(stmt.Span())
	c.endScope(stmt.Span())
}

// patchBreaks pops the innermost LoopContext and patches its pending
// break jumps to land at the current offset.
func (c *Compiler) patchBreaks(span token.Span) {
	loop := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	for _, offset := range loop.BreakJumps {
		c.patchJump(offset, span)
	}
}

// break and continue outside a loop compile to nothing: the semantic
// analysis phase ahead of the compiler rejects them, so reaching this
// with an empty loop stack means the caller skipped that phase.
func (c *Compiler) compileBreak(stmt *ast.Break) {
	if len(c.loops) == 0 {
		return
	}
	offset := c.emitJump(op.Jump, stmt.Span())
	last := len(c.loops) - 1
	c.loops[last].BreakJumps = append(c.loops[last].BreakJumps, offset)
}

func (c *Compiler) compileContinue(stmt *ast.Continue) {
	if len(c.loops) == 0 {
		return
	}
	c.emitLoop(c.loops[len(c.loops)-1].StartOffset, stmt.Span())
}

func (c *Compiler) compileFuncDecl(stmt *ast.FuncDecl) {
	// Bind the name first so the body can recurse. The Function constant
	// is a placeholder; its entry offset and local count are filled in
	// after the body is compiled.
	fn := &object.Function{
		Name:  stmt.Name,
		Arity: len(stmt.Params),
	}
	fnIdx := c.constant(fn, stmt.Span())
	c.emitU16(op.Constant, fnIdx, stmt.Span())
	if prev, found := c.globals[stmt.Name]; found {
		c.report(errz.NewDiagnostic(errz.Redeclaration, stmt.Span(),
			"function %q already declared", stmt.Name).
			WithNote("previous declaration at %s", prev.span))
	}
	c.globals[stmt.Name] = globalInfo{mutable: false, span: stmt.Span()}
	nameIdx := c.nameConstant(stmt.Name, stmt.Span())
	c.emitU16(op.SetGlobal, nameIdx, stmt.Span())
	c.emit(op.Pop, stmt.Span())

	// The body is emitted inline; jump over it in straight-line flow.
	skipJump := c.emitJump(op.Jump, stmt.Span())
	entry := c.code.CurrentOffset()

	// Function bodies get a fresh local universe: parameters occupy the
	// first slots of the call frame.
	savedLocals := c.locals
	savedMax := c.maxLocals
	c.locals = nil
	c.maxLocals = 0
	c.fnDepth++
	c.beginScope()
	for _, param := range stmt.Params {
		c.declareLocal(param, true, stmt.Span())
	}
	for _, s := range stmt.Body.Stmts {
		c.compileStmt(s)
	}
	// Implicit return for bodies that fall off the end.
	c.emit(op.Null, stmt.Span())
	c.emit(op.Return, stmt.Span())
	c.scopeDepth--
	localCount := c.maxLocals
	c.locals = savedLocals
	c.maxLocals = savedMax
	c.fnDepth--

	c.patchJump(skipJump, stmt.Span())

	fn.BytecodeOffset = entry
	fn.LocalCount = localCount
}

func (c *Compiler) compileReturn(stmt *ast.Return) {
	if stmt.Value != nil {
		c.compileExpr(stmt.Value)
	} else {
		c.emit(op.Null, stmt.Span())
	}
	c.emit(op.Return, stmt.Span())
}
