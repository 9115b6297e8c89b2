package compiler

import (
	"github.com/atlas-lang/atlas/ast"
	"github.com/atlas-lang/atlas/errz"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
	"github.com/atlas-lang/atlas/token"
)

func (c *Compiler) compileExpr(expr ast.Expr) {
	switch expr := expr.(type) {
	case *ast.NumberLit:
		idx := c.constant(object.NewNumber(expr.Value), expr.Span())
		c.emitU16(op.Constant, idx, expr.Span())
	case *ast.StringLit:
		idx := c.constant(object.NewString(expr.Value), expr.Span())
		c.emitU16(op.Constant, idx, expr.Span())
	case *ast.BoolLit:
		if expr.Value {
			c.emit(op.True, expr.Span())
		} else {
			c.emit(op.False, expr.Span())
		}
	case *ast.NullLit:
		c.emit(op.Null, expr.Span())
	case *ast.Ident:
		c.compileIdent(expr)
	case *ast.Prefix:
		c.compilePrefix(expr)
	case *ast.Infix:
		c.compileInfix(expr)
	case *ast.ArrayLit:
		c.compileArrayLit(expr)
	case *ast.Index:
		c.compileExpr(expr.Target)
		c.compileExpr(expr.Index)
		c.emit(op.GetIndex, expr.Span())
	case *ast.Call:
		c.compileCall(expr)
	case *ast.Assign:
		c.compileAssign(expr)
	case *ast.Postfix:
		c.compilePostfix(expr)
	default:
		c.report(errz.NewDiagnostic(errz.Internal, expr.Span(),
			"unknown expression node %T", expr))
	}
}

func (c *Compiler) compileIdent(expr *ast.Ident) {
	if slot := c.resolveLocal(expr.Name); slot >= 0 {
		c.emitU16(op.GetLocal, uint16(slot), expr.Span())
		return
	}
	nameIdx := c.nameConstant(expr.Name, expr.Span())
	c.emitU16(op.GetGlobal, nameIdx, expr.Span())
}

func (c *Compiler) compilePrefix(expr *ast.Prefix) {
	c.compileExpr(expr.Operand)
	switch expr.Op {
	case "-":
		c.emit(op.Negate, expr.Span())
	case "!":
		c.emit(op.Not, expr.Span())
	default:
		c.report(errz.NewDiagnostic(errz.Internal, expr.Span(),
			"unknown prefix operator %q", expr.Op))
	}
}

var infixOpcodes = map[string]op.Code{
	"+":  op.Add,
	"-":  op.Sub,
	"*":  op.Mul,
	"/":  op.Div,
	"%":  op.Mod,
	"==": op.Equal,
	"!=": op.NotEqual,
	"<":  op.Less,
	"<=": op.LessEqual,
	">":  op.Greater,
	">=": op.GreaterEqual,
}

func (c *Compiler) compileInfix(expr *ast.Infix) {
	switch expr.Op {
	case "&&":
		c.compileAnd(expr)
		return
	case "||":
		c.compileOr(expr)
		return
	}
	code, ok := infixOpcodes[expr.Op]
	if !ok {
		c.report(errz.NewDiagnostic(errz.Internal, expr.Span(),
			"unknown infix operator %q", expr.Op))
		return
	}
	c.compileExpr(expr.Left)
	c.compileExpr(expr.Right)
	c.emit(code, expr.Span())
}

// compileAnd short-circuits: when the left operand is falsy it is the
// result and the right operand never evaluates.
func (c *Compiler) compileAnd(expr *ast.Infix) {
	c.compileExpr(expr.Left)
	c.emit(op.Dup, expr.Span())
	endJump := c.emitJump(op.JumpIfFalse, expr.Span())
	c.emit(op.Pop, expr.Span())
	c.compileExpr(expr.Right)
	c.patchJump(endJump, expr.Span())
}

// compileOr short-circuits: when the left operand is truthy it is the
// result and the right operand never evaluates.
func (c *Compiler) compileOr(expr *ast.Infix) {
	c.compileExpr(expr.Left)
	c.emit(op.Dup, expr.Span())
	c.emit(op.Not, expr.Span())
	endJump := c.emitJump(op.JumpIfFalse, expr.Span())
	c.emit(op.Pop, expr.Span())
	c.compileExpr(expr.Right)
	c.patchJump(endJump, expr.Span())
}

func (c *Compiler) compileArrayLit(expr *ast.ArrayLit) {
	for _, el := range expr.Elements {
		c.compileExpr(el)
	}
	c.emitU16(op.Array, uint16(len(expr.Elements)), expr.Span())
}

func (c *Compiler) compileCall(expr *ast.Call) {
	if len(expr.Args) > MaxArgs {
		c.report(errz.NewDiagnostic(errz.TooManyArguments, expr.Span(),
			"call has %d arguments; the maximum is %d", len(expr.Args), MaxArgs))
		return
	}
	// The callee value sits below the arguments on the stack.
	c.compileExpr(expr.Callee)
	for _, arg := range expr.Args {
		c.compileExpr(arg)
	}
	c.emit(op.Call, expr.Span())
	c.code.EmitU8(uint8(len(expr.Args)))
}

func (c *Compiler) compileAssign(expr *ast.Assign) {
	switch target := expr.Target.(type) {
	case *ast.Ident:
		c.compileNameAssign(expr, target)
	case *ast.Index:
		c.compileIndexAssign(expr, target)
	default:
		c.report(errz.NewDiagnostic(errz.Internal, expr.Span(),
			"cannot assign to %T", expr.Target))
	}
}

func (c *Compiler) compileNameAssign(expr *ast.Assign, target *ast.Ident) {
	c.checkMutable(target.Name, expr.Span())
	slot := c.resolveLocal(target.Name)
	if expr.Op != "=" {
		// Compound form: read, combine, write.
		if slot >= 0 {
			c.emitU16(op.GetLocal, uint16(slot), target.Span())
		} else {
			c.emitU16(op.GetGlobal, c.nameConstant(target.Name, target.Span()), target.Span())
		}
		c.compileExpr(expr.Value)
		c.emit(compoundOpcode(expr.Op), expr.Span())
	} else {
		c.compileExpr(expr.Value)
	}
	// SetLocal and SetGlobal peek, so the assigned value remains as the
	// expression's result.
	if slot >= 0 {
		c.emitU16(op.SetLocal, uint16(slot), expr.Span())
	} else {
		c.emitU16(op.SetGlobal, c.nameConstant(target.Name, target.Span()), expr.Span())
	}
}

// compileIndexAssign emits [array, index, value] in exactly that order
// for SetIndex. The compound forms need the current element value as
// well; with no two-deep duplicate instruction in the opcode set, the
// target and index expressions are compiled a second time for the read.
// The frontend guarantees they are side-effect free.
func (c *Compiler) compileIndexAssign(expr *ast.Assign, target *ast.Index) {
	c.compileExpr(target.Target)
	c.compileExpr(target.Index)
	if expr.Op != "=" {
		c.compileExpr(target.Target)
		c.compileExpr(target.Index)
		c.emit(op.GetIndex, target.Span())
		c.compileExpr(expr.Value)
		c.emit(compoundOpcode(expr.Op), expr.Span())
	} else {
		c.compileExpr(expr.Value)
	}
	// SetIndex pushes the stored value back as the expression's result.
	c.emit(op.SetIndex, expr.Span())
}

func (c *Compiler) compilePostfix(expr *ast.Postfix) {
	var code op.Code
	switch expr.Op {
	case "++":
		code = op.Add
	case "--":
		code = op.Sub
	default:
		c.report(errz.NewDiagnostic(errz.Internal, expr.Span(),
			"unknown postfix operator %q", expr.Op))
		return
	}
	one := func() {
		idx := c.constant(object.NewNumber(1), expr.Span())
		c.emitU16(op.Constant, idx, expr.Span())
	}
	switch target := expr.Target.(type) {
	case *ast.Ident:
		c.checkMutable(target.Name, expr.Span())
		slot := c.resolveLocal(target.Name)
		if slot >= 0 {
			c.emitU16(op.GetLocal, uint16(slot), target.Span())
		} else {
			c.emitU16(op.GetGlobal, c.nameConstant(target.Name, target.Span()), target.Span())
		}
		one()
		c.emit(code, expr.Span())
		if slot >= 0 {
			c.emitU16(op.SetLocal, uint16(slot), expr.Span())
		} else {
			c.emitU16(op.SetGlobal, c.nameConstant(target.Name, target.Span()), expr.Span())
		}
	case *ast.Index:
		c.compileExpr(target.Target)
		c.compileExpr(target.Index)
		c.compileExpr(target.Target)
		c.compileExpr(target.Index)
		c.emit(op.GetIndex, target.Span())
		one()
		c.emit(code, expr.Span())
		c.emit(op.SetIndex, expr.Span())
	default:
		c.report(errz.NewDiagnostic(errz.Internal, expr.Span(),
			"cannot increment %T", expr.Target))
	}
}

// checkMutable reports a diagnostic for writes to a let binding.
func (c *Compiler) checkMutable(name string, span token.Span) {
	if slot := c.resolveLocal(name); slot >= 0 {
		local := c.locals[slot]
		if !local.Mutable {
			c.report(errz.NewDiagnostic(errz.ImmutableAssignment, span,
				"cannot assign to immutable variable %q", name).
				WithNote("declared with let at %s; use var for a mutable binding", local.Span))
		}
		return
	}
	if info, found := c.globals[name]; found && !info.mutable {
		c.report(errz.NewDiagnostic(errz.ImmutableAssignment, span,
			"cannot assign to immutable variable %q", name).
			WithNote("declared with let at %s; use var for a mutable binding", info.span))
	}
}

func compoundOpcode(assignOp string) op.Code {
	switch assignOp {
	case "+=":
		return op.Add
	case "-=":
		return op.Sub
	case "*=":
		return op.Mul
	case "/=":
		return op.Div
	case "%=":
		return op.Mod
	}
	return op.Invalid
}
