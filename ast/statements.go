package ast

import "github.com/atlas-lang/atlas/token"

// ExprStmt evaluates an expression for its effect and discards the
// result.
type ExprStmt struct {
	Expr Expr
	Loc  token.Span
}

// Declare introduces a new binding. Bindings declared with let are
// immutable; bindings declared with var may be reassigned.
type Declare struct {
	Name    string
	Value   Expr
	Mutable bool
	Loc     token.Span
}

// Block is a brace-delimited statement list introducing a new scope.
type Block struct {
	Stmts []Stmt
	Loc   token.Span
}

// If is a conditional with an optional else branch.
type If struct {
	Cond Expr
	Then *Block
	Else *Block
	Loc  token.Span
}

// While is a pre-test loop.
type While struct {
	Cond Expr
	Body *Block
	Loc  token.Span
}

// For is a C-style loop. Init and Step may be nil; Cond may be nil for an
// infinite loop.
type For struct {
	Init Stmt
	Cond Expr
	Step Stmt
	Body *Block
	Loc  token.Span
}

// Break exits the innermost enclosing loop.
type Break struct {
	Loc token.Span
}

// Continue restarts the innermost enclosing loop.
type Continue struct {
	Loc token.Span
}

// FuncDecl declares a named function.
type FuncDecl struct {
	Name   string
	Params []string
	Body   *Block
	Loc    token.Span
}

// Return exits the current function. Value may be nil, in which case the
// function returns null.
type Return struct {
	Value Expr
	Loc   token.Span
}

func (n *ExprStmt) Span() token.Span { return n.Loc }
func (n *Declare) Span() token.Span  { return n.Loc }
func (n *Block) Span() token.Span    { return n.Loc }
func (n *If) Span() token.Span       { return n.Loc }
func (n *While) Span() token.Span    { return n.Loc }
func (n *For) Span() token.Span      { return n.Loc }
func (n *Break) Span() token.Span    { return n.Loc }
func (n *Continue) Span() token.Span { return n.Loc }
func (n *FuncDecl) Span() token.Span { return n.Loc }
func (n *Return) Span() token.Span   { return n.Loc }

func (*ExprStmt) stmtNode() {}
func (*Declare) stmtNode()  {}
func (*Block) stmtNode()    {}
func (*If) stmtNode()       {}
func (*While) stmtNode()    {}
func (*For) stmtNode()      {}
func (*Break) stmtNode()    {}
func (*Continue) stmtNode() {}
func (*FuncDecl) stmtNode() {}
func (*Return) stmtNode()   {}
