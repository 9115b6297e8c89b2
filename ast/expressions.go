package ast

import "github.com/atlas-lang/atlas/token"

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
	Loc   token.Span
}

// StringLit is a string literal.
type StringLit struct {
	Value string
	Loc   token.Span
}

// BoolLit is a boolean literal.
type BoolLit struct {
	Value bool
	Loc   token.Span
}

// NullLit is the null literal.
type NullLit struct {
	Loc token.Span
}

// Ident is a reference to a named variable.
type Ident struct {
	Name string
	Loc  token.Span
}

// Prefix is a unary operation: "-" or "!".
type Prefix struct {
	Op      string
	Operand Expr
	Loc     token.Span
}

// Infix is a binary operation. Operators: + - * / % == != < <= > >= && ||.
// The logical operators short-circuit; the right operand is only
// evaluated when the left does not already decide the result.
type Infix struct {
	Op    string
	Left  Expr
	Right Expr
	Loc   token.Span
}

// ArrayLit constructs a fresh array from element expressions.
type ArrayLit struct {
	Elements []Expr
	Loc      token.Span
}

// Index reads one element of an array.
type Index struct {
	Target Expr
	Index  Expr
	Loc    token.Span
}

// Call invokes a function or builtin with the given arguments.
type Call struct {
	Callee Expr
	Args   []Expr
	Loc    token.Span
}

// Assign writes to a name or an indexed target. Op is "=" for plain
// assignment or one of "+=", "-=", "*=", "/=", "%=" for compound forms.
// Assignment is an expression; its value is the assigned value.
type Assign struct {
	Op     string
	Target Expr // *Ident or *Index
	Value  Expr
	Loc    token.Span
}

// Postfix is an increment or decrement: Op is "++" or "--". The target is
// a name or an indexed element. Its value is the updated value.
type Postfix struct {
	Op     string
	Target Expr // *Ident or *Index
	Loc    token.Span
}

func (n *NumberLit) Span() token.Span { return n.Loc }
func (n *StringLit) Span() token.Span { return n.Loc }
func (n *BoolLit) Span() token.Span   { return n.Loc }
func (n *NullLit) Span() token.Span   { return n.Loc }
func (n *Ident) Span() token.Span     { return n.Loc }
func (n *Prefix) Span() token.Span    { return n.Loc }
func (n *Infix) Span() token.Span     { return n.Loc }
func (n *ArrayLit) Span() token.Span  { return n.Loc }
func (n *Index) Span() token.Span     { return n.Loc }
func (n *Call) Span() token.Span      { return n.Loc }
func (n *Assign) Span() token.Span    { return n.Loc }
func (n *Postfix) Span() token.Span   { return n.Loc }

func (*NumberLit) exprNode() {}
func (*StringLit) exprNode() {}
func (*BoolLit) exprNode()   {}
func (*NullLit) exprNode()   {}
func (*Ident) exprNode()     {}
func (*Prefix) exprNode()    {}
func (*Infix) exprNode()     {}
func (*ArrayLit) exprNode()  {}
func (*Index) exprNode()     {}
func (*Call) exprNode()      {}
func (*Assign) exprNode()    {}
func (*Postfix) exprNode()   {}
