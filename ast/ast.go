// Package ast defines the tree consumed by the Atlas compiler.
//
// The tree is produced by an external frontend which has already run
// binding and type checking. The compiler assumes the tree is well-formed
// and does not re-validate it. Every node carries the source span it was
// parsed from; spans flow through compilation into the bytecode debug
// table and from there into runtime errors.
package ast

import "github.com/atlas-lang/atlas/token"

// Node is implemented by all tree nodes.
type Node interface {
	// Span returns the source range the node covers.
	Span() token.Span
}

// Expr is implemented by all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by all statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Program is the root node: an ordered list of top-level statements.
type Program struct {
	Stmts []Stmt
}

func (p *Program) Span() token.Span {
	var s token.Span
	for _, stmt := range p.Stmts {
		s = s.Merge(stmt.Span())
	}
	return s
}
