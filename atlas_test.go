package atlas

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-lang/atlas/ast"
	"github.com/atlas-lang/atlas/errz"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/optimizer"
	"github.com/atlas-lang/atlas/security"
)

func program(stmts ...ast.Stmt) *ast.Program {
	return &ast.Program{Stmts: stmts}
}

func exprStmt(e ast.Expr) *ast.ExprStmt {
	return &ast.ExprStmt{Expr: e}
}

func num(v float64) *ast.NumberLit {
	return &ast.NumberLit{Value: v}
}

func TestEvalArithmetic(t *testing.T) {
	result, err := Eval(context.Background(), program(exprStmt(&ast.Infix{
		Op:    "+",
		Left:  num(2),
		Right: num(3),
	})))
	require.NoError(t, err)
	require.Equal(t, 5.0, result.(*object.Number).Value())
}

func TestEvalWithOptimization(t *testing.T) {
	p := program(exprStmt(&ast.Infix{
		Op:    "*",
		Left:  num(6),
		Right: num(7),
	}))

	plain, err := Eval(context.Background(), p)
	require.NoError(t, err)
	fast, err := Eval(context.Background(), p, WithOptimization(optimizer.Level3))
	require.NoError(t, err)
	require.True(t, plain.Equals(fast))
}

func TestCompileOnceRunMany(t *testing.T) {
	code, err := Compile(program(exprStmt(num(1))))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		result, err := Run(context.Background(), code)
		require.NoError(t, err)
		require.Equal(t, 1.0, result.(*object.Number).Value())
	}
}

func TestCompileReportsDiagnostics(t *testing.T) {
	_, err := Compile(program(
		&ast.Declare{Name: "x", Value: num(1)},
		&ast.Declare{Name: "x", Value: num(2)},
	))
	require.Error(t, err)
}

func TestOptimizeShrinksBytecode(t *testing.T) {
	code, err := Compile(program(exprStmt(&ast.Infix{
		Op:    "+",
		Left:  num(2),
		Right: num(3),
	})))
	require.NoError(t, err)

	optimized, stats := Optimize(code)
	require.True(t, stats.Changed())
	require.Less(t, len(optimized.Instructions), len(code.Instructions))
}

func TestWithGlobal(t *testing.T) {
	result, err := Eval(context.Background(),
		program(exprStmt(&ast.Ident{Name: "answer"})),
		WithGlobal("answer", object.NewNumber(42)),
	)
	require.NoError(t, err)
	require.Equal(t, 42.0, result.(*object.Number).Value())
}

func TestWithOutput(t *testing.T) {
	var buf bytes.Buffer
	_, err := Eval(context.Background(),
		program(exprStmt(&ast.Call{
			Callee: &ast.Ident{Name: "print"},
			Args:   []ast.Expr{&ast.StringLit{Value: "out"}},
		})),
		WithOutput(&buf),
	)
	require.NoError(t, err)
	require.Equal(t, "out\n", buf.String())
}

func TestDefaultSecurityDeniesFilesystem(t *testing.T) {
	_, err := Eval(context.Background(), program(exprStmt(&ast.Call{
		Callee: &ast.Ident{Name: "readFile"},
		Args:   []ast.Expr{&ast.StringLit{Value: "/etc/hosts"}},
	})))
	var rt *errz.RuntimeError
	require.ErrorAs(t, err, &rt)
	require.Equal(t, errz.FilesystemPermissionDenied, rt.Kind)
}

func TestAllowAllSecurityContext(t *testing.T) {
	result, err := Eval(context.Background(),
		program(exprStmt(&ast.Call{
			Callee: &ast.Ident{Name: "env"},
			Args:   []ast.Expr{&ast.StringLit{Value: "HOME"}},
		})),
		WithSecurityContext(security.AllowAll()),
	)
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestWithoutDebugInfo(t *testing.T) {
	code, err := Compile(program(exprStmt(&ast.NumberLit{Value: 1})), WithoutDebugInfo())
	require.NoError(t, err)
	for _, entry := range code.DebugInfo {
		require.True(t, entry.Span.IsZero())
	}
}
