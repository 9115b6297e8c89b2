// Package builtins implements the native functions callable from Atlas
// code. Builtins that touch the filesystem, network, environment, or
// processes consult the security context attached to the call's
// context.Context; pure builtins do not.
package builtins

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atlas-lang/atlas/errz"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/token"
)

type writerKey struct{}

// WithWriter attaches the output writer used by print.
func WithWriter(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, writerKey{}, w)
}

// WriterFrom retrieves the output writer, defaulting to stdout.
func WriterFrom(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(writerKey{}).(io.Writer); ok {
		return w
	}
	return os.Stdout
}

// Registry returns the default builtin registry, keyed by name.
func Registry() map[string]*object.Builtin {
	builtins := []*object.Builtin{
		object.NewBuiltin("print", Print),
		object.NewBuiltin("len", Len),
		object.NewBuiltin("str", Str),
		object.NewBuiltin("type", TypeOf),
		object.NewBuiltin("push", Push),
		object.NewBuiltin("pop", Pop),
		object.NewBuiltin("env", Env),
		object.NewBuiltin("readFile", ReadFile),
		object.NewBuiltin("dbQuery", DBQuery),
	}
	m := make(map[string]*object.Builtin, len(builtins))
	for _, b := range builtins {
		m[b.Name] = b
	}
	return m
}

func arityError(name string, want, got int) error {
	return errz.NewRuntimeError(errz.InvalidArgument, token.Span{},
		"%s expects %d argument(s), got %d", name, want, got)
}

func argError(name, want string, got object.Value) error {
	return errz.NewRuntimeError(errz.InvalidArgument, token.Span{},
		"%s expects %s, got %s", name, want, got.Type())
}

// Print writes its arguments, separated by spaces and followed by a
// newline, to the run's output writer.
func Print(ctx context.Context, args ...object.Value) (object.Value, error) {
	if len(args) < 1 {
		return nil, arityError("print", 1, len(args))
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.Inspect()
	}
	if _, err := fmt.Fprintln(WriterFrom(ctx), strings.Join(parts, " ")); err != nil {
		return nil, errz.NewRuntimeError(errz.IoError, token.Span{}, "print: %v", err)
	}
	return object.Null, nil
}

// Len returns the length of a string or array as a number.
func Len(ctx context.Context, args ...object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, arityError("len", 1, len(args))
	}
	switch v := args[0].(type) {
	case *object.String:
		return object.NewNumber(float64(len(v.Value()))), nil
	case *object.Array:
		return object.NewNumber(float64(v.Len())), nil
	default:
		return nil, argError("len", "string or array", args[0])
	}
}

// Str returns the display string of any value.
func Str(ctx context.Context, args ...object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, arityError("str", 1, len(args))
	}
	return object.NewString(args[0].Inspect()), nil
}

// TypeOf returns the type name of any value.
func TypeOf(ctx context.Context, args ...object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, arityError("type", 1, len(args))
	}
	return object.NewString(string(args[0].Type())), nil
}

// Push appends a value to an array in place and returns the array.
func Push(ctx context.Context, args ...object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, arityError("push", 2, len(args))
	}
	arr, ok := args[0].(*object.Array)
	if !ok {
		return nil, argError("push", "array", args[0])
	}
	arr.Append(args[1])
	return arr, nil
}

// Pop removes and returns the last element of an array, or null when the
// array is empty.
func Pop(ctx context.Context, args ...object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, arityError("pop", 1, len(args))
	}
	arr, ok := args[0].(*object.Array)
	if !ok {
		return nil, argError("pop", "array", args[0])
	}
	v, ok := arr.PopLast()
	if !ok {
		return object.Null, nil
	}
	return v, nil
}
