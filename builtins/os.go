package builtins

import (
	"context"
	"os"

	"github.com/atlas-lang/atlas/errz"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/security"
	"github.com/atlas-lang/atlas/token"
)

// Env reads an environment variable. Requires an environment grant for
// the variable name. Returns null when the variable is unset.
func Env(ctx context.Context, args ...object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, arityError("env", 1, len(args))
	}
	name, ok := args[0].(*object.String)
	if !ok {
		return nil, argError("env", "string", args[0])
	}
	sec := security.FromContext(ctx)
	if err := sec.CheckEnvironment(name.Value(), token.Span{}); err != nil {
		return nil, err
	}
	value, found := os.LookupEnv(name.Value())
	if !found {
		return object.Null, nil
	}
	return object.NewString(value), nil
}

// ReadFile reads an entire file as a string. Requires a filesystem grant
// covering the path.
func ReadFile(ctx context.Context, args ...object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, arityError("readFile", 1, len(args))
	}
	path, ok := args[0].(*object.String)
	if !ok {
		return nil, argError("readFile", "string", args[0])
	}
	sec := security.FromContext(ctx)
	if err := sec.CheckFilesystem(path.Value(), token.Span{}); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path.Value())
	if err != nil {
		return nil, errz.NewRuntimeError(errz.IoError, token.Span{}, "readFile: %v", err)
	}
	return object.NewString(string(data)), nil
}
