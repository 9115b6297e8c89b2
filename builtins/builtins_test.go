package builtins

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/atlas-lang/atlas/errz"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/security"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := Registry()
	for _, name := range []string{"print", "len", "str", "type", "push", "pop", "env", "readFile", "dbQuery"} {
		b, ok := reg[name]
		require.True(t, ok, name)
		require.Equal(t, name, b.Name)
		require.NotNil(t, b.Fn)
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithWriter(context.Background(), &buf)
	v, err := Print(ctx, object.NewNumber(1), object.NewString("two"), object.True)
	require.NoError(t, err)
	require.Equal(t, object.NULL, v.Type())
	require.Equal(t, "1 two true\n", buf.String())

	_, err = Print(ctx)
	require.Error(t, err)
}

func TestLen(t *testing.T) {
	ctx := context.Background()

	v, err := Len(ctx, object.NewString("hello"))
	require.NoError(t, err)
	require.Equal(t, float64(5), v.(*object.Number).Value())

	v, err = Len(ctx, object.NewArray([]object.Value{object.Null, object.Null}))
	require.NoError(t, err)
	require.Equal(t, float64(2), v.(*object.Number).Value())

	_, err = Len(ctx, object.NewNumber(5))
	require.True(t, errors.Is(err, &errz.RuntimeError{Kind: errz.InvalidArgument}))
}

func TestStrAndType(t *testing.T) {
	ctx := context.Background()

	v, err := Str(ctx, object.NewNumber(2.5))
	require.NoError(t, err)
	require.Equal(t, "2.5", v.(*object.String).Value())

	v, err = TypeOf(ctx, object.NewArray(nil))
	require.NoError(t, err)
	require.Equal(t, "array", v.(*object.String).Value())
}

func TestPushPop(t *testing.T) {
	ctx := context.Background()
	arr := object.NewArray([]object.Value{object.NewNumber(1)})

	v, err := Push(ctx, arr, object.NewNumber(2))
	require.NoError(t, err)
	require.Same(t, arr, v)
	require.Equal(t, 2, arr.Len())

	v, err = Pop(ctx, arr)
	require.NoError(t, err)
	require.Equal(t, float64(2), v.(*object.Number).Value())
	require.Equal(t, 1, arr.Len())

	// Popping past empty yields null.
	_, err = Pop(ctx, arr)
	require.NoError(t, err)
	v, err = Pop(ctx, arr)
	require.NoError(t, err)
	require.Equal(t, object.NULL, v.Type())
}

func TestEnvPermissions(t *testing.T) {
	t.Setenv("ATLAS_TEST_VAR", "42")

	denied := security.WithContext(context.Background(), security.New())
	_, err := Env(denied, object.NewString("ATLAS_TEST_VAR"))
	require.True(t, errors.Is(err, &errz.RuntimeError{Kind: errz.EnvironmentPermissionDenied}))

	granted := security.WithContext(context.Background(),
		security.New().GrantEnvironment("ATLAS_TEST_VAR"))
	v, err := Env(granted, object.NewString("ATLAS_TEST_VAR"))
	require.NoError(t, err)
	require.Equal(t, "42", v.(*object.String).Value())

	v, err = Env(security.WithContext(context.Background(), security.AllowAll()),
		object.NewString("ATLAS_DEFINITELY_UNSET_VAR"))
	require.NoError(t, err)
	require.Equal(t, object.NULL, v.Type())
}

func TestReadFilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("contents"), 0o644))

	denied := security.WithContext(context.Background(), security.New())
	_, err := ReadFile(denied, object.NewString(path))
	require.True(t, errors.Is(err, &errz.RuntimeError{Kind: errz.FilesystemPermissionDenied}))

	granted := security.WithContext(context.Background(), security.New().GrantFilesystem(dir))
	v, err := ReadFile(granted, object.NewString(path))
	require.NoError(t, err)
	require.Equal(t, "contents", v.(*object.String).Value())

	_, err = ReadFile(granted, object.NewString(filepath.Join(dir, "missing.txt")))
	require.True(t, errors.Is(err, &errz.RuntimeError{Kind: errz.IoError}))
}

func TestDBQueryPermissions(t *testing.T) {
	denied := security.WithContext(context.Background(), security.New())
	_, err := DBQuery(denied,
		object.NewString("postgres://user@db.internal:5432/app"),
		object.NewString("select 1"))
	require.True(t, errors.Is(err, &errz.RuntimeError{Kind: errz.NetworkPermissionDenied}))

	_, err = DBQuery(denied, object.NewString("not a conn string \x00"), object.NewString("select 1"))
	require.True(t, errors.Is(err, &errz.RuntimeError{Kind: errz.InvalidArgument}))

	_, err = DBQuery(denied, object.NewString("postgres://h/db"))
	require.True(t, errors.Is(err, &errz.RuntimeError{Kind: errz.InvalidArgument}))
}

func TestFromSQL(t *testing.T) {
	require.Equal(t, object.NULL, fromSQL(nil).Type())
	require.Equal(t, float64(7), fromSQL(int64(7)).(*object.Number).Value())
	require.Equal(t, "x", fromSQL("x").(*object.String).Value())
	require.True(t, fromSQL(true).Truthy())
	require.Equal(t, "raw", fromSQL([]byte("raw")).(*object.String).Value())
}
