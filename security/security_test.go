package security

import (
	"context"
	"errors"
	"testing"

	"github.com/atlas-lang/atlas/errz"
	"github.com/atlas-lang/atlas/token"
	"github.com/stretchr/testify/require"
)

func TestDenyByDefault(t *testing.T) {
	sec := New()
	span := token.NewSpan(1, 5)

	err := sec.CheckFilesystem("/etc/passwd", span)
	require.True(t, errors.Is(err, &errz.RuntimeError{Kind: errz.FilesystemPermissionDenied}))

	err = sec.CheckNetwork("db.internal", span)
	require.True(t, errors.Is(err, &errz.RuntimeError{Kind: errz.NetworkPermissionDenied}))

	err = sec.CheckProcess("rm", span)
	require.True(t, errors.Is(err, &errz.RuntimeError{Kind: errz.ProcessPermissionDenied}))

	err = sec.CheckEnvironment("HOME", span)
	require.True(t, errors.Is(err, &errz.RuntimeError{Kind: errz.EnvironmentPermissionDenied}))
}

func TestAllowAll(t *testing.T) {
	sec := AllowAll()
	span := token.Span{}
	require.NoError(t, sec.CheckFilesystem("/anything", span))
	require.NoError(t, sec.CheckNetwork("anywhere", span))
	require.NoError(t, sec.CheckProcess("anything", span))
	require.NoError(t, sec.CheckEnvironment("ANY", span))
}

func TestFilesystemGrants(t *testing.T) {
	sec := New().GrantFilesystem("/data")
	span := token.Span{}

	require.NoError(t, sec.CheckFilesystem("/data", span))
	require.NoError(t, sec.CheckFilesystem("/data/sub/file.txt", span))
	require.Error(t, sec.CheckFilesystem("/datafile", span))
	require.Error(t, sec.CheckFilesystem("/other", span))
}

func TestWildcardGrants(t *testing.T) {
	sec := New().GrantNetwork("*").GrantEnvironment("*")
	span := token.Span{}
	require.NoError(t, sec.CheckNetwork("any.host", span))
	require.NoError(t, sec.CheckEnvironment("ANY_VAR", span))
	require.Error(t, sec.CheckFilesystem("/", span))
}

func TestNamedGrants(t *testing.T) {
	sec := New().GrantNetwork("db.internal").GrantEnvironment("PATH").GrantProcess("ls")
	span := token.Span{}
	require.NoError(t, sec.CheckNetwork("db.internal", span))
	require.Error(t, sec.CheckNetwork("other.host", span))
	require.NoError(t, sec.CheckEnvironment("PATH", span))
	require.Error(t, sec.CheckEnvironment("HOME", span))
	require.NoError(t, sec.CheckProcess("ls", span))
	require.Error(t, sec.CheckProcess("rm", span))
}

func TestContextRoundTrip(t *testing.T) {
	sec := AllowAll()
	ctx := WithContext(context.Background(), sec)
	require.Same(t, sec, FromContext(ctx))

	// Missing context denies everything.
	fallback := FromContext(context.Background())
	require.Error(t, fallback.CheckNetwork("x", token.Span{}))
}
