// Package security implements the permission context consulted by
// standard-library builtins. Core VM opcodes never check permissions;
// only builtins that touch the filesystem, network, environment, or
// processes do.
package security

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/atlas-lang/atlas/errz"
	"github.com/atlas-lang/atlas/token"
)

// Capability names a class of privileged operation.
type Capability int

const (
	Filesystem Capability = iota
	Network
	Process
	Environment
)

func (c Capability) String() string {
	switch c {
	case Filesystem:
		return "filesystem"
	case Network:
		return "network"
	case Process:
		return "process"
	case Environment:
		return "environment"
	default:
		return "unknown"
	}
}

// Context holds the grants for one VM run. The zero value denies
// everything; grants are added with the Grant* methods or by using
// AllowAll.
type Context struct {
	allowAll    bool
	fsPaths     []string
	netHosts    []string
	processes   []string
	envVars     []string
	allowAllFor map[Capability]bool
}

// New returns a deny-by-default security context.
func New() *Context {
	return &Context{allowAllFor: map[Capability]bool{}}
}

// AllowAll returns a context that permits every operation. Intended for
// trusted callers and tests.
func AllowAll() *Context {
	ctx := New()
	ctx.allowAll = true
	return ctx
}

// GrantFilesystem permits access to the given path and everything below
// it.
func (c *Context) GrantFilesystem(path string) *Context {
	c.fsPaths = append(c.fsPaths, filepath.Clean(path))
	return c
}

// GrantNetwork permits connections to the given host. "*" permits any
// host.
func (c *Context) GrantNetwork(host string) *Context {
	if host == "*" {
		c.allowAllFor[Network] = true
		return c
	}
	c.netHosts = append(c.netHosts, host)
	return c
}

// GrantProcess permits spawning the given command.
func (c *Context) GrantProcess(command string) *Context {
	c.processes = append(c.processes, command)
	return c
}

// GrantEnvironment permits reading the given environment variable. "*"
// permits any variable.
func (c *Context) GrantEnvironment(name string) *Context {
	if name == "*" {
		c.allowAllFor[Environment] = true
		return c
	}
	c.envVars = append(c.envVars, name)
	return c
}

// CheckFilesystem returns a FilesystemPermissionDenied error unless the
// path is covered by a grant.
func (c *Context) CheckFilesystem(path string, span token.Span) error {
	if c.allowAll {
		return nil
	}
	cleaned := filepath.Clean(path)
	for _, granted := range c.fsPaths {
		if cleaned == granted || strings.HasPrefix(cleaned, granted+string(filepath.Separator)) {
			return nil
		}
	}
	return errz.NewRuntimeError(errz.FilesystemPermissionDenied, span,
		"access to %q is not permitted", path)
}

// CheckNetwork returns a NetworkPermissionDenied error unless the host is
// covered by a grant.
func (c *Context) CheckNetwork(host string, span token.Span) error {
	if c.allowAll || c.allowAllFor[Network] {
		return nil
	}
	for _, granted := range c.netHosts {
		if host == granted {
			return nil
		}
	}
	return errz.NewRuntimeError(errz.NetworkPermissionDenied, span,
		"connection to %q is not permitted", host)
}

// CheckProcess returns a ProcessPermissionDenied error unless the command
// is covered by a grant.
func (c *Context) CheckProcess(command string, span token.Span) error {
	if c.allowAll {
		return nil
	}
	for _, granted := range c.processes {
		if command == granted {
			return nil
		}
	}
	return errz.NewRuntimeError(errz.ProcessPermissionDenied, span,
		"spawning %q is not permitted", command)
}

// CheckEnvironment returns an EnvironmentPermissionDenied error unless
// the variable is covered by a grant.
func (c *Context) CheckEnvironment(name string, span token.Span) error {
	if c.allowAll || c.allowAllFor[Environment] {
		return nil
	}
	for _, granted := range c.envVars {
		if name == granted {
			return nil
		}
	}
	return errz.NewRuntimeError(errz.EnvironmentPermissionDenied, span,
		"reading %q is not permitted", name)
}

type contextKey struct{}

// WithContext attaches the security context to a context.Context so
// builtins can retrieve it during a VM run.
func WithContext(ctx context.Context, sec *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, sec)
}

// FromContext retrieves the security context, or a deny-by-default one if
// none is attached.
func FromContext(ctx context.Context) *Context {
	if sec, ok := ctx.Value(contextKey{}).(*Context); ok {
		return sec
	}
	return New()
}
