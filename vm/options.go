package vm

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/security"
)

// Option is a configuration function for a VirtualMachine.
type Option func(*VirtualMachine)

// WithSecurityContext sets the permission context consulted by builtins.
// The default denies every privileged operation.
func WithSecurityContext(sec *security.Context) Option {
	return func(vm *VirtualMachine) {
		vm.sec = sec
	}
}

// WithGlobals predefines global variables for the run.
func WithGlobals(globals map[string]object.Value) Option {
	return func(vm *VirtualMachine) {
		for name, value := range globals {
			vm.globals[name] = value
		}
	}
}

// WithBuiltins replaces the builtin registry. The default registry is
// builtins.Registry().
func WithBuiltins(registry map[string]*object.Builtin) Option {
	return func(vm *VirtualMachine) {
		vm.builtins = registry
	}
}

// WithOutput sets the writer that print writes to. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(vm *VirtualMachine) {
		vm.out = w
	}
}

// WithLogger sets the logger used for execution tracing. The default
// logger is disabled.
func WithLogger(logger zerolog.Logger) Option {
	return func(vm *VirtualMachine) {
		vm.logger = logger
	}
}

// WithObserver sets an observer for VM execution events. Observer methods
// are called synchronously; returning false from any of them halts
// execution.
func WithObserver(observer Observer) Option {
	return func(vm *VirtualMachine) {
		vm.observer = observer
	}
}

// WithContextCheckInterval sets how often the VM polls ctx.Done(), in
// instructions. Zero disables the check. The default is
// DefaultContextCheckInterval.
func WithContextCheckInterval(interval int) Option {
	return func(vm *VirtualMachine) {
		vm.contextCheckInterval = interval
	}
}
