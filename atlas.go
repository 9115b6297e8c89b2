// Package atlas is the execution backend for the Atlas language: a
// bytecode compiler, an optimizer, and a stack-based virtual machine.
//
// The frontend (lexing, parsing, binding) lives elsewhere and hands this
// package a checked syntax tree. The typical flow is Compile, optionally
// Optimize, then Run:
//
//	code, err := atlas.Compile(program)
//	if err != nil {
//	    return err
//	}
//	result, err := atlas.Run(ctx, code)
//
// Eval combines the three steps for one-shot execution.
package atlas

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/atlas-lang/atlas/ast"
	"github.com/atlas-lang/atlas/bytecode"
	"github.com/atlas-lang/atlas/compiler"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/optimizer"
	"github.com/atlas-lang/atlas/security"
	"github.com/atlas-lang/atlas/vm"
)

// Option configures an Atlas compilation or execution.
type Option func(*options)

type options struct {
	optimize  bool
	level     optimizer.Level
	sec       *security.Context
	globals   map[string]object.Value
	output    io.Writer
	logger    *zerolog.Logger
	observer  vm.Observer
	debugInfo bool
}

func collectOptions(opts ...Option) *options {
	o := &options{
		globals:   map[string]object.Value{},
		debugInfo: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *options) vmOpts() []vm.Option {
	var opts []vm.Option
	if o.sec != nil {
		opts = append(opts, vm.WithSecurityContext(o.sec))
	}
	if len(o.globals) > 0 {
		opts = append(opts, vm.WithGlobals(o.globals))
	}
	if o.output != nil {
		opts = append(opts, vm.WithOutput(o.output))
	}
	if o.logger != nil {
		opts = append(opts, vm.WithLogger(*o.logger))
	}
	if o.observer != nil {
		opts = append(opts, vm.WithObserver(o.observer))
	}
	return opts
}

// WithOptimization enables bytecode optimization at the given level.
func WithOptimization(level optimizer.Level) Option {
	return func(o *options) {
		o.optimize = true
		o.level = level
	}
}

// WithSecurityContext sets the security policy for builtin calls. The
// default policy denies all filesystem, network, process, and
// environment access.
func WithSecurityContext(sec *security.Context) Option {
	return func(o *options) {
		o.sec = sec
	}
}

// WithGlobals provides named values visible to the program. This option
// is additive; if the same name is supplied twice, the last value wins.
func WithGlobals(globals map[string]object.Value) Option {
	return func(o *options) {
		for k, v := range globals {
			o.globals[k] = v
		}
	}
}

// WithGlobal supplies a single named value to the program.
func WithGlobal(name string, value object.Value) Option {
	return func(o *options) {
		o.globals[name] = value
	}
}

// WithOutput sets the writer that print and related builtins write to.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithLogger sets the logger used for execution tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithObserver sets an observer for VM execution events. The observer
// receives callbacks for instruction steps, function calls, and function
// returns. This enables profilers, debuggers, and execution tracers.
func WithObserver(observer vm.Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithoutDebugInfo disables the span table in compiled bytecode. Runtime
// errors then carry no source positions.
func WithoutDebugInfo() Option {
	return func(o *options) {
		o.debugInfo = false
	}
}

// Compile translates a checked syntax tree into executable bytecode and
// applies the configured optimization level. The returned Bytecode is
// not modified by later runs, so one compilation can be executed many
// times.
func Compile(program *ast.Program, opts ...Option) (*bytecode.Bytecode, error) {
	o := collectOptions(opts...)
	code, err := compiler.New(&compiler.Config{DebugInfo: o.debugInfo}).Compile(program)
	if err != nil {
		return nil, err
	}
	if o.optimize {
		var optOpts []optimizer.OptimizerOption
		optOpts = append(optOpts, optimizer.WithLevel(o.level))
		if o.logger != nil {
			optOpts = append(optOpts, optimizer.WithLogger(*o.logger))
		}
		code, _ = optimizer.New(optOpts...).Optimize(code)
	}
	return code, nil
}

// Optimize rewrites bytecode at the default optimization level and
// reports what changed.
func Optimize(code *bytecode.Bytecode, opts ...Option) (*bytecode.Bytecode, optimizer.Stats) {
	o := collectOptions(opts...)
	level := optimizer.Level3
	if o.optimize {
		level = o.level
	}
	var optOpts []optimizer.OptimizerOption
	optOpts = append(optOpts, optimizer.WithLevel(level))
	if o.logger != nil {
		optOpts = append(optOpts, optimizer.WithLogger(*o.logger))
	}
	return optimizer.New(optOpts...).Optimize(code)
}

// Run executes compiled bytecode and returns the program's final value,
// or nil when the program leaves no value.
func Run(ctx context.Context, code *bytecode.Bytecode, opts ...Option) (object.Value, error) {
	o := collectOptions(opts...)
	return vm.New(o.vmOpts()...).Run(ctx, code)
}

// Eval compiles, optimizes, and runs a program in one call.
func Eval(ctx context.Context, program *ast.Program, opts ...Option) (object.Value, error) {
	o := collectOptions(opts...)
	code, err := Compile(program, opts...)
	if err != nil {
		return nil, err
	}
	return vm.New(o.vmOpts()...).Run(ctx, code)
}
