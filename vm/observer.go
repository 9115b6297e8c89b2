package vm

import (
	"github.com/atlas-lang/atlas/op"
	"github.com/atlas-lang/atlas/token"
)

// StepMode controls when OnStep callbacks are triggered.
type StepMode uint8

const (
	// StepAll calls OnStep for every instruction. Use for detailed
	// tracing and instruction-level debugging.
	StepAll StepMode = iota

	// StepNone never calls OnStep. Use for profilers that only need
	// Call/Return events.
	StepNone

	// StepSampled calls OnStep every N instructions. Use for statistical
	// CPU profiling.
	StepSampled
)

// ObserverConfig specifies what events an observer wants to receive.
type ObserverConfig struct {
	// StepMode controls OnStep callback frequency.
	StepMode StepMode

	// SampleInterval is the number of instructions between OnStep calls
	// when StepMode is StepSampled. Values <= 0 are treated as 1.
	SampleInterval int

	// ObserveCalls enables OnCall callbacks.
	ObserveCalls bool

	// ObserveReturns enables OnReturn callbacks.
	ObserveReturns bool
}

// NewObserverConfig creates a config with safe defaults: calls and
// returns observed, sampling interval 1000.
func NewObserverConfig(mode StepMode) ObserverConfig {
	return ObserverConfig{
		StepMode:       mode,
		SampleInterval: 1000,
		ObserveCalls:   true,
		ObserveReturns: true,
	}
}

// Observer receives VM execution events. Implementations can be used for
// profiling, debugging, or coverage without modifying the VM core. The
// observer must never mutate bytecode; it only reads VM state between
// instructions.
//
// Methods are called synchronously during execution and should be fast.
// Returning false from any method halts execution immediately.
type Observer interface {
	// Config is read once when the VM run starts.
	Config() ObserverConfig

	// OnStep is called per the configured StepMode.
	OnStep(event StepEvent) bool

	// OnCall is called when a function or builtin is invoked.
	OnCall(event CallEvent) bool

	// OnReturn is called when a function returns.
	OnReturn(event ReturnEvent) bool
}

// StepEvent describes one instruction about to execute.
type StepEvent struct {
	IP         int
	Opcode     op.Code
	Span       token.Span
	StackDepth int
	FrameDepth int
}

// CallEvent describes a function or builtin invocation.
type CallEvent struct {
	FunctionName string
	ArgCount     int
	Span         token.Span
	FrameDepth   int
}

// ReturnEvent describes a function return.
type ReturnEvent struct {
	FunctionName string
	Span         token.Span
	FrameDepth   int
}

// NoOpObserver does nothing. Embed it to implement only the methods you
// need. Its config uses StepAll; override Config for another mode.
type NoOpObserver struct{}

func (NoOpObserver) Config() ObserverConfig    { return NewObserverConfig(StepAll) }
func (NoOpObserver) OnStep(StepEvent) bool     { return true }
func (NoOpObserver) OnCall(CallEvent) bool     { return true }
func (NoOpObserver) OnReturn(ReturnEvent) bool { return true }

var _ Observer = NoOpObserver{}
