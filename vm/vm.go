// Package vm provides a VirtualMachine that executes compiled Atlas
// bytecode.
package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"github.com/atlas-lang/atlas/builtins"
	"github.com/atlas-lang/atlas/bytecode"
	"github.com/atlas-lang/atlas/errz"
	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/op"
	"github.com/atlas-lang/atlas/security"
	"github.com/atlas-lang/atlas/token"
)

const (
	// MaxFrameDepth bounds call nesting.
	MaxFrameDepth = 1024

	// DefaultContextCheckInterval is the number of instructions between
	// deterministic checks of ctx.Done().
	DefaultContextCheckInterval = 1000
)

// VirtualMachine executes one Bytecode container at a time against an
// operand stack, a global table, and a stack of call frames. A VM owns
// its stack and globals exclusively; Run may not be called concurrently
// on the same instance.
type VirtualMachine struct {
	stack   []object.Value
	globals map[string]object.Value
	frames  []frame
	ip      int
	code    *bytecode.Bytecode

	builtins map[string]*object.Builtin
	sec      *security.Context
	out      io.Writer
	logger   zerolog.Logger
	observer Observer

	contextCheckInterval int

	runMutex sync.Mutex
}

// New creates a Virtual Machine.
func New(options ...Option) *VirtualMachine {
	vm := &VirtualMachine{
		globals:              map[string]object.Value{},
		builtins:             builtins.Registry(),
		sec:                  security.New(),
		out:                  os.Stdout,
		logger:               zerolog.Nop(),
		contextCheckInterval: DefaultContextCheckInterval,
	}
	for _, opt := range options {
		opt(vm)
	}
	return vm
}

// Global returns the current value of a global variable. Intended for
// debugger and REPL layers inspecting VM state between runs.
func (vm *VirtualMachine) Global(name string) (object.Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// Run executes the given bytecode and returns the final value, or nil if
// execution ended with an empty stack. The context carries cancellation
// and is handed to builtins along with the security context and output
// writer.
func (vm *VirtualMachine) Run(ctx context.Context, code *bytecode.Bytecode) (object.Value, error) {
	if !vm.runMutex.TryLock() {
		return nil, fmt.Errorf("vm is already running")
	}
	defer vm.runMutex.Unlock()

	runID, _ := uuid.NewV4()
	logger := vm.logger.With().Str("run_id", runID.String()).Logger()
	logger.Debug().
		Int("instructions", len(code.Instructions)).
		Int("constants", len(code.Constants)).
		Msg("starting execution")

	vm.code = code
	vm.ip = 0
	vm.stack = vm.stack[:0]
	vm.frames = append(vm.frames[:0], frame{functionName: "<main>"})

	ctx = security.WithContext(ctx, vm.sec)
	ctx = builtins.WithWriter(ctx, vm.out)

	var obsConfig ObserverConfig
	if vm.observer != nil {
		obsConfig = vm.observer.Config()
		if obsConfig.StepMode == StepSampled && obsConfig.SampleInterval <= 0 {
			obsConfig.SampleInterval = 1
		}
	}

	value, err := vm.eval(ctx, logger, obsConfig)
	if err != nil {
		logger.Debug().Err(err).Msg("execution failed")
		return nil, err
	}
	logger.Debug().Msg("execution complete")
	return value, nil
}

var errHalted = errors.New("execution halted by observer")

func (vm *VirtualMachine) eval(ctx context.Context, logger zerolog.Logger, obsConfig ObserverConfig) (object.Value, error) {
	instrs := vm.code.Instructions
	steps := 0

	for vm.ip < len(instrs) {
		steps++
		if vm.contextCheckInterval > 0 && steps%vm.contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		opIP := vm.ip
		opcode := op.Code(instrs[vm.ip])
		span := vm.code.SpanAt(opIP)
		vm.ip++

		if vm.observer != nil {
			deliver := obsConfig.StepMode == StepAll ||
				(obsConfig.StepMode == StepSampled && steps%obsConfig.SampleInterval == 0)
			if deliver {
				event := StepEvent{
					IP:         opIP,
					Opcode:     opcode,
					Span:       span,
					StackDepth: len(vm.stack),
					FrameDepth: len(vm.frames),
				}
				if !vm.observer.OnStep(event) {
					return nil, errHalted
				}
			}
		}
		logger.Trace().Int("ip", opIP).Stringer("op", opcode).Msg("step")

		switch opcode {

		case op.Constant:
			idx := vm.readU16()
			if int(idx) >= len(vm.code.Constants) {
				return nil, vm.fail(errz.NewRuntimeError(errz.OutOfBounds, span,
					"constant index %d out of range", idx))
			}
			vm.push(vm.code.Constants[idx])

		case op.Null:
			vm.push(object.Null)
		case op.True:
			vm.push(object.True)
		case op.False:
			vm.push(object.False)

		case op.GetLocal:
			slot := int(vm.readU16())
			base := vm.currentFrame().stackBase
			if base+slot >= len(vm.stack) {
				return nil, vm.fail(errz.NewRuntimeError(errz.StackUnderflow, span,
					"local slot %d outside the frame window", slot))
			}
			vm.push(vm.stack[base+slot])

		case op.SetLocal:
			slot := int(vm.readU16())
			base := vm.currentFrame().stackBase
			value, err := vm.peek(span)
			if err != nil {
				return nil, err
			}
			if base+slot >= len(vm.stack) {
				return nil, vm.fail(errz.NewRuntimeError(errz.StackUnderflow, span,
					"local slot %d outside the frame window", slot))
			}
			vm.stack[base+slot] = value

		case op.GetGlobal:
			name, err := vm.constantName(span)
			if err != nil {
				return nil, err
			}
			if value, found := vm.globals[name]; found {
				vm.push(value)
			} else if builtin, found := vm.builtins[name]; found {
				vm.push(builtin)
			} else {
				return nil, vm.fail(errz.NewRuntimeError(errz.UndefinedVariable, span,
					"undefined variable %q", name))
			}

		case op.SetGlobal:
			name, err := vm.constantName(span)
			if err != nil {
				return nil, err
			}
			value, err := vm.peek(span)
			if err != nil {
				return nil, err
			}
			vm.globals[name] = value

		case op.Add:
			if err := vm.execAdd(span); err != nil {
				return nil, err
			}
		case op.Sub, op.Mul, op.Div, op.Mod:
			if err := vm.execArithmetic(opcode, span); err != nil {
				return nil, err
			}
		case op.Negate:
			n, err := vm.popNumber(span)
			if err != nil {
				return nil, err
			}
			vm.push(object.NewNumber(-n))

		case op.Equal, op.NotEqual:
			b, err := vm.pop(span)
			if err != nil {
				return nil, err
			}
			a, err := vm.pop(span)
			if err != nil {
				return nil, err
			}
			eq := a.Equals(b)
			if opcode == op.NotEqual {
				eq = !eq
			}
			vm.push(object.NewBool(eq))

		case op.Less, op.LessEqual, op.Greater, op.GreaterEqual:
			if err := vm.execComparison(opcode, span); err != nil {
				return nil, err
			}

		case op.Not:
			v, err := vm.pop(span)
			if err != nil {
				return nil, err
			}
			vm.push(object.NewBool(!v.Truthy()))

		case op.And, op.Or:
			b, err := vm.pop(span)
			if err != nil {
				return nil, err
			}
			a, err := vm.pop(span)
			if err != nil {
				return nil, err
			}
			if opcode == op.And {
				vm.push(object.NewBool(a.Truthy() && b.Truthy()))
			} else {
				vm.push(object.NewBool(a.Truthy() || b.Truthy()))
			}

		case op.Jump:
			offset := vm.readI16()
			vm.ip += int(offset)

		case op.JumpIfFalse:
			offset := vm.readI16()
			cond, err := vm.pop(span)
			if err != nil {
				return nil, err
			}
			if !cond.Truthy() {
				vm.ip += int(offset)
			}

		case op.Loop:
			offset := vm.readI16()
			vm.ip += int(offset)

		case op.Call:
			argc := int(instrs[vm.ip])
			vm.ip++
			if err := vm.execCall(ctx, argc, span, obsConfig); err != nil {
				return nil, err
			}

		case op.Return:
			done, result, err := vm.execReturn(span, obsConfig)
			if err != nil {
				return nil, err
			}
			if done {
				return result, nil
			}

		case op.Array:
			n := int(vm.readU16())
			if n > len(vm.stack) {
				return nil, vm.fail(errz.NewRuntimeError(errz.StackUnderflow, span,
					"array literal needs %d values", n))
			}
			elements := make([]object.Value, n)
			copy(elements, vm.stack[len(vm.stack)-n:])
			vm.stack = vm.stack[:len(vm.stack)-n]
			vm.push(object.NewArray(elements))

		case op.GetIndex:
			if err := vm.execGetIndex(span); err != nil {
				return nil, err
			}
		case op.SetIndex:
			if err := vm.execSetIndex(span); err != nil {
				return nil, err
			}

		case op.Pop:
			// Keep the final expression value when the program is about
			// to halt, so straight-line programs yield a result.
			if vm.ip < len(instrs) && op.Code(instrs[vm.ip]) == op.Halt {
				break
			}
			if _, err := vm.pop(span); err != nil {
				return nil, err
			}

		case op.Dup:
			v, err := vm.peek(span)
			if err != nil {
				return nil, err
			}
			vm.push(v)

		case op.Halt:
			if len(vm.stack) == 0 {
				return nil, nil
			}
			return vm.stack[len(vm.stack)-1], nil

		default:
			return nil, vm.fail(errz.NewRuntimeError(errz.UnknownOpcode, span,
				"unknown opcode 0x%02X", byte(opcode)))
		}
	}
	// Ran off the end of the instruction stream without Halt.
	if len(vm.stack) == 0 {
		return nil, nil
	}
	return vm.stack[len(vm.stack)-1], nil
}

// ---------------------------------------------------------------------
// Instruction helpers

func (vm *VirtualMachine) readU16() uint16 {
	v := uint16(vm.code.Instructions[vm.ip])<<8 | uint16(vm.code.Instructions[vm.ip+1])
	vm.ip += 2
	return v
}

func (vm *VirtualMachine) readI16() int16 {
	return int16(vm.readU16())
}

func (vm *VirtualMachine) currentFrame() *frame {
	return &vm.frames[len(vm.frames)-1]
}

func (vm *VirtualMachine) push(v object.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VirtualMachine) pop(span token.Span) (object.Value, error) {
	if len(vm.stack) == 0 {
		return nil, vm.fail(errz.NewRuntimeError(errz.StackUnderflow, span,
			"pop from an empty stack"))
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VirtualMachine) peek(span token.Span) (object.Value, error) {
	if len(vm.stack) == 0 {
		return nil, vm.fail(errz.NewRuntimeError(errz.StackUnderflow, span,
			"peek at an empty stack"))
	}
	return vm.stack[len(vm.stack)-1], nil
}

func (vm *VirtualMachine) popNumber(span token.Span) (float64, error) {
	v, err := vm.pop(span)
	if err != nil {
		return 0, err
	}
	n, ok := v.(*object.Number)
	if !ok {
		return 0, vm.fail(errz.NewRuntimeError(errz.TypeError, span,
			"expected a number, got %s", v.Type()))
	}
	return n.Value(), nil
}

// constantName reads a u16 operand and resolves it to a string constant.
func (vm *VirtualMachine) constantName(span token.Span) (string, error) {
	idx := vm.readU16()
	if int(idx) >= len(vm.code.Constants) {
		return "", vm.fail(errz.NewRuntimeError(errz.OutOfBounds, span,
			"constant index %d out of range", idx))
	}
	s, ok := vm.code.Constants[idx].(*object.String)
	if !ok {
		return "", vm.fail(errz.NewRuntimeError(errz.TypeError, span,
			"variable name constant is %s, not string", vm.code.Constants[idx].Type()))
	}
	return s.Value(), nil
}

// fail decorates a runtime error with the captured call stack, innermost
// frame first. The innermost frame carries the failing instruction's
// span; outer frames carry their call sites.
func (vm *VirtualMachine) fail(err *errz.RuntimeError) error {
	span := err.Span
	for i := len(vm.frames) - 1; i >= 0; i-- {
		err.Frames = append(err.Frames, errz.Frame{
			Function: vm.frames[i].functionName,
			Span:     span,
		})
		span = vm.frames[i].callSpan
	}
	return err
}

// ---------------------------------------------------------------------
// Arithmetic and comparison

func (vm *VirtualMachine) execAdd(span token.Span) error {
	b, err := vm.pop(span)
	if err != nil {
		return err
	}
	a, err := vm.pop(span)
	if err != nil {
		return err
	}
	if as, aok := a.(*object.String); aok {
		if bs, bok := b.(*object.String); bok {
			vm.push(object.NewString(as.Value() + bs.Value()))
			return nil
		}
	}
	an, aok := a.(*object.Number)
	bn, bok := b.(*object.Number)
	if !aok || !bok {
		return vm.fail(errz.NewRuntimeError(errz.TypeError, span,
			"cannot add %s and %s", a.Type(), b.Type()))
	}
	return vm.pushNumeric(an.Value()+bn.Value(), span)
}

func (vm *VirtualMachine) execArithmetic(opcode op.Code, span token.Span) error {
	b, err := vm.popNumber(span)
	if err != nil {
		return err
	}
	a, err := vm.popNumber(span)
	if err != nil {
		return err
	}
	var result float64
	switch opcode {
	case op.Sub:
		result = a - b
	case op.Mul:
		result = a * b
	case op.Div:
		if b == 0 {
			return vm.fail(errz.NewRuntimeError(errz.DivideByZero, span,
				"division by zero"))
		}
		result = a / b
	case op.Mod:
		if b == 0 {
			return vm.fail(errz.NewRuntimeError(errz.DivideByZero, span,
				"modulo by zero"))
		}
		result = math.Mod(a, b)
	}
	return vm.pushNumeric(result, span)
}

// pushNumeric pushes an arithmetic result, rejecting NaN and infinities.
func (vm *VirtualMachine) pushNumeric(v float64, span token.Span) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return vm.fail(errz.NewRuntimeError(errz.InvalidNumericResult, span,
			"operation produced %v", v))
	}
	vm.push(object.NewNumber(v))
	return nil
}

func (vm *VirtualMachine) execComparison(opcode op.Code, span token.Span) error {
	b, err := vm.popNumber(span)
	if err != nil {
		return err
	}
	a, err := vm.popNumber(span)
	if err != nil {
		return err
	}
	var result bool
	switch opcode {
	case op.Less:
		result = a < b
	case op.LessEqual:
		result = a <= b
	case op.Greater:
		result = a > b
	case op.GreaterEqual:
		result = a >= b
	}
	vm.push(object.NewBool(result))
	return nil
}

// ---------------------------------------------------------------------
// Calls

func (vm *VirtualMachine) execCall(ctx context.Context, argc int, span token.Span, obsConfig ObserverConfig) error {
	calleeIdx := len(vm.stack) - argc - 1
	if calleeIdx < 0 {
		return vm.fail(errz.NewRuntimeError(errz.StackUnderflow, span,
			"call with %d arguments on a short stack", argc))
	}
	switch callee := vm.stack[calleeIdx].(type) {

	case *object.Function:
		if argc != callee.Arity {
			return vm.fail(errz.NewRuntimeError(errz.TypeError, span,
				"%s expects %d argument(s), got %d", callee.Name, callee.Arity, argc))
		}
		if len(vm.frames) >= MaxFrameDepth {
			return vm.fail(errz.NewRuntimeError(errz.StackUnderflow, span,
				"call stack depth limit reached"))
		}
		vm.frames = append(vm.frames, frame{
			functionName: callee.Name,
			returnIP:     vm.ip,
			stackBase:    len(vm.stack) - argc,
			localCount:   callee.LocalCount,
			callSpan:     span,
		})
		// Grow the frame's local window past the arguments.
		for i := argc; i < callee.LocalCount; i++ {
			vm.push(object.Null)
		}
		if vm.observer != nil && obsConfig.ObserveCalls {
			if !vm.observer.OnCall(CallEvent{
				FunctionName: callee.Name,
				ArgCount:     argc,
				Span:         span,
				FrameDepth:   len(vm.frames),
			}) {
				return errHalted
			}
		}
		vm.ip = callee.BytecodeOffset
		return nil

	case *object.Builtin:
		args := make([]object.Value, argc)
		copy(args, vm.stack[len(vm.stack)-argc:])
		vm.stack = vm.stack[:calleeIdx]
		if vm.observer != nil && obsConfig.ObserveCalls {
			if !vm.observer.OnCall(CallEvent{
				FunctionName: callee.Name,
				ArgCount:     argc,
				Span:         span,
				FrameDepth:   len(vm.frames),
			}) {
				return errHalted
			}
		}
		result, err := callee.Fn(ctx, args...)
		if err != nil {
			var rerr *errz.RuntimeError
			if errors.As(err, &rerr) {
				if rerr.Span.IsZero() {
					rerr.Span = span
				}
				return vm.fail(rerr)
			}
			return vm.fail(errz.NewRuntimeError(errz.IoError, span, "%s: %v", callee.Name, err))
		}
		if result == nil {
			result = object.Null
		}
		vm.push(result)
		return nil

	default:
		return vm.fail(errz.NewRuntimeError(errz.UnknownFunction, span,
			"%s value is not callable", vm.stack[calleeIdx].Type()))
	}
}

// execReturn unwinds one frame. Returns done=true when the entry frame
// returns, which ends execution with the result value.
func (vm *VirtualMachine) execReturn(span token.Span, obsConfig ObserverConfig) (bool, object.Value, error) {
	result, err := vm.pop(span)
	if err != nil {
		return false, nil, err
	}
	if len(vm.frames) == 1 {
		return true, result, nil
	}
	f := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]

	// Drop the frame's locals and the callee value beneath them.
	vm.stack = vm.stack[:f.stackBase-1]
	vm.ip = f.returnIP
	vm.push(result)

	if vm.observer != nil && obsConfig.ObserveReturns {
		if !vm.observer.OnReturn(ReturnEvent{
			FunctionName: f.functionName,
			Span:         span,
			FrameDepth:   len(vm.frames),
		}) {
			return false, nil, errHalted
		}
	}
	return false, nil, nil
}

// ---------------------------------------------------------------------
// Arrays

func (vm *VirtualMachine) execGetIndex(span token.Span) error {
	idx, err := vm.pop(span)
	if err != nil {
		return err
	}
	target, err := vm.pop(span)
	if err != nil {
		return err
	}
	arr, i, err := vm.checkIndex(target, idx, span)
	if err != nil {
		return err
	}
	vm.push(arr.Get(i))
	return nil
}

func (vm *VirtualMachine) execSetIndex(span token.Span) error {
	value, err := vm.pop(span)
	if err != nil {
		return err
	}
	idx, err := vm.pop(span)
	if err != nil {
		return err
	}
	target, err := vm.pop(span)
	if err != nil {
		return err
	}
	arr, i, err := vm.checkIndex(target, idx, span)
	if err != nil {
		return err
	}
	arr.Set(i, value)
	// The stored value is the expression's result.
	vm.push(value)
	return nil
}

func (vm *VirtualMachine) checkIndex(target, idx object.Value, span token.Span) (*object.Array, int, error) {
	arr, ok := target.(*object.Array)
	if !ok {
		return nil, 0, vm.fail(errz.NewRuntimeError(errz.TypeError, span,
			"cannot index %s", target.Type()))
	}
	n, ok := idx.(*object.Number)
	if !ok {
		return nil, 0, vm.fail(errz.NewRuntimeError(errz.InvalidIndex, span,
			"array index must be a number, got %s", idx.Type()))
	}
	f := n.Value()
	i := int(f)
	if float64(i) != f {
		return nil, 0, vm.fail(errz.NewRuntimeError(errz.InvalidIndex, span,
			"array index must be an integer, got %s", n.Inspect()))
	}
	if i < 0 || i >= arr.Len() {
		return nil, 0, vm.fail(errz.NewRuntimeError(errz.OutOfBounds, span,
			"index %d out of bounds for length %d", i, arr.Len()))
	}
	return arr, i, nil
}
