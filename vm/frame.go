package vm

import "github.com/atlas-lang/atlas/token"

// frame is one call-stack entry. A frame owns the contiguous window of
// operand-stack slots holding the function's locals: slot i lives at
// stack[stackBase+i].
type frame struct {
	// functionName is the declared name, or "<main>" for the entry frame.
	functionName string

	// returnIP is the instruction offset execution resumes at after
	// Return.
	returnIP int

	// stackBase is the stack index of local slot zero. Arguments are
	// already in place when the frame is pushed, so stackBase is the
	// stack length minus the argument count.
	stackBase int

	// localCount is the number of local slots the frame owns.
	localCount int

	// callSpan is the source span of the call site, used for stack
	// traces.
	callSpan token.Span
}
