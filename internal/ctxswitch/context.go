package ctxswitch

// Context is the data-model record for a suspended fiber: the
// trampoline wiring needed for first entry, plus a documentary
// register snapshot for whichever architecture this binary was built
// for. At most one of AMD64/ARM64 is non-nil.
//
// No field of Context drives suspend/resume: Swap, Park and Wake act
// on the Gate values passed to them, and package fiber keeps its own
// gates. The fields exist so a suspended fiber's saved-context
// invariant has a concrete, inspectable representation, even though
// the actual suspension mechanism here is a parked goroutine, not a
// register swap.
type Context struct {
	// FirstEntry is raised by New and Reset to mark a context that
	// has never been entered. It is bookkeeping only: nothing in this
	// package reads it.
	FirstEntry bool

	// Trampoline and TrampolineArg record the fiber mainline function
	// and its single argument (a pointer to the owning fiber), as set
	// by Reset; nothing in this package calls Trampoline.
	Trampoline    func(arg any)
	TrampolineArg any

	// Gate is the rendezvous channel standing in for a raw register
	// swap; see Swap.
	Gate Gate

	AMD64 *AMD64Regs
	ARM64 *ARM64Regs
}

// AMD64Regs records the x86_64 callee-saved register set a context
// switch must preserve.
type AMD64Regs struct {
	RIP, RSP, RBX, RBP, RSI, RDI   uintptr
	R12, R13, R14, R15             uintptr
	XMM6, XMM7, XMM8, XMM9, XMM10  [16]byte
	XMM11, XMM12, XMM13, XMM14, XMM15 [16]byte
}

// ARM64Regs records the aarch64 callee-saved register set.
type ARM64Regs struct {
	X19, X20, X21, X22, X23 uint64
	X24, X25, X26, X27, X28 uint64
	FP, LR                  uint64
	SP, PC                  uintptr
}

// New allocates a Context for a fresh fiber generation: FirstEntry is
// set, the architecture-specific register snapshot is zeroed and
// attached for documentation, and a fresh Gate is created.
func New() *Context {
	c := &Context{FirstEntry: true, Gate: NewGate()}
	attachRegs(c)
	return c
}

// Reset rebinds a Context to a new trampoline argument for fiber
// reuse: FirstEntry is raised again and the gate is recreated so no
// stale send/receive from the previous generation can be observed by
// the new one.
func (c *Context) Reset(trampoline func(arg any), arg any) {
	c.FirstEntry = true
	c.Trampoline = trampoline
	c.TrampolineArg = arg
	c.Gate = NewGate()
}
