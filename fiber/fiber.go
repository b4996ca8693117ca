// Package fiber implements stackful cooperative tasks on top of the
// Go scheduler: each Fiber owns a dedicated goroutine standing in for
// the private stack the original design allocates by hand, and a
// pair of internal/ctxswitch gates standing in for the raw register
// swap. See internal/ctxswitch's doc comment for why.
package fiber

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Majianb/Mjber/internal/ctxswitch"
)

// State is a fiber's lifecycle state:
//
//	create  -> Ready
//	start   -> Running
//	yield   -> Suspended
//	resume  -> Running
//	return  -> Terminated
//	panic   -> Errored
//	reuse   -> Ready (new generation, same id)
type State int32

const (
	StateInit State = iota
	StateReady
	StateRunning
	StateSuspended
	StateTerminated
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateSuspended:
		return "Suspended"
	case StateTerminated:
		return "Terminated"
	case StateErrored:
		return "Errored"
	default:
		return "Unknown"
	}
}

var nextID atomic.Uint64

// ErrProtocol reports a caller-side misuse of the fiber contract: a
// resume on a non-suspended fiber, a yield from outside the running
// fiber, and similar — a protocol-level error kind distinct from a
// syscall failure or a user callable's own panic.
type ErrProtocol struct {
	Op    string
	State State
}

func (e *ErrProtocol) Error() string {
	return fmt.Sprintf("fiber: %s invalid in state %s", e.Op, e.State)
}

// Fiber is a stackful, addressable, shareable task value.
type Fiber struct {
	id         uint64
	generation uint64

	mu         sync.Mutex
	state      State
	task       func()
	completion func()
	active     ctxswitch.Gate // gate of whoever is parked inside Start/Resume/Yield(next) waiting for this activation to pause
	resume     ctxswitch.Gate // gate this fiber's goroutine is parked on while Suspended
	err        error
	ctx        *ctxswitch.Context
}

// Create binds task into a new fiber. The fiber does not begin
// executing until Start is called.
func Create(task func()) *Fiber {
	f := &Fiber{
		id:    nextID.Add(1),
		state: StateReady,
		task:  task,
		ctx:   ctxswitch.New(),
	}
	return f
}

// ID returns the fiber's identity, preserved across Reuse; use
// Generation to distinguish logical incarnations sharing one id.
func (f *Fiber) ID() uint64 { return f.id }

// Generation increments every time Reuse rebinds this fiber to a new
// task. Callers that want to treat reuse as a fresh logical fiber
// (per Design Notes) can key off this instead of ID.
func (f *Fiber) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation
}

// State returns the fiber's current lifecycle state.
func (f *Fiber) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err returns the error recorded by an uncaught panic, if the fiber
// is Errored.
func (f *Fiber) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// SetCompletion records a callback to run on this fiber's goroutine
// immediately after the task returns normally. May be called at most
// once per generation, and only before the fiber starts running.
func (f *Fiber) SetCompletion(cb func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateReady {
		return &ErrProtocol{Op: "SetCompletion", State: f.state}
	}
	if f.completion != nil {
		return fmt.Errorf("fiber: completion already set for generation %d", f.generation)
	}
	f.completion = cb
	return nil
}

// Start begins executing the fiber's task on a dedicated goroutine
// and blocks the calling goroutine (the "thread root") until the
// fiber next yields or terminates.
func (f *Fiber) Start() error {
	f.mu.Lock()
	if f.state != StateReady {
		state := f.state
		f.mu.Unlock()
		return &ErrProtocol{Op: "Start", State: state}
	}
	f.state = StateRunning
	caller := ctxswitch.NewGate()
	f.active = caller
	f.mu.Unlock()

	go f.mainline()
	ctxswitch.Park(caller)
	return nil
}

// Resume continues a Suspended fiber from the point of its last
// Yield, blocking the caller until the fiber yields again or
// terminates.
func (f *Fiber) Resume() error {
	f.mu.Lock()
	if f.state != StateSuspended {
		state := f.state
		f.mu.Unlock()
		return &ErrProtocol{Op: "Resume", State: state}
	}
	f.state = StateRunning
	caller := ctxswitch.NewGate()
	f.active = caller
	target := f.resume
	f.mu.Unlock()

	ctxswitch.Swap(target, caller)
	return nil
}

// Yield suspends the calling fiber. It is only valid to call from
// within the fiber's own goroutine. If next is non-nil and currently
// Suspended, it is resumed as a side effect (see the package doc on
// why this cannot be a true stack-to-stack handoff once every fiber
// owns its own goroutine); otherwise control returns to whichever
// goroutine is parked in this fiber's Start/Resume call.
func (f *Fiber) Yield(next *Fiber) {
	f.mu.Lock()
	if f.state != StateRunning {
		f.mu.Unlock()
		return
	}
	f.state = StateSuspended
	caller := f.active
	mine := ctxswitch.NewGate()
	f.resume = mine
	f.mu.Unlock()

	if next != nil {
		go func() {
			_ = next.Resume()
		}()
	}

	ctxswitch.Swap(caller, mine)
}

// Reuse rebinds a Terminated fiber to a new task, preserving its id
// but starting a new generation: a fresh gate, a cleared error, and
// state reset to Ready. Only valid from Terminated, not Errored — an
// errored fiber's failure should be observed, not silently discarded.
func (f *Fiber) Reuse(task func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateTerminated {
		return &ErrProtocol{Op: "Reuse", State: f.state}
	}
	f.state = StateReady
	f.task = task
	f.completion = nil
	f.err = nil
	f.generation++
	f.active = nil
	f.resume = nil
	f.ctx = ctxswitch.New()
	return nil
}

// mainline is the trampoline body: it runs on the fiber's own
// goroutine, executes the user task with panic recovery, marks the
// fiber Terminated, then runs the completion callback (only on a
// normal return — an uncaught panic skips it) and finally swaps
// control back to whoever is parked in this fiber's current
// activation. State must flip to Terminated before the completion
// callback runs: the callback is what makes the fiber visible to a
// concurrent Spawn via the free list, and Reuse requires the fiber
// already be Terminated. For the same reason the gate to wake is read
// before the callback: once the fiber is on the free list, a new
// generation may already have replaced it.
func (f *Fiber) mainline() {
	var caller ctxswitch.Gate

	func() {
		defer func() {
			if r := recover(); r != nil {
				f.mu.Lock()
				f.state = StateErrored
				f.err = fmt.Errorf("fiber %d: %v", f.id, r)
				caller = f.active
				f.mu.Unlock()
			}
		}()
		if f.task != nil {
			f.task()
		}
		f.mu.Lock()
		f.state = StateTerminated
		completion := f.completion
		caller = f.active
		f.mu.Unlock()
		if completion != nil {
			completion()
		}
	}()

	ctxswitch.Wake(caller)
}
