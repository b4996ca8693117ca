// Package ctxswitch models the fiber context-switch primitive: the
// minimal machine state needed to suspend and later resume a
// stackful task.
//
// Go gives user code no portable way to read or overwrite a
// goroutine's register file or stack pointer — that bookkeeping lives
// in the runtime's own gobuf/gogo/mcall machinery and is neither
// exported nor stable across releases. The Go-idiomatic substitute
// used here is to let a dedicated goroutine BE the private stack (it
// already owns one, growable, and the runtime already preserves its
// machine state across a park/unpark cycle for free) and to implement
// the suspend/resume rendezvous with a pair of unbuffered channels.
//
// Context still carries a per-architecture register layout as plain
// data — useful for introspection and for keeping a suspended
// fiber's invariants checkable — but Swap/Park/Wake never touch those
// fields; they are bookkeeping only.
package ctxswitch
