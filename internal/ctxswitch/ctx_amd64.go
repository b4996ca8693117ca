//go:build amd64

package ctxswitch

// attachRegs allocates the documentary x86_64 register snapshot for
// this build target. It is never read by Swap/Park/Wake; it exists so
// Context carries the same field the original's per-arch context.h
// specialization does.
func attachRegs(c *Context) {
	c.AMD64 = &AMD64Regs{}
}
