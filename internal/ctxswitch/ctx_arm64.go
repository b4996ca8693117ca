//go:build arm64

package ctxswitch

// attachRegs allocates the documentary aarch64 register snapshot for
// this build target.
func attachRegs(c *Context) {
	c.ARM64 = &ARM64Regs{}
}
