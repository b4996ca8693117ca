//go:build !amd64 && !arm64

package ctxswitch

// attachRegs is a no-op on architectures without a documented
// register-set mapping; Context.AMD64 and Context.ARM64 stay nil.
// This never affects correctness since neither field is read by
// Swap/Park/Wake.
func attachRegs(c *Context) {}
