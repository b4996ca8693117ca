//go:build windows

package socket

import (
	"fmt"

	"github.com/Majianb/Mjber/ioruntime"
)

// Windows support is limited to the reactor's IOCP binding
// (reactor/reactor_windows.go); the socket syscall layer itself
// is not wired up on this GOOS — see DESIGN.md for why overlapped
// WSARecv/WSASend (the idiomatic Windows non-blocking socket API)
// was left out of this pass rather than half-done.
var errWindowsUnsupported = fmt.Errorf("socket: Windows socket syscalls not implemented")

func Listen(h *ioruntime.Handle, kind Kind, addr string, port uint16, backlog int, opts ...Option) (*Socket, error) {
	return nil, ioruntime.NewSyscallError("listen", errWindowsUnsupported)
}

func Dial(h *ioruntime.Handle, kind Kind, addr string, port uint16, opts ...Option) (*Socket, error) {
	return nil, ioruntime.NewSyscallError("connect", errWindowsUnsupported)
}

func (s *Socket) Accept() (*Socket, error) {
	return nil, ioruntime.NewSyscallError("accept", errWindowsUnsupported)
}

func (s *Socket) Read(buf []byte) (int, error) {
	return 0, ioruntime.NewSyscallError("read", errWindowsUnsupported)
}

func (s *Socket) Write(buf []byte) (int, error) {
	return 0, ioruntime.NewSyscallError("write", errWindowsUnsupported)
}

func (s *Socket) Close() error {
	return errWindowsUnsupported
}
