package socket

import "errors"

// errNoScheduler is wrapped into a ProtocolError when a socket
// operation would block but the socket has no owning fiber handle to
// suspend on.
var errNoScheduler = errors.New("socket: would block and no scheduler/fiber is attached")

// ErrClosed names use of an already-closed socket. No operation in
// this package returns it: on a closed descriptor the OS error (EBADF)
// comes back wrapped in a SyscallError.
var ErrClosed = errors.New("socket: use of closed socket")

// ErrPeerClosed distinguishes a clean EOF from a syscall failure as
// an explicit sentinel, instead of relying on callers to notice a
// zero byte count from Read.
var ErrPeerClosed = errors.New("socket: peer closed the connection")
