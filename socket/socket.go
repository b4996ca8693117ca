// Package socket is the non-blocking socket adapter: every operation
// is a suspend-until-able loop over a non-blocking syscall, grounded
// on original_source/mjber's socket_wrapper.h, split into a
// platform-neutral shell and a GOOS-specific syscall layer.
package socket

import (
	"strings"

	"github.com/Majianb/Mjber/ioruntime"
	"github.com/Majianb/Mjber/reactor"
)

// Family is the socket address family.
type Family int

const (
	FamilyInet Family = iota
	FamilyInet6
	FamilyUnix
)

// Kind is the socket's transport kind.
type Kind int

const (
	TCP Kind = iota
	UDP
	Unix
)

// Socket wraps one OS socket: its family, kind, and peer address,
// plus (optionally) the scheduler handle of the fiber that owns it —
// nil when used outside any fiber, in which case every would-block
// condition fails immediately instead of suspending.
type Socket struct {
	fd     int
	family Family
	kind   Kind
	peer   string
	port   uint16

	handle *ioruntime.Handle

	reuseaddr bool
	nodelay   bool
}

// Option configures socket options applied at creation.
type Option func(*Socket)

// ReuseAddr sets SO_REUSEADDR before bind.
func ReuseAddr() Option { return func(s *Socket) { s.reuseaddr = true } }

// TCPNoDelay sets TCP_NODELAY after creation (TCP sockets only).
func TCPNoDelay() Option { return func(s *Socket) { s.nodelay = true } }

// resolveFamily infers the address family from the address string: a
// "unix://<path>" prefix selects the unix-domain family; a string
// containing ':' selects IPv6; otherwise IPv4.
func resolveFamily(addr string) Family {
	switch {
	case strings.HasPrefix(addr, "unix://"):
		return FamilyUnix
	case strings.Contains(addr, ":"):
		return FamilyInet6
	default:
		return FamilyInet
	}
}

// PeerAddr returns the address recorded for this socket — the bound
// address for a listener, the remote peer for an accepted or dialed
// connection.
func (s *Socket) PeerAddr() string { return s.peer }

// Port returns the resolved port: for a listener bound with port 0,
// this is the OS-assigned ephemeral port.
func (s *Socket) Port() uint16 { return s.port }

// Fd exposes the raw file descriptor, mainly so higher layers
// (httpserver, tests) can pass it to ioruntime.Handle.RegisterIO
// directly when composing lower-level behavior.
func (s *Socket) Fd() uintptr { return uintptr(s.fd) }

// await implements the "register then yield" half of the
// suspend-until-able loop. Returns a ProtocolError instead of
// suspending if this socket has no owning fiber handle.
func (s *Socket) await(op string, kind reactor.Kind) error {
	if s.handle == nil {
		return ioruntime.NewProtocolError(op, errNoScheduler)
	}
	if err := s.handle.RegisterIO(s.Fd(), kind); err != nil {
		return err
	}
	s.handle.Yield()
	return nil
}

func (s *Socket) awaitReadable(op string) error { return s.await(op, reactor.Readable) }
func (s *Socket) awaitWritable(op string) error { return s.await(op, reactor.Writable) }
