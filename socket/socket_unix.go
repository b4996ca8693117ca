//go:build linux || darwin

package socket

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/Majianb/Mjber/ioruntime"
)

func domainFor(f Family) int {
	switch f {
	case FamilyInet6:
		return unix.AF_INET6
	case FamilyUnix:
		return unix.AF_UNIX
	default:
		return unix.AF_INET
	}
}

func sockTypeFor(k Kind) int {
	if k == UDP {
		return unix.SOCK_DGRAM
	}
	return unix.SOCK_STREAM
}

// createNonblocking opens a non-blocking socket of the given
// family/kind (SOCK_NONBLOCK at creation, no separate fcntl dance
// needed).
func createNonblocking(family Family, kind Kind) (int, error) {
	fd, err := unix.Socket(domainFor(family), sockTypeFor(kind)|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

func sockaddrFor(family Family, addr string, port uint16) (unix.Sockaddr, error) {
	if family == FamilyUnix {
		path := addr[len("unix://"):]
		return &unix.SockaddrUnix{Name: path}, nil
	}
	ip := net.ParseIP(trimPort(addr))
	if family == FamilyInet6 {
		sa := &unix.SockaddrInet6{Port: int(port)}
		if ip != nil {
			copy(sa.Addr[:], ip.To16())
		}
		return sa, nil
	}
	sa := &unix.SockaddrInet4{Port: int(port)}
	if ip != nil {
		copy(sa.Addr[:], ip.To4())
	}
	return sa, nil
}

// trimPort strips a trailing ":port" if present, since addr here is
// sometimes given as a bare host and sometimes as "host:port" —
// accepted for caller convenience even though port is also taken
// explicitly, matching the original's separate (addr, port) pair.
func trimPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// Listen creates a bound, listening socket (TCP) or a bound socket
// (UDP).
func Listen(h *ioruntime.Handle, kind Kind, addr string, port uint16, backlog int, opts ...Option) (*Socket, error) {
	family := resolveFamily(addr)
	fd, err := createNonblocking(family, kind)
	if err != nil {
		return nil, ioruntime.NewSyscallError("socket", err)
	}
	s := &Socket{fd: fd, family: family, kind: kind, handle: h}
	for _, o := range opts {
		o(s)
	}
	if s.reuseaddr {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}
	if s.nodelay && kind == TCP {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}

	sa, err := sockaddrFor(family, addr, port)
	if err != nil {
		unix.Close(fd)
		return nil, ioruntime.NewSyscallError("bind", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, ioruntime.NewSyscallError("bind", err)
	}
	s.peer = addr
	if bound, err := unix.Getsockname(fd); err == nil {
		s.port = portOfSockaddr(bound)
	} else {
		s.port = port
	}

	if kind == TCP {
		if backlog <= 0 {
			backlog = unix.SOMAXCONN
		}
		if err := unix.Listen(fd, backlog); err != nil {
			unix.Close(fd)
			return nil, ioruntime.NewSyscallError("listen", err)
		}
	}
	return s, nil
}

// Dial connects to addr:port, suspending on WRITABLE while the
// non-blocking connect completes.
func Dial(h *ioruntime.Handle, kind Kind, addr string, port uint16, opts ...Option) (*Socket, error) {
	family := resolveFamily(addr)
	fd, err := createNonblocking(family, kind)
	if err != nil {
		return nil, ioruntime.NewSyscallError("socket", err)
	}
	s := &Socket{fd: fd, family: family, kind: kind, handle: h, peer: addr}
	for _, o := range opts {
		o(s)
	}
	if s.nodelay && kind == TCP {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}

	sa, err := sockaddrFor(family, addr, port)
	if err != nil {
		unix.Close(fd)
		return nil, ioruntime.NewSyscallError("connect", err)
	}
	for {
		err := unix.Connect(fd, sa)
		if err == nil || err == unix.EISCONN {
			return s, nil
		}
		if err == unix.EINPROGRESS || err == unix.EALREADY {
			if werr := s.awaitWritable("connect"); werr != nil {
				unix.Close(fd)
				return nil, werr
			}
			continue
		}
		unix.Close(fd)
		return nil, ioruntime.NewSyscallError("connect", err)
	}
}

// Accept implements the accept loop: suspend on readable, retry,
// until a connection is ready or a real error occurs.
func (s *Socket) Accept() (*Socket, error) {
	for {
		nfd, sa, err := unix.Accept(s.fd)
		if err == nil {
			_ = unix.SetNonblock(nfd, true)
			peer := peerAddrOf(sa)
			return &Socket{fd: nfd, family: s.family, kind: TCP, handle: s.handle, peer: peer}, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := s.awaitReadable("accept"); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, ioruntime.NewSyscallError("accept", err)
	}
}

func portOfSockaddr(sa unix.Sockaddr) uint16 {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return uint16(a.Port)
	case *unix.SockaddrInet6:
		return uint16(a.Port)
	default:
		return 0
	}
}

func peerAddrOf(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrUnix:
		return "unix://" + a.Name
	default:
		return ""
	}
}

// Read implements the read loop: returns the count actually read
// (which may be less than len(buf)), ErrPeerClosed on a clean EOF,
// or a SyscallError.
func (s *Socket) Read(buf []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, buf)
		if err == nil {
			if n == 0 {
				return 0, ErrPeerClosed
			}
			return n, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := s.awaitReadable("read"); werr != nil {
				return 0, werr
			}
			continue
		}
		return 0, ioruntime.NewSyscallError("read", err)
	}
}

// Write implements the write loop: loops until every byte of buf is
// written.
func (s *Socket) Write(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Write(s.fd, buf[total:])
		if err == nil {
			total += n
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := s.awaitWritable("write"); werr != nil {
				return total, werr
			}
			continue
		}
		return total, ioruntime.NewSyscallError("write", err)
	}
	return total, nil
}

// Close unregisters this socket's fd from the scheduler first (if
// one is attached), then closes the descriptor. Because the fd leaves
// the poller first, a fiber parked on this socket is not woken.
func (s *Socket) Close() error {
	if s.handle != nil {
		_ = s.handle.UnregisterIO(s.Fd())
	}
	return unix.Close(s.fd)
}
