package socket

import (
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/Majianb/Mjber/ioruntime"
)

// connAdapter makes a *Socket satisfy net.Conn so crypto/tls's own
// handshake state machine can drive it. tls.Conn already implements
// a want-read/want-write retry loop by calling Read/Write on whatever
// net.Conn it's given, and our Read/Write already suspend the fiber
// on EAGAIN. So mapping WANT_READ/WANT_WRITE onto register-and-yield
// falls out for free instead of being hand-rolled, and — since every
// Read/Write here always happens on the *accepted connection's*
// Socket, never the listener's — the handshake automatically waits on
// the right descriptor.
type connAdapter struct{ s *Socket }

func (c *connAdapter) Read(b []byte) (int, error) {
	n, err := c.s.Read(b)
	if err == ErrPeerClosed {
		return n, io.EOF
	}
	return n, err
}

func (c *connAdapter) Write(b []byte) (int, error) { return c.s.Write(b) }
func (c *connAdapter) Close() error                { return c.s.Close() }
func (c *connAdapter) LocalAddr() net.Addr          { return sockAddr(c.s.PeerAddr()) }
func (c *connAdapter) RemoteAddr() net.Addr         { return sockAddr(c.s.PeerAddr()) }

// Deadlines are a no-op: this runtime has no built-in cancellation or
// per-operation timeout — callers needing one compose the timer
// package instead.
func (c *connAdapter) SetDeadline(time.Time) error      { return nil }
func (c *connAdapter) SetReadDeadline(time.Time) error  { return nil }
func (c *connAdapter) SetWriteDeadline(time.Time) error { return nil }

type sockAddr string

func (a sockAddr) Network() string { return "socket" }
func (a sockAddr) String() string  { return string(a) }

// TLSSocket is the TLS variant of Socket: structurally identical
// (same suspend-until-able shape underneath), substituting tls.Conn's
// Read/Write for the raw syscalls.
type TLSSocket struct {
	plain *Socket
	conn  *tls.Conn
}

func (t *TLSSocket) Read(buf []byte) (int, error) {
	n, err := t.conn.Read(buf)
	if err == io.EOF {
		return n, ErrPeerClosed
	}
	return n, err
}

func (t *TLSSocket) Write(buf []byte) (int, error) { return t.conn.Write(buf) }

func (t *TLSSocket) Close() error {
	_ = t.conn.Close()
	return t.plain.Close()
}

// PeerAddr returns the underlying plain socket's recorded address.
func (t *TLSSocket) PeerAddr() string { return t.plain.PeerAddr() }

// TLSListener accepts plain connections on its listener socket and
// performs a TLS handshake on each, inside Accept.
type TLSListener struct {
	listener *Socket
	cfg      *tls.Config
}

// ListenTLS binds and listens like Listen, additionally carrying the
// TLS server config used by every accepted connection's handshake.
func ListenTLS(h *ioruntime.Handle, addr string, port uint16, cfg *tls.Config, backlog int, opts ...Option) (*TLSListener, error) {
	l, err := Listen(h, TCP, addr, port, backlog, opts...)
	if err != nil {
		return nil, err
	}
	return &TLSListener{listener: l, cfg: cfg}, nil
}

// Accept accepts a plain connection on the listener's fd (the
// register-and-yield loop that belongs to the listener), then
// performs the TLS handshake — which waits, if it needs to, on the
// freshly accepted connection's own fd, not the listener's.
func (tl *TLSListener) Accept() (*TLSSocket, error) {
	plain, err := tl.listener.Accept()
	if err != nil {
		return nil, err
	}
	conn := tls.Server(&connAdapter{s: plain}, tl.cfg)
	if err := conn.Handshake(); err != nil {
		_ = plain.Close()
		return nil, ioruntime.NewSyscallError("tls_handshake", err)
	}
	return &TLSSocket{plain: plain, conn: conn}, nil
}

// Close closes the underlying listener socket.
func (tl *TLSListener) Close() error { return tl.listener.Close() }

// DialTLS connects then performs a client-side TLS handshake.
func DialTLS(h *ioruntime.Handle, addr string, port uint16, cfg *tls.Config, opts ...Option) (*TLSSocket, error) {
	plain, err := Dial(h, TCP, addr, port, opts...)
	if err != nil {
		return nil, err
	}
	conn := tls.Client(&connAdapter{s: plain}, cfg)
	if err := conn.Handshake(); err != nil {
		_ = plain.Close()
		return nil, ioruntime.NewSyscallError("tls_handshake", err)
	}
	return &TLSSocket{plain: plain, conn: conn}, nil
}
