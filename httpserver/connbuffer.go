package httpserver

import (
	"bytes"
	"io"

	"github.com/Majianb/Mjber/buffer"
)

// byteReader is the minimal slice of *socket.Socket that connBuffer
// needs; accepting this instead of *socket.Socket directly lets tests
// drive readLine/readN against a fake that delivers fragmented reads
// without standing up a real socket.
type byteReader interface {
	Read(p []byte) (int, error)
}

// connBuffer is the per-connection read staging area: it pulls raw
// bytes off the connection in whatever chunks the kernel hands back
// and stages them in a buffer.Buffer, so readRequest works against
// delimiter scans and fixed-length reads instead of slicing a raw
// []byte itself.
type connBuffer struct {
	conn byteReader
	buf  *buffer.Buffer
	err  error
}

func newConnBuffer(conn byteReader) *connBuffer {
	return &connBuffer{conn: conn, buf: buffer.New(4096)}
}

// fill reads one chunk from the connection into buf. It returns nil
// whenever it actually staged new bytes, even if the read that
// produced them also returned an error — that error is remembered and
// only surfaced once the staged bytes have been consumed.
func (c *connBuffer) fill() error {
	if c.err != nil {
		return c.err
	}
	c.buf.EnsureWritable(4096)
	scratch := make([]byte, c.buf.WritableBytes())
	n, err := c.conn.Read(scratch)
	if n > 0 {
		c.buf.Write(scratch[:n])
	}
	switch {
	case err != nil:
		c.err = err
	case n == 0:
		c.err = io.EOF
	}
	if n > 0 {
		return nil
	}
	return c.err
}

// readLine returns the next '\n'-terminated line, refilling from the
// connection as needed. The trailing delimiter is included.
func (c *connBuffer) readLine() (string, error) {
	for {
		chunk := c.buf.Peek(c.buf.ReadableBytes())
		if idx := bytes.IndexByte(chunk, '\n'); idx >= 0 {
			c.buf.Discard(idx + 1)
			return string(chunk[:idx+1]), nil
		}
		if err := c.fill(); err != nil {
			return "", err
		}
	}
}

// readN returns exactly n bytes, refilling from the connection as
// needed.
func (c *connBuffer) readN(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		if c.buf.ReadableBytes() == 0 {
			if err := c.fill(); err != nil {
				return nil, err
			}
			continue
		}
		chunk := make([]byte, n-len(out))
		got, _ := c.buf.Read(chunk)
		out = append(out, chunk[:got]...)
	}
	return out, nil
}
