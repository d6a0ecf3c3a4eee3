package mcp

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"
)

// MaxMessageBytes bounds a single inbound message on every transport.
const MaxMessageBytes = 4 << 20

type frame struct {
	data []byte
	err  error
}

// StdioConn frames messages as newline-delimited JSON over a reader and a
// writer. A line longer than MaxMessageBytes is unrecoverable and ends
// the connection.
type StdioConn struct {
	frames chan frame
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	out io.Writer
}

// NewStdioConn starts reading lines from r.
func NewStdioConn(r io.Reader, w io.Writer) *StdioConn {
	c := &StdioConn{frames: make(chan frame), done: make(chan struct{}), out: w}
	go c.readLoop(r)
	return c
}

func (c *StdioConn) readLoop(r io.Reader) {
	defer close(c.frames)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), MaxMessageBytes)
	for sc.Scan() {
		if !c.send(frame{data: bytes.Clone(sc.Bytes())}) {
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	c.send(frame{err: err})
}

func (c *StdioConn) send(f frame) bool {
	select {
	case c.frames <- f:
		return true
	case <-c.done:
		return false
	}
}

// ReadMessage returns the next line.
func (c *StdioConn) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return f.data, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WriteMessage writes msg followed by a newline.
func (c *StdioConn) WriteMessage(_ context.Context, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, 0, len(msg)+1)
	buf = append(append(buf, msg...), '\n')
	_, err := c.out.Write(buf)
	return err
}

// Close stops delivering frames. A read blocked on the underlying reader
// is left to finish on its own.
func (c *StdioConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// ServeStdio serves a single connection over in and out.
func ServeStdio(ctx context.Context, srv *Server, in io.Reader, out io.Writer) error {
	conn := NewStdioConn(in, out)
	defer conn.Close()
	return srv.NewSession("stdio").Serve(ctx, conn)
}
