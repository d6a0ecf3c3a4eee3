package mcp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// inboxSize is how many posted messages may wait for their session.
	inboxSize = 64
	// keepAliveInterval spaces SSE comments sent on idle streams.
	keepAliveInterval = 25 * time.Second
)

var (
	errSessionClosed = errors.New("session closed")
	errInboxFull     = errors.New("session inbox full")
)

// pipeConn is the Conn of an SSE session: posted messages go in through
// deliver, replies come out on out and are streamed by the GET handler.
type pipeConn struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:   make(chan []byte, inboxSize),
		out:  make(chan []byte),
		done: make(chan struct{}),
	}
}

func (p *pipeConn) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeConn) WriteMessage(ctx context.Context, msg []byte) error {
	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return errSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeConn) deliver(msg []byte) error {
	select {
	case <-p.done:
		return errSessionClosed
	default:
	}
	select {
	case p.in <- msg:
		return nil
	default:
		return errInboxFull
	}
}

func (p *pipeConn) close() {
	p.once.Do(func() { close(p.done) })
}

// HTTPTransport serves MCP over HTTP: an SSE stream per connection with a
// companion POST endpoint for inbound messages, plus a single-shot POST
// endpoint answering one JSON-RPC request per HTTP request.
type HTTPTransport struct {
	srv    *Server
	log    *logrus.Entry
	prefix string

	mu       sync.Mutex
	sessions map[string]*pipeConn
}

// NewHTTPTransport builds the transport; prefix is the route group the
// transport is mounted under, e.g. "/mcp".
func NewHTTPTransport(srv *Server, prefix string, log *logrus.Entry) *HTTPTransport {
	return &HTTPTransport{srv: srv, log: log, prefix: prefix, sessions: make(map[string]*pipeConn)}
}

// Register mounts the transport routes on r.
func (h *HTTPTransport) Register(r gin.IRouter) {
	g := r.Group(h.prefix)
	g.GET("/sse", h.handleStream)
	g.POST("/messages/", h.handleMessage)
	g.POST("/rpc", h.handleRPC)
}

// Sessions returns the number of open SSE sessions.
func (h *HTTPTransport) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *HTTPTransport) handleStream(c *gin.Context) {
	id := uuid.NewString()
	conn := newPipeConn()
	h.mu.Lock()
	h.sessions[id] = conn
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
		conn.close()
	}()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("endpoint", h.prefix+"/messages/?session_id="+id)
	c.Writer.Flush()

	sess := h.srv.NewSession(id)
	served := make(chan error, 1)
	go func() { served <- sess.Serve(ctx, conn) }()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case msg := <-conn.out:
			c.SSEvent("message", string(msg))
			c.Writer.Flush()
		case <-ticker.C:
			_, _ = c.Writer.WriteString(": ping\n\n")
			c.Writer.Flush()
		case err := <-served:
			if err != nil {
				h.log.WithError(err).WithField("session", id).Warn("session ended")
			}
			return
		case <-ctx.Done():
			conn.close()
			<-served
			return
		}
	}
}

func (h *HTTPTransport) handleMessage(c *gin.Context) {
	id := c.Query("session_id")
	if id == "" {
		id = c.Query("sessionId")
	}
	h.mu.Lock()
	conn, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}

	body, ok := readBody(c)
	if !ok {
		return
	}
	switch err := conn.deliver(body); {
	case errors.Is(err, errSessionClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, errInboxFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.String(http.StatusAccepted, "Accepted")
	}
}

// handleRPC answers one request per HTTP call on a throwaway session.
func (h *HTTPTransport) handleRPC(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	sess := h.srv.NewSession("rpc-" + uuid.NewString())
	defer sess.Close()

	reply := sess.Handle(c.Request.Context(), body)
	if reply == nil {
		c.Status(http.StatusAccepted)
		return
	}
	c.Data(http.StatusOK, "application/json", reply)
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxMessageBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
		return nil, false
	}
	if len(body) > MaxMessageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "message too large"})
		return nil, false
	}
	return body, true
}
