package mcp

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vector-ai/vector-mcp-server/internal/catalog"
	"github.com/vector-ai/vector-mcp-server/internal/upstream"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// fakeCaller records requests and answers from a table keyed by
// "METHOD path". Unlisted requests succeed with an empty object.
type fakeCaller struct {
	mu       sync.Mutex
	requests []upstream.Request
	replies  map[string]upstream.Outcome
	// block, when set, holds every call until ctx is done.
	block   bool
	started chan struct{}
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{replies: map[string]upstream.Outcome{}, started: make(chan struct{}, 16)}
}

func (f *fakeCaller) on(method, path string, out upstream.Outcome) *fakeCaller {
	f.replies[method+" "+path] = out
	return f
}

func (f *fakeCaller) Call(ctx context.Context, req upstream.Request) upstream.Outcome {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	out, ok := f.replies[req.Method+" "+req.Path]
	block := f.block
	f.mu.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}
	if block {
		<-ctx.Done()
		return upstream.Unknown("request canceled")
	}
	if !ok {
		return upstream.Success(json.RawMessage(`{}`))
	}
	return out
}

func (f *fakeCaller) calls() []upstream.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstream.Request(nil), f.requests...)
}

func defaultToolbox(t *testing.T) *Toolbox {
	t.Helper()
	tools, err := catalog.Default()
	require.NoError(t, err)
	tb, err := NewToolbox(tools...)
	require.NoError(t, err)
	return tb
}

func newTestServer(t *testing.T, caller upstream.Caller) *Server {
	t.Helper()
	tb := defaultToolbox(t)
	return NewServer(Info{Name: "vector-ai-sports", Version: "1.0.0", ProtocolVersion: "2024-11-05"},
		tb, NewExecutor(tb, caller, testLogger()), testLogger(), nil)
}
