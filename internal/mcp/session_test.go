package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceConn feeds fixed messages and records replies.
type sliceConn struct {
	in      [][]byte
	out     [][]byte
	readErr error
}

func (c *sliceConn) ReadMessage(ctx context.Context) ([]byte, error) {
	if len(c.in) == 0 {
		if c.readErr != nil {
			return nil, c.readErr
		}
		return nil, io.EOF
	}
	msg := c.in[0]
	c.in = c.in[1:]
	return msg, nil
}

func (c *sliceConn) WriteMessage(_ context.Context, msg []byte) error {
	c.out = append(c.out, msg)
	return nil
}

func replyIDs(t *testing.T, replies [][]byte) []string {
	t.Helper()
	ids := make([]string, 0, len(replies))
	for _, raw := range replies {
		ids = append(ids, string(decodeReply(t, raw).ID))
	}
	return ids
}

func TestServeRepliesInOrder(t *testing.T) {
	sess := newTestServer(t, newFakeCaller()).NewSession("t")
	conn := &sliceConn{in: [][]byte{
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`),
		[]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`),
		[]byte(`   `),
		[]byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`),
		[]byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"listar_atletas"}}`),
		[]byte(`{"jsonrpc":"2.0","id":4,"method":"ping"}`),
	}}

	require.NoError(t, sess.Serve(context.Background(), conn))
	assert.Equal(t, []string{"1", "2", "3", "4"}, replyIDs(t, conn.out))
	assert.Equal(t, StateClosed, sess.State())
}

func TestServeContinuesAfterParseError(t *testing.T) {
	sess := newTestServer(t, newFakeCaller()).NewSession("t")
	conn := &sliceConn{in: [][]byte{
		[]byte(`{not json`),
		[]byte(`{"jsonrpc":"2.0","id":2,"method":"ping"}`),
	}}

	require.NoError(t, sess.Serve(context.Background(), conn))
	require.Len(t, conn.out, 2)
	assert.Equal(t, []string{"null", "2"}, replyIDs(t, conn.out))
}

func TestServeReportsReadFailure(t *testing.T) {
	sess := newTestServer(t, newFakeCaller()).NewSession("t")
	conn := &sliceConn{readErr: bufio.ErrTooLong}

	err := sess.Serve(context.Background(), conn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bufio.ErrTooLong))
}

func TestServeCancelDiscardsInFlightReply(t *testing.T) {
	caller := newFakeCaller()
	caller.block = true
	sess := newTestServer(t, caller).NewSession("t")

	inR, inW := io.Pipe()
	var out bytes.Buffer
	conn := NewStdioConn(inR, &out)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Serve(ctx, conn) }()

	go func() {
		_, _ = io.WriteString(inW, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"listar_atletas"}}`+"\n")
	}()

	select {
	case <-caller.started:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream call never started")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.Empty(t, out.String())
	_ = inW.Close()
}

func TestServeStdioDrainsOnEOF(t *testing.T) {
	srv := newTestServer(t, newFakeCaller())
	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":"a","method":"tools/call","params":{"name":"missing_tool","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"nope"}`,
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, ServeStdio(context.Background(), srv, in, &out))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	replies := make([][]byte, 0, len(lines))
	for _, l := range lines {
		assert.True(t, json.Valid([]byte(l)), l)
		replies = append(replies, []byte(l))
	}
	assert.Equal(t, []string{"1", `"a"`, "2"}, replyIDs(t, replies))
}

func TestServeStdioOversizedLineEndsConnection(t *testing.T) {
	srv := newTestServer(t, newFakeCaller())
	big := `{"jsonrpc":"2.0","id":1,"method":"ping","params":"` + strings.Repeat("x", MaxMessageBytes) + `"}`
	in := strings.NewReader(`{"jsonrpc":"2.0","id":0,"method":"ping"}` + "\n" + big + "\n")
	var out bytes.Buffer

	err := ServeStdio(context.Background(), srv, in, &out)

	require.Error(t, err)
	assert.True(t, errors.Is(err, bufio.ErrTooLong))
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}
