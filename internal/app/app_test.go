package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vector-ai/vector-mcp-server/internal/catalog"
	"github.com/vector-ai/vector-mcp-server/internal/config"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func testConfig(upstreamURL string) config.Config {
	return config.Config{
		UpstreamURL:     upstreamURL,
		UpstreamTimeout: 10 * time.Second,
		HTTPAddr:        "127.0.0.1:0",
		ServerName:      "vector-ai-sports",
		ProtocolVersion: config.DefaultProtocolVersion,
	}
}

func newTestApp(t *testing.T, upstreamURL string, opts ...Option) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a, err := New(testConfig(upstreamURL), testLogger(), opts...)
	require.NoError(t, err)
	return a
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func TestRootReportsStatus(t *testing.T) {
	a := newTestApp(t, "http://api.invalid/v1")

	code, body := get(t, a.Router(), "/")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, float64(11), body["tools_count"])
	assert.Equal(t, "http://api.invalid/v1", body["vector_api_url"])
	assert.Equal(t, "/mcp/sse (SSE)", body["mcp_endpoint"])
}

func TestToolsEndpoint(t *testing.T) {
	a := newTestApp(t, "http://api.invalid/v1")

	code, body := get(t, a.Router(), "/tools")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(11), body["total"])
	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	assert.Equal(t, "adicionar_atleta", tools[0])
}

func TestHealthProbesUpstream(t *testing.T) {
	var unhealthy atomic.Bool
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer api.Close()
	a := newTestApp(t, api.URL+"/v1")

	_, body := get(t, a.Router(), "/health")
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["vector_api"])
	assert.Equal(t, float64(11), body["tools_available"])

	unhealthy.Store(true)
	code, body := get(t, a.Router(), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "error", body["vector_api"])
}

func TestToolCallOverRPCReachesUpstream(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/athletes/", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":1,"name":"Ana"}]`))
	}))
	defer api.Close()
	a := newTestApp(t, api.URL+"/v1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp/rpc",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"listar_atletas","arguments":{}}}`))
	a.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Result.Content, 1)
	assert.False(t, resp.Result.IsError)
	assert.JSONEq(t, `[{"id":1,"name":"Ana"}]`, resp.Result.Content[0].Text)

	metrics := httptest.NewRecorder()
	a.Router().ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metrics.Body.String(), `vector_mcp_upstream_requests_total{method="GET",outcome="success"} 1`)
	assert.Contains(t, metrics.Body.String(), `vector_mcp_jsonrpc_messages_total{method="tools/call",result="ok"} 1`)
}

func TestNewRejectsDuplicateTools(t *testing.T) {
	tools, err := catalog.Default()
	require.NoError(t, err)

	_, err = New(testConfig("http://api.invalid"), testLogger(), WithTools(tools[0], tools[0]))
	assert.Error(t, err)
}

func TestRunStdio(t *testing.T) {
	a := newTestApp(t, "http://api.invalid/v1")
	var out bytes.Buffer

	err := a.RunStdio(context.Background(), strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &out)

	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, strings.TrimSpace(out.String()))
}

func TestRunHTTPStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := testConfig("http://api.invalid/v1")
	cfg.HTTPAddr = addr
	a, err := New(cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunHTTP(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/tools")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunHTTP did not stop")
	}
}
