// Package mcpclient issues JSON-RPC calls to a running bridge over its
// single-shot HTTP endpoint.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vector-ai/vector-mcp-server/internal/protocol"
)

// DefaultTimeout bounds one round trip. It exceeds the bridge's maximum
// upstream timeout so tool calls are never cut short by the client.
const DefaultTimeout = 35 * time.Second

// Client talks to the /mcp/rpc endpoint of a bridge.
type Client struct {
	endpoint   string
	httpClient *http.Client
	counter    atomic.Uint64
}

// New builds a client for the bridge at baseURL, e.g. http://localhost:8080.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		endpoint:   strings.TrimSuffix(baseURL, "/") + "/mcp/rpc",
		httpClient: hc,
	}
}

// RPCError is a JSON-RPC error returned by the bridge.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method string, params any, result any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	buf, err := json.Marshal(protocol.Request{
		JSONRPC: protocol.Version,
		ID:      json.RawMessage(strconv.FormatUint(c.counter.Add(1), 10)),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call mcp server: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return fmt.Errorf("mcp server returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	var resp struct {
		Result json.RawMessage         `json:"result"`
		Error  *protocol.ResponseError `json:"error"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// ListTools fetches the advertised tools.
func (c *Client) ListTools(ctx context.Context) ([]protocol.ToolDescriptor, error) {
	var result protocol.ListResult
	if err := c.do(ctx, protocol.MethodToolsList, struct{}{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes a tool. A tool failure is reported through
// CallResult.IsError, not as an error.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (protocol.CallResult, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var result protocol.CallResult
	err := c.do(ctx, protocol.MethodToolsCall, protocol.CallParams{Name: name, Args: args}, &result)
	return result, err
}

// Ping checks that the bridge answers.
func (c *Client) Ping(ctx context.Context) error {
	var result struct{}
	return c.do(ctx, protocol.MethodPing, struct{}{}, &result)
}
