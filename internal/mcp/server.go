package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/vector-ai/vector-mcp-server/internal/metrics"
	"github.com/vector-ai/vector-mcp-server/internal/protocol"
	"github.com/vector-ai/vector-mcp-server/internal/upstream"
)

// ToolExecutor runs a tool and folds every failure into the outcome.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) upstream.Outcome
}

// Info is what the server reports about itself on initialize.
type Info struct {
	Name            string
	Version         string
	ProtocolVersion string
}

// Server holds everything shared by connections. It is immutable after
// NewServer returns; per-connection state lives in Session.
type Server struct {
	info     Info
	toolbox  *Toolbox
	executor ToolExecutor
	log      *logrus.Entry
	metrics  *metrics.Metrics
}

// NewServer wires a toolbox and an executor into an MCP server.
func NewServer(info Info, tb *Toolbox, exec ToolExecutor, log *logrus.Entry, m *metrics.Metrics) *Server {
	return &Server{info: info, toolbox: tb, executor: exec, log: log, metrics: m}
}

// Toolbox returns the registry served by s.
func (s *Server) Toolbox() *Toolbox {
	return s.toolbox
}

// State is the lifecycle state of one connection.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateClosed
)

func (st State) String() string {
	switch st {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(st))
	}
}

// Session is the dispatcher of a single connection.
type Session struct {
	id    string
	srv   *Server
	state atomic.Int32
	log   *logrus.Entry
}

// NewSession creates the dispatcher for one connection, in StateUninitialized.
func (s *Server) NewSession(id string) *Session {
	return &Session{id: id, srv: s, log: s.log.WithField("session", id)}
}

// ID returns the session identifier.
func (sess *Session) ID() string {
	return sess.id
}

// State returns the current lifecycle state.
func (sess *Session) State() State {
	return State(sess.state.Load())
}

// Close moves the session to StateClosed. Further messages are ignored.
func (sess *Session) Close() {
	if State(sess.state.Swap(int32(StateClosed))) != StateClosed {
		sess.log.Debug("session closed")
	}
}

type handlerFunc func(s *Server, ctx context.Context, sess *Session, req protocol.Request) (any, *protocol.ResponseError)

// methodTable maps every supported method to its handler.
var methodTable = map[string]handlerFunc{
	protocol.MethodInitialize:    (*Server).handleInitialize,
	protocol.MethodInitialized:   (*Server).handleInitialized,
	protocol.MethodPing:          (*Server).handlePing,
	protocol.MethodToolsList:     (*Server).handleToolsList,
	protocol.MethodToolsCall:     (*Server).handleToolsCall,
	protocol.MethodResourcesList: (*Server).handleResourcesList,
}

// Handle processes one raw inbound message and returns the encoded reply,
// or nil when the message gets none (notifications, closed session).
func (sess *Session) Handle(ctx context.Context, raw []byte) []byte {
	if sess.State() == StateClosed {
		return nil
	}

	var req protocol.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		var id json.RawMessage
		code, msg := protocol.CodeInvalidRequest, "invalid request"
		if json.Valid(raw) {
			id = requestID(raw)
		} else {
			code, msg = protocol.CodeParseError, "parse error"
		}
		sess.log.WithError(err).WithField("id", string(id)).Warn("undecodable message")
		sess.srv.metrics.ObserveMessage("", "rejected")
		return encode(sess.log, protocol.NewError(id, code, msg))
	}

	resp, reply := sess.dispatch(ctx, req)
	if !reply {
		return nil
	}
	return encode(sess.log, resp)
}

// requestID recovers the id of a well-formed JSON object whose other members
// have the wrong type. It returns nil when there is none.
func requestID(raw []byte) json.RawMessage {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}
	return envelope.ID
}

func (sess *Session) dispatch(ctx context.Context, req protocol.Request) (protocol.Response, bool) {
	silent := req.IsNotification() || strings.HasPrefix(req.Method, "notifications/")
	log := sess.log.WithFields(logrus.Fields{"method": req.Method, "id": string(req.ID)})

	if req.JSONRPC != "" && req.JSONRPC != protocol.Version {
		sess.srv.metrics.ObserveMessage("", "rejected")
		return protocol.NewError(req.ID, protocol.CodeInvalidRequest, "invalid jsonrpc version"), !silent
	}
	if req.Method == "" {
		sess.srv.metrics.ObserveMessage("", "rejected")
		return protocol.NewError(req.ID, protocol.CodeInvalidRequest, "method required"), !silent
	}

	handler, ok := methodTable[req.Method]
	if !ok {
		log.Info("method not found")
		sess.srv.metrics.ObserveMessage("unknown", "not_found")
		return protocol.NewError(req.ID, protocol.CodeMethodNotFound, "method not found: "+req.Method), !silent
	}

	if sess.State() == StateUninitialized && req.Method != protocol.MethodInitialize {
		log.Debug("message before initialize")
	}
	log.Info("handling message")

	result, rpcErr := handler(sess.srv, ctx, sess, req)
	if rpcErr != nil {
		sess.srv.metrics.ObserveMessage(req.Method, "error")
		return protocol.Response{JSONRPC: protocol.Version, ID: req.ID, Error: rpcErr}, !silent
	}
	sess.srv.metrics.ObserveMessage(req.Method, "ok")
	return protocol.NewResult(req.ID, result), !silent
}

func encode(log *logrus.Entry, resp protocol.Response) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		log.WithError(err).Error("encode response")
		b, _ = json.Marshal(protocol.NewError(resp.ID, protocol.CodeInternalError, "internal error"))
	}
	return b
}

func (s *Server) handleInitialize(_ context.Context, sess *Session, req protocol.Request) (any, *protocol.ResponseError) {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			sess.log.WithError(err).Debug("ignoring malformed initialize params")
		}
	}

	sess.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitialized))
	sess.log.WithFields(logrus.Fields{
		"client":           params.ClientInfo.Name,
		"client_version":   params.ClientInfo.Version,
		"protocol_version": params.ProtocolVersion,
	}).Info("client initialized")

	return protocol.InitializeResult{
		ProtocolVersion: s.info.ProtocolVersion,
		Capabilities: protocol.Capabilities{
			Tools:     protocol.ToolsCapability{ListChanged: false},
			Resources: protocol.ResourcesCapability{Subscribe: false, ListChanged: false},
		},
		ServerInfo: protocol.ServerInfo{Name: s.info.Name, Version: s.info.Version},
	}, nil
}

func (s *Server) handleInitialized(_ context.Context, sess *Session, _ protocol.Request) (any, *protocol.ResponseError) {
	sess.log.Debug("client acknowledged initialization")
	return nil, nil
}

func (s *Server) handlePing(context.Context, *Session, protocol.Request) (any, *protocol.ResponseError) {
	return struct{}{}, nil
}

func (s *Server) handleToolsList(context.Context, *Session, protocol.Request) (any, *protocol.ResponseError) {
	return protocol.ListResult{Tools: s.toolbox.Describe()}, nil
}

func (s *Server) handleResourcesList(context.Context, *Session, protocol.Request) (any, *protocol.ResponseError) {
	return protocol.ResourcesListResult{Resources: []any{}}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, sess *Session, req protocol.Request) (any, *protocol.ResponseError) {
	var params protocol.CallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &protocol.ResponseError{Code: protocol.CodeInvalidParams, Message: "invalid params"}
		}
	}

	out := s.executor.Execute(ctx, params.Name, params.Args)
	entry := sess.log.WithFields(logrus.Fields{"tool": params.Name, "outcome": out.Label()})
	if out.OK() {
		entry.Info("tool call succeeded")
	} else {
		entry.Warn("tool call failed")
	}

	return protocol.CallResult{
		Content: []protocol.ContentPart{{Type: "text", Text: out.Text()}},
		IsError: !out.OK(),
	}, nil
}
