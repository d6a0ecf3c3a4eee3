package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/vector-ai/vector-mcp-server/internal/catalog"
	"github.com/vector-ai/vector-mcp-server/internal/upstream"
)

// Executor runs one named tool against the Resource API.
type Executor struct {
	toolbox *Toolbox
	caller  upstream.Caller
	log     *logrus.Entry
}

// NewExecutor wires a toolbox to a Resource API caller.
func NewExecutor(tb *Toolbox, caller upstream.Caller, log *logrus.Entry) *Executor {
	return &Executor{toolbox: tb, caller: caller, log: log}
}

// Execute runs the tool and always returns an outcome, never an error.
func (e *Executor) Execute(ctx context.Context, name string, rawArgs json.RawMessage) (out upstream.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("tool", name).Errorf("tool panicked: %v", r)
			out = upstream.Unknown("internal error: %v", r)
		}
	}()

	tool, ok := e.toolbox.Lookup(name)
	if !ok {
		return upstream.Unknown("tool not found: %s", name)
	}

	args, err := decodeArgs(rawArgs)
	if err != nil {
		return upstream.Unknown("invalid arguments: %v", err)
	}

	if tool.Lookup != nil {
		req, err := buildRequest(catalog.Template{Method: tool.Lookup.Method, Path: tool.Lookup.Path}, args)
		if err != nil {
			return upstream.Unknown("%v", err)
		}
		found := e.caller.Call(ctx, req)
		if !found.OK() {
			return found
		}
		id, ok := identifier(found.Body, tool.Lookup.IDField)
		if !ok {
			return upstream.Unknown("entity not found or missing id")
		}
		args = maps.Clone(args)
		args[tool.Lookup.Bind] = id
	}

	req, err := buildRequest(tool.Request, args)
	if err != nil {
		return upstream.Unknown("%v", err)
	}
	return e.caller.Call(ctx, req)
}

func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func buildRequest(tpl catalog.Template, args map[string]any) (upstream.Request, error) {
	path, err := catalog.Expand(tpl.Path, func(name string) (string, error) {
		v, ok := args[name]
		if !ok || v == nil {
			return "", fmt.Errorf("missing argument: %s", name)
		}
		s, err := scalar(v)
		if err != nil {
			return "", fmt.Errorf("argument %s: %w", name, err)
		}
		return url.PathEscape(s), nil
	})
	if err != nil {
		return upstream.Request{}, err
	}

	req := upstream.Request{Method: tpl.Method, Path: path}

	if len(tpl.Body) > 0 {
		body := make(map[string]any, len(tpl.Body))
		for _, field := range tpl.Body {
			v, present := args[field]
			if def, ok := tpl.Defaults[field]; ok && v == nil {
				body[field] = def
			} else if present {
				body[field] = v
			}
		}
		req.Body = body
	}

	if len(tpl.Query) > 0 {
		query := url.Values{}
		for _, field := range tpl.Query {
			v, ok := args[field]
			if !ok || v == nil {
				continue
			}
			s, err := scalar(v)
			if err != nil {
				return upstream.Request{}, fmt.Errorf("argument %s: %w", field, err)
			}
			query.Set(field, s)
		}
		req.Query = query
	}
	return req, nil
}

// scalar renders an argument value for a path segment or query parameter.
func scalar(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return "", fmt.Errorf("expected a scalar, got %T", v)
	}
}

// identifier extracts a non-empty id field from a JSON object body.
func identifier(body json.RawMessage, field string) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	switch v := obj[field].(type) {
	case nil:
		return nil, false
	case string:
		return v, v != ""
	case json.Number:
		return v, v.String() != "0"
	case bool:
		return v, v
	default:
		return v, true
	}
}
