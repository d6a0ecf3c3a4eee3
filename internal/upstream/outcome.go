package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind classifies a failed call.
type Kind string

// The four failure kinds. Callers rely on telling an upstream rejection
// apart from an unreachable upstream.
const (
	KindUpstreamStatus Kind = "UpstreamStatusError"
	KindTimeout        Kind = "Timeout"
	KindTransport      Kind = "TransportError"
	KindUnknown        Kind = "UnknownError"
)

// Failure describes why a call did not produce a body. Code is the HTTP
// status for KindUpstreamStatus and zero otherwise. Detail is either a
// json.RawMessage (parsed upstream body) or a string.
type Failure struct {
	Kind   Kind
	Code   int
	Detail any
}

// Outcome is the result of every Resource Client and Tool Executor call:
// exactly one of Body (success) or Failure is meaningful.
type Outcome struct {
	Body    json.RawMessage
	Failure *Failure
}

// Success wraps an upstream body.
func Success(body json.RawMessage) Outcome {
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	return Outcome{Body: body}
}

// Fail builds a failed outcome.
func Fail(kind Kind, code int, detail any) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Code: code, Detail: detail}}
}

// Unknown builds an UnknownError outcome.
func Unknown(format string, args ...any) Outcome {
	return Fail(KindUnknown, 0, fmt.Sprintf(format, args...))
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Label is a short outcome name suitable for metrics and logs.
func (o Outcome) Label() string {
	if o.Failure == nil {
		return "success"
	}
	return string(o.Failure.Kind)
}

type failurePayload struct {
	Status string `json:"status"`
	Kind   Kind   `json:"tipo"`
	Code   int    `json:"codigo,omitempty"`
	Detail any    `json:"detalhe"`
}

// MarshalJSON renders the upstream body on success and the client-facing
// error object on failure.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Failure == nil {
		if len(o.Body) == 0 {
			return []byte("null"), nil
		}
		return o.Body, nil
	}
	return json.Marshal(failurePayload{
		Status: "erro",
		Kind:   o.Failure.Kind,
		Code:   o.Failure.Code,
		Detail: o.Failure.Detail,
	})
}

// Text renders the outcome as indented JSON, keeping non-ASCII characters.
func (o Outcome) Text() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(o); err != nil {
		// Body was not valid JSON; fall back to an error object that always encodes.
		buf.Reset()
		_ = enc.Encode(Unknown("render outcome: %v", err))
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
