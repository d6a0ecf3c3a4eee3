// Package catalog declares the tools of the bridge as data: a name, a
// description, an opaque input schema and the Resource API request the tool
// turns into.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tools.yaml
var defaultCatalog []byte

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Template describes one Resource API request. Path may contain {arg}
// placeholders; Body and Query list the argument names copied into the
// JSON body and the query string. Defaults fill body fields the caller
// left out.
type Template struct {
	Method   string         `yaml:"method"`
	Path     string         `yaml:"path"`
	Body     []string       `yaml:"body"`
	Query    []string       `yaml:"query"`
	Defaults map[string]any `yaml:"defaults"`
}

// Lookup is the first step of a composite tool: its response must carry
// IDField, whose value is bound to the argument Bind before Request runs.
type Lookup struct {
	Method  string `yaml:"method"`
	Path    string `yaml:"path"`
	IDField string `yaml:"id_field"`
	Bind    string `yaml:"bind"`
}

// Tool is one catalog entry.
type Tool struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Schema      string          `yaml:"input_schema"`
	Request     Template        `yaml:"request"`
	Lookup      *Lookup         `yaml:"lookup"`
	InputSchema json.RawMessage `yaml:"-"`
}

type document struct {
	Tools []Tool `yaml:"tools"`
}

// Default returns the embedded catalog.
func Default() ([]Tool, error) {
	return Parse(defaultCatalog)
}

// Parse decodes a YAML catalog and validates every entry.
func Parse(data []byte) ([]Tool, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(doc.Tools) == 0 {
		return nil, errors.New("catalog declares no tools")
	}

	for i := range doc.Tools {
		t := &doc.Tools[i]
		schema := strings.TrimSpace(t.Schema)
		if schema == "" {
			schema = `{"type": "object", "properties": {}}`
		}
		if !json.Valid([]byte(schema)) {
			return nil, fmt.Errorf("tool %q: input_schema is not valid JSON", t.Name)
		}
		t.InputSchema = json.RawMessage(schema)
		if t.Lookup != nil {
			if t.Lookup.IDField == "" {
				t.Lookup.IDField = "id"
			}
			if t.Lookup.Bind == "" {
				t.Lookup.Bind = "id"
			}
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Tools, nil
}

// Validate checks that the tool can be turned into requests.
func (t Tool) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("tool without a name")
	}
	if err := validateRequest(t.Request.Method, t.Request.Path); err != nil {
		return fmt.Errorf("tool %q: %w", t.Name, err)
	}
	if t.Lookup != nil {
		if err := validateRequest(t.Lookup.Method, t.Lookup.Path); err != nil {
			return fmt.Errorf("tool %q lookup: %w", t.Name, err)
		}
	}
	if len(t.InputSchema) > 0 && !json.Valid(t.InputSchema) {
		return fmt.Errorf("tool %q: input schema is not valid JSON", t.Name)
	}
	return nil
}

func validateRequest(method, path string) error {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("unsupported method %q", method)
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q must start with /", path)
	}
	if bytes.Count([]byte(path), []byte("{")) != len(placeholderRe.FindAllString(path, -1)) {
		return fmt.Errorf("path %q has a malformed placeholder", path)
	}
	return nil
}

// Placeholders lists the argument names referenced by path, in order.
func Placeholders(path string) []string {
	matches := placeholderRe.FindAllStringSubmatch(path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Expand replaces every {arg} placeholder using value.
func Expand(path string, value func(name string) (string, error)) (string, error) {
	var firstErr error
	out := placeholderRe.ReplaceAllStringFunc(path, func(m string) string {
		v, err := value(m[1 : len(m)-1])
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
