package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"oracle/internal/domain"
)

const discoverySchemaURL = "mem://oracle/discovery.json"

var discoverySchema = []byte(`{
  "type": "object",
  "properties": {
    "urls": {"type": "array", "items": {"type": "string"}},
    "snippets": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["urls"]
}`)

// schemaCache compiles task response schemas once per distinct document.
type schemaCache struct {
	mu      sync.Mutex
	entries map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{entries: make(map[string]*jsonschema.Schema)}
}

func (c *schemaCache) get(raw json.RawMessage) (*jsonschema.Schema, error) {
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.entries[key]; ok {
		return s, nil
	}
	s, err := compileSchema(fmt.Sprintf("mem://oracle/task-%d.json", len(c.entries)), []byte(key))
	if err != nil {
		return nil, err
	}
	c.entries[key] = s
	return s, nil
}

func compileSchema(url string, raw []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateAgainstSchema(schema *jsonschema.Schema, raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %v", domain.ErrMalformedResponse, err)
	}
	if schema == nil {
		return nil
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("payload does not match schema: %w: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}
