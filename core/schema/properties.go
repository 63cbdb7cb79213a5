package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Properties is an insertion-ordered map of property name to schema node.
// Order is semantically meaningful: it is the declaration order of the
// original record, drives declaration-order validation, and is preserved
// on the wire.
type Properties struct {
	names []string
	nodes map[string]*Node
}

// NewProperties creates an empty ordered property map.
func NewProperties() *Properties {
	return &Properties{nodes: make(map[string]*Node)}
}

// Set adds or replaces a property. A new name is appended to the order.
func (p *Properties) Set(name string, node *Node) {
	if _, ok := p.nodes[name]; !ok {
		p.names = append(p.names, name)
	}
	p.nodes[name] = node
}

// Get returns the node for a property name.
func (p *Properties) Get(name string) (*Node, bool) {
	if p == nil {
		return nil, false
	}
	node, ok := p.nodes[name]
	return node, ok
}

// Names returns the property names in insertion order.
func (p *Properties) Names() []string {
	if p == nil {
		return nil
	}
	return p.names
}

// Len returns the number of properties.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.names)
}

// Equal reports whether two property maps hold the same names in the same
// order with structurally equal nodes.
func (p *Properties) Equal(other *Properties) bool {
	if p == nil || other == nil {
		return p.Len() == other.Len()
	}
	if len(p.names) != len(other.names) {
		return false
	}
	for i, name := range p.names {
		if other.names[i] != name {
			return false
		}
		if !p.nodes[name].Equal(other.nodes[name]) {
			return false
		}
	}
	return true
}

// MarshalJSON writes the properties as a JSON object in insertion order.
func (p *Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(p.nodes[name])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object token by token so the wire order of the
// keys becomes the insertion order.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties: expected object, got %v", tok)
	}

	p.names = nil
	p.nodes = make(map[string]*Node)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("properties: expected key, got %v", tok)
		}
		var node Node
		if err := dec.Decode(&node); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		p.Set(name, &node)
	}

	// Closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
