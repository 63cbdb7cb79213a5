package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// refPrefix is the wire prefix for reference nodes, pointing into the
// snapshot's defs table.
const refPrefix = "#/defs/"

// nodeWire is the flat JSON shape of a node. Required is a pointer so it can
// be forced onto the wire (possibly empty) for object nodes and omitted
// everywhere else.
type nodeWire struct {
	Ref        string      `json:"$ref,omitempty"`
	Type       string      `json:"type,omitempty"`
	Nullable   bool        `json:"nullable,omitempty"`
	Default    any         `json:"default,omitempty"`
	Items      *Node       `json:"items,omitempty"`
	Properties *Properties `json:"properties,omitempty"`
	Required   *[]string   `json:"required,omitempty"`
}

// MarshalJSON writes the node in its wire form.
func (n *Node) MarshalJSON() ([]byte, error) {
	w := nodeWire{
		Type:     n.Type,
		Nullable: n.Nullable,
		Default:  n.Default,
		Items:    n.Items,
	}
	switch n.Kind() {
	case KindReference:
		w.Ref = refPrefix + n.Ref
	case KindObject:
		w.Properties = n.Properties
		required := n.Required
		if required == nil {
			required = []string{}
		}
		w.Required = &required
	case KindArray, KindPrimitive:
		// Flat fields already set.
	default:
		return nil, fmt.Errorf("schema: cannot marshal invalid node")
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads a node from its wire form. Numbers in defaults decode
// as json.Number so integer defaults keep their exact value.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w nodeWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return err
	}

	*n = Node{
		Type:       w.Type,
		Nullable:   w.Nullable,
		Default:    w.Default,
		Items:      w.Items,
		Properties: w.Properties,
	}
	if w.Ref != "" {
		n.Ref = strings.TrimPrefix(w.Ref, refPrefix)
	}
	if w.Required != nil {
		n.Required = *w.Required
	} else if w.Properties != nil {
		n.Required = []string{}
	}
	return nil
}
