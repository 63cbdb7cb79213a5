// Package schema defines the canonical type-description graph shared by the
// schema builder, the procedure registry, the validator, and the client.
// A schema is a graph of nodes: primitives, arrays, objects with ordered
// properties, and references into a definition table of named records.
package schema

import (
	"encoding/json"
	"reflect"
)

// Primitive type names carried on primitive nodes.
const (
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeArray   = "array"
)

// NodeKind identifies the variant a Node represents.
type NodeKind int

const (
	KindInvalid NodeKind = iota
	KindPrimitive
	KindArray
	KindObject
	KindReference
)

// Node is one node in the schema graph. The variant is derived from which
// fields are populated; see Kind.
type Node struct {
	// Type is the primitive type name, or "array" for array nodes.
	// Empty for object and reference nodes.
	Type string

	// Ref holds the bare record name for reference nodes.
	// Serialized as "$ref": "#/defs/<name>".
	Ref string

	// Items is the element schema for array nodes.
	Items *Node

	// Properties is the ordered property map for object nodes.
	Properties *Properties

	// Required lists the property names that must be present, in
	// declaration order. Always serialized (possibly empty) on objects.
	Required []string

	// Nullable marks the node as optional: absence or an explicit null
	// passes validation.
	Nullable bool

	// Default is the declared default value for the property this node
	// describes, if any. A property with a default is never required.
	Default any
}

// Kind returns the variant this node represents.
func (n *Node) Kind() NodeKind {
	switch {
	case n == nil:
		return KindInvalid
	case n.Ref != "":
		return KindReference
	case n.Properties != nil:
		return KindObject
	case n.Type == TypeArray:
		return KindArray
	case n.Type == TypeInteger, n.Type == TypeNumber, n.Type == TypeString, n.Type == TypeBoolean:
		return KindPrimitive
	default:
		return KindInvalid
	}
}

// Equal reports whether two nodes are structurally equal. Reference nodes
// compare by name; the referenced definitions are not chased.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Type != other.Type || n.Ref != other.Ref || n.Nullable != other.Nullable {
		return false
	}
	if !defaultsEqual(n.Default, other.Default) {
		return false
	}
	if !n.Items.Equal(other.Items) {
		return false
	}
	if len(n.Required) != len(other.Required) {
		return false
	}
	for i, name := range n.Required {
		if other.Required[i] != name {
			return false
		}
	}
	return n.Properties.Equal(other.Properties)
}

// defaultsEqual compares default values. Numeric defaults compare by value
// regardless of representation, so an int default survives a JSON round trip
// (where it comes back as json.Number) without breaking structural equality.
func defaultsEqual(a, b any) bool {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
