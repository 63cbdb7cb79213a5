package http

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/seamrpc/seam/core/schema"
)

// coerceQuery converts query-string parameters into typed argument values
// guided by the input schema. A value that cannot be coerced to its declared
// shape is kept as the raw string so validation reports the mismatch with
// the right path. Parameters without a schema property stay raw strings.
func coerceQuery(values url.Values, input *schema.Node, defs schema.Definitions) map[string]any {
	args := map[string]any{}
	for name := range values {
		raw := values.Get(name)

		var prop *schema.Node
		if input != nil && input.Properties != nil {
			prop, _ = input.Properties.Get(name)
		}
		args[name] = coerceValue(raw, prop, defs)
	}
	return args
}

func coerceValue(raw string, node *schema.Node, defs schema.Definitions) any {
	node = deref(node, defs)
	if node == nil {
		return raw
	}

	switch node.Kind() {
	case schema.KindPrimitive:
		return coercePrimitive(raw, node.Type)
	case schema.KindArray, schema.KindObject:
		// Composite parameters travel as JSON.
		var v any
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return raw
		}
		return v
	default:
		return raw
	}
}

func coercePrimitive(raw, typ string) any {
	switch typ {
	case schema.TypeInteger, schema.TypeNumber:
		n := json.Number(raw)
		if _, err := n.Float64(); err != nil {
			return raw
		}
		return n
	case schema.TypeBoolean:
		switch strings.ToLower(raw) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
		return raw
	default:
		return raw
	}
}

// deref follows reference nodes to their definitions. A dangling reference
// returns nil and the raw string passes through to validation.
func deref(node *schema.Node, defs schema.Definitions) *schema.Node {
	for node != nil && node.Kind() == schema.KindReference {
		next, ok := defs.Resolve(node.Ref)
		if !ok {
			return nil
		}
		node = next
	}
	return node
}
