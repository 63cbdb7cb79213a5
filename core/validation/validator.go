// Package validation checks runtime values against schema nodes. Validation
// is a pure function of (value, node, defs) with no shared state, producing
// structured, path-qualified errors. It is a gate, not a transform: values
// are never coerced.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/seamrpc/seam/core/schema"
)

// Error reports the first violation encountered, with the field/index path
// from the root, the expected shape, and the observed kind.
type Error struct {
	Path     []string
	Expected string
	Actual   string
}

func (e *Error) Error() string {
	location := strings.Join(e.Path, ".")
	if location == "" {
		location = "value"
	}
	return fmt.Sprintf("%s: expected %s, got %s", location, e.Expected, e.Actual)
}

// ResolutionError reports a reference that does not resolve in the
// definition table. This is a builder bug, not a user error, and belongs to
// the fatal registration-time class.
type ResolutionError struct {
	Name string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("validation: unresolved schema reference %q", e.Name)
}

type options struct {
	strict bool
}

// Option configures a validation run.
type Option func(*options)

// Strict rejects object keys that are not declared in the schema. The
// default is permissive: unknown keys are ignored.
func Strict() Option {
	return func(o *options) { o.strict = true }
}

// Validate checks value against node, resolving references through defs.
// It returns nil, an *Error for the first violation in declaration/index
// order, or a *ResolutionError for a dangling reference.
func Validate(value any, node *schema.Node, defs schema.Definitions, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return validate(value, node, defs, nil, &o)
}

func validate(value any, node *schema.Node, defs schema.Definitions, path []string, o *options) error {
	nullable := node.Nullable

	// References resolve first: a dangling reference is fatal even when the
	// value is absent.
	if node.Ref != "" {
		resolved, ok := defs.Resolve(node.Ref)
		if !ok {
			return &ResolutionError{Name: node.Ref}
		}
		if isNull(value) {
			if nullable {
				return nil
			}
			return &Error{Path: path, Expected: describe(resolved), Actual: "null"}
		}
		return validate(value, resolved, defs, path, o)
	}

	if isNull(value) {
		if nullable {
			return nil
		}
		return &Error{Path: path, Expected: describe(node), Actual: "null"}
	}

	switch node.Kind() {
	case schema.KindPrimitive:
		return validatePrimitive(value, node, path)
	case schema.KindArray:
		return validateArray(value, node, defs, path, o)
	case schema.KindObject:
		return validateObject(value, node, defs, path, o)
	default:
		return &ResolutionError{Name: fmt.Sprintf("invalid node at %s", strings.Join(path, "."))}
	}
}

func validatePrimitive(value any, node *schema.Node, path []string) error {
	ok := false
	switch node.Type {
	case schema.TypeInteger:
		ok = isInteger(value)
	case schema.TypeNumber:
		ok = isNumber(value)
	case schema.TypeString:
		// json.Number has string kind but is a number on the wire.
		if _, isNum := value.(json.Number); !isNum {
			ok = reflect.ValueOf(value).Kind() == reflect.String
		}
	case schema.TypeBoolean:
		ok = reflect.ValueOf(value).Kind() == reflect.Bool
	}
	if !ok {
		return &Error{Path: path, Expected: node.Type, Actual: kindOf(value)}
	}
	return nil
}

func validateArray(value any, node *schema.Node, defs schema.Definitions, path []string, o *options) error {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return &Error{Path: path, Expected: "array", Actual: kindOf(value)}
	}

	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i).Interface()
		if err := validate(elem, node.Items, defs, append(path, strconv.Itoa(i)), o); err != nil {
			return err
		}
	}
	return nil
}

func validateObject(value any, node *schema.Node, defs schema.Definitions, path []string, o *options) error {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return &Error{Path: path, Expected: "object", Actual: kindOf(value)}
	}

	present := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		present[iter.Key().String()] = iter.Value().Interface()
	}

	requiredSet := make(map[string]bool, len(node.Required))
	for _, name := range node.Required {
		requiredSet[name] = true
	}

	// Properties check in declaration order; first violation wins.
	for _, name := range node.Properties.Names() {
		prop, _ := node.Properties.Get(name)
		fieldValue, has := present[name]
		if !has {
			if requiredSet[name] {
				return &Error{Path: append(path, name), Expected: describe(prop), Actual: "missing"}
			}
			continue
		}
		if err := validate(fieldValue, prop, defs, append(path, name), o); err != nil {
			return err
		}
	}

	if o.strict {
		// Sorted for a deterministic first violation.
		extra := make([]string, 0)
		for name := range present {
			if _, declared := node.Properties.Get(name); !declared {
				extra = append(extra, name)
			}
		}
		if len(extra) > 0 {
			sort.Strings(extra)
			return &Error{Path: append(path, extra[0]), Expected: "declared property", Actual: "unknown key"}
		}
	}

	return nil
}

// isNull reports whether the value is absent: an untyped nil or a nil
// pointer/map/slice/interface.
func isNull(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// isInteger accepts whole-number values only: any Go integer width, a float
// with no fractional component, or an integral json.Number. Strings never
// coerce.
func isInteger(value any) bool {
	if n, ok := value.(json.Number); ok {
		if _, err := n.Int64(); err == nil {
			return true
		}
		f, err := n.Float64()
		return err == nil && isWhole(f)
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Float32, reflect.Float64:
		return isWhole(v.Float())
	}
	return false
}

func isNumber(value any) bool {
	if n, ok := value.(json.Number); ok {
		_, err := n.Float64()
		return err == nil
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isWhole(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && math.Trunc(f) == f
}

// describe names the shape a node expects, for error messages.
func describe(node *schema.Node) string {
	switch node.Kind() {
	case schema.KindPrimitive:
		return node.Type
	case schema.KindArray:
		return "array"
	case schema.KindObject:
		return "object"
	case schema.KindReference:
		return "object"
	default:
		return "value"
	}
}

// kindOf names the observed kind of a runtime value, for error messages.
func kindOf(value any) string {
	if isNull(value) {
		return "null"
	}
	if n, ok := value.(json.Number); ok {
		if _, err := n.Int64(); err == nil {
			return "integer"
		}
		return "number"
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map:
		return "object"
	default:
		return v.Kind().String()
	}
}
