// Package derive compiles Go procedure signatures into schema graphs. It is
// the only writer of the definition table: record materialization is
// memoized here, which is what makes self- and mutually-referential records
// terminate and keeps the table free of divergent duplicates.
package derive

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/seamrpc/seam/core/classify"
	"github.com/seamrpc/seam/core/schema"
)

// Builder compiles types into schema nodes, materializing named records into
// a shared definition table. One builder serves a whole registration pass so
// record types are deduplicated across procedures.
type Builder struct {
	classifier *classify.Classifier
	defs       schema.Definitions

	// names memoizes which record name a Go type materialized under. A type
	// present here is already in defs (possibly still a placeholder during
	// a recursive build), so reaching it again emits a reference.
	names map[reflect.Type]string
}

// NewBuilder creates a builder writing into defs.
func NewBuilder(classifier *classify.Classifier, defs schema.Definitions) *Builder {
	return &Builder{
		classifier: classifier,
		defs:       defs,
		names:      make(map[reflect.Type]string),
	}
}

// ProcedureSchema compiles a procedure's input struct and output type into
// an (input Object, output node) pair. The input struct's fields are the
// procedure's parameters: one property per field in declaration order, with
// required = the fields lacking a default. A nil input yields an empty
// object. The output follows the same node rules with no required semantics.
func (b *Builder) ProcedureSchema(input, output reflect.Type) (*schema.Node, *schema.Node, error) {
	inputNode, err := b.inputObject(input)
	if err != nil {
		return nil, nil, err
	}

	outputNode, err := b.node(output, []string{"output"})
	if err != nil {
		return nil, nil, err
	}

	return inputNode, outputNode, nil
}

func (b *Builder) inputObject(input reflect.Type) (*schema.Node, error) {
	if input == nil {
		return &schema.Node{Properties: schema.NewProperties(), Required: []string{}}, nil
	}

	for input.Kind() == reflect.Pointer {
		input = input.Elem()
	}

	res, err := b.classifier.Classify(input)
	if err != nil {
		return nil, err
	}
	if res.Kind != classify.Record {
		return nil, &UnsupportedTypeError{Type: input, Path: []string{"input"}}
	}

	// The input record is the parameter list: it stays inline and its name
	// never enters the definition table.
	return b.object(res.Fields, nil)
}

// object builds an Object node from a record's fields.
func (b *Builder) object(fields []classify.FieldSpec, path []string) (*schema.Node, error) {
	props := schema.NewProperties()
	required := []string{}

	for _, f := range fields {
		node, err := b.node(f.Type, append(path, f.Name))
		if err != nil {
			return nil, err
		}
		if f.HasDefault {
			node.Default = f.Default
		} else {
			required = append(required, f.Name)
		}
		props.Set(f.Name, node)
	}

	return &schema.Node{Properties: props, Required: required}, nil
}

// node builds the schema node for one type. Pointers mark the node nullable;
// records materialize into the definition table and come back as references.
func (b *Builder) node(t reflect.Type, path []string) (*schema.Node, error) {
	var nullable bool
	for t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}

	res, err := b.classifier.Classify(t)
	if err != nil {
		return nil, err
	}

	switch res.Kind {
	case classify.Primitive:
		return &schema.Node{Type: res.Primitive, Nullable: nullable}, nil

	case classify.Collection:
		items, err := b.node(res.Elem, append(path, "[]"))
		if err != nil {
			return nil, err
		}
		return &schema.Node{Type: schema.TypeArray, Items: items, Nullable: nullable}, nil

	case classify.Record:
		if err := b.materialize(t, res, path); err != nil {
			return nil, err
		}
		return &schema.Node{Ref: res.Name, Nullable: nullable}, nil

	default:
		return nil, &UnsupportedTypeError{Type: t, Path: path}
	}
}

// materialize ensures the record's Object definition exists in the table.
// The name is reserved before recursing into the fields, so a field that
// reaches this record again (directly or through another record) resolves to
// a reference instead of recursing forever.
func (b *Builder) materialize(t reflect.Type, res classify.Result, path []string) error {
	if _, done := b.names[t]; done {
		return nil
	}

	if _, taken := b.defs.Resolve(res.Name); taken {
		// A different Go type already claimed this name. Build the candidate
		// shape and let the table compare: structurally equal shapes coexist,
		// divergent ones are a fatal conflict.
		b.names[t] = res.Name
		candidate, err := b.object(res.Fields, path)
		if err != nil {
			return err
		}
		return b.defs.Insert(res.Name, candidate)
	}

	b.names[t] = res.Name
	placeholder := b.defs.Reserve(res.Name)

	obj, err := b.object(res.Fields, path)
	if err != nil {
		return err
	}
	*placeholder = *obj
	return nil
}

// UnsupportedTypeError reports a type no classifier strategy recognizes,
// naming the parameter/field path that reached it. It is a registration-time
// error and should abort startup.
type UnsupportedTypeError struct {
	Type reflect.Type
	Path []string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("derive: unsupported type %s at %s", e.Type, strings.Join(e.Path, "."))
}
