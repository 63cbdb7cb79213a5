// Package classify decides what a Go type is schema-wise: a structured
// record, a collection, a primitive, or unsupported.
//
// Classification is capability-based rather than representation-specific: an
// ordered list of detector strategies is tried in sequence and the first one
// that recognizes the type wins. New structured-record conventions are added
// by prepending a detector, without touching callers.
package classify

import "reflect"

// Kind is the classification outcome.
type Kind int

const (
	// Unsupported means no detector recognized the type.
	Unsupported Kind = iota
	// Primitive is a built-in scalar (integer, number, string, boolean).
	Primitive
	// Record is a structured record with a canonical name and ordered fields.
	Record
	// Collection is an ordered sequence of one element type.
	Collection
)

// FieldSpec describes one field of a record: its wire name, declared type,
// and default, if any. Declaration order is preserved by the detectors and
// is semantically meaningful downstream.
type FieldSpec struct {
	Name       string
	Type       reflect.Type
	HasDefault bool
	Default    any
}

// Result is the outcome of classifying one type. Which fields are populated
// depends on Kind: Primitive sets Primitive, Record sets Name and Fields,
// Collection sets Elem.
type Result struct {
	Kind      Kind
	Primitive string
	Name      string
	Fields    []FieldSpec
	Elem      reflect.Type
}

// FieldProvider is implemented by types that declare their schema fields
// explicitly instead of relying on struct reflection.
type FieldProvider interface {
	SchemaFields() []FieldSpec
}

// RecordNamer overrides the canonical record name derived from the Go type
// name.
type RecordNamer interface {
	SchemaName() string
}

// Detector is one classification strategy.
type Detector interface {
	// Name identifies the strategy in error messages.
	Name() string

	// Detect reports whether this strategy recognizes the type. A strategy
	// that recognizes a type but finds it malformed (for example a bad
	// default literal) returns matched with an error.
	Detect(t reflect.Type) (Result, bool, error)
}

// Classifier runs an ordered detector chain.
type Classifier struct {
	detectors []Detector
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithDetectors prepends custom detectors ahead of the built-in chain.
func WithDetectors(detectors ...Detector) Option {
	return func(c *Classifier) {
		c.detectors = append(detectors, c.detectors...)
	}
}

// New creates a classifier with the built-in detector chain: explicit field
// metadata, tagged struct, built-in scalar, built-in sequence.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		detectors: []Detector{
			&fieldProviderDetector{},
			&structDetector{},
			&scalarDetector{},
			&sequenceDetector{},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs the detector chain over t. A type no strategy recognizes
// yields an Unsupported result, not an error; errors report malformed
// declarations within a recognized type.
func (c *Classifier) Classify(t reflect.Type) (Result, error) {
	for _, d := range c.detectors {
		res, ok, err := d.Detect(t)
		if err != nil {
			return Result{}, err
		}
		if ok {
			return res, nil
		}
	}
	return Result{Kind: Unsupported}, nil
}
