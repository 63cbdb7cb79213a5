package classify

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

var (
	fieldProviderType = reflect.TypeOf((*FieldProvider)(nil)).Elem()
	recordNamerType   = reflect.TypeOf((*RecordNamer)(nil)).Elem()
)

// fieldProviderDetector recognizes types carrying an explicit field-metadata
// list via the FieldProvider interface.
type fieldProviderDetector struct{}

func (d *fieldProviderDetector) Name() string { return "field-provider" }

func (d *fieldProviderDetector) Detect(t reflect.Type) (Result, bool, error) {
	provider, ok := instanceAs(t, fieldProviderType)
	if !ok {
		return Result{}, false, nil
	}
	return Result{
		Kind:   Record,
		Name:   recordName(t),
		Fields: provider.(FieldProvider).SchemaFields(),
	}, true, nil
}

// structDetector recognizes named Go structs. Wire names come from the
// `seam` tag, falling back to the `json` tag, falling back to the snake_case
// form of the field name. Anonymous embedded structs are flattened in
// declaration order.
type structDetector struct{}

func (d *structDetector) Name() string { return "tagged-struct" }

func (d *structDetector) Detect(t reflect.Type) (Result, bool, error) {
	if t.Kind() != reflect.Struct {
		return Result{}, false, nil
	}
	if t.Name() == "" {
		return Result{}, true, fmt.Errorf("classify: anonymous struct has no canonical record name")
	}
	fields, err := structFields(t)
	if err != nil {
		return Result{}, true, fmt.Errorf("classify: record %s: %w", t.Name(), err)
	}
	return Result{
		Kind:   Record,
		Name:   recordName(t),
		Fields: fields,
	}, true, nil
}

func structFields(t reflect.Type) ([]FieldSpec, error) {
	var fields []FieldSpec
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		if f.Anonymous && f.Tag.Get("seam") != "-" {
			embedded := f.Type
			if embedded.Kind() == reflect.Pointer {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				nested, err := structFields(embedded)
				if err != nil {
					return nil, err
				}
				fields = append(fields, nested...)
				continue
			}
		}

		if !f.IsExported() {
			continue
		}

		spec, skip, err := fieldSpec(f)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if skip {
			continue
		}
		fields = append(fields, spec)
	}
	return fields, nil
}

func fieldSpec(f reflect.StructField) (FieldSpec, bool, error) {
	spec := FieldSpec{Type: f.Type}

	tag := f.Tag.Get("seam")
	if tag == "-" {
		return FieldSpec{}, true, nil
	}

	var opts []string
	if tag != "" {
		parts := strings.Split(tag, ",")
		spec.Name = parts[0]
		opts = parts[1:]
	}

	if spec.Name == "" {
		jsonTag := f.Tag.Get("json")
		if jsonTag == "-" {
			return FieldSpec{}, true, nil
		}
		if jsonTag != "" {
			spec.Name = strings.Split(jsonTag, ",")[0]
		}
	}
	if spec.Name == "" {
		spec.Name = strcase.ToSnake(f.Name)
	}

	for _, opt := range opts {
		lit, ok := strings.CutPrefix(opt, "default=")
		if !ok {
			return FieldSpec{}, false, fmt.Errorf("unknown tag option %q", opt)
		}
		value, err := parseDefault(lit, f.Type)
		if err != nil {
			return FieldSpec{}, false, err
		}
		spec.HasDefault = true
		spec.Default = value
	}

	return spec, false, nil
}

// parseDefault parses a `default=` literal against the field's primitive
// type. The parsed value keeps the field's own Go type so it can be applied
// to the decoded input struct directly.
func parseDefault(lit string, t reflect.Type) (any, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("default %q is not an integer", lit)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(lit, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("default %q is not an integer", lit)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("default %q is not a number", lit)
		}
		v.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(lit)
		if err != nil {
			return nil, fmt.Errorf("default %q is not a boolean", lit)
		}
		v.SetBool(b)
	case reflect.String:
		v.SetString(lit)
	default:
		return nil, fmt.Errorf("default values are only supported on primitive fields, not %s", t)
	}
	return v.Interface(), nil
}

// scalarDetector recognizes built-in scalar types.
type scalarDetector struct{}

func (d *scalarDetector) Name() string { return "scalar" }

func (d *scalarDetector) Detect(t reflect.Type) (Result, bool, error) {
	var primitive string
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		primitive = "integer"
	case reflect.Float32, reflect.Float64:
		primitive = "number"
	case reflect.String:
		primitive = "string"
	case reflect.Bool:
		primitive = "boolean"
	default:
		return Result{}, false, nil
	}
	return Result{Kind: Primitive, Primitive: primitive}, true, nil
}

// sequenceDetector recognizes slices and arrays. []byte is left unrecognized:
// encoding/json represents it as a base64 string, so an array-of-integer
// schema would lie about its wire shape.
type sequenceDetector struct{}

func (d *sequenceDetector) Name() string { return "sequence" }

func (d *sequenceDetector) Detect(t reflect.Type) (Result, bool, error) {
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return Result{}, false, nil
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return Result{}, false, nil
	}
	return Result{Kind: Collection, Elem: t.Elem()}, true, nil
}

// recordName returns the canonical record name for a type: the RecordNamer
// override when implemented, else the Go type name.
func recordName(t reflect.Type) string {
	if namer, ok := instanceAs(t, recordNamerType); ok {
		return namer.(RecordNamer).SchemaName()
	}
	return t.Name()
}

// instanceAs returns a fresh instance of t seen through the given interface
// type, trying both the value and its pointer.
func instanceAs(t reflect.Type, iface reflect.Type) (any, bool) {
	if t.Implements(iface) {
		return reflect.New(t).Elem().Interface(), true
	}
	if reflect.PointerTo(t).Implements(iface) {
		return reflect.New(t).Interface(), true
	}
	return nil, false
}
