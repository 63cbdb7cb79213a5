package schema

import "fmt"

// Definitions is the definition table: canonical record name to its Object
// node. Every reference node in a schema must resolve within the same table.
// The table is mutated only during registration and is read-only afterwards.
type Definitions map[string]*Node

// NewDefinitions creates an empty definition table.
func NewDefinitions() Definitions {
	return make(Definitions)
}

// Resolve returns the definition for a record name.
func (d Definitions) Resolve(name string) (*Node, bool) {
	node, ok := d[name]
	return node, ok
}

// Reserve installs a placeholder node under name and returns it. If the name
// is already present the existing node is returned. The returned node is
// completed in place once the record's fields are resolved, which is what
// lets self- and mutually-referential records terminate: a field reaching a
// reserved name emits a reference instead of recursing again.
func (d Definitions) Reserve(name string) *Node {
	if node, ok := d[name]; ok {
		return node
	}
	node := &Node{}
	d[name] = node
	return node
}

// Insert adds a completed definition. Inserting the same name with a
// structurally equal shape is a no-op; a differing shape is a ConflictError.
func (d Definitions) Insert(name string, node *Node) error {
	if existing, ok := d[name]; ok {
		if existing.Equal(node) {
			return nil
		}
		return &ConflictError{Name: name}
	}
	d[name] = node
	return nil
}

// ConflictError reports two divergent definitions claiming one record name.
// It is a registration-time error and should abort startup.
type ConflictError struct {
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schema: conflicting definitions for record %q", e.Name)
}
