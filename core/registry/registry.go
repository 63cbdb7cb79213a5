// Package registry stores procedure descriptors and owns the definition
// table. Registration runs single-threaded at startup; once it completes the
// registry is read-only and safe for concurrent readers.
package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/seamrpc/seam/core/classify"
	"github.com/seamrpc/seam/core/derive"
	"github.com/seamrpc/seam/core/schema"
)

// Procedure is the descriptor for one registered procedure. It is owned
// exclusively by the registry and immutable after registration.
type Procedure struct {
	Name   string
	Kind   schema.Kind
	Input  *schema.Node
	Output *schema.Node

	newInput func() any
	invoke   func(ctx context.Context, in any) (any, error)
}

// NewInput returns a fresh pointer to the procedure's input struct, for the
// dispatch adapter to decode validated arguments into. It returns nil for
// procedures without an input.
func (p *Procedure) NewInput() any {
	if p.newInput == nil {
		return nil
	}
	return p.newInput()
}

// Invoke calls the registered handler. in must be the value produced by
// NewInput (or nil for input-less procedures).
func (p *Procedure) Invoke(ctx context.Context, in any) (any, error) {
	return p.invoke(ctx, in)
}

// Registry maps procedure names to descriptors. There is no deletion or
// mutation API: redefinition under the same name is a fatal error.
type Registry struct {
	mu sync.RWMutex

	procedures map[string]*Procedure
	defs       schema.Definitions
	builder    *derive.Builder
}

// Option configures a Registry.
type Option func(*config)

type config struct {
	classifier *classify.Classifier
}

// WithClassifier replaces the default classifier, for callers registering
// custom record conventions.
func WithClassifier(c *classify.Classifier) Option {
	return func(cfg *config) { cfg.classifier = c }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	cfg := config{classifier: classify.New()}
	for _, opt := range opts {
		opt(&cfg)
	}

	defs := schema.NewDefinitions()
	return &Registry{
		procedures: make(map[string]*Procedure),
		defs:       defs,
		builder:    derive.NewBuilder(cfg.classifier, defs),
	}
}

// Query registers a side-effect-free procedure. The serving adapter exposes
// queries over GET.
func (r *Registry) Query(name string, handler any) (*Procedure, error) {
	return r.register(name, schema.KindQuery, handler)
}

// Mutation registers a side-effecting procedure, exposed over POST.
func (r *Registry) Mutation(name string, handler any) (*Procedure, error) {
	return r.register(name, schema.KindMutation, handler)
}

// MustQuery is Query that panics on error. Registration errors are
// programming errors and should abort startup.
func (r *Registry) MustQuery(name string, handler any) *Procedure {
	p, err := r.Query(name, handler)
	if err != nil {
		panic(err)
	}
	return p
}

// MustMutation is Mutation that panics on error.
func (r *Registry) MustMutation(name string, handler any) *Procedure {
	p, err := r.Mutation(name, handler)
	if err != nil {
		panic(err)
	}
	return p
}

// reservedNames are claimed by the serving adapter's built-in endpoints. A
// procedure registered under one of them would shadow the built-in route.
var reservedNames = map[string]bool{
	"schema":  true,
	"health":  true,
	"metrics": true,
}

func (r *Registry) register(name string, kind schema.Kind, handler any) (*Procedure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return nil, fmt.Errorf("registry: procedure name must not be empty")
	}
	if reservedNames[name] {
		return nil, fmt.Errorf("registry: procedure name %q is reserved", name)
	}
	if _, exists := r.procedures[name]; exists {
		return nil, &DuplicateError{Name: name}
	}

	sig, err := inspectHandler(name, handler)
	if err != nil {
		return nil, err
	}

	input, output, err := r.builder.ProcedureSchema(sig.inputStruct, sig.outputType)
	if err != nil {
		return nil, fmt.Errorf("procedure %q: %w", name, err)
	}

	proc := &Procedure{
		Name:   name,
		Kind:   kind,
		Input:  input,
		Output: output,
		invoke: sig.invoke,
	}
	if sig.inputStruct != nil {
		inputStruct := sig.inputStruct
		proc.newInput = func() any { return reflect.New(inputStruct).Interface() }
	}

	r.procedures[name] = proc
	return proc, nil
}

// Procedure returns a registered descriptor by name.
func (r *Registry) Procedure(name string) (*Procedure, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procedures[name]
	return p, ok
}

// Procedures returns all descriptors sorted by name.
func (r *Registry) Procedures() []*Procedure {
	r.mu.RLock()
	defer r.mu.RUnlock()

	procs := make([]*Procedure, 0, len(r.procedures))
	for _, p := range r.procedures {
		procs = append(procs, p)
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].Name < procs[j].Name })
	return procs
}

// Defs returns the live definition table. Callers must treat it as
// read-only.
func (r *Registry) Defs() schema.Definitions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs
}

// Snapshot serializes the registry into the published schema document. Only
// definitions transitively reachable from a registered procedure are
// included; unreferenced entries stay in the live table but are pruned from
// the snapshot. Snapshot is pure and may be called repeatedly.
func (r *Registry) Snapshot() *schema.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &schema.Snapshot{
		Procedures: make(map[string]schema.ProcedureSchema, len(r.procedures)),
		Defs:       schema.NewDefinitions(),
	}

	reachable := make(map[string]bool)
	for name, p := range r.procedures {
		snap.Procedures[name] = schema.ProcedureSchema{
			Kind:   p.Kind,
			Schema: schema.IOSchema{Input: p.Input, Output: p.Output},
		}
		r.collectRefs(p.Input, reachable)
		r.collectRefs(p.Output, reachable)
	}

	for name := range reachable {
		if def, ok := r.defs.Resolve(name); ok {
			snap.Defs[name] = def
		}
	}
	return snap
}

// collectRefs walks a node graph marking every reachable definition name.
func (r *Registry) collectRefs(node *schema.Node, seen map[string]bool) {
	if node == nil {
		return
	}
	if node.Ref != "" {
		if seen[node.Ref] {
			return
		}
		seen[node.Ref] = true
		if def, ok := r.defs.Resolve(node.Ref); ok {
			r.collectRefs(def, seen)
		}
		return
	}
	r.collectRefs(node.Items, seen)
	for _, name := range node.Properties.Names() {
		prop, _ := node.Properties.Get(name)
		r.collectRefs(prop, seen)
	}
}

// DuplicateError reports a second registration under an existing procedure
// name. It is fatal: redefinition is never an update.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("registry: procedure %q already registered", e.Name)
}
