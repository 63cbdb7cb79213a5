// Package client implements the consuming side of the schema engine: it
// fetches a schema snapshot once, then validates arguments before and
// results after every transport call. Validation is a gate, not a
// transform; payloads come back unchanged.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"

	"github.com/seamrpc/seam/core/schema"
	"github.com/seamrpc/seam/core/validation"
	"github.com/seamrpc/seam/ports"
)

// Client is a schema-validating invoker. Its only mutable state is the
// snapshot cached at construction, so one instance is safe for concurrent
// calls.
type Client struct {
	snapshot  *schema.Snapshot
	transport ports.Transport
	logger    zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger attaches a logger; the default is a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New fetches the schema snapshot through fetcher (blocking) and caches it.
// A failed fetch or a malformed snapshot is a *FetchError.
func New(ctx context.Context, fetcher ports.SchemaFetcher, transport ports.Transport, opts ...Option) (*Client, error) {
	c := &Client{
		transport: transport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	snap, err := fetcher.FetchSchema(ctx)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	if err := checkSnapshot(snap); err != nil {
		return nil, &FetchError{Err: err}
	}

	c.snapshot = snap
	c.logger.Debug().Int("procedures", len(snap.Procedures)).Msg("schema snapshot loaded")
	return c, nil
}

// checkSnapshot rejects snapshots whose schemas cannot be used: missing
// sections or references that do not resolve in the shipped defs.
func checkSnapshot(snap *schema.Snapshot) error {
	if snap == nil || snap.Procedures == nil {
		return fmt.Errorf("snapshot has no procedures section")
	}
	for name, proc := range snap.Procedures {
		if proc.Schema.Input == nil || proc.Schema.Output == nil {
			return fmt.Errorf("procedure %q has an incomplete schema", name)
		}
		for _, node := range []*schema.Node{proc.Schema.Input, proc.Schema.Output} {
			if err := checkRefs(node, snap.Defs, nil); err != nil {
				return fmt.Errorf("procedure %q: %w", name, err)
			}
		}
	}
	return nil
}

func checkRefs(node *schema.Node, defs schema.Definitions, seen map[string]bool) error {
	if node == nil {
		return nil
	}
	if node.Ref != "" {
		if seen[node.Ref] {
			return nil
		}
		def, ok := defs.Resolve(node.Ref)
		if !ok {
			return fmt.Errorf("unresolved reference %q", node.Ref)
		}
		if seen == nil {
			seen = make(map[string]bool)
		}
		seen[node.Ref] = true
		return checkRefs(def, defs, seen)
	}
	if err := checkRefs(node.Items, defs, seen); err != nil {
		return err
	}
	for _, name := range node.Properties.Names() {
		prop, _ := node.Properties.Get(name)
		if err := checkRefs(prop, defs, seen); err != nil {
			return err
		}
	}
	return nil
}

// Procedures lists the known procedure names from the cached snapshot, in
// sorted order.
func (c *Client) Procedures() []string {
	names := make([]string, 0, len(c.snapshot.Procedures))
	for name := range c.snapshot.Procedures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call validates args against the procedure's input schema, delegates to
// the transport, unwraps a "result" envelope when present, validates the
// payload against the output schema, and returns it unchanged.
//
// Transport errors pass through unwrapped; the client does not reinterpret
// network failures.
func (c *Client) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	proc, ok := c.snapshot.Procedures[name]
	if !ok {
		return nil, &UnknownProcedureError{Name: name}
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := validation.Validate(args, proc.Schema.Input, c.snapshot.Defs); err != nil {
		if verr, ok := err.(*validation.Error); ok {
			return nil, &InputError{Procedure: name, Err: verr}
		}
		return nil, err
	}

	raw, err := c.transport.Send(ctx, name, proc.Kind, args)
	if err != nil {
		return nil, err
	}

	payload, err := unwrap(raw)
	if err != nil {
		return nil, &OutputError{Procedure: name, Err: &validation.Error{
			Expected: "json response", Actual: "malformed body",
		}}
	}

	if err := validation.Validate(payload, proc.Schema.Output, c.snapshot.Defs); err != nil {
		if verr, ok := err.(*validation.Error); ok {
			return nil, &OutputError{Procedure: name, Err: verr}
		}
		return nil, err
	}

	return payload, nil
}

// CallInto runs Call and decodes the validated payload into out.
func (c *Client) CallInto(ctx context.Context, name string, args map[string]any, out any) error {
	payload, err := c.Call(ctx, name, args)
	if err != nil {
		return err
	}
	return decode(payload, out)
}

// unwrap decodes the raw body, preferring the "result" envelope key when the
// body is an object carrying one. Numbers decode as json.Number so integer
// validation stays exact.
func unwrap(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if obj, ok := body.(map[string]any); ok {
		if result, ok := obj["result"]; ok {
			return result, nil
		}
	}
	return body, nil
}

// decode maps a validated payload onto a caller struct. Wire names are
// snake_case; fields match through the seam tag or a snake_case fold of the
// field name.
func decode(payload, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "seam",
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return strings.EqualFold(mapKey, fieldName) || mapKey == strcase.ToSnake(fieldName)
		},
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
