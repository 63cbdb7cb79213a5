// Package ports defines the interface boundary between the schema engine
// and its collaborators. The engine consumes a Transport to carry calls and
// a SchemaFetcher to bootstrap clients; both are injected, never constructed
// here.
package ports

import (
	"context"
	"encoding/json"

	"github.com/seamrpc/seam/core/schema"
)

// Transport carries one procedure call to a server and returns the raw
// response body. Retries, timeouts, and backoff are the transport's concern;
// the invoker stays deterministic. The kind tells HTTP-style transports
// whether to use an idempotent GET-style or a mutating POST-style request.
type Transport interface {
	Send(ctx context.Context, procedure string, kind schema.Kind, args map[string]any) (json.RawMessage, error)
}

// SchemaFetcher retrieves the published schema snapshot, typically once at
// client construction.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context) (*schema.Snapshot, error)
}
