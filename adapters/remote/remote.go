// Package remote is the HTTP implementation of the client-side collaborator
// interfaces: it fetches schema snapshots and carries procedure calls to a
// serving endpoint. Queries go out as GET with arguments in the query
// string, mutations as POST with a JSON body.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seamrpc/seam/core/schema"
)

// Config configures the remote client.
type Config struct {
	// BaseURL is the serving endpoint root, without a trailing slash.
	BaseURL string

	// Timeout bounds each HTTP request. Zero means 10 seconds.
	Timeout time.Duration

	// Headers are added to every outgoing request.
	Headers map[string]string

	Logger zerolog.Logger
}

// Client implements ports.Transport and ports.SchemaFetcher over net/http.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	logger     zerolog.Logger
}

// New creates a remote client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		headers:    cfg.Headers,
		logger:     cfg.Logger,
	}
}

// FetchSchema retrieves the published snapshot from GET /schema.
func (c *Client) FetchSchema(ctx context.Context) (*schema.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/schema", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch schema: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, statusError(resp)
	}

	var snap schema.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &snap, nil
}

// Send carries one procedure call. The schema kind selects the HTTP shape:
// query becomes GET /<name> with encoded query parameters, mutation becomes
// POST /<name> with the arguments as a JSON body.
func (c *Client) Send(ctx context.Context, procedure string, kind schema.Kind, args map[string]any) (json.RawMessage, error) {
	var req *http.Request
	var err error

	switch kind {
	case schema.KindMutation:
		body, merr := json.Marshal(args)
		if merr != nil {
			return nil, fmt.Errorf("marshal arguments: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+procedure, bytes.NewReader(body))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+procedure, nil)
		if req != nil {
			req.URL.RawQuery = encodeQuery(args)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.decorate(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("procedure", procedure).
		Str("kind", string(kind)).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("procedure call")

	if resp.StatusCode >= 400 {
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// decorate applies the standing headers plus a fresh correlation ID.
func (c *Client) decorate(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", uuid.NewString())
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

// encodeQuery renders arguments as query parameters. Primitives use their
// plain string form; composite values (arrays, records) are sent as JSON for
// the server to decode per its schema.
func encodeQuery(args map[string]any) string {
	values := url.Values{}
	for name, value := range args {
		values.Set(name, queryValue(value))
	}
	return values.Encode()
}

func queryValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	case float32, float64:
		return fmt.Sprint(v)
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

// StatusError is an HTTP-level failure from the serving endpoint. It passes
// through the client invoker unwrapped.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether the error is a 404 from the server.
func IsNotFound(err error) bool {
	if se, ok := err.(*StatusError); ok {
		return se.StatusCode == http.StatusNotFound
	}
	return false
}
