// Package http serves a procedure registry over HTTP. Queries are exposed
// as GET endpoints with query-string arguments, mutations as POST endpoints
// with JSON bodies, plus the schema snapshot at /schema.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/iancoleman/strcase"

	"github.com/seamrpc/seam/adapters/metrics"
	"github.com/seamrpc/seam/core/registry"
	"github.com/seamrpc/seam/core/schema"
	"github.com/seamrpc/seam/core/validation"
)

// ErrorDetail is the body of every error response. Path, Expected and
// Actual are set only for validation failures.
type ErrorDetail struct {
	Message  string   `json:"message"`
	Path     []string `json:"path,omitempty"`
	Expected string   `json:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty"`
}

type errorResponse struct {
	Error ErrorDetail `json:"error"`
}

type resultResponse struct {
	Result json.RawMessage `json:"result"`
}

// Handler dispatches HTTP requests to registered procedures. The schema
// snapshot is computed once at construction; the registry is expected to be
// fully populated before Routes is called.
type Handler struct {
	reg      *registry.Registry
	snapshot *schema.Snapshot
	logger   zerolog.Logger
	metrics  *metrics.Collector
	strict   bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithMetrics enables Prometheus instrumentation and the /metrics endpoint.
func WithMetrics(m *metrics.Collector) Option {
	return func(h *Handler) { h.metrics = m }
}

// Strict rejects request arguments not declared in the input schema.
func Strict() Option {
	return func(h *Handler) { h.strict = true }
}

// New creates a handler over a populated registry.
func New(reg *registry.Registry, opts ...Option) *Handler {
	h := &Handler{
		reg:    reg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.snapshot = reg.Snapshot()
	return h
}

// Routes builds the router: one route per procedure plus the schema, health
// and metrics endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newLoggingMiddleware(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/schema", h.handleSchema)
	r.Get("/health", handleHealth)
	if h.metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	for _, p := range h.reg.Procedures() {
		proc := p
		switch proc.Kind {
		case schema.KindMutation:
			r.Post("/"+proc.Name, h.dispatch(proc))
		default:
			r.Get("/"+proc.Name, h.dispatch(proc))
		}
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, ErrorDetail{
			Message: fmt.Sprintf("unknown procedure %q", strings.TrimPrefix(r.URL.Path, "/")),
		})
	})

	return r
}

func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	if h.metrics != nil {
		h.metrics.SchemaRequests.Inc()
	}
	writeJSON(w, http.StatusOK, h.snapshot)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dispatch builds the handler for one procedure: parse arguments, apply
// declared defaults, validate, decode, invoke, validate the result, respond.
func (h *Handler) dispatch(p *registry.Procedure) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if h.metrics != nil {
			h.metrics.RequestsInFlight.Inc()
			defer h.metrics.RequestsInFlight.Dec()
		}

		status := h.serve(p, w, r)

		if h.metrics != nil {
			h.metrics.RequestsTotal.
				WithLabelValues(p.Name, string(p.Kind), strconv.Itoa(status)).Inc()
			h.metrics.RequestDuration.
				WithLabelValues(p.Name, string(p.Kind)).Observe(time.Since(start).Seconds())
		}
	}
}

func (h *Handler) serve(p *registry.Procedure, w http.ResponseWriter, r *http.Request) int {
	args, err := h.parseArgs(p, r)
	if err != nil {
		return writeError(w, http.StatusBadRequest, ErrorDetail{Message: err.Error()})
	}
	applyDefaults(args, p.Input)

	valOpts := []validation.Option{}
	if h.strict {
		valOpts = append(valOpts, validation.Strict())
	}
	if err := validation.Validate(args, p.Input, h.reg.Defs(), valOpts...); err != nil {
		if h.metrics != nil {
			h.metrics.ValidationFailures.WithLabelValues(p.Name, "input").Inc()
		}
		return writeValidationError(w, err)
	}

	in := p.NewInput()
	if in != nil {
		if err := decodeArgs(args, in); err != nil {
			h.logger.Error().Err(err).Str("procedure", p.Name).Msg("argument decode failed")
			return writeError(w, http.StatusInternalServerError, ErrorDetail{Message: "internal error"})
		}
	}

	out, err := p.Invoke(r.Context(), in)
	if err != nil {
		h.logger.Error().Err(err).Str("procedure", p.Name).Msg("handler error")
		return writeError(w, http.StatusInternalServerError, ErrorDetail{Message: err.Error()})
	}

	// Validate the wire form of the result, not the Go value the handler
	// returned.
	payload, err := json.Marshal(out)
	if err != nil {
		h.logger.Error().Err(err).Str("procedure", p.Name).Msg("result marshal failed")
		return writeError(w, http.StatusInternalServerError, ErrorDetail{Message: "internal error"})
	}
	var wire any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		h.logger.Error().Err(err).Str("procedure", p.Name).Msg("result decode failed")
		return writeError(w, http.StatusInternalServerError, ErrorDetail{Message: "internal error"})
	}
	if err := validation.Validate(wire, p.Output, h.reg.Defs()); err != nil {
		if h.metrics != nil {
			h.metrics.ValidationFailures.WithLabelValues(p.Name, "output").Inc()
		}
		h.logger.Error().Err(err).Str("procedure", p.Name).Msg("handler result failed validation")
		return writeError(w, http.StatusInternalServerError, ErrorDetail{Message: "internal error"})
	}

	return writeJSON(w, http.StatusOK, resultResponse{Result: payload})
}

// parseArgs extracts call arguments from the request. Queries carry them in
// the query string, coerced against the input schema; mutations carry a JSON
// body decoded with number preservation.
func (h *Handler) parseArgs(p *registry.Procedure, r *http.Request) (map[string]any, error) {
	if p.Kind == schema.KindMutation {
		args := map[string]any{}
		if r.Body == nil || r.ContentLength == 0 {
			return args, nil
		}
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		// A literal null body decodes into a nil map; normalize it so
		// defaults have somewhere to land.
		if args == nil {
			args = map[string]any{}
		}
		return args, nil
	}
	return coerceQuery(r.URL.Query(), p.Input, h.reg.Defs()), nil
}

// decodeArgs fills the procedure's input struct from validated arguments.
// The decoder mirrors the one the client uses for typed results.
func decodeArgs(args map[string]any, in any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           in,
		TagName:          "seam",
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return strings.EqualFold(mapKey, fieldName) || mapKey == strcase.ToSnake(fieldName)
		},
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// applyDefaults fills absent arguments from the input schema's declared
// defaults. Defaults apply before validation so a defaulted field is never
// reported missing.
func applyDefaults(args map[string]any, input *schema.Node) {
	if input == nil || input.Properties == nil {
		return
	}
	for _, name := range input.Properties.Names() {
		prop, _ := input.Properties.Get(name)
		if prop.Default == nil {
			continue
		}
		if _, present := args[name]; !present {
			args[name] = prop.Default
		}
	}
}

func writeValidationError(w http.ResponseWriter, err error) int {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return writeError(w, http.StatusUnprocessableEntity, ErrorDetail{
			Message:  verr.Error(),
			Path:     verr.Path,
			Expected: verr.Expected,
			Actual:   verr.Actual,
		})
	}
	// Anything else, a dangling reference in particular, is a registration
	// bug rather than a caller error.
	return writeError(w, http.StatusInternalServerError, ErrorDetail{Message: "internal error"})
}

func writeError(w http.ResponseWriter, status int, detail ErrorDetail) int {
	return writeJSON(w, status, errorResponse{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
	return status
}

// newLoggingMiddleware logs each request at debug level, skipping health
// checks and metrics scrapes.
func newLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
