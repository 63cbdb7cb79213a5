package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/seamrpc/seam/adapters/metrics"
	"github.com/seamrpc/seam/core/registry"
)

// Output records carry json tags: the wire form comes from encoding/json,
// and the classifier reads json tags when no seam tag is present.
type user struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

type getUserInput struct {
	UserID int `seam:"user_id"`
}

type listUsersInput struct {
	Limit int `seam:"limit,default=10"`
}

type createUserInput struct {
	Name  string `seam:"name"`
	Email string `seam:"email"`
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()

	reg.MustQuery("get_user", func(ctx context.Context, in getUserInput) (user, error) {
		if in.UserID == 7 {
			return user{}, errors.New("user 7 is unavailable")
		}
		return user{ID: in.UserID, Name: "ada"}, nil
	})
	reg.MustQuery("list_users", func(ctx context.Context, in listUsersInput) ([]user, error) {
		users := make([]user, in.Limit)
		for i := range users {
			users[i] = user{ID: i + 1, Name: "u"}
		}
		return users, nil
	})
	reg.MustMutation("create_user", func(ctx context.Context, in createUserInput) (user, error) {
		return user{ID: 1, Name: in.Name}, nil
	})

	return reg
}

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	h := New(newTestRegistry(t), opts...)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestQueryHappyPath(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/get_user?user_id=42")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	result, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("body = %v, want result envelope", body)
	}
	if result["id"] != json.Number("42") {
		t.Errorf("id = %v, want 42", result["id"])
	}
	if result["name"] != "ada" {
		t.Errorf("name = %v, want ada", result["name"])
	}
}

func TestQueryValidationFailure(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/get_user?user_id=abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	detail, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("body = %v, want error envelope", body)
	}
	if !reflect.DeepEqual(detail["path"], []any{"user_id"}) {
		t.Errorf("path = %v, want [user_id]", detail["path"])
	}
	if detail["expected"] != "integer" {
		t.Errorf("expected = %v, want integer", detail["expected"])
	}
	if detail["actual"] != "string" {
		t.Errorf("actual = %v, want string", detail["actual"])
	}
}

func TestQueryMissingRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/get_user")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestQueryDefaultApplied(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/list_users")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	result, ok := body["result"].([]any)
	if !ok {
		t.Fatalf("body = %v, want array result", body)
	}
	if len(result) != 10 {
		t.Errorf("len(result) = %d, want the default limit of 10", len(result))
	}
}

func TestMutationHappyPath(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/create_user", "application/json",
		strings.NewReader(`{"name":"grace","email":"grace@example.com"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	result := body["result"].(map[string]any)
	if result["name"] != "grace" {
		t.Errorf("name = %v, want grace", result["name"])
	}
}

func TestMutationRejectsGET(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/create_user")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("GET on a mutation should not succeed")
	}
}

func TestMutationBadBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/create_user", "application/json",
		strings.NewReader(`{"name":`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

type renameUserInput struct {
	UserID int    `seam:"user_id"`
	Note   string `seam:"note,default=renamed"`
}

// A literal null body must produce a validation error document, not a
// panic while applying defaults to a nil argument map.
func TestMutationNullBody(t *testing.T) {
	reg := registry.New()
	reg.MustMutation("rename_user", func(ctx context.Context, in renameUserInput) (user, error) {
		return user{ID: in.UserID, Name: in.Note}, nil
	})
	srv := httptest.NewServer(New(reg).Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/rename_user", "application/json",
		strings.NewReader(`null`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	detail, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("body = %v, want error envelope", body)
	}
	if !reflect.DeepEqual(detail["path"], []any{"user_id"}) {
		t.Errorf("path = %v, want [user_id]", detail["path"])
	}
	if detail["actual"] != "missing" {
		t.Errorf("actual = %v, want missing", detail["actual"])
	}
}

type auditEntry struct {
	Action string `json:"action"`
}

type recordAuditInput struct {
	Entry auditEntry `seam:"entry"`
}

// A reference the definition table cannot resolve is a registration bug and
// must surface as 500, never as a caller-recoverable 422.
func TestDanglingInputReferenceIs500(t *testing.T) {
	reg := registry.New()
	reg.MustMutation("record_audit", func(ctx context.Context, in recordAuditInput) (user, error) {
		return user{ID: 1, Name: in.Entry.Action}, nil
	})
	// Corrupt the live table so the input's record reference dangles.
	delete(reg.Defs(), "auditEntry")

	srv := httptest.NewServer(New(reg).Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/record_audit", "application/json",
		strings.NewReader(`{"entry":{"action":"created"}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	detail := body["error"].(map[string]any)
	if detail["message"] != "internal error" {
		t.Errorf("message = %v, want internal error", detail["message"])
	}
}

func TestUnknownProcedure(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/no_such_thing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if _, ok := body["error"]; !ok {
		t.Errorf("body = %v, want error envelope", body)
	}
}

func TestHandlerError(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/get_user?user_id=7")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	detail := body["error"].(map[string]any)
	if detail["message"] != "user 7 is unavailable" {
		t.Errorf("message = %v", detail["message"])
	}
}

func TestStrictRejectsUnknownArgs(t *testing.T) {
	srv := newTestServer(t, Strict())

	resp, err := http.Get(srv.URL + "/get_user?user_id=42&mystery=1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestOpenModeIgnoresUnknownArgs(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/get_user?user_id=42&mystery=1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	reg := newTestRegistry(t)
	h := New(reg)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/schema")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	procs, ok := body["procedures"].(map[string]any)
	if !ok {
		t.Fatalf("body = %v, want procedures", body)
	}
	for _, name := range []string{"get_user", "list_users", "create_user"} {
		if _, ok := procs[name]; !ok {
			t.Errorf("schema missing procedure %q", name)
		}
	}
	if _, ok := body["defs"]; !ok {
		t.Error("schema missing defs")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestValidationMetricRecorded(t *testing.T) {
	promReg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(promReg)
	srv := newTestServer(t, WithMetrics(m))

	resp, err := http.Get(srv.URL + "/get_user?user_id=abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	got := testutil.ToFloat64(m.ValidationFailures.WithLabelValues("get_user", "input"))
	if got != 1 {
		t.Errorf("validation failure count = %v, want 1", got)
	}
	total := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("get_user", "query", "422"))
	if total != 1 {
		t.Errorf("requests total = %v, want 1", total)
	}
}
