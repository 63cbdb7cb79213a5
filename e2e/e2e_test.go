// Package e2e exercises the full loop: a registry served over HTTP, a remote
// transport, and a validating client calling through it.
package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	seamhttp "github.com/seamrpc/seam/adapters/http"
	"github.com/seamrpc/seam/adapters/remote"
	"github.com/seamrpc/seam/client"
	"github.com/seamrpc/seam/core/registry"
	"github.com/seamrpc/seam/core/validation"
)

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

func newUserService(t *testing.T) *registry.Registry {
	t.Helper()
	email := "ada@example.com"
	users := map[int]user{
		1: {ID: 1, Name: "ada", Email: &email},
		2: {ID: 2, Name: "grace"},
	}

	reg := registry.New()
	reg.MustQuery("get_user", func(ctx context.Context, in getUserInput) (user, error) {
		u, ok := users[in.UserID]
		if !ok {
			return user{}, errors.New("user not found")
		}
		return u, nil
	})
	reg.MustQuery("list_users", func(ctx context.Context, in listUsersInput) ([]user, error) {
		all := []user{users[1], users[2]}
		if in.Limit < len(all) {
			all = all[:in.Limit]
		}
		return all, nil
	})
	reg.MustMutation("create_user", func(ctx context.Context, in createUserInput) (user, error) {
		return user{ID: 3, Name: in.Name, Email: &in.Email}, nil
	})
	return reg
}

// newStack wires the whole pipeline and returns a connected client plus the
// server base URL for direct HTTP assertions.
func newStack(t *testing.T) (*client.Client, string) {
	t.Helper()
	handler := seamhttp.New(newUserService(t))
	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)

	rc := remote.New(remote.Config{BaseURL: srv.URL})
	c, err := client.New(context.Background(), rc, rc)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	return c, srv.URL
}

func TestGetUserRoundTrip(t *testing.T) {
	c, _ := newStack(t)

	result, err := c.Call(context.Background(), "get_user", map[string]any{"user_id": 1})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	obj, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("result = %T, want object", result)
	}
	if obj["id"] != json.Number("1") {
		t.Errorf("id = %v, want 1", obj["id"])
	}
	if obj["name"] != "ada" {
		t.Errorf("name = %v, want ada", obj["name"])
	}
	if obj["email"] != "ada@example.com" {
		t.Errorf("email = %v", obj["email"])
	}
}

func TestGetUserTyped(t *testing.T) {
	c, _ := newStack(t)

	var u user
	if err := c.CallInto(context.Background(), "get_user", map[string]any{"user_id": 2}, &u); err != nil {
		t.Fatalf("CallInto: %v", err)
	}
	if u.ID != 2 || u.Name != "grace" {
		t.Errorf("user = %+v", u)
	}
	if u.Email != nil {
		t.Errorf("email = %v, want nil", *u.Email)
	}
}

func TestClientRejectsBadInput(t *testing.T) {
	c, _ := newStack(t)

	_, err := c.Call(context.Background(), "get_user", map[string]any{"user_id": "42"})
	if err == nil {
		t.Fatal("expected input validation error")
	}
	var ierr *client.InputError
	if !errors.As(err, &ierr) {
		t.Fatalf("error = %T, want *client.InputError", err)
	}
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("error does not wrap *validation.Error: %v", err)
	}
	if !reflect.DeepEqual(verr.Path, []string{"user_id"}) {
		t.Errorf("path = %v, want [user_id]", verr.Path)
	}
	if verr.Expected != "integer" || verr.Actual != "string" {
		t.Errorf("expected/actual = %s/%s", verr.Expected, verr.Actual)
	}
}

func TestListUsersDefaultLimit(t *testing.T) {
	c, _ := newStack(t)

	result, err := c.Call(context.Background(), "list_users", map[string]any{})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	arr, ok := result.([]any)
	if !ok {
		t.Fatalf("result = %T, want array", result)
	}
	if len(arr) != 2 {
		t.Errorf("len = %d, want all 2 users under the default limit", len(arr))
	}
}

func TestListUsersExplicitLimit(t *testing.T) {
	c, _ := newStack(t)

	result, err := c.Call(context.Background(), "list_users", map[string]any{"limit": 1})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if arr := result.([]any); len(arr) != 1 {
		t.Errorf("len = %d, want 1", len(arr))
	}
}

func TestCreateUserMutation(t *testing.T) {
	c, _ := newStack(t)

	var u user
	err := c.CallInto(context.Background(), "create_user",
		map[string]any{"name": "lin", "email": "lin@example.com"}, &u)
	if err != nil {
		t.Fatalf("CallInto: %v", err)
	}
	if u.ID != 3 || u.Name != "lin" {
		t.Errorf("user = %+v", u)
	}
}

func TestServerSideValidation(t *testing.T) {
	// Bypass the client so the server's own validation answers.
	_, baseURL := newStack(t)

	resp, err := http.Get(baseURL + "/get_user?user_id=abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	var body struct {
		Error struct {
			Message  string   `json:"message"`
			Path     []string `json:"path"`
			Expected string   `json:"expected"`
			Actual   string   `json:"actual"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !reflect.DeepEqual(body.Error.Path, []string{"user_id"}) {
		t.Errorf("path = %v, want [user_id]", body.Error.Path)
	}
	if body.Error.Expected != "integer" {
		t.Errorf("expected = %q, want integer", body.Error.Expected)
	}
}

func TestSchemaEndpointMatchesRegistry(t *testing.T) {
	reg := newUserService(t)
	handler := seamhttp.New(reg)
	srv := httptest.NewServer(handler.Routes())
	defer srv.Close()

	want, err := json.Marshal(reg.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	rc := remote.New(remote.Config{BaseURL: srv.URL})
	snap, err := rc.FetchSchema(context.Background())
	if err != nil {
		t.Fatalf("FetchSchema: %v", err)
	}
	got, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal fetched snapshot: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("schema round trip mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestUnknownProcedure(t *testing.T) {
	c, _ := newStack(t)

	_, err := c.Call(context.Background(), "no_such", nil)
	var uerr *client.UnknownProcedureError
	if !errors.As(err, &uerr) {
		t.Fatalf("error = %T, want *client.UnknownProcedureError", err)
	}
}

func TestHandlerErrorSurfacesAsStatusError(t *testing.T) {
	c, _ := newStack(t)

	_, err := c.Call(context.Background(), "get_user", map[string]any{"user_id": 99})
	if err == nil {
		t.Fatal("expected error for missing user")
	}
	var se *remote.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %T, want *remote.StatusError", err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", se.StatusCode)
	}
}

func TestClientProcedures(t *testing.T) {
	c, _ := newStack(t)

	got := c.Procedures()
	want := []string{"create_user", "get_user", "list_users"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Procedures() = %v, want %v", got, want)
	}
}
