package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/seamrpc/seam/core/schema"
)

type User struct {
	ID    int    `seam:"id"`
	Name  string `seam:"name"`
	Email string `seam:"email"`
}

type GetUserInput struct {
	UserID int `seam:"user_id"`
}

type ListUsersInput struct {
	Limit int `seam:"limit,default=10"`
}

func getUser(ctx context.Context, in GetUserInput) (User, error) {
	return User{ID: in.UserID, Name: "ada", Email: "ada@example.com"}, nil
}

func listUsers(ctx context.Context, in ListUsersInput) ([]User, error) {
	return []User{}, nil
}

func TestRegistry_Query(t *testing.T) {
	r := New()

	proc, err := r.Query("get_user", getUser)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if proc.Name != "get_user" {
		t.Errorf("Name = %q, want get_user", proc.Name)
	}
	if proc.Kind != schema.KindQuery {
		t.Errorf("Kind = %q, want query", proc.Kind)
	}
	if proc.Output.Ref != "User" {
		t.Errorf("Output.Ref = %q, want User", proc.Output.Ref)
	}
	if _, ok := r.Defs().Resolve("User"); !ok {
		t.Error("Defs() should contain the materialized User record")
	}
}

func TestRegistry_DuplicateProcedure(t *testing.T) {
	r := New()

	if _, err := r.Query("get_user", getUser); err != nil {
		t.Fatalf("first Query() error = %v", err)
	}

	_, err := r.Query("get_user", getUser)
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("error = %v, want *DuplicateError", err)
	}
	if dup.Name != "get_user" {
		t.Errorf("DuplicateError.Name = %q, want get_user", dup.Name)
	}

	// Duplicate across kinds is still a duplicate.
	if _, err := r.Mutation("get_user", getUser); err == nil {
		t.Error("Mutation() under a taken name should fail")
	}
}

func TestRegistry_ReservedNames(t *testing.T) {
	// These routes belong to the serving adapter's built-in endpoints.
	for _, name := range []string{"schema", "health", "metrics"} {
		t.Run(name, func(t *testing.T) {
			r := New()
			if _, err := r.Query(name, getUser); err == nil {
				t.Errorf("Query(%q) should be rejected", name)
			}
			if _, err := r.Mutation(name, getUser); err == nil {
				t.Errorf("Mutation(%q) should be rejected", name)
			}
		})
	}
}

func TestRegistry_EmptyName(t *testing.T) {
	r := New()
	if _, err := r.Query("", getUser); err == nil {
		t.Error("Query(\"\") should be rejected")
	}
}

func TestRegistry_HandlerSignatures(t *testing.T) {
	tests := []struct {
		name    string
		handler any
		wantErr bool
	}{
		{"value input", func(ctx context.Context, in GetUserInput) (User, error) { return User{}, nil }, false},
		{"pointer input", func(ctx context.Context, in *GetUserInput) (User, error) { return User{}, nil }, false},
		{"context only", func(ctx context.Context) ([]User, error) { return nil, nil }, false},
		{"not a func", 42, true},
		{"missing context", func(in GetUserInput) (User, error) { return User{}, nil }, true},
		{"no error return", func(ctx context.Context, in GetUserInput) User { return User{} }, true},
		{"void return", func(ctx context.Context, in GetUserInput) error { return nil }, true},
		{"non-struct input", func(ctx context.Context, in int) (User, error) { return User{}, nil }, true},
		{"too many params", func(ctx context.Context, a, b GetUserInput) (User, error) { return User{}, nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			_, err := r.Query("proc", tt.handler)
			if (err != nil) != tt.wantErr {
				t.Errorf("Query() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_MustQueryPanicsOnError(t *testing.T) {
	r := New()
	r.MustQuery("get_user", getUser)

	defer func() {
		if recover() == nil {
			t.Error("MustQuery() should panic on duplicate registration")
		}
	}()
	r.MustQuery("get_user", getUser)
}

func TestRegistry_ProceduresSorted(t *testing.T) {
	r := New()
	r.MustQuery("zeta", getUser)
	r.MustQuery("alpha", getUser)
	r.MustMutation("mid", getUser)

	procs := r.Procedures()
	want := []string{"alpha", "mid", "zeta"}
	for i, p := range procs {
		if p.Name != want[i] {
			t.Fatalf("Procedures()[%d] = %q, want %q", i, p.Name, want[i])
		}
	}
}

func TestRegistry_InvokeRoundTrip(t *testing.T) {
	r := New()
	proc := r.MustQuery("get_user", getUser)

	in := proc.NewInput()
	typed, ok := in.(*GetUserInput)
	if !ok {
		t.Fatalf("NewInput() = %T, want *GetUserInput", in)
	}
	typed.UserID = 7

	out, err := proc.Invoke(context.Background(), in)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	user, ok := out.(User)
	if !ok {
		t.Fatalf("Invoke() = %T, want User", out)
	}
	if user.ID != 7 {
		t.Errorf("user.ID = %d, want 7", user.ID)
	}
}

func TestRegistry_InvokePropagatesHandlerError(t *testing.T) {
	r := New()
	wantErr := errors.New("not found")
	proc := r.MustQuery("get_user", func(ctx context.Context, in GetUserInput) (User, error) {
		return User{}, wantErr
	})

	_, err := proc.Invoke(context.Background(), proc.NewInput())
	if !errors.Is(err, wantErr) {
		t.Errorf("Invoke() error = %v, want %v", err, wantErr)
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	r := New()
	r.MustQuery("get_user", getUser)
	r.MustQuery("list_users", listUsers)

	snap := r.Snapshot()

	if len(snap.Procedures) != 2 {
		t.Fatalf("snapshot has %d procedures, want 2", len(snap.Procedures))
	}
	proc := snap.Procedures["get_user"]
	if proc.Kind != schema.KindQuery {
		t.Errorf("Kind = %q, want query", proc.Kind)
	}
	if proc.Schema.Output.Ref != "User" {
		t.Errorf("output = %+v, want reference to User", proc.Schema.Output)
	}
	if _, ok := snap.Defs["User"]; !ok {
		t.Error("snapshot defs missing User")
	}
}

func TestRegistry_SnapshotPrunesUnreachableDefs(t *testing.T) {
	r := New()
	r.MustQuery("get_user", getUser)

	// A definition present in the live table but referenced by no
	// registered procedure.
	r.Defs().Insert("Orphan", &schema.Node{Properties: schema.NewProperties(), Required: []string{}})

	snap := r.Snapshot()
	if _, ok := snap.Defs["Orphan"]; ok {
		t.Error("snapshot should prune definitions no procedure reaches")
	}
	if _, ok := r.Defs().Resolve("Orphan"); !ok {
		t.Error("live table should keep unreferenced definitions")
	}
	if _, ok := snap.Defs["User"]; !ok {
		t.Error("snapshot should keep reachable definitions")
	}
}

func TestRegistry_SnapshotFollowsTransitiveRefs(t *testing.T) {
	type Leaf struct {
		V int `seam:"v"`
	}
	type Branch struct {
		Leaf Leaf `seam:"leaf"`
	}

	r := New()
	r.MustQuery("get_branch", func(ctx context.Context, in GetUserInput) (Branch, error) {
		return Branch{}, nil
	})

	snap := r.Snapshot()
	if _, ok := snap.Defs["Branch"]; !ok {
		t.Error("snapshot missing Branch")
	}
	if _, ok := snap.Defs["Leaf"]; !ok {
		t.Error("snapshot missing transitively reachable Leaf")
	}
}
