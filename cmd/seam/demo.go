package main

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/seamrpc/seam/core/registry"
)

// The demo user service exercises the full schema surface: records, arrays,
// nullable fields, defaults, and a self-referential record.

// User is the demo output record. Output records carry json tags so the wire
// form matches the derived schema.
type User struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

// Category is self-referential through its parent.
type Category struct {
	Name   string    `json:"name"`
	Parent *Category `json:"parent"`
}

// CreatedUser is the mutation result, carrying a one-time API token.
type CreatedUser struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type GetUserInput struct {
	UserID int `seam:"user_id"`
}

type ListUsersInput struct {
	Limit int `seam:"limit,default=10"`
}

type CreateUserInput struct {
	Name  string  `seam:"name"`
	Email *string `seam:"email"`
}

type GetCategoryInput struct {
	Name string `seam:"name"`
}

// demoStore is the in-memory backing for the demo procedures.
type demoStore struct {
	mu         sync.RWMutex
	users      map[int]User
	categories map[string]Category
	nextID     int
}

func newDemoStore() *demoStore {
	email := "ada@example.com"
	root := Category{Name: "books"}
	return &demoStore{
		users: map[int]User{
			1: {ID: 1, Name: "ada", Email: &email},
			2: {ID: 2, Name: "grace"},
		},
		categories: map[string]Category{
			"books":   root,
			"fiction": {Name: "fiction", Parent: &root},
		},
		nextID: 3,
	}
}

func (s *demoStore) getUser(ctx context.Context, in GetUserInput) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[in.UserID]
	if !ok {
		return User{}, fmt.Errorf("user %d not found", in.UserID)
	}
	return u, nil
}

func (s *demoStore) listUsers(ctx context.Context, in ListUsersInput) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	users := make([]User, 0, len(ids))
	for _, id := range ids {
		if len(users) == in.Limit {
			break
		}
		users = append(users, s.users[id])
	}
	return users, nil
}

func (s *demoStore) createUser(ctx context.Context, in CreateUserInput) (CreatedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := User{ID: s.nextID, Name: in.Name, Email: in.Email}
	s.users[u.ID] = u
	s.nextID++
	return CreatedUser{User: u, Token: uuid.NewString()}, nil
}

func (s *demoStore) getCategory(ctx context.Context, in GetCategoryInput) (Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[in.Name]
	if !ok {
		return Category{}, fmt.Errorf("category %q not found", in.Name)
	}
	return c, nil
}

// newDemoRegistry registers the demo user service.
func newDemoRegistry() *registry.Registry {
	store := newDemoStore()

	reg := registry.New()
	reg.MustQuery("get_user", store.getUser)
	reg.MustQuery("list_users", store.listUsers)
	reg.MustQuery("get_category", store.getCategory)
	reg.MustMutation("create_user", store.createUser)
	return reg
}
