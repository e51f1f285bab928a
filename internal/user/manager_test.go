package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chatrelay/pkg/interfaces"
	"chatrelay/pkg/types"
)

// countingStore is an in-memory UserStore that records lookup traffic.
type countingStore struct {
	users   map[string]*types.User
	lookups int
}

func newCountingStore() *countingStore {
	return &countingStore{users: make(map[string]*types.User)}
}

func (s *countingStore) CreateUser(_ context.Context, username, passwordHash string) (*types.User, error) {
	if _, exists := s.users[username]; exists {
		return nil, interfaces.ErrUsernameTaken
	}
	user := &types.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[username] = user
	return user, nil
}

func (s *countingStore) UserByUsername(_ context.Context, username string) (*types.User, error) {
	s.lookups++
	user, ok := s.users[username]
	if !ok {
		return nil, interfaces.ErrUserNotFound
	}
	return user, nil
}

func (s *countingStore) ListUsers(context.Context) ([]*types.User, error) {
	var users []*types.User
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

func TestManager_Register(t *testing.T) {
	req := require.New(t)
	m := NewManager(newCountingStore())
	ctx := context.Background()

	user, err := m.Register(ctx, "alice", "a long password")
	req.NoError(err)
	req.Equal("alice", user.Username)
	req.NotEmpty(user.PasswordHash)
	req.NotEqual("a long password", user.PasswordHash)
}

func TestManager_Register_InvalidUsername(t *testing.T) {
	m := NewManager(newCountingStore())
	_, err := m.Register(context.Background(), "bad name!", "a long password")
	require.ErrorIs(t, err, types.ErrInvalidUsername)
}

func TestManager_Register_WeakPassword(t *testing.T) {
	m := NewManager(newCountingStore())
	_, err := m.Register(context.Background(), "alice", "short")
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestManager_Register_Duplicate(t *testing.T) {
	req := require.New(t)
	m := NewManager(newCountingStore())
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "a long password")
	req.NoError(err)
	_, err = m.Register(ctx, "alice", "another password")
	req.ErrorIs(err, interfaces.ErrUsernameTaken)
}

func TestManager_Authenticate(t *testing.T) {
	req := require.New(t)
	m := NewManager(newCountingStore())
	ctx := context.Background()

	created, err := m.Register(ctx, "alice", "a long password")
	req.NoError(err)

	user, err := m.Authenticate(ctx, "alice", "a long password")
	req.NoError(err)
	req.Equal(created.ID, user.ID)
}

func TestManager_Authenticate_BadCredentials(t *testing.T) {
	req := require.New(t)
	m := NewManager(newCountingStore())
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "a long password")
	req.NoError(err)

	// Wrong password and unknown user produce the same error.
	_, err = m.Authenticate(ctx, "alice", "wrong password")
	req.ErrorIs(err, ErrBadCredentials)
	_, err = m.Authenticate(ctx, "nobody", "a long password")
	req.ErrorIs(err, ErrBadCredentials)
}

func TestManager_ByUsername_Caches(t *testing.T) {
	req := require.New(t)
	store := newCountingStore()
	m := NewManager(store)
	ctx := context.Background()

	seeded, err := store.CreateUser(ctx, "alice", "hash")
	req.NoError(err)

	// First lookup hits the store, later ones the cache.
	user, err := m.ByUsername(ctx, "alice")
	req.NoError(err)
	req.Equal(seeded.ID, user.ID)
	req.Equal(1, store.lookups)

	_, err = m.ByUsername(ctx, "alice")
	req.NoError(err)
	req.Equal(1, store.lookups)
}

func TestManager_ByUsername_RegisterSeedsCache(t *testing.T) {
	req := require.New(t)
	store := newCountingStore()
	m := NewManager(store)
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "a long password")
	req.NoError(err)

	_, err = m.ByUsername(ctx, "alice")
	req.NoError(err)
	req.Zero(store.lookups)
}

func TestManager_List(t *testing.T) {
	req := require.New(t)
	m := NewManager(newCountingStore())
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "a long password")
	req.NoError(err)
	_, err = m.Register(ctx, "bob", "a long password")
	req.NoError(err)

	users, err := m.List(ctx)
	req.NoError(err)
	req.Len(users, 2)
}
