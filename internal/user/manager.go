package user

import (
	"context"
	"sync"

	"chatrelay/internal/auth"
	"chatrelay/pkg/interfaces"
	"chatrelay/pkg/types"
)

const minPasswordLen = 8

// Manager is the account service: registration, credential verification and
// lookups, with a read-through cache over the credential store. Accounts are
// immutable after creation, so cached entries never go stale.
type Manager struct {
	store interfaces.UserStore

	mu    sync.RWMutex
	cache map[string]*types.User // username -> user
}

func NewManager(store interfaces.UserStore) *Manager {
	return &Manager{
		store: store,
		cache: make(map[string]*types.User),
	}
}

// Register creates an account with an argon2id-hashed password.
func (m *Manager) Register(ctx context.Context, username, password string) (*types.User, error) {
	if !types.IsValidUsername(username) {
		return nil, types.ErrInvalidUsername
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := m.store.CreateUser(ctx, username, hash)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[user.Username] = user
	m.mu.Unlock()

	return user, nil
}

// Authenticate verifies credentials. Unknown usernames and wrong passwords
// both collapse to ErrBadCredentials so the endpoint cannot be used to
// enumerate accounts.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (*types.User, error) {
	user, err := m.ByUsername(ctx, username)
	if err != nil {
		return nil, ErrBadCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// ByUsername looks an account up, cache first.
func (m *Manager) ByUsername(ctx context.Context, username string) (*types.User, error) {
	m.mu.RLock()
	if user, ok := m.cache[username]; ok {
		m.mu.RUnlock()
		return user, nil
	}
	m.mu.RUnlock()

	user, err := m.store.UserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[username] = user
	m.mu.Unlock()

	return user, nil
}

// List returns all accounts, for the user-listing endpoint.
func (m *Manager) List(ctx context.Context) ([]*types.User, error) {
	return m.store.ListUsers(ctx)
}
