package interfaces

import (
	"context"

	"chatrelay/pkg/types"
)

// MessageStore is the durable store for chat records. The store assigns ID
// and CreatedAt at persistence time.
type MessageStore interface {
	CreateMessage(ctx context.Context, sender *string, recipient, text, attachmentRef string) (*types.Message, error)
	// Conversation returns both directions of traffic between two users,
	// ordered by CreatedAt ascending.
	Conversation(ctx context.Context, userA, userB string) ([]*types.Message, error)
}

// UserStore is the credential store consumed by the account service and the
// HTTP layer.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*types.User, error)
	UserByUsername(ctx context.Context, username string) (*types.User, error)
	ListUsers(ctx context.Context) ([]*types.User, error)
}

// BlobStore persists raw attachment bytes. Writes are best-effort: the relay
// never consults an acknowledgment.
type BlobStore interface {
	WriteAsync(name string, data []byte)
}
