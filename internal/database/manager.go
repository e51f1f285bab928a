package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	dbconfig "chatrelay/pkg/database"
	"chatrelay/pkg/interfaces"
	"chatrelay/pkg/types"
)

// Manager implements interfaces.MessageStore and interfaces.UserStore over
// SQLite. All writes funnel through one goroutine; SQLite allows concurrent
// readers under WAL but only one writer.
type Manager struct {
	db       *sql.DB
	writeCh  chan writeOperation
	shutdown chan struct{}
	wg       sync.WaitGroup
	closed   bool
	mu       sync.RWMutex
	log      *slog.Logger
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

func NewManager(cfg *dbconfig.Config, log *slog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbconfig.InitializeSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	m := &Manager{
		db:       db,
		writeCh:  make(chan writeOperation, 100),
		shutdown: make(chan struct{}),
		log:      log,
	}

	m.wg.Add(1)
	go m.writeLoop()

	return m, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeCh:
			err := op.operation(m.db)
			if err != nil && retryable(err) {
				m.log.Warn("database write failed, retrying once", "err", err)
				time.Sleep(time.Second)
				err = op.operation(m.db)
			}
			op.result <- err

		case <-m.shutdown:
			return
		}
	}
}

// retryable filters out constraint violations, which will fail identically
// on a second attempt.
func retryable(err error) bool {
	return !strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case m.writeCh <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// CreateMessage persists a chat record, assigning its ID and CreatedAt.
func (m *Manager) CreateMessage(ctx context.Context, sender *string, recipient, text, attachmentRef string) (*types.Message, error) {
	msg := &types.Message{
		ID:            uuid.New().String(),
		Sender:        sender,
		Recipient:     recipient,
		Text:          text,
		AttachmentRef: attachmentRef,
		CreatedAt:     time.Now().UTC(),
	}

	err := m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO messages (id, sender, recipient, text, attachment, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.Sender, msg.Recipient, msg.Text, msg.AttachmentRef, msg.CreatedAt,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// Conversation returns both directions of traffic between two users in
// CreatedAt ascending order.
func (m *Manager) Conversation(ctx context.Context, userA, userB string) ([]*types.Message, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, sender, recipient, text, attachment, created_at
		 FROM messages
		 WHERE (sender = ? AND recipient = ?) OR (sender = ? AND recipient = ?)
		 ORDER BY created_at ASC`,
		userA, userB, userB, userA,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*types.Message
	for rows.Next() {
		var msg types.Message
		var sender sql.NullString
		if err := rows.Scan(&msg.ID, &sender, &msg.Recipient, &msg.Text, &msg.AttachmentRef, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if sender.Valid {
			msg.Sender = &sender.String
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return messages, nil
}

// CreateUser inserts an account record. A duplicate username maps to
// interfaces.ErrUsernameTaken.
func (m *Manager) CreateUser(ctx context.Context, username, passwordHash string) (*types.User, error) {
	user := &types.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	err := m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
			user.ID, user.Username, user.PasswordHash, user.CreatedAt,
		)
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, interfaces.ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (m *Manager) UserByUsername(ctx context.Context, username string) (*types.User, error) {
	var user types.User
	err := m.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (m *Manager) ListUsers(ctx context.Context) ([]*types.User, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*types.User
	for rows.Next() {
		var user types.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

// HealthCheck validates connectivity and a basic read.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := m.db.QueryContext(ctx, "SELECT COUNT(*) FROM users LIMIT 1"); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close drains the write loop and closes the pool. Idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
