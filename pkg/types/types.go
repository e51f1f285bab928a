package types

import (
	"time"
)

// User is an account record from the credential store. PasswordHash is the
// encoded argon2id hash and never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is one persisted chat record. Sender is nil when the originating
// connection never completed the handshake. ID and CreatedAt are assigned by
// the store; a Message is immutable once persisted.
type Message struct {
	ID            string    `json:"id"`
	Sender        *string   `json:"sender"`
	Recipient     string    `json:"recipient"`
	Text          string    `json:"text,omitempty"`
	AttachmentRef string    `json:"file,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Attachment carries inline file bytes on the wire. Data is base64, optionally
// prefixed with a data-URI marker ("data:image/png;base64,....").
type Attachment struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// InboundMessage is the structured event a client sends over the duplex
// connection.
type InboundMessage struct {
	Recipient string      `json:"recipient"`
	Text      string      `json:"text,omitempty"`
	File      *Attachment `json:"file,omitempty"`
}

// Empty reports whether the event carries neither text nor a file. Empty
// events are discarded before persistence.
func (m *InboundMessage) Empty() bool {
	return m.Text == "" && m.File == nil
}

// DeliveryEvent is the event forwarded to every connection of the recipient.
// Sender serializes as JSON null for anonymous senders.
type DeliveryEvent struct {
	Text      string  `json:"text,omitempty"`
	Sender    *string `json:"sender"`
	Recipient string  `json:"recipient"`
	File      string  `json:"file,omitempty"`
	ID        string  `json:"id"`
}

// RosterEntry is one reachable identity in a presence snapshot.
type RosterEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// PresenceEvent is the full replacement roster published after every registry
// mutation. It is recomputed from scratch on each publish, never diffed.
type PresenceEvent struct {
	Online []RosterEntry `json:"online"`
}

// ErrorEvent reports a relay failure back to the sending connection.
type ErrorEvent struct {
	Error string `json:"error"`
}
