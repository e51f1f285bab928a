package types

import (
	"regexp"
)

const (
	// MaxTextBytes bounds the text field of a single message.
	MaxTextBytes = 64 * 1024
	// MaxAttachmentBytes bounds the decoded size of an inline attachment.
	// The encoded form is ~4/3 of this.
	MaxAttachmentBytes = 10 << 20
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// IsValidUsername reports whether a username matches the allowed format.
// The same rule applies to user IDs carried in tokens and roster entries.
func IsValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// Validate checks an inbound event before it enters the relay pipeline.
// An Empty event is valid here; the relay discards it without error.
func (m *InboundMessage) Validate() error {
	if m.Recipient == "" {
		return ErrMissingRecipient
	}
	if len(m.Text) > MaxTextBytes {
		return ErrTextTooLarge
	}
	if m.File != nil {
		if m.File.Name == "" {
			return ErrAttachmentNoName
		}
		// base64 expands by 4/3, so bound the encoded form accordingly.
		if len(m.File.Data) > (MaxAttachmentBytes/3)*4+4 {
			return ErrAttachmentTooLarge
		}
	}
	return nil
}
