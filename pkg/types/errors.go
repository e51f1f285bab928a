package types

import "errors"

var (
	ErrInvalidUsername    = errors.New("username must be 1-50 characters, alphanumeric plus underscore/hyphen")
	ErrMissingRecipient   = errors.New("message recipient is required")
	ErrAttachmentNoName   = errors.New("attachment name is required")
	ErrAttachmentTooLarge = errors.New("attachment exceeds 10MB limit")
	ErrTextTooLarge       = errors.New("message text exceeds 64KB limit")
)
