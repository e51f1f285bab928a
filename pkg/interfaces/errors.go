package interfaces

import "errors"

// Cross-component sentinel errors returned by store implementations.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)
