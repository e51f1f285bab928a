package auth

import "errors"

var (
	ErrNoToken         = errors.New("no handshake token present")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrInvalidHash     = errors.New("invalid password hash format")
	ErrWrongCredential = errors.New("invalid username or password")
)
