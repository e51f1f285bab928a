package auth

import (
	"net/http"
)

// TokenCookie is the cookie field in the connection-establishment request
// that carries the signed handshake token.
const TokenCookie = "token"

// FromRequest locates and verifies the handshake token in request metadata.
// A missing cookie yields ErrNoToken so callers can distinguish an anonymous
// connection from a forged one; both outcomes leave the connection
// unauthenticated rather than failing the upgrade.
func (s *TokenService) FromRequest(r *http.Request) (*Claims, error) {
	cookie, err := r.Cookie(TokenCookie)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoToken
	}
	return s.Verify(cookie.Value)
}
