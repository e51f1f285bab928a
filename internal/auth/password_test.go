package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("correct horse battery staple")
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	ok, err := ComparePassword("correct horse battery staple", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("wrong password", hash)
	req.NoError(err)
	req.False(ok)
}

func TestHashPassword_UniqueSalt(t *testing.T) {
	req := require.New(t)

	h1, err := HashPassword("same password")
	req.NoError(err)
	h2, err := HashPassword("same password")
	req.NoError(err)
	req.NotEqual(h1, h2)
}

func TestComparePassword_MalformedHash(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"wrong scheme", "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$a2V5"},
		{"missing sections", "$argon2id$v=19$m=65536"},
		{"bad params", "$argon2id$v=19$nonsense$c2FsdA$a2V5"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=3,p=2$!!!$a2V5"},
		{"bad key encoding", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComparePassword("anything", tt.encoded)
			require.ErrorIs(t, err, ErrInvalidHash)
		})
	}
}
