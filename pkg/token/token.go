// Package token issues and verifies opaque guest access secrets. Only the
// hash is persisted; the raw secret is handed to the caller exactly once.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// DefaultLength is the secret length in random bytes before encoding.
const DefaultLength = 32

// Service generates, hashes and verifies opaque tokens.
type Service struct{}

// NewService creates a token service.
func NewService() *Service { return &Service{} }

// Generate returns a URL-safe random secret of length random bytes.
func (s *Service) Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash returns the hex SHA-256 digest of a secret for storage.
func (s *Service) Hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether secret hashes to hash, in constant time.
func (s *Service) Verify(secret, hash string) bool {
	return hmac.Equal([]byte(s.Hash(secret)), []byte(hash))
}
