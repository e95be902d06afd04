package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateNumericCode returns a uniformly random numeric string of the given length.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	ten := big.NewInt(10)
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}

	return string(digits), nil
}

// CodeHasher derives storage keys for one-time codes so raw codes never leave the process.
type CodeHasher struct {
	key []byte
}

// NewCodeHasher keys the HMAC with the server secret.
func NewCodeHasher(secret string) *CodeHasher {
	return &CodeHasher{key: []byte(secret)}
}

// Hash returns hex(HMAC-SHA256(purpose ":" code)).
func (h *CodeHasher) Hash(purpose, code string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(purpose))
	mac.Write([]byte{':'})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}
