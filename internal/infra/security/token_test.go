package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "unexpected rune %q", r)
	}

	_, err = GenerateNumericCode(0)
	assert.Error(t, err)
}

func TestCodeHasher(t *testing.T) {
	hasher := NewCodeHasher(testSecret)

	a := hasher.Hash("password_reset", "123456")
	assert.Equal(t, a, hasher.Hash("password_reset", "123456"))
	assert.NotEqual(t, a, hasher.Hash("email_verification", "123456"))
	assert.NotEqual(t, a, NewCodeHasher("other").Hash("password_reset", "123456"))
	assert.Len(t, a, 64)
}
