package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "ali***@example.com", MaskEmail("alice.dreamer@example.com"))
	assert.Equal(t, "b***@example.com", MaskEmail("b@example.com"))
	assert.Equal(t, "", MaskEmail(""))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
}

func TestMaskIdentifier(t *testing.T) {
	assert.Equal(t, "ali***@example.com", MaskIdentifier("alice@example.com"))
	assert.Equal(t, "dr***er", MaskIdentifier("dreamer"))
	assert.Equal(t, "***", MaskIdentifier("bob"))
}

func TestMaskIP(t *testing.T) {
	assert.Equal(t, "192.168.*.*", MaskIP("192.168.1.100"))
	assert.Equal(t, "2001:0db8:85a3:0000:*:*:*:*", MaskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"))
	assert.Equal(t, "***", MaskIP("garbage"))
}
