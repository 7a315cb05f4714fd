package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpaque_Entropy(t *testing.T) {
	s, err := Opaque(24)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(s), 24)

	s2, err := Opaque(24)
	require.NoError(t, err)
	assert.NotEqual(t, s, s2, "two draws must not collide")
}

func TestHMACSHA256Hex_Deterministic(t *testing.T) {
	sig1 := HMACSHA256Hex([]byte("s"), []byte(`{"event":"message.created"}`))
	sig2 := HMACSHA256Hex([]byte("s"), []byte(`{"event":"message.created"}`))
	assert.Equal(t, sig1, sig2)
	assert.NotEqual(t, sig1, HMACSHA256Hex([]byte("other"), []byte(`{"event":"message.created"}`)))
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqualString("abc", "abc"))
	assert.False(t, ConstantTimeEqualString("abc", "abd"))
	assert.False(t, ConstantTimeEqualString("abc", "abcd"))
	assert.False(t, ConstantTimeEqualString("", "a"))
}
