package mfa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateStaticCodes(t *testing.T) {
	codes, err := GenerateStaticCodes(StaticCodeCount)
	require.NoError(t, err)
	require.Len(t, codes, StaticCodeCount)
	seen := make(map[string]bool)
	for _, c := range codes {
		assert.Len(t, c, 8)
		for _, r := range c {
			assert.True(t, r >= '0' && r <= '9', "non-digit in %q", c)
		}
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}
}

func TestHashCode_Consistent(t *testing.T) {
	assert.Equal(t, HashCode("12345678"), HashCode("12345678"))
	assert.Len(t, HashCode("12345678"), 64)
	assert.NotEqual(t, HashCode("12345678"), HashCode("87654321"))
}

func TestCodeEqual(t *testing.T) {
	stored := HashCode("12345678")
	assert.True(t, CodeEqual("12345678", stored))
	assert.False(t, CodeEqual("87654321", stored))
	assert.False(t, CodeEqual("12345678", "a"+stored))
	assert.False(t, CodeEqual("", ""))
	assert.False(t, CodeEqual("", HashCode("")))
}

func TestConsume_SingleUse(t *testing.T) {
	codes := []string{"11111111", "22222222", "33333333"}
	hashes := HashCodes(codes)

	rest, ok := Consume("22222222", hashes)
	require.True(t, ok)
	assert.Equal(t, []string{hashes[0], hashes[2]}, rest)
	assert.Len(t, hashes, 3, "input slice is not modified")

	_, ok = Consume("22222222", rest)
	assert.False(t, ok)
}
