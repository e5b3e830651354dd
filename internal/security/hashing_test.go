package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("Secret123!secret")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "Secret123!secret", hash)
	assert.NoError(t, h.Compare(hash, "Secret123!secret"))
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("Secret123!secret")
	require.NoError(t, err)
	assert.Error(t, h.Compare(hash, "wrong"))
	assert.Error(t, h.Compare("", "Secret123!secret"))
}

func TestHasher_Empty(t *testing.T) {
	_, err := NewHasher(bcrypt.MinCost).Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestHasher_Cost(t *testing.T) {
	assert.Equal(t, 12, NewHasher(12).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost)
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost)
}
