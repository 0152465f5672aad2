package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordService_HashAndVerify(t *testing.T) {
	svc := NewPasswordServiceWithCost(bcrypt.MinCost)

	hash, err := svc.Hash("secret-phrase")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "secret-phrase", hash)

	// Same password always verifies.
	assert.NoError(t, svc.Verify(hash, "secret-phrase"))
	assert.NoError(t, svc.Verify(hash, "secret-phrase"))

	// Different password never verifies.
	assert.ErrorIs(t, svc.Verify(hash, "wrong-phrase"), ErrInvalidPassword)
	assert.ErrorIs(t, svc.Verify(hash, ""), ErrInvalidPassword)
}

func TestPasswordService_HashesDiffer(t *testing.T) {
	svc := NewPasswordServiceWithCost(bcrypt.MinCost)

	h1, err := svc.Hash("same-password")
	require.NoError(t, err)
	h2, err := svc.Hash("same-password")
	require.NoError(t, err)

	// Salted hashing: equal inputs produce distinct hashes.
	assert.NotEqual(t, h1, h2)
	assert.NoError(t, svc.Verify(h1, "same-password"))
	assert.NoError(t, svc.Verify(h2, "same-password"))
}

func TestPasswordService_EmptyPassword(t *testing.T) {
	svc := NewPasswordServiceWithCost(bcrypt.MinCost)

	_, err := svc.Hash("")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}
