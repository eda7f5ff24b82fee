package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/referral-service/internal/domain"
)

func TestVerifyCredentialHashed(t *testing.T) {
	digest, err := HashPassword("s3cret!", bcrypt.MinCost)
	require.NoError(t, err)

	cred := domain.ParseCredential(digest)
	require.Equal(t, domain.CredentialHashed, cred.Kind)

	assert.True(t, VerifyCredential("s3cret!", cred))
	for _, wrong := range []string{"", "s3cret", "s3cret!!", "S3CRET!", digest} {
		assert.False(t, VerifyCredential(wrong, cred), "secret %q must not verify", wrong)
	}
}

func TestVerifyCredentialLegacyPlaintext(t *testing.T) {
	cred := domain.ParseCredential("123456")
	require.Equal(t, domain.CredentialPlaintext, cred.Kind)
	assert.True(t, cred.IsLegacy())

	assert.True(t, VerifyCredential("123456", cred))
	assert.False(t, VerifyCredential("1234567", cred))
	assert.False(t, VerifyCredential(" 123456", cred))
}

func TestVerifyCredentialEmptyPlaintextNeverMatches(t *testing.T) {
	assert.False(t, VerifyCredential("", domain.ParseCredential("")))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestCredentialStringHidesValue(t *testing.T) {
	cred := domain.ParseCredential("plain-secret")
	assert.NotContains(t, cred.String(), "plain-secret")
}
