package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/repository/memory"
	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

func newUserService() (*UserService, *memory.Store) {
	store := memory.NewStore()
	return NewUserService(testAuthConfig(), store.Users(), nil, func() time.Time { return testNow }), store
}

func TestCreatePartnerStartsPending(t *testing.T) {
	svc, _ := newUserService()

	user, err := svc.Create(context.Background(), CreateUserInput{
		Name: "Paula", Email: " Paula@Example.com ", Password: "temp123", Role: "parceiro", Status: "ativo",
	})
	require.NoError(t, err)

	assert.Equal(t, "paula@example.com", user.Email)
	assert.Equal(t, domain.RolePartner, user.Role)
	assert.Equal(t, domain.UserStatusActive, user.Status)
	assert.Equal(t, domain.SetupPending, user.SetupState())
	assert.False(t, user.Credential.IsLegacy())
	assert.True(t, auth.VerifyCredential("temp123", user.Credential))
}

func TestCreateAdminIsAlreadyComplete(t *testing.T) {
	svc, _ := newUserService()

	user, err := svc.Create(context.Background(), CreateUserInput{Email: "boss@example.com", Password: "admin123", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, domain.SetupCompleted, user.SetupState())
	require.NotNil(t, user.TermsAcceptedAt)
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newUserService()

	cases := []struct {
		name  string
		input CreateUserInput
		field string
	}{
		{"missing email", CreateUserInput{Password: "abcdef"}, "email"},
		{"bad email", CreateUserInput{Email: "not-an-email", Password: "abcdef"}, "email"},
		{"short password", CreateUserInput{Email: "a@b.com", Password: "abc"}, "senha"},
		{"unknown role", CreateUserInput{Email: "a@b.com", Password: "abcdef", Role: "root"}, "role"},
		{"unknown status", CreateUserInput{Email: "a@b.com", Password: "abcdef", Status: "banned"}, "status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			require.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
			assert.Contains(t, apperrors.ToDomainError(err).Details, tc.field)
		})
	}
}

func TestCreateDuplicateEmailConflicts(t *testing.T) {
	svc, _ := newUserService()
	_, err := svc.Create(context.Background(), CreateUserInput{Email: "a@b.com", Password: "abcdef"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateUserInput{Email: "A@B.com", Password: "abcdef"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestUpdateUserKeepsSetupFlags(t *testing.T) {
	svc, store := newUserService()
	user, err := svc.Create(context.Background(), CreateUserInput{Email: "p@b.com", Password: "abcdef"})
	require.NoError(t, err)

	name := "Renamed"
	role := "admin"
	blank := "  "
	updated, err := svc.Update(context.Background(), user.ID, UpdateUserInput{Name: &name, Role: &role, Password: &blank})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, domain.RoleAdmin, updated.Role)

	stored, err := store.Users().GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.FirstAccessPending)
	assert.True(t, auth.VerifyCredential("abcdef", stored.Credential))

	password := "newpass"
	_, err = svc.Update(context.Background(), user.ID, UpdateUserInput{Password: &password})
	require.NoError(t, err)
	stored, err = store.Users().GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, auth.VerifyCredential("newpass", stored.Credential))
}

func TestUpdateUserErrors(t *testing.T) {
	svc, _ := newUserService()
	first, err := svc.Create(context.Background(), CreateUserInput{Email: "a@b.com", Password: "abcdef"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateUserInput{Email: "c@d.com", Password: "abcdef"})
	require.NoError(t, err)

	taken := "c@d.com"
	_, err = svc.Update(context.Background(), first.ID, UpdateUserInput{Email: &taken})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = svc.Update(context.Background(), "missing", UpdateUserInput{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	status := "suspended"
	_, err = svc.Update(context.Background(), first.ID, UpdateUserInput{Status: &status})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestDeleteUser(t *testing.T) {
	svc, _ := newUserService()
	user, err := svc.Create(context.Background(), CreateUserInput{Email: "a@b.com", Password: "abcdef"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), user.ID))
	assert.True(t, apperrors.HasCode(svc.Delete(context.Background(), user.ID), apperrors.CodeNotFound))

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpgradeLegacyCredentials(t *testing.T) {
	svc, store := newUserService()
	legacy := &domain.User{Email: "old@b.com", Role: domain.RolePartner, Status: domain.UserStatusActive, Credential: domain.ParseCredential("plain-pass")}
	require.NoError(t, store.Users().Create(context.Background(), legacy))
	_, err := svc.Create(context.Background(), CreateUserInput{Email: "new@b.com", Password: "abcdef"})
	require.NoError(t, err)

	upgraded, err := svc.UpgradeLegacyCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, upgraded)

	stored, err := store.Users().GetByID(context.Background(), legacy.ID)
	require.NoError(t, err)
	assert.False(t, stored.Credential.IsLegacy())
	assert.True(t, auth.VerifyCredential("plain-pass", stored.Credential))

	again, err := svc.UpgradeLegacyCredentials(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestEnsureAdminSeedsCompletedAdminOnce(t *testing.T) {
	svc, store := newUserService()
	digest := hashed(t, "admin123")

	created, err := svc.EnsureAdmin(context.Background(), BootstrapAdmin{Name: "Root", Email: " Admin@Agency.com ", Digest: digest})
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := store.Users().GetByEmail(context.Background(), "admin@agency.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.Equal(t, domain.SetupCompleted, admin.SetupState())
	assert.True(t, auth.VerifyCredential("admin123", admin.Credential))

	created, err = svc.EnsureAdmin(context.Background(), BootstrapAdmin{Email: "admin@agency.com", Digest: hashed(t, "other")})
	require.NoError(t, err)
	assert.False(t, created)

	again, err := store.Users().GetByEmail(context.Background(), "admin@agency.com")
	require.NoError(t, err)
	assert.True(t, auth.VerifyCredential("admin123", again.Credential))
}

func TestEnsureAdminRejectsPlaintextDigest(t *testing.T) {
	svc, store := newUserService()

	_, err := svc.EnsureAdmin(context.Background(), BootstrapAdmin{Email: "admin@agency.com", Digest: "admin123"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = svc.EnsureAdmin(context.Background(), BootstrapAdmin{Email: "not-an-email", Digest: hashed(t, "x")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	users, err := store.Users().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}
