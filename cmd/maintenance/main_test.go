package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/config"
	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/persistence"
	"github.com/spec-kit/referral-service/internal/repository/memory"
)

func testEnv(store *memory.Store) (env, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cfg := &config.Config{
		Auth:         config.AuthConfig{BcryptCost: bcrypt.MinCost},
		StatusExpiry: config.StatusExpiryConfig{MaxAgeMonths: 3},
	}
	return env{
		cfg:    cfg,
		logger: zap.NewNop(),
		out:    out,
		stores: func(context.Context) (persistence.Stores, func(), error) {
			return persistence.Stores{Users: store.Users(), Referrals: store.Referrals(), Memory: true}, func() {}, nil
		},
	}, out
}

func TestHashPassword(t *testing.T) {
	e, out := testEnv(memory.NewStore())

	require.NoError(t, run(context.Background(), e, []string{"hash-password", "s3cret!"}))
	digest := strings.TrimSpace(out.String())
	assert.True(t, auth.VerifyCredential("s3cret!", domain.ParseCredential(digest)))
	assert.False(t, domain.ParseCredential(digest).IsLegacy())
}

func TestUsageErrors(t *testing.T) {
	e, _ := testEnv(memory.NewStore())

	for _, args := range [][]string{nil, {"hash-password"}, {"drop-tables"}, {"expire-referrals", "extra"}} {
		assert.ErrorIs(t, run(context.Background(), e, args), errUsage, "%v", args)
	}
}

func TestExpireAndBackfill(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	old := time.Now().AddDate(0, -4, 0)
	stale := &domain.Referral{Developer: "A", OwnerEmail: "p@x.com", Status: domain.ReferralStatusMeetingHeld, LastStatusChangeAt: &old}
	undated := &domain.Referral{Developer: "B", OwnerEmail: "p@x.com", Status: domain.ReferralStatusNew}
	require.NoError(t, store.Referrals().Create(ctx, stale))
	require.NoError(t, store.Referrals().Create(ctx, undated))

	e, out := testEnv(store)
	require.NoError(t, run(ctx, e, []string{"expire-referrals"}))
	assert.Contains(t, out.String(), "expired 1 referral(s)")

	got, err := store.Referrals().GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReferralStatusCancelledNoResponse, got.Status)

	out.Reset()
	require.NoError(t, run(ctx, e, []string{"backfill-status-dates"}))
	assert.Contains(t, out.String(), "backfilled 1 referral(s)")
}

func TestUpgradeLegacyPasswordsCommand(t *testing.T) {
	store := memory.NewStore()
	user := &domain.User{Email: "old@x.com", Role: domain.RolePartner, Status: domain.UserStatusActive, Credential: domain.ParseCredential("plain")}
	require.NoError(t, store.Users().Create(context.Background(), user))

	e, out := testEnv(store)
	require.NoError(t, run(context.Background(), e, []string{"upgrade-legacy-passwords"}))
	assert.Contains(t, out.String(), "upgraded 1 credential(s)")
}
