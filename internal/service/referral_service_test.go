package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/events"
	"github.com/spec-kit/referral-service/internal/repository/memory"
	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

var (
	adminCaller = auth.Identity{SubjectID: "admin-1", Email: "admin@agency.com", Role: domain.RoleAdmin}
	partnerA    = auth.Identity{SubjectID: "p-a", Email: "a@partner.com", Role: domain.RolePartner}
	partnerB    = auth.Identity{SubjectID: "p-b", Email: "b@partner.com", Role: domain.RolePartner}
	baseInput   = func() *domain.Referral {
		return &domain.Referral{
			Developer:         "Construtora X",
			ContactName:       "Maria",
			ContactPhone:      "11999990000",
			ServiceOfInterest: "Marketing",
		}
	}
)

type referralFixture struct {
	svc    *ReferralService
	store  *memory.Store
	clock  time.Time
	events []events.Event
}

func newReferralFixture() *referralFixture {
	f := &referralFixture{store: memory.NewStore(), clock: testNow}
	dispatcher := events.NewInMemoryDispatcher()
	record := func(_ context.Context, e events.Event) error {
		f.events = append(f.events, e)
		return nil
	}
	dispatcher.Subscribe(events.EventReferralCreated, record)
	dispatcher.Subscribe(events.EventReferralStatusChanged, record)
	f.svc = NewReferralService(f.store.Referrals(), dispatcher, nil, func() time.Time { return f.clock })
	return f
}

func (f *referralFixture) create(t *testing.T, identity auth.Identity, mutate func(*domain.Referral)) *domain.Referral {
	t.Helper()
	in := baseInput()
	if mutate != nil {
		mutate(in)
	}
	created, err := f.svc.Create(context.Background(), identity, in)
	require.NoError(t, err)
	return created
}

func TestCreateForcesPartnerOwnership(t *testing.T) {
	f := newReferralFixture()

	created := f.create(t, partnerA, func(r *domain.Referral) { r.OwnerEmail = "someone@else.com" })
	assert.Equal(t, "a@partner.com", created.OwnerEmail)
	require.NotNil(t, created.OwnerID)
	assert.Equal(t, "p-a", *created.OwnerID)
	assert.Equal(t, domain.ReferralStatusInProgress, created.Status)
	require.NotNil(t, created.LastStatusChangeAt)
	assert.True(t, testNow.Equal(*created.LastStatusChangeAt))

	byAdmin := f.create(t, adminCaller, func(r *domain.Referral) { r.OwnerEmail = " B@Partner.com " })
	assert.Equal(t, "b@partner.com", byAdmin.OwnerEmail)

	require.Len(t, f.events, 2)
	assert.Equal(t, events.EventReferralCreated, f.events[0].Type)
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	f := newReferralFixture()

	_, err := f.svc.Create(context.Background(), partnerA, &domain.Referral{Developer: "X", Status: "Whatever"})
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
	details := apperrors.ToDomainError(err).Details
	for _, key := range []string{"contatoNome", "contatoTelefone", "servicoInteresse", "status"} {
		assert.Contains(t, details, key)
	}
	assert.NotContains(t, details, "incorporadora")
}

func TestListScopesPartnersToOwnEmail(t *testing.T) {
	f := newReferralFixture()
	f.create(t, partnerA, nil)
	f.create(t, partnerA, nil)
	f.create(t, partnerB, nil)

	own, err := f.svc.List(context.Background(), partnerA, "b@partner.com")
	require.NoError(t, err)
	require.Len(t, own, 2)
	for _, r := range own {
		assert.Equal(t, "a@partner.com", r.OwnerEmail)
	}

	all, err := f.svc.List(context.Background(), adminCaller, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := f.svc.List(context.Background(), adminCaller, "B@partner.com")
	require.NoError(t, err)
	assert.Len(t, filtered, 1)
}

func TestPartnerMayOnlyToggleHiddenOnOwnReferral(t *testing.T) {
	f := newReferralFixture()
	own := f.create(t, partnerA, nil)
	other := f.create(t, partnerB, nil)

	hidden := true
	status := domain.ReferralStatusClosed

	updated, err := f.svc.Update(context.Background(), partnerA, own.ID, ReferralChange{
		Fields: []string{"oculta"},
		Patch:  domain.ReferralPatch{Hidden: &hidden},
	})
	require.NoError(t, err)
	assert.True(t, updated.Hidden)

	_, err = f.svc.Update(context.Background(), partnerA, own.ID, ReferralChange{
		Fields: []string{"oculta", "status"},
		Patch:  domain.ReferralPatch{Hidden: &hidden, Status: &status},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.Update(context.Background(), partnerA, other.ID, ReferralChange{
		Fields: []string{"oculta"},
		Patch:  domain.ReferralPatch{Hidden: &hidden},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	unchanged, err := f.store.Referrals().GetByID(context.Background(), own.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReferralStatusInProgress, unchanged.Status)
}

func TestStatusChangeStampsTimestamp(t *testing.T) {
	f := newReferralFixture()
	referral := f.create(t, partnerA, nil)

	f.clock = testNow.Add(48 * time.Hour)
	same := domain.ReferralStatusInProgress
	updated, err := f.svc.Update(context.Background(), adminCaller, referral.ID, ReferralChange{
		Fields: []string{"status"},
		Patch:  domain.ReferralPatch{Status: &same},
	})
	require.NoError(t, err)
	assert.True(t, testNow.Equal(*updated.LastStatusChangeAt), "same status must not restamp")

	held := domain.ReferralStatusMeetingHeld
	updated, err = f.svc.Update(context.Background(), adminCaller, referral.ID, ReferralChange{
		Fields: []string{"status"},
		Patch:  domain.ReferralPatch{Status: &held},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReferralStatusMeetingHeld, updated.Status)
	assert.True(t, f.clock.Equal(*updated.LastStatusChangeAt))

	last := f.events[len(f.events)-1]
	assert.Equal(t, events.EventReferralStatusChanged, last.Type)
	payload := last.Payload.(events.ReferralStatusChangedPayload)
	assert.Equal(t, domain.ReferralStatusInProgress, payload.OldStatus)
	assert.Equal(t, domain.ReferralStatusMeetingHeld, payload.NewStatus)
}

func TestUpdateRejectsOwnerChangeAndUnknownStatus(t *testing.T) {
	f := newReferralFixture()
	referral := f.create(t, partnerA, nil)

	newOwner := "b@partner.com"
	_, err := f.svc.Update(context.Background(), adminCaller, referral.ID, ReferralChange{
		Fields:     []string{"usuarioEmail"},
		OwnerEmail: &newOwner,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	sameOwner := "A@partner.com"
	_, err = f.svc.Update(context.Background(), adminCaller, referral.ID, ReferralChange{
		Fields:     []string{"usuarioEmail"},
		OwnerEmail: &sameOwner,
	})
	assert.NoError(t, err)

	bogus := domain.ReferralStatus("Perdido")
	_, err = f.svc.Update(context.Background(), adminCaller, referral.ID, ReferralChange{
		Fields: []string{"status"},
		Patch:  domain.ReferralPatch{Status: &bogus},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = f.svc.Update(context.Background(), adminCaller, "missing", ReferralChange{Fields: []string{"notes"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDeleteAndBackfill(t *testing.T) {
	f := newReferralFixture()
	referral := f.create(t, partnerA, nil)

	legacy := &domain.Referral{Developer: "Old", OwnerEmail: "a@partner.com", Status: domain.ReferralStatusNew}
	require.NoError(t, f.store.Referrals().Create(context.Background(), legacy))

	modified, err := f.svc.BackfillStatusDates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	require.NoError(t, f.svc.Delete(context.Background(), referral.ID))
	assert.True(t, apperrors.HasCode(f.svc.Delete(context.Background(), referral.ID), apperrors.CodeNotFound))
}
