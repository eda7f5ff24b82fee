package auth

import (
	"github.com/spec-kit/referral-service/internal/domain"
	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

// PartnerEditableFields is the exact key set a partner may submit when editing their own referral.
var PartnerEditableFields = []string{"oculta"}

// AuthorizeReferralMutation lets administrators change anything. Anyone else must own the
// referral and submit exactly the allowed key set; extra keys reject the whole change.
func AuthorizeReferralMutation(identity Identity, referral *domain.Referral, changedFields []string, allowed []string) error {
	if identity.IsAdmin() {
		return nil
	}
	if referral == nil || domain.NormalizeEmail(referral.OwnerEmail) != identity.Email {
		return apperrors.NewForbidden()
	}
	if !sameKeySet(changedFields, allowed) {
		return apperrors.NewForbidden()
	}
	return nil
}

// ScopeOwnerFilter resolves the owner filter of a list query. Partners always see only their
// own referrals; an admin's requested filter is used as given, including none.
func ScopeOwnerFilter(identity Identity, requested string) *string {
	if !identity.IsAdmin() {
		email := identity.Email
		return &email
	}
	if requested == "" {
		return nil
	}
	email := domain.NormalizeEmail(requested)
	return &email
}

func sameKeySet(keys, allowed []string) bool {
	if len(keys) == 0 {
		return false
	}
	want := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		want[k] = struct{}{}
	}
	got := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := want[k]; !ok {
			return false
		}
		got[k] = struct{}{}
	}
	return len(got) == len(want)
}
