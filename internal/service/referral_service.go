package service

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/events"
	"github.com/spec-kit/referral-service/internal/repository"
	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

// ReferralService coordinates referral reads and mutations behind the authorization gate.
type ReferralService struct {
	referrals  repository.ReferralRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewReferralService builds the service.
func NewReferralService(referrals repository.ReferralRepository, dispatcher events.Dispatcher, logger *zap.Logger, now func() time.Time) *ReferralService {
	return &ReferralService{
		referrals:  referrals,
		dispatcher: dispatcher,
		logger:     defaultLogger(logger),
		now:        defaultClock(now),
	}
}

// ReferralChange is a decoded mutation request. Fields lists every key the caller submitted,
// including keys that do not map onto the patch.
type ReferralChange struct {
	Fields     []string
	Patch      domain.ReferralPatch
	OwnerEmail *string
}

// List returns referrals visible to the caller, newest first.
func (s *ReferralService) List(ctx context.Context, identity auth.Identity, requestedOwner string) ([]domain.Referral, error) {
	filter := repository.ReferralFilter{OwnerEmail: auth.ScopeOwnerFilter(identity, requestedOwner)}
	referrals, err := s.referrals.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return referrals, nil
}

// Create stores a referral. Partners always own what they create; an admin may name the owner.
func (s *ReferralService) Create(ctx context.Context, identity auth.Identity, referral *domain.Referral) (*domain.Referral, error) {
	if identity.IsAdmin() {
		referral.OwnerEmail = domain.NormalizeEmail(referral.OwnerEmail)
		referral.OwnerID = nil
	} else {
		referral.OwnerEmail = identity.Email
		ownerID := identity.SubjectID
		referral.OwnerID = &ownerID
	}
	if referral.Status == "" {
		referral.Status = domain.DefaultReferralStatus
	}
	if referral.Payments == nil {
		referral.Payments = []time.Time{}
	}

	if err := (validation.Errors{
		"incorporadora":    validation.Validate(strings.TrimSpace(referral.Developer), validation.Required),
		"contatoNome":      validation.Validate(strings.TrimSpace(referral.ContactName), validation.Required),
		"contatoTelefone":  validation.Validate(strings.TrimSpace(referral.ContactPhone), validation.Required),
		"servicoInteresse": validation.Validate(strings.TrimSpace(referral.ServiceOfInterest), validation.Required),
		"status":           validation.Validate(referral.Status, validation.By(validReferralStatus)),
	}).Filter(); err != nil {
		return nil, validationFailed(err)
	}

	now := s.now()
	referral.LastStatusChangeAt = &now

	if err := s.referrals.Create(ctx, referral); err != nil {
		if apperrors.IsDuplicate(err) {
			return nil, apperrors.NewConflict("duplicate referral", nil)
		}
		return nil, apperrors.MapError(err)
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:       events.EventReferralCreated,
		ReferralID: referral.ID,
		Actor:      actorOf(identity),
		Timestamp:  now,
		Payload: events.ReferralCreatedPayload{
			OwnerEmail: referral.OwnerEmail,
			Developer:  referral.Developer,
			Status:     referral.Status,
		},
	})
	return referral, nil
}

// Update applies a change after the ownership and field-set check. A status change stamps
// lastStatusChangeAt; the owner email never changes.
func (s *ReferralService) Update(ctx context.Context, identity auth.Identity, id string, change ReferralChange) (*domain.Referral, error) {
	current, err := s.referrals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("referral", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	if err := auth.AuthorizeReferralMutation(identity, current, change.Fields, auth.PartnerEditableFields); err != nil {
		return nil, err
	}

	if change.OwnerEmail != nil && domain.NormalizeEmail(*change.OwnerEmail) != domain.NormalizeEmail(current.OwnerEmail) {
		return nil, apperrors.NewValidationError("usuarioEmail cannot be changed", map[string]any{"usuarioEmail": "is immutable"})
	}

	patch := change.Patch
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": "unknown value"})
		}
		if *patch.Status == current.Status {
			patch.Status = nil
		} else {
			now := s.now()
			patch.LastStatusChangeAt = &now
		}
	}

	updated, err := s.referrals.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("referral", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	if patch.Status != nil {
		publish(ctx, s.dispatcher, s.logger, events.Event{
			Type:       events.EventReferralStatusChanged,
			ReferralID: id,
			Actor:      actorOf(identity),
			Timestamp:  *patch.LastStatusChangeAt,
			Payload: events.ReferralStatusChangedPayload{
				OldStatus: current.Status,
				NewStatus: updated.Status,
			},
		})
	}
	return updated, nil
}

// Delete removes a referral.
func (s *ReferralService) Delete(ctx context.Context, id string) error {
	if err := s.referrals.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("referral", map[string]any{"id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// BackfillStatusDates stamps now on referrals created before lastStatusChangeAt existed.
func (s *ReferralService) BackfillStatusDates(ctx context.Context) (int64, error) {
	modified, err := s.referrals.BackfillStatusChangeAt(ctx, s.now())
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if modified > 0 {
		s.logger.Info("status dates backfilled", zap.Int64("modified", modified))
	}
	return modified, nil
}

func validReferralStatus(value any) error {
	status, ok := value.(domain.ReferralStatus)
	if !ok || status.Valid() {
		return nil
	}
	return errors.New("must be one of: " + strings.Join(referralStatusLabels(), ", "))
}

func referralStatusLabels() []string {
	return []string{
		string(domain.ReferralStatusNew),
		string(domain.ReferralStatusInReview),
		string(domain.ReferralStatusInProgress),
		string(domain.ReferralStatusMeetingScheduled),
		string(domain.ReferralStatusMeetingHeld),
		string(domain.ReferralStatusClosed),
		string(domain.ReferralStatusCancelledNoResponse),
		string(domain.ReferralStatusAlreadyRegisteredLead),
	}
}

func actorOf(identity auth.Identity) events.Actor {
	id := identity.SubjectID
	return events.Actor{UserID: &id, Email: identity.Email, Role: identity.Role}
}
