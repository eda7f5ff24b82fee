package events

import (
	"time"

	"github.com/spec-kit/referral-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventReferralCreated       EventType = "referral_created"
	EventReferralStatusChanged EventType = "referral_status_changed"
	EventReferralsExpired      EventType = "referrals_expired"
	EventUserSetupCompleted    EventType = "user_setup_completed"
)

// Actor identifies who triggered an event. System events (the expiry sweep) carry an empty actor.
type Actor struct {
	UserID *string     `json:"user_id,omitempty"`
	Email  string      `json:"email,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	ReferralID string    `json:"referral_id,omitempty"`
	Actor      Actor     `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload"`
}

// ReferralCreatedPayload payload.
type ReferralCreatedPayload struct {
	OwnerEmail string                `json:"owner_email"`
	Developer  string                `json:"developer"`
	Status     domain.ReferralStatus `json:"status"`
}

// ReferralStatusChangedPayload payload.
type ReferralStatusChangedPayload struct {
	OldStatus domain.ReferralStatus `json:"old_status"`
	NewStatus domain.ReferralStatus `json:"new_status"`
}

// ReferralsExpiredPayload payload.
type ReferralsExpiredPayload struct {
	From     domain.ReferralStatus `json:"from"`
	To       domain.ReferralStatus `json:"to"`
	Cutoff   time.Time             `json:"cutoff"`
	Modified int64                 `json:"modified"`
}

// UserSetupCompletedPayload payload.
type UserSetupCompletedPayload struct {
	UserID     string    `json:"user_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}
