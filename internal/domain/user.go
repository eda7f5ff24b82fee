package domain

import (
	"strings"
	"time"
)

// UserStatus represents lifecycle states for a user account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// ParseUserStatus accepts both the current and the legacy ("ativo"/"inativo") spellings.
func ParseUserStatus(raw string) (UserStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "ativo":
		return UserStatusActive, true
	case "inactive", "inativo":
		return UserStatusInactive, true
	default:
		return "", false
	}
}

// SetupState is the first-access state derived from the two persisted flags.
type SetupState int

const (
	// SetupPending covers every combination other than the exact terminal one.
	SetupPending SetupState = iota
	SetupCompleted
)

func (s SetupState) String() string {
	if s == SetupCompleted {
		return "completed"
	}
	return "pending"
}

// User is the domain model for administrators and partners.
type User struct {
	ID                 string
	Name               string
	Email              string
	Role               Role
	Status             UserStatus
	Credential         Credential
	FirstAccessPending bool
	TermsAccepted      bool
	TermsAcceptedAt    *time.Time
	LastAccessAt       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SetupState collapses the persisted flags. Only (pending=false, terms=true) counts as completed.
func (u *User) SetupState() SetupState {
	if !u.FirstAccessPending && u.TermsAccepted {
		return SetupCompleted
	}
	return SetupPending
}

// NormalizeEmail lowercases and trims an email used as identity or ownership key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
