package dto

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/referral-service/internal/domain"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

// LoginEmailHint extracts the email from a login body that failed to decode, when the body is
// still a JSON object with a string email. It returns "" otherwise.
func LoginEmailHint(body []byte) string {
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(body, &loose); err != nil {
		return ""
	}
	var email string
	if err := json.Unmarshal(loose["email"], &email); err != nil {
		return ""
	}
	return email
}

// Flag is a boolean that also accepts the loosely typed values older clients send:
// numbers (non-zero is true) and strings such as "true" or "1". Anything else decodes as false.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*f = Flag(v)
	case float64:
		*f = v != 0
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		*f = Flag(err == nil && parsed)
	default:
		*f = false
	}
	return nil
}

// SetupRequest payload for the first-access ritual.
type SetupRequest struct {
	NewPassword   string `json:"novaSenha"`
	TermsAccepted Flag   `json:"aceitouTermo"`
}

// SessionUser is the user shape returned with a session.
type SessionUser struct {
	ID                 string            `json:"id"`
	Name               string            `json:"nome"`
	Email              string            `json:"email"`
	Role               domain.Role       `json:"role"`
	Status             domain.UserStatus `json:"status"`
	FirstAccessPending bool              `json:"firstAccessPending"`
	TermsAccepted      bool              `json:"termsAccepted"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token string      `json:"token"`
	User  SessionUser `json:"user"`
}

// SetupResponse is returned once the setup ritual completes.
type SetupResponse struct {
	OK   bool        `json:"ok"`
	User SessionUser `json:"user"`
}

// UserResponse is the admin view of an account. Credentials are never included.
type UserResponse struct {
	ID                 string            `json:"id"`
	Name               string            `json:"nome"`
	Email              string            `json:"email"`
	Role               domain.Role       `json:"role"`
	Status             domain.UserStatus `json:"status"`
	FirstAccessPending bool              `json:"firstAccessPending"`
	TermsAccepted      bool              `json:"termsAccepted"`
	TermsAcceptedAt    *time.Time        `json:"termsAcceptedAt,omitempty"`
	LastAccessAt       *time.Time        `json:"lastAccessAt,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// OKResponse acknowledges a mutation without a body.
type OKResponse struct {
	OK bool `json:"ok"`
}

// NewSessionUser maps the session view of a user.
func NewSessionUser(u *domain.User) SessionUser {
	return SessionUser{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		Status:             u.Status,
		FirstAccessPending: u.FirstAccessPending,
		TermsAccepted:      u.TermsAccepted,
	}
}

// NewUserResponse maps the admin view of a user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		Status:             u.Status,
		FirstAccessPending: u.FirstAccessPending,
		TermsAccepted:      u.TermsAccepted,
		TermsAcceptedAt:    u.TermsAcceptedAt,
		LastAccessAt:       u.LastAccessAt,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// NewUserList maps a slice of users, never returning null.
func NewUserList(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}
