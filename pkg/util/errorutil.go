package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Wire codes rendered in the "error" field of every failure body.
const (
	CodeUnauthorized       = "Unauthorized"
	CodeForbidden          = "Forbidden"
	CodeSetupRequired      = "SetupRequired"
	CodeRateLimited        = "RateLimited"
	CodeInvalidCredentials = "InvalidCredentials"
	CodeValidationFailed   = "ValidationFailed"
	CodeNotFound           = "NotFound"
	CodeConflict           = "Conflict"
	CodeStoreUnavailable   = "StoreUnavailable"
	CodeInternalError      = "InternalError"
)

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by repositories when a unique key already exists.
var ErrDuplicate = errors.New("duplicate record")

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewUnauthorized is returned for missing, malformed, forged or expired tokens.
func NewUnauthorized() error {
	return NewDomainError(CodeUnauthorized, "", http.StatusUnauthorized, nil)
}

// NewForbidden is returned for role, ownership or field-set violations.
func NewForbidden() error {
	return NewDomainError(CodeForbidden, "", http.StatusForbidden, nil)
}

// NewSetupRequired is the distinguished Forbidden returned while the first-access ritual is pending.
func NewSetupRequired(message string) error {
	return NewDomainError(CodeSetupRequired, message, http.StatusForbidden, nil)
}

func NewRateLimited(message string) error {
	return NewDomainError(CodeRateLimited, message, http.StatusTooManyRequests, nil)
}

// NewInvalidCredentials covers both unknown identities and wrong secrets.
func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "invalid credentials", http.StatusUnauthorized, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewStoreUnavailable hides the store failure behind a generic service error.
func NewStoreUnavailable(err error) error {
	return &DomainError{
		Code:       CodeStoreUnavailable,
		Message:    "service unavailable, try again later",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	if IsDuplicate(err) {
		return NewConflict("duplicate record", nil).(*DomainError)
	}
	if errors.Is(err, context.Canceled) {
		return NewInternalError(err).(*DomainError)
	}
	return NewStoreUnavailable(err).(*DomainError)
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsDuplicate reports unique-key violations from either store implementation.
func IsDuplicate(err error) bool {
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// HasCode reports whether err carries the given wire code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
