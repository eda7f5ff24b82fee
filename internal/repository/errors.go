package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = apperrors.ErrNotFound
	// ErrDuplicate is returned when a unique key (user email) already exists.
	ErrDuplicate = apperrors.ErrDuplicate
	// ErrSetupAlreadyCompleted is returned when completing a setup that already reached its terminal state.
	ErrSetupAlreadyCompleted = errors.New("setup already completed")
)

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	// A malformed uuid cannot match any row.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return ErrNotFound
	}
	if apperrors.IsDuplicate(err) {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
