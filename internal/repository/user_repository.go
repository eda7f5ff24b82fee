package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/referral-service/internal/domain"
)

// UserRepository defines persistence access for administrators and partners.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	UpdateProfile(ctx context.Context, user *domain.User) error
	UpdateCredential(ctx context.Context, id string, credential domain.Credential) error
	// CompleteSetup stores the new digest and flips both setup flags with the acceptance
	// timestamp in one write. It never touches a user already in the completed state.
	CompleteSetup(ctx context.Context, id string, digest string, acceptedAt time.Time) error
	TouchLastAccess(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	ListLegacyCredentials(ctx context.Context) ([]domain.User, error)
	Delete(ctx context.Context, id string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, name, email, role, status, password, first_access_pending, terms_accepted,
               terms_accepted_at, last_access_at, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, role, status, password, first_access_pending, terms_accepted, terms_accepted_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Name,
		domain.NormalizeEmail(user.Email),
		user.Role,
		user.Status,
		user.Credential.Value,
		user.FirstAccessPending,
		user.TermsAccepted,
		user.TermsAcceptedAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return translate(err)
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, email=$2, role=$3, status=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Name,
		domain.NormalizeEmail(user.Email),
		user.Role,
		user.Status,
		user.ID,
	).Scan(&user.UpdatedAt)
	return translate(err)
}

func (r *userRepository) UpdateCredential(ctx context.Context, id string, credential domain.Credential) error {
	const query = `UPDATE users SET password=$1, updated_at=NOW() WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, credential.Value, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) CompleteSetup(ctx context.Context, id string, digest string, acceptedAt time.Time) error {
	const query = `
        UPDATE users
        SET password=$1, first_access_pending=FALSE, terms_accepted=TRUE, terms_accepted_at=$2, updated_at=NOW()
        WHERE id=$3 AND NOT (first_access_pending = FALSE AND terms_accepted = TRUE)`

	cmd, err := r.pool.Exec(ctx, query, digest, acceptedAt, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrSetupAlreadyCompleted
}

func (r *userRepository) TouchLastAccess(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_access_at=$1 WHERE id=$2`

	_, err := r.pool.Exec(ctx, query, at, id)
	return translate(err)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.pool.QueryRow(ctx, query, domain.NormalizeEmail(email)))
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	return r.queryUsers(ctx, query)
}

func (r *userRepository) ListLegacyCredentials(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE password NOT LIKE '$2%' ORDER BY created_at`
	return r.queryUsers(ctx, query)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) queryUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user     domain.User
		role     string
		status   string
		password string
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&role,
		&status,
		&password,
		&user.FirstAccessPending,
		&user.TermsAccepted,
		&user.TermsAcceptedAt,
		&user.LastAccessAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	user.Role, _ = domain.ParseRole(role)
	user.Status, _ = domain.ParseUserStatus(status)
	user.Credential = domain.ParseCredential(password)
	return &user, nil
}
