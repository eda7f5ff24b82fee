package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/referral-service/internal/domain"
)

// ReferralFilter captures list parameters.
type ReferralFilter struct {
	OwnerEmail *string
}

// ReferralRepository encapsulates referral persistence.
type ReferralRepository interface {
	Create(ctx context.Context, referral *domain.Referral) error
	GetByID(ctx context.Context, id string) (*domain.Referral, error)
	List(ctx context.Context, filter ReferralFilter) ([]domain.Referral, error)
	Update(ctx context.Context, id string, patch domain.ReferralPatch) (*domain.Referral, error)
	Delete(ctx context.Context, id string) error
	// ExpireStale moves every referral in status from whose last status change is at or
	// before cutoff into status to, stamping now, as a single bulk update.
	ExpireStale(ctx context.Context, from, to domain.ReferralStatus, cutoff, now time.Time) (int64, error)
	// BackfillStatusChangeAt stamps now on referrals that never recorded a status change.
	BackfillStatusChangeAt(ctx context.Context, now time.Time) (int64, error)
}

type referralRepository struct {
	pool *pgxpool.Pool
}

// NewReferralRepository instantiates repository.
func NewReferralRepository(pool *pgxpool.Pool) ReferralRepository {
	return &referralRepository{pool: pool}
}

const referralColumns = `id, developer, contact_name, representative_role, contact_phone, contact_email,
               service_of_interest, notes, status, last_status_change_at, registered_on, due_on, urgency,
               commission_value, commission_term_months, payments, owner_email, owner_id, hidden,
               created_at, updated_at`

func (r *referralRepository) Create(ctx context.Context, referral *domain.Referral) error {
	const query = `
        INSERT INTO referrals (developer, contact_name, representative_role, contact_phone, contact_email,
            service_of_interest, notes, status, last_status_change_at, registered_on, due_on, urgency,
            commission_value, commission_term_months, payments, owner_email, owner_id, hidden)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING id, created_at, updated_at`

	payments := referral.Payments
	if payments == nil {
		payments = []time.Time{}
	}
	err := r.pool.QueryRow(ctx, query,
		referral.Developer,
		referral.ContactName,
		referral.RepresentativeRole,
		referral.ContactPhone,
		referral.ContactEmail,
		referral.ServiceOfInterest,
		referral.Notes,
		referral.Status,
		referral.LastStatusChangeAt,
		referral.RegisteredOn,
		referral.DueOn,
		referral.Urgency,
		referral.CommissionValue,
		referral.CommissionTermMonths,
		payments,
		domain.NormalizeEmail(referral.OwnerEmail),
		referral.OwnerID,
		referral.Hidden,
	).Scan(&referral.ID, &referral.CreatedAt, &referral.UpdatedAt)
	return translate(err)
}

func (r *referralRepository) GetByID(ctx context.Context, id string) (*domain.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id=$1`
	return scanReferral(r.pool.QueryRow(ctx, query, id))
}

func (r *referralRepository) List(ctx context.Context, filter ReferralFilter) ([]domain.Referral, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerEmail != nil {
		args = append(args, domain.NormalizeEmail(*filter.OwnerEmail))
		clauses = append(clauses, fmt.Sprintf("owner_email=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM referrals WHERE %s ORDER BY created_at DESC`,
		referralColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return scanReferrals(rows)
}

func (r *referralRepository) Update(ctx context.Context, id string, patch domain.ReferralPatch) (*domain.Referral, error) {
	sets := []string{}
	args := []any{}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if patch.Developer != nil {
		set("developer", *patch.Developer)
	}
	if patch.ContactName != nil {
		set("contact_name", *patch.ContactName)
	}
	if patch.RepresentativeRole != nil {
		set("representative_role", *patch.RepresentativeRole)
	}
	if patch.ContactPhone != nil {
		set("contact_phone", *patch.ContactPhone)
	}
	if patch.ContactEmail != nil {
		set("contact_email", *patch.ContactEmail)
	}
	if patch.ServiceOfInterest != nil {
		set("service_of_interest", *patch.ServiceOfInterest)
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.LastStatusChangeAt != nil {
		set("last_status_change_at", *patch.LastStatusChangeAt)
	}
	if patch.RegisteredOn != nil {
		set("registered_on", *patch.RegisteredOn)
	}
	if patch.DueOn != nil {
		set("due_on", *patch.DueOn)
	}
	if patch.Urgency != nil {
		set("urgency", *patch.Urgency)
	}
	if patch.CommissionValue != nil {
		set("commission_value", *patch.CommissionValue)
	}
	if patch.CommissionTermMonths != nil {
		set("commission_term_months", *patch.CommissionTermMonths)
	}
	if patch.Payments != nil {
		set("payments", *patch.Payments)
	}
	if patch.Hidden != nil {
		set("hidden", *patch.Hidden)
	}

	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE referrals SET %s WHERE id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), referralColumns)

	return scanReferral(r.pool.QueryRow(ctx, query, args...))
}

func (r *referralRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM referrals WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *referralRepository) ExpireStale(ctx context.Context, from, to domain.ReferralStatus, cutoff, now time.Time) (int64, error) {
	const query = `
        UPDATE referrals SET status=$1, last_status_change_at=$2, updated_at=NOW()
        WHERE status=$3 AND last_status_change_at <= $4`

	cmd, err := r.pool.Exec(ctx, query, to, now, from, cutoff)
	if err != nil {
		return 0, translate(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *referralRepository) BackfillStatusChangeAt(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE referrals SET last_status_change_at=$1 WHERE last_status_change_at IS NULL`

	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, translate(err)
	}
	return cmd.RowsAffected(), nil
}

func scanReferral(row pgx.Row) (*domain.Referral, error) {
	var (
		referral domain.Referral
		status   string
	)
	if err := row.Scan(
		&referral.ID,
		&referral.Developer,
		&referral.ContactName,
		&referral.RepresentativeRole,
		&referral.ContactPhone,
		&referral.ContactEmail,
		&referral.ServiceOfInterest,
		&referral.Notes,
		&status,
		&referral.LastStatusChangeAt,
		&referral.RegisteredOn,
		&referral.DueOn,
		&referral.Urgency,
		&referral.CommissionValue,
		&referral.CommissionTermMonths,
		&referral.Payments,
		&referral.OwnerEmail,
		&referral.OwnerID,
		&referral.Hidden,
		&referral.CreatedAt,
		&referral.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	referral.Status = domain.ReferralStatus(status)
	return &referral, nil
}

func scanReferrals(rows pgx.Rows) ([]domain.Referral, error) {
	var result []domain.Referral
	for rows.Next() {
		referral, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *referral)
	}
	return result, rows.Err()
}
