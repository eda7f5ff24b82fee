package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/referral-service/internal/domain"
)

// Dates accepts RFC 3339 timestamps or plain YYYY-MM-DD dates, as the client sends both.
type Dates []time.Time

// UnmarshalJSON implements json.Unmarshaler.
func (d *Dates) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			ts, err = time.Parse(time.DateOnly, s)
			if err != nil {
				return fmt.Errorf("invalid date %q", s)
			}
		}
		out = append(out, ts)
	}
	*d = out
	return nil
}

// ReferralFields are the writable referral fields. Absent keys stay nil.
type ReferralFields struct {
	Developer            *string                `json:"incorporadora"`
	ContactName          *string                `json:"contatoNome"`
	RepresentativeRole   *string                `json:"cargoRepresentante"`
	ContactPhone         *string                `json:"contatoTelefone"`
	ContactEmail         *string                `json:"contatoEmail"`
	ServiceOfInterest    *string                `json:"servicoInteresse"`
	Notes                *string                `json:"observacoes"`
	Status               *domain.ReferralStatus `json:"status"`
	RegisteredOn         *string                `json:"dataRegistro"`
	DueOn                *string                `json:"dataVencimento"`
	Urgency              *string                `json:"urgencia"`
	CommissionValue      *float64               `json:"valorComissao"`
	CommissionTermMonths *int                   `json:"prazoComissao"`
	Payments             *Dates                 `json:"pagamentos"`
	Hidden               *bool                  `json:"oculta"`
	OwnerEmail           *string                `json:"usuarioEmail"`
}

// Patch converts the fields into a domain patch. The owner email is not part of it.
func (f ReferralFields) Patch() domain.ReferralPatch {
	patch := domain.ReferralPatch{
		Developer:            f.Developer,
		ContactName:          f.ContactName,
		RepresentativeRole:   f.RepresentativeRole,
		ContactPhone:         f.ContactPhone,
		ContactEmail:         f.ContactEmail,
		ServiceOfInterest:    f.ServiceOfInterest,
		Notes:                f.Notes,
		Status:               f.Status,
		RegisteredOn:         f.RegisteredOn,
		DueOn:                f.DueOn,
		Urgency:              f.Urgency,
		CommissionValue:      f.CommissionValue,
		CommissionTermMonths: f.CommissionTermMonths,
		Hidden:               f.Hidden,
	}
	if f.Payments != nil {
		payments := []time.Time(*f.Payments)
		patch.Payments = &payments
	}
	return patch
}

// Referral builds a new referral from a create payload.
func (f ReferralFields) Referral() *domain.Referral {
	r := &domain.Referral{}
	f.Patch().Apply(r)
	if f.OwnerEmail != nil {
		r.OwnerEmail = *f.OwnerEmail
	}
	return r
}

// ReferralUpdate is a decoded PUT body: the submitted key set and the typed values.
type ReferralUpdate struct {
	Keys   []string
	Fields ReferralFields
}

// DecodeReferralUpdate reads both the key set and the typed values from one body.
func DecodeReferralUpdate(body []byte) (ReferralUpdate, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return ReferralUpdate{}, err
	}
	var fields ReferralFields
	if err := json.Unmarshal(body, &fields); err != nil {
		return ReferralUpdate{}, err
	}
	update := ReferralUpdate{Keys: make([]string, 0, len(keys)), Fields: fields}
	for k := range keys {
		update.Keys = append(update.Keys, k)
	}
	return update, nil
}

// ReferralResponse is the wire view of a referral.
type ReferralResponse struct {
	ID                   string                `json:"id"`
	Developer            string                `json:"incorporadora"`
	ContactName          string                `json:"contatoNome"`
	RepresentativeRole   string                `json:"cargoRepresentante"`
	ContactPhone         string                `json:"contatoTelefone"`
	ContactEmail         string                `json:"contatoEmail"`
	ServiceOfInterest    string                `json:"servicoInteresse"`
	Notes                string                `json:"observacoes"`
	Status               domain.ReferralStatus `json:"status"`
	LastStatusChangeAt   *time.Time            `json:"lastStatusChangeAt"`
	RegisteredOn         string                `json:"dataRegistro"`
	DueOn                string                `json:"dataVencimento"`
	Urgency              string                `json:"urgencia"`
	CommissionValue      *float64              `json:"valorComissao"`
	CommissionTermMonths *int                  `json:"prazoComissao"`
	Payments             []time.Time           `json:"pagamentos"`
	OwnerEmail           string                `json:"usuarioEmail"`
	OwnerID              *string               `json:"usuarioId,omitempty"`
	Hidden               bool                  `json:"oculta"`
	CreatedAt            time.Time             `json:"createdAt"`
	UpdatedAt            time.Time             `json:"updatedAt"`
}

// NewReferralResponse maps a referral.
func NewReferralResponse(r *domain.Referral) ReferralResponse {
	payments := r.Payments
	if payments == nil {
		payments = []time.Time{}
	}
	return ReferralResponse{
		ID:                   r.ID,
		Developer:            r.Developer,
		ContactName:          r.ContactName,
		RepresentativeRole:   r.RepresentativeRole,
		ContactPhone:         r.ContactPhone,
		ContactEmail:         r.ContactEmail,
		ServiceOfInterest:    r.ServiceOfInterest,
		Notes:                r.Notes,
		Status:               r.Status,
		LastStatusChangeAt:   r.LastStatusChangeAt,
		RegisteredOn:         r.RegisteredOn,
		DueOn:                r.DueOn,
		Urgency:              r.Urgency,
		CommissionValue:      r.CommissionValue,
		CommissionTermMonths: r.CommissionTermMonths,
		Payments:             payments,
		OwnerEmail:           r.OwnerEmail,
		OwnerID:              r.OwnerID,
		Hidden:               r.Hidden,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

// NewReferralList maps a slice of referrals, never returning null.
func NewReferralList(referrals []domain.Referral) []ReferralResponse {
	out := make([]ReferralResponse, 0, len(referrals))
	for i := range referrals {
		out = append(out, NewReferralResponse(&referrals[i]))
	}
	return out
}

// MigrationResponse reports a backfill.
type MigrationResponse struct {
	OK       bool  `json:"ok"`
	Modified int64 `json:"modified"`
}
