package domain

import "time"

// ReferralStatus enumerates the lifecycle of a referral. Values are the labels the client renders.
type ReferralStatus string

const (
	ReferralStatusNew                   ReferralStatus = "Novo"
	ReferralStatusInReview              ReferralStatus = "Em Análise"
	ReferralStatusInProgress            ReferralStatus = "Em Andamento"
	ReferralStatusMeetingScheduled      ReferralStatus = "Reunião Agendada"
	ReferralStatusMeetingHeld           ReferralStatus = "Reunião Realizada"
	ReferralStatusClosed                ReferralStatus = "Fechado"
	ReferralStatusCancelledNoResponse   ReferralStatus = "Cancelado/Sem resposta"
	ReferralStatusAlreadyRegisteredLead ReferralStatus = "Lead Já Cadastrado"
)

// DefaultReferralStatus is assigned when a referral is created without a status.
const DefaultReferralStatus = ReferralStatusInProgress

var referralStatuses = map[ReferralStatus]struct{}{
	ReferralStatusNew:                   {},
	ReferralStatusInReview:              {},
	ReferralStatusInProgress:            {},
	ReferralStatusMeetingScheduled:      {},
	ReferralStatusMeetingHeld:           {},
	ReferralStatusClosed:                {},
	ReferralStatusCancelledNoResponse:   {},
	ReferralStatusAlreadyRegisteredLead: {},
}

// Valid checks the status is part of the enumeration.
func (s ReferralStatus) Valid() bool {
	_, ok := referralStatuses[s]
	return ok
}

// Referral is a lead registered by a partner.
type Referral struct {
	ID                   string
	Developer            string
	ContactName          string
	RepresentativeRole   string
	ContactPhone         string
	ContactEmail         string
	ServiceOfInterest    string
	Notes                string
	Status               ReferralStatus
	LastStatusChangeAt   *time.Time
	RegisteredOn         string
	DueOn                string
	Urgency              string
	CommissionValue      *float64
	CommissionTermMonths *int
	Payments             []time.Time
	OwnerEmail           string
	OwnerID              *string
	Hidden               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ReferralPatch carries the fields of a mutation. Nil fields are left unchanged.
type ReferralPatch struct {
	Developer            *string
	ContactName          *string
	RepresentativeRole   *string
	ContactPhone         *string
	ContactEmail         *string
	ServiceOfInterest    *string
	Notes                *string
	Status               *ReferralStatus
	LastStatusChangeAt   *time.Time
	RegisteredOn         *string
	DueOn                *string
	Urgency              *string
	CommissionValue      *float64
	CommissionTermMonths *int
	Payments             *[]time.Time
	Hidden               *bool
}

// Apply copies the non-nil fields of the patch onto the referral.
func (p ReferralPatch) Apply(r *Referral) {
	if p.Developer != nil {
		r.Developer = *p.Developer
	}
	if p.ContactName != nil {
		r.ContactName = *p.ContactName
	}
	if p.RepresentativeRole != nil {
		r.RepresentativeRole = *p.RepresentativeRole
	}
	if p.ContactPhone != nil {
		r.ContactPhone = *p.ContactPhone
	}
	if p.ContactEmail != nil {
		r.ContactEmail = *p.ContactEmail
	}
	if p.ServiceOfInterest != nil {
		r.ServiceOfInterest = *p.ServiceOfInterest
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.LastStatusChangeAt != nil {
		ts := *p.LastStatusChangeAt
		r.LastStatusChangeAt = &ts
	}
	if p.RegisteredOn != nil {
		r.RegisteredOn = *p.RegisteredOn
	}
	if p.DueOn != nil {
		r.DueOn = *p.DueOn
	}
	if p.Urgency != nil {
		r.Urgency = *p.Urgency
	}
	if p.CommissionValue != nil {
		v := *p.CommissionValue
		r.CommissionValue = &v
	}
	if p.CommissionTermMonths != nil {
		v := *p.CommissionTermMonths
		r.CommissionTermMonths = &v
	}
	if p.Payments != nil {
		r.Payments = append([]time.Time(nil), (*p.Payments)...)
	}
	if p.Hidden != nil {
		r.Hidden = *p.Hidden
	}
}
