package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/domain/patient"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/pkg/civil"
	"github.com/clinicops/clinic/pkg/money"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

var validPaymentStatuses = map[PaymentStatus]bool{
	PaymentPending: true, PaymentPartial: true, PaymentPaid: true,
}

var validTypes = map[string]bool{
	"consultation": true, "follow_up": true, "emergency": true, "checkup": true, "procedure": true,
}

type Appointment struct {
	ID                 uuid.UUID     `json:"id"`
	PatientID          uuid.UUID     `json:"patient_id"`
	Date               civil.Date    `json:"date"`
	Time               string        `json:"time"`
	Type               string        `json:"type"`
	Status             Status        `json:"status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	DoctorName         *string       `json:"doctor_name,omitempty"`
	Fee                *money.Amount `json:"fee,omitempty"`
	DurationMinutes    *int          `json:"duration_minutes,omitempty"`
	Notes              *string       `json:"notes,omitempty"`
	PriorityLevel      string        `json:"priority_level"`
	VIPTier            *string       `json:"vip_tier,omitempty"`
	CancellationReason *string       `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	ConfirmedAt        *time.Time    `json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// CreateInput is the body of a new appointment. Any status in the request is
// ignored; appointments always start scheduled.
type CreateInput struct {
	PatientID       uuid.UUID     `json:"patient_id"`
	Date            civil.Date    `json:"date"`
	Time            string        `json:"time"`
	Type            string        `json:"type"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	DoctorName      *string       `json:"doctor_name,omitempty"`
	Fee             *money.Amount `json:"fee,omitempty"`
	DurationMinutes *int          `json:"duration_minutes,omitempty"`
	Notes           *string       `json:"notes,omitempty"`
	PriorityLevel   string        `json:"priority_level"`
	VIPTier         *string       `json:"vip_tier,omitempty"`
}

// Validate checks everything except that the patient exists, in the order
// patient, date, time, type, priority, payment status, fee, duration.
// Defaults are filled in on success.
func (in *CreateInput) Validate(today civil.Date) error {
	if in.PatientID == uuid.Nil {
		return apperr.Validation("patient_id", "patient_id is required")
	}
	if in.Date.IsZero() {
		return apperr.Validation("date", "date is required")
	}
	if in.Date.Before(today) {
		return apperr.Validation("date", "date cannot be in the past")
	}
	in.Time = strings.TrimSpace(in.Time)
	if err := validateTime(in.Time); err != nil {
		return err
	}
	if in.Type == "" {
		return apperr.Validation("type", "type is required")
	}
	if !validTypes[in.Type] {
		return apperr.Validation("type", "invalid appointment type: %s", in.Type)
	}
	if in.PriorityLevel == "" {
		in.PriorityLevel = patient.PriorityNormal
	}
	if !patient.ValidPriorities[in.PriorityLevel] {
		return apperr.Validation("priority_level", "invalid priority_level: %s", in.PriorityLevel)
	}
	if in.PaymentStatus == "" {
		in.PaymentStatus = PaymentPending
	}
	if !validPaymentStatuses[in.PaymentStatus] {
		return apperr.Validation("payment_status", "invalid payment_status: %s", in.PaymentStatus)
	}
	return validateExtras(in.Fee, in.DurationMinutes, in.VIPTier)
}

func validateTime(t string) error {
	if t == "" {
		return apperr.Validation("time", "time is required")
	}
	if !patient.ValidClock(t) {
		return apperr.Validation("time", "time must be HH:MM")
	}
	return nil
}

func validateExtras(fee *money.Amount, duration *int, vip *string) error {
	if fee != nil && fee.IsNegative() {
		return apperr.Validation("fee", "fee cannot be negative")
	}
	if duration != nil && *duration <= 0 {
		return apperr.Validation("duration_minutes", "duration_minutes must be greater than 0")
	}
	if vip != nil && *vip != "" && !patient.ValidVIPTiers[*vip] {
		return apperr.Validation("vip_tier", "invalid vip_tier: %s", *vip)
	}
	return nil
}

func (in *CreateInput) toAppointment() *Appointment {
	return &Appointment{
		PatientID:       in.PatientID,
		Date:            in.Date,
		Time:            in.Time,
		Type:            in.Type,
		Status:          StatusScheduled,
		PaymentStatus:   in.PaymentStatus,
		DoctorName:      in.DoctorName,
		Fee:             in.Fee,
		DurationMinutes: in.DurationMinutes,
		Notes:           in.Notes,
		PriorityLevel:   in.PriorityLevel,
		VIPTier:         in.VIPTier,
	}
}

// Patch edits the descriptive fields of an appointment. Status and payment
// status have their own operations.
type Patch struct {
	Date            *civil.Date   `json:"date,omitempty"`
	Time            *string       `json:"time,omitempty"`
	Type            *string       `json:"type,omitempty"`
	DoctorName      *string       `json:"doctor_name,omitempty"`
	Fee             *money.Amount `json:"fee,omitempty"`
	DurationMinutes *int          `json:"duration_minutes,omitempty"`
	Notes           *string       `json:"notes,omitempty"`
	PriorityLevel   *string       `json:"priority_level,omitempty"`
	VIPTier         *string       `json:"vip_tier,omitempty"`
}

// Apply returns a with the patch applied. A moved date must not be in the
// past; an unchanged date is not re-checked.
func (p Patch) Apply(a Appointment, today civil.Date) (Appointment, error) {
	if p.Date != nil {
		if p.Date.IsZero() {
			return a, apperr.Validation("date", "date is required")
		}
		if *p.Date != a.Date && p.Date.Before(today) {
			return a, apperr.Validation("date", "date cannot be in the past")
		}
		a.Date = *p.Date
	}
	if p.Time != nil {
		t := strings.TrimSpace(*p.Time)
		if err := validateTime(t); err != nil {
			return a, err
		}
		a.Time = t
	}
	if p.Type != nil {
		if !validTypes[*p.Type] {
			return a, apperr.Validation("type", "invalid appointment type: %s", *p.Type)
		}
		a.Type = *p.Type
	}
	if p.PriorityLevel != nil {
		if !patient.ValidPriorities[*p.PriorityLevel] {
			return a, apperr.Validation("priority_level", "invalid priority_level: %s", *p.PriorityLevel)
		}
		a.PriorityLevel = *p.PriorityLevel
	}
	if err := validateExtras(p.Fee, p.DurationMinutes, p.VIPTier); err != nil {
		return a, err
	}
	if p.DoctorName != nil {
		a.DoctorName = p.DoctorName
	}
	if p.Fee != nil {
		a.Fee = p.Fee
	}
	if p.DurationMinutes != nil {
		a.DurationMinutes = p.DurationMinutes
	}
	if p.Notes != nil {
		a.Notes = p.Notes
	}
	if p.VIPTier != nil {
		a.VIPTier = p.VIPTier
	}
	return a, nil
}

type StatusInput struct {
	Status             Status  `json:"status"`
	CancellationReason *string `json:"cancellation_reason,omitempty"`
}

type PaymentStatusInput struct {
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// ValidatePaymentStatus accepts any of the three values regardless of the
// appointment's status.
func ValidatePaymentStatus(ps PaymentStatus) error {
	if !validPaymentStatuses[ps] {
		return apperr.Validation("payment_status", "invalid payment_status: %s", ps)
	}
	return nil
}

// Filter narrows List. Zero fields are ignored; Statuses matches any.
type Filter struct {
	PatientID uuid.UUID
	Statuses  []Status
	From      civil.Date
	To        civil.Date
	Limit     int
	Offset    int
}
