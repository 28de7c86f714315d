package clinical

import (
	"strings"
	"time"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/pkg/civil"
)

type Kind string

const (
	KindEncounter      Kind = "encounter"
	KindVitalSigns     Kind = "vital_signs"
	KindDiagnosis      Kind = "diagnosis"
	KindAllergy        Kind = "allergy"
	KindMedication     Kind = "medication"
	KindMedicalHistory Kind = "medical_history"
)

// Payload is the typed body of one record kind.
type Payload interface {
	Validate() error
	// OccurredAt is the clinical timestamp used for ordering. A zero value
	// means the record's creation time is used instead.
	OccurredAt() time.Time
}

// ParseKind accepts the path segment used by the HTTP routes, in either
// singular or plural form.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "encounter", "encounters":
		return KindEncounter, nil
	case "vital_signs", "vitals":
		return KindVitalSigns, nil
	case "diagnosis", "diagnoses":
		return KindDiagnosis, nil
	case "allergy", "allergies":
		return KindAllergy, nil
	case "medication", "medications":
		return KindMedication, nil
	case "medical_history", "history":
		return KindMedicalHistory, nil
	}
	return "", apperr.NotFound("record kind", s)
}

func newPayload(k Kind) Payload {
	switch k {
	case KindEncounter:
		return &Encounter{}
	case KindVitalSigns:
		return &VitalSigns{}
	case KindDiagnosis:
		return &Diagnosis{}
	case KindAllergy:
		return &Allergy{}
	case KindMedication:
		return &Medication{}
	case KindMedicalHistory:
		return &MedicalHistory{}
	}
	return nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

type Encounter struct {
	EncounterDatetime time.Time `json:"encounter_datetime"`
	Reason            *string   `json:"reason,omitempty"`
	ChiefComplaint    *string   `json:"chief_complaint,omitempty"`
	Diagnosis         *string   `json:"diagnosis,omitempty"`
	Treatment         *string   `json:"treatment,omitempty"`
	Notes             *string   `json:"notes,omitempty"`
	DoctorName        *string   `json:"doctor_name,omitempty"`
}

func (e *Encounter) Validate() error {
	if e.EncounterDatetime.IsZero() {
		return apperr.Validation("encounter_datetime", "encounter_datetime is required")
	}
	if blank(e.Reason) && blank(e.ChiefComplaint) {
		return apperr.Validation("reason", "reason or chief_complaint is required")
	}
	return nil
}

func (e *Encounter) OccurredAt() time.Time { return e.EncounterDatetime }

type VitalSigns struct {
	RecordedAt       time.Time `json:"recorded_at"`
	SystolicBP       *int      `json:"systolic_bp,omitempty"`
	DiastolicBP      *int      `json:"diastolic_bp,omitempty"`
	HeartRate        *int      `json:"heart_rate,omitempty"`
	RespiratoryRate  *int      `json:"respiratory_rate,omitempty"`
	TemperatureC     *float64  `json:"temperature_c,omitempty"`
	OxygenSaturation *float64  `json:"oxygen_saturation,omitempty"`
	WeightKG         *float64  `json:"weight_kg,omitempty"`
	HeightCM         *float64  `json:"height_cm,omitempty"`
	Notes            *string   `json:"notes,omitempty"`
}

func (v *VitalSigns) Validate() error {
	if v.RecordedAt.IsZero() {
		return apperr.Validation("recorded_at", "recorded_at is required")
	}
	measures := []struct {
		field string
		value *float64
	}{
		{"systolic_bp", intValue(v.SystolicBP)},
		{"diastolic_bp", intValue(v.DiastolicBP)},
		{"heart_rate", intValue(v.HeartRate)},
		{"respiratory_rate", intValue(v.RespiratoryRate)},
		{"temperature_c", v.TemperatureC},
		{"oxygen_saturation", v.OxygenSaturation},
		{"weight_kg", v.WeightKG},
		{"height_cm", v.HeightCM},
	}
	measured := false
	for _, m := range measures {
		if m.value == nil {
			continue
		}
		if *m.value <= 0 {
			return apperr.Validation(m.field, "%s must be greater than 0", m.field)
		}
		measured = true
	}
	if !measured {
		return apperr.Validation("vital_signs", "at least one measurement is required")
	}
	if v.OxygenSaturation != nil && *v.OxygenSaturation > 100 {
		return apperr.Validation("oxygen_saturation", "oxygen_saturation cannot exceed 100")
	}
	return nil
}

func intValue(p *int) *float64 {
	if p == nil {
		return nil
	}
	f := float64(*p)
	return &f
}

func (v *VitalSigns) OccurredAt() time.Time { return v.RecordedAt }

type Diagnosis struct {
	Description string     `json:"description"`
	Code        *string    `json:"code,omitempty"`
	Status      *string    `json:"status,omitempty"`
	DiagnosedAt *time.Time `json:"diagnosed_at,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

func (d *Diagnosis) Validate() error {
	d.Description = strings.TrimSpace(d.Description)
	if d.Description == "" {
		return apperr.Validation("description", "description is required")
	}
	return nil
}

func (d *Diagnosis) OccurredAt() time.Time {
	if d.DiagnosedAt == nil {
		return time.Time{}
	}
	return *d.DiagnosedAt
}

var validSeverities = map[string]bool{"mild": true, "moderate": true, "severe": true}

type Allergy struct {
	Allergen   string     `json:"allergen"`
	Reaction   *string    `json:"reaction,omitempty"`
	Severity   *string    `json:"severity,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

func (a *Allergy) Validate() error {
	a.Allergen = strings.TrimSpace(a.Allergen)
	if a.Allergen == "" {
		return apperr.Validation("allergen", "allergen is required")
	}
	if a.Severity != nil && !validSeverities[*a.Severity] {
		return apperr.Validation("severity", "invalid severity: %s", *a.Severity)
	}
	return nil
}

func (a *Allergy) OccurredAt() time.Time {
	if a.RecordedAt == nil {
		return time.Time{}
	}
	return *a.RecordedAt
}

type Medication struct {
	Name       string     `json:"name"`
	Dosage     string     `json:"dosage"`
	Frequency  *string    `json:"frequency,omitempty"`
	StartDate  civil.Date `json:"start_date"`
	EndDate    civil.Date `json:"end_date"`
	Prescriber *string    `json:"prescriber,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

func (m *Medication) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Dosage = strings.TrimSpace(m.Dosage)
	if m.Name == "" {
		return apperr.Validation("name", "name is required")
	}
	if m.Dosage == "" {
		return apperr.Validation("dosage", "dosage is required")
	}
	if !m.StartDate.IsZero() && !m.EndDate.IsZero() && m.EndDate.Before(m.StartDate) {
		return apperr.Validation("end_date", "end_date cannot be before start_date")
	}
	return nil
}

func (m *Medication) OccurredAt() time.Time {
	if m.StartDate.IsZero() {
		return time.Time{}
	}
	return m.StartDate.Time()
}

type MedicalHistory struct {
	Condition     string     `json:"condition"`
	DiagnosedDate civil.Date `json:"diagnosed_date"`
	Status        *string    `json:"status,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

func (h *MedicalHistory) Validate() error {
	h.Condition = strings.TrimSpace(h.Condition)
	if h.Condition == "" {
		return apperr.Validation("condition", "condition is required")
	}
	return nil
}

func (h *MedicalHistory) OccurredAt() time.Time {
	if h.DiagnosedDate.IsZero() {
		return time.Time{}
	}
	return h.DiagnosedDate.Time()
}
