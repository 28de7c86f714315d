package clinical

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is one patient-scoped clinical entry. Data holds the JSON of the
// kind's typed payload.
type Record struct {
	ID         uuid.UUID       `json:"id"`
	PatientID  uuid.UUID       `json:"patient_id"`
	Kind       Kind            `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Payload decodes Data into the kind's typed struct.
func (r *Record) Payload() (Payload, error) {
	p := newPayload(r.Kind)
	if p == nil {
		return nil, fmt.Errorf("unknown record kind %q", r.Kind)
	}
	if err := json.Unmarshal(r.Data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Checkup is the summary older screens display in place of the encounter
// list.
type Checkup struct {
	EncounterID uuid.UUID `json:"encounter_id"`
	Date        time.Time `json:"date"`
	Diagnosis   string    `json:"diagnosis"`
	Treatment   string    `json:"treatment"`
	Notes       string    `json:"notes"`
}

func checkupFrom(r *Record, e *Encounter) *Checkup {
	return &Checkup{
		EncounterID: r.ID,
		Date:        e.EncounterDatetime,
		Diagnosis:   deref(e.Diagnosis),
		Treatment:   deref(e.Treatment),
		Notes:       deref(e.Notes),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
