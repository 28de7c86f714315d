package clinical

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/db"
)

type PatientLookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	repo     Repository
	tx       db.TxRunner
	patients PatientLookup
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, patients PatientLookup, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		patients: patients,
		logger:   logger.With().Str("component", "clinical").Logger(),
		now:      time.Now,
	}
}

func (s *Service) requirePatient(ctx context.Context, id uuid.UUID) error {
	ok, err := s.patients.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("patient", id.String())
	}
	return nil
}

func decodeInto(p Payload, raw []byte) error {
	if len(raw) == 0 || !json.Valid(raw) {
		return apperr.Validation("body", "request body must be a JSON object")
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return apperr.Validation("body", "invalid record: %v", err)
	}
	return nil
}

func (s *Service) occurredAt(p Payload, fallback time.Time) time.Time {
	if t := p.OccurredAt(); !t.IsZero() {
		return t.UTC()
	}
	return fallback
}

// Add validates raw as the kind's payload and stores it for the patient.
func (s *Service) Add(ctx context.Context, kind Kind, patientID uuid.UUID, raw []byte) (*Record, error) {
	p := newPayload(kind)
	if p == nil {
		return nil, apperr.NotFound("record kind", string(kind))
	}
	if err := decodeInto(p, raw); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	rec := &Record{
		PatientID:  patientID,
		Kind:       kind,
		OccurredAt: s.occurredAt(p, s.now().UTC()),
		Data:       data,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update overlays partial onto the stored payload. Fields absent from
// partial keep their stored values; the merged payload is validated again.
func (s *Service) Update(ctx context.Context, kind Kind, patientID, id uuid.UUID, partial []byte) (*Record, error) {
	if newPayload(kind) == nil {
		return nil, apperr.NotFound("record kind", string(kind))
	}
	var updated *Record
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		rec, err := s.repo.Lock(ctx, patientID, kind, id)
		if err != nil {
			return err
		}
		p, err := rec.Payload()
		if err != nil {
			return fmt.Errorf("decode stored %s: %w", kind, err)
		}
		if err := decodeInto(p, partial); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if rec.Data, err = json.Marshal(p); err != nil {
			return fmt.Errorf("encode %s: %w", kind, err)
		}
		rec.OccurredAt = s.occurredAt(p, rec.CreatedAt)
		updated = rec
		return s.repo.Update(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, kind Kind, patientID, id uuid.UUID) error {
	return s.repo.Delete(ctx, patientID, kind, id)
}

// List returns the patient's records of kind, newest first.
func (s *Service) List(ctx context.Context, kind Kind, patientID uuid.UUID) ([]*Record, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, patientID, kind, 0)
}

// LegacyCheckup summarises the most recent encounter.
func (s *Service) LegacyCheckup(ctx context.Context, patientID uuid.UUID) (*Checkup, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	recs, err := s.repo.List(ctx, patientID, KindEncounter, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperr.NotFound("encounter", patientID.String())
	}
	p, err := recs[0].Payload()
	if err != nil {
		s.logger.Error().Err(err).Str("record_id", recs[0].ID.String()).Msg("stored encounter is unreadable")
		return nil, err
	}
	return checkupFrom(recs[0], p.(*Encounter)), nil
}
