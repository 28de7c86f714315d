package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/pkg/civil"
)

// PatientLookup is the slice of the patient service scheduling depends on.
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
		logger:   logger.With().Str("component", "appointment").Logger(),
		now:      time.Now,
	}
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now())
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id", "patient_id is required")
	}
	ok, err := s.patients.Exists(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Validation("patient_id", "patient %s does not exist", in.PatientID)
	}
	if err := in.Validate(s.today()); err != nil {
		return nil, err
	}
	a := in.toAppointment()
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// mutate locks the appointment, applies fn to a copy and persists it with a
// bumped version.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(a *Appointment) error) (*Appointment, error) {
	var updated Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		updated = *current
		if err := fn(&updated); err != nil {
			return err
		}
		updated.Version++
		return s.repo.Update(ctx, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Appointment, error) {
	return s.mutate(ctx, id, func(a *Appointment) error {
		next, err := patch.Apply(*a, s.today())
		if err != nil {
			return err
		}
		*a = next
		return nil
	})
}

// UpdateStatus moves the appointment along the status machine and stamps
// the matching timestamp.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, in StatusInput) (*Appointment, error) {
	if err := ValidateStatus(in.Status); err != nil {
		return nil, err
	}
	a, err := s.mutate(ctx, id, func(a *Appointment) error {
		next, err := Transition(a.Status, in.Status)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		switch next {
		case StatusConfirmed:
			a.ConfirmedAt = &now
		case StatusCompleted:
			a.CompletedAt = &now
		case StatusCancelled:
			a.CancelledAt = &now
			a.CancellationReason = in.CancellationReason
		}
		a.Status = next
		return nil
	})
	if err != nil {
		if apperr.IsInvalidTransition(err) {
			s.logger.Info().Str("appointment_id", id.String()).Err(err).Msg("status change rejected")
		}
		return nil, err
	}
	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("status", string(a.Status)).
		Msg("appointment status changed")
	return a, nil
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, ps PaymentStatus) (*Appointment, error) {
	if err := ValidatePaymentStatus(ps); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(a *Appointment) error {
		a.PaymentStatus = ps
		return nil
	})
}

// Delete removes the appointment whatever its status.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Appointment, int, error) {
	if f.PatientID != uuid.Nil {
		ok, err := s.patients.Exists(ctx, f.PatientID)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, apperr.NotFound("patient", f.PatientID.String())
		}
	}
	for _, st := range f.Statuses {
		if err := ValidateStatus(st); err != nil {
			return nil, 0, err
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, 0, apperr.Validation("to", "to must not be before from")
	}
	return s.repo.List(ctx, f)
}

// Today returns every appointment dated today, ordered by time.
func (s *Service) Today(ctx context.Context) ([]Appointment, error) {
	return s.Day(ctx, s.today())
}

// Upcoming returns scheduled or confirmed appointments from today onward,
// soonest first.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]Appointment, error) {
	items, _, err := s.repo.List(ctx, Filter{
		Statuses: []Status{StatusScheduled, StatusConfirmed},
		From:     s.today(),
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	out := flatten(items)
	sortByTime(out)
	return out, nil
}

func (s *Service) Day(ctx context.Context, date civil.Date) ([]Appointment, error) {
	items, _, err := s.repo.List(ctx, Filter{From: date, To: date})
	if err != nil {
		return nil, err
	}
	return DayView(date, flatten(items)), nil
}

func (s *Service) Month(ctx context.Context, year int, month time.Month) (MonthGrid, error) {
	from, to := MonthRange(year, month)
	items, _, err := s.repo.List(ctx, Filter{From: from, To: to})
	if err != nil {
		return MonthGrid{}, err
	}
	return BuildMonth(year, month, flatten(items)), nil
}

func flatten(items []*Appointment) []Appointment {
	out := make([]Appointment, 0, len(items))
	for _, a := range items {
		out = append(out, *a)
	}
	return out
}
