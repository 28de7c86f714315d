package client

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/domain/appointment"
	"github.com/clinicops/clinic/pkg/civil"
)

const appointmentsPath = "/clinic/appointments"

// AppointmentStore caches appointments keyed by appointment id.
type AppointmentStore struct {
	t     *Transport
	cache *entityCache[appointment.Appointment]
	now   func() time.Time
}

func NewAppointmentStore(t *Transport) *AppointmentStore {
	return &AppointmentStore{
		t:     t,
		cache: newEntityCache("appointment", func(a appointment.Appointment) int64 { return a.Version }),
		now:   time.Now,
	}
}

func (s *AppointmentStore) Subscribe(fn func(appointmentID uuid.UUID)) {
	s.cache.subscribe(fn)
}

func (s *AppointmentStore) Cached(id uuid.UUID) (appointment.Appointment, bool) {
	return s.cache.get(id)
}

func (s *AppointmentStore) Appointment(ctx context.Context, id uuid.UUID) (appointment.Appointment, error) {
	if a, ok := s.cache.get(id); ok {
		return a, nil
	}
	return s.send(ctx, id, http.MethodGet, appointmentsPath+"/"+id.String(), nil)
}

// Create checks everything the server would except that the patient exists.
func (s *AppointmentStore) Create(ctx context.Context, in appointment.CreateInput) (appointment.Appointment, error) {
	if err := in.Validate(civil.DateOf(s.now())); err != nil {
		return appointment.Appointment{}, err
	}
	var a appointment.Appointment
	if err := s.t.Do(ctx, http.MethodPost, appointmentsPath, in, &a); err != nil {
		return appointment.Appointment{}, err
	}
	s.cache.apply(a.ID, s.cache.begin(a.ID), a)
	return a, nil
}

func (s *AppointmentStore) Update(ctx context.Context, id uuid.UUID, patch appointment.Patch) (appointment.Appointment, error) {
	if cur, ok := s.cache.get(id); ok {
		if _, err := patch.Apply(cur, civil.DateOf(s.now())); err != nil {
			return appointment.Appointment{}, err
		}
	}
	return s.send(ctx, id, http.MethodPut, appointmentsPath+"/"+id.String(), patch)
}

func (s *AppointmentStore) UpdateStatus(ctx context.Context, id uuid.UUID, in appointment.StatusInput) (appointment.Appointment, error) {
	if err := appointment.ValidateStatus(in.Status); err != nil {
		return appointment.Appointment{}, err
	}
	return s.send(ctx, id, http.MethodPatch, appointmentsPath+"/"+id.String()+"/status", in)
}

func (s *AppointmentStore) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, ps appointment.PaymentStatus) (appointment.Appointment, error) {
	if err := appointment.ValidatePaymentStatus(ps); err != nil {
		return appointment.Appointment{}, err
	}
	return s.send(ctx, id, http.MethodPatch, appointmentsPath+"/"+id.String()+"/payment-status",
		appointment.PaymentStatusInput{PaymentStatus: ps})
}

func (s *AppointmentStore) Delete(ctx context.Context, id uuid.UUID) error {
	seq := s.cache.begin(id)
	if err := s.t.Do(ctx, http.MethodDelete, appointmentsPath+"/"+id.String(), nil, nil); err != nil {
		return err
	}
	s.cache.remove(id, seq)
	return nil
}

func (s *AppointmentStore) send(ctx context.Context, id uuid.UUID, method, path string, body interface{}) (appointment.Appointment, error) {
	seq := s.cache.begin(id)
	var a appointment.Appointment
	if err := s.t.Do(ctx, method, path, body, &a); err != nil {
		return appointment.Appointment{}, err
	}
	s.cache.apply(id, seq, a)
	return a, nil
}
