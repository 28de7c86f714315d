package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/pkg/civil"
)

// -- Mock Repository --

type mockRepo struct {
	items      map[uuid.UUID]Appointment
	failUpdate error
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.Version = 1
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.items[a.ID] = *a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("appointment", id.String())
	}
	return &a, nil
}

func (m *mockRepo) LockByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	if m.failUpdate != nil {
		return m.failUpdate
	}
	if _, ok := m.items[a.ID]; !ok {
		return apperr.NotFound("appointment", a.ID.String())
	}
	a.UpdatedAt = time.Now()
	m.items[a.ID] = *a
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return apperr.NotFound("appointment", id.String())
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.items {
		a := a
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, a.Status) {
			continue
		}
		if !f.From.IsZero() && a.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && a.Date.After(f.To) {
			continue
		}
		result = append(result, &a)
	}
	sort.Slice(result, func(i, j int) bool {
		if c := result[i].Date.Compare(result[j].Date); c != 0 {
			return c < 0
		}
		return result[i].Time < result[j].Time
	})
	total := len(result)
	if f.Limit > 0 && f.Limit < total {
		result = result[:f.Limit]
	}
	return result, total, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type mockTx struct {
	mu   sync.Mutex
	repo *mockRepo
}

func (m *mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[uuid.UUID]Appointment, len(m.repo.items))
	for k, v := range m.repo.items {
		snapshot[k] = v
	}
	if err := fn(ctx); err != nil {
		m.repo.items = snapshot
		return err
	}
	return nil
}

type mockPatients struct{ known map[uuid.UUID]bool }

func (m *mockPatients) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.known[id], nil
}

func newTestService() (*Service, *mockRepo, uuid.UUID) {
	repo := newMockRepo()
	pid := uuid.New()
	patients := &mockPatients{known: map[uuid.UUID]bool{pid: true}}
	svc := NewService(repo, &mockTx{repo: repo}, patients, zerolog.Nop())
	svc.now = func() time.Time { return testToday.Time().Add(8 * time.Hour) }
	return svc, repo, pid
}

func createAt(t *testing.T, svc *Service, pid uuid.UUID, date civil.Date, clock string) *Appointment {
	t.Helper()
	a, err := svc.Create(context.Background(), CreateInput{
		PatientID: pid, Date: date, Time: clock, Type: "checkup",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return a
}

func TestCreate_AlwaysScheduled(t *testing.T) {
	svc, _, pid := newTestService()
	a := createAt(t, svc, pid, testToday, "10:00")
	if a.Status != StatusScheduled || a.PaymentStatus != PaymentPending || a.Version != 1 {
		t.Errorf("unexpected new appointment %+v", a)
	}
}

func TestCreate_UnknownPatient(t *testing.T) {
	svc, _, _ := newTestService()
	in := validCreate()
	_, err := svc.Create(context.Background(), in)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "patient_id" {
		t.Errorf("expected patient_id validation error, got %v", err)
	}
}

func TestCreate_PatientCheckedBeforeDate(t *testing.T) {
	svc, _, _ := newTestService()
	in := validCreate()
	in.Date = civil.Date{}
	_, err := svc.Create(context.Background(), in)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "patient_id" {
		t.Errorf("expected patient_id to be reported first, got %v", err)
	}
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	svc, _, pid := newTestService()
	ctx := context.Background()
	a := createAt(t, svc, pid, testToday, "10:00")

	a, err := svc.UpdateStatus(ctx, a.ID, StatusInput{Status: StatusConfirmed})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if a.ConfirmedAt == nil || a.Version != 2 {
		t.Errorf("expected confirmed_at and version 2, got %+v", a)
	}

	a, err = svc.UpdateStatus(ctx, a.ID, StatusInput{Status: StatusCompleted})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if a.CompletedAt == nil || a.Status != StatusCompleted {
		t.Errorf("expected completed, got %+v", a)
	}

	_, err = svc.UpdateStatus(ctx, a.ID, StatusInput{Status: StatusCancelled})
	var te *apperr.InvalidTransitionError
	if !errors.As(err, &te) || te.From != "completed" || te.To != "cancelled" {
		t.Fatalf("expected completed -> cancelled to be rejected, got %v", err)
	}
	stored, _ := svc.Get(ctx, a.ID)
	if stored.Status != StatusCompleted || stored.Version != 3 {
		t.Errorf("rejected transition changed the appointment: %+v", stored)
	}
}

func TestUpdateStatus_CancelStoresReason(t *testing.T) {
	svc, _, pid := newTestService()
	a := createAt(t, svc, pid, testToday.AddDays(2), "16:00")
	reason := "patient travelling"

	a, err := svc.UpdateStatus(context.Background(), a.ID, StatusInput{Status: StatusCancelled, CancellationReason: &reason})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if a.CancelledAt == nil || a.CancellationReason == nil || *a.CancellationReason != reason {
		t.Errorf("expected cancellation to be stamped, got %+v", a)
	}
}

func TestUpdateStatus_NoShowFromScheduled(t *testing.T) {
	svc, _, pid := newTestService()
	a := createAt(t, svc, pid, testToday, "10:00")
	a, err := svc.UpdateStatus(context.Background(), a.ID, StatusInput{Status: StatusNoShow})
	if err != nil || a.Status != StatusNoShow {
		t.Fatalf("expected no_show, got %v %v", a, err)
	}
	if _, err := svc.UpdateStatus(context.Background(), a.ID, StatusInput{Status: StatusConfirmed}); !apperr.IsInvalidTransition(err) {
		t.Errorf("no_show should be terminal, got %v", err)
	}
}

func TestUpdateStatus_InvalidValue(t *testing.T) {
	svc, _, pid := newTestService()
	a := createAt(t, svc, pid, testToday, "10:00")
	if _, err := svc.UpdateStatus(context.Background(), a.ID, StatusInput{Status: "done"}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdatePaymentStatus_OnCancelled(t *testing.T) {
	svc, _, pid := newTestService()
	ctx := context.Background()
	a := createAt(t, svc, pid, testToday, "10:00")
	if _, err := svc.UpdateStatus(ctx, a.ID, StatusInput{Status: StatusCancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	a, err := svc.UpdatePaymentStatus(ctx, a.ID, PaymentPaid)
	if err != nil {
		t.Fatalf("paid on cancelled should be accepted: %v", err)
	}
	if a.PaymentStatus != PaymentPaid || a.Status != StatusCancelled {
		t.Errorf("unexpected appointment %+v", a)
	}
	if _, err := svc.UpdatePaymentStatus(ctx, a.ID, "refunded"); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdate_NeverTouchesStatus(t *testing.T) {
	svc, _, pid := newTestService()
	ctx := context.Background()
	a := createAt(t, svc, pid, testToday, "10:00")
	doctor := "Dr. Osei"

	a, err := svc.Update(ctx, a.ID, Patch{DoctorName: &doctor})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if a.Status != StatusScheduled || a.PaymentStatus != PaymentPending || *a.DoctorName != doctor {
		t.Errorf("unexpected appointment %+v", a)
	}
	if a.Version != 2 {
		t.Errorf("expected version 2, got %d", a.Version)
	}
}

func TestUpdate_FailureRollsBack(t *testing.T) {
	svc, repo, pid := newTestService()
	ctx := context.Background()
	a := createAt(t, svc, pid, testToday, "10:00")
	repo.failUpdate = errors.New("connection reset")

	if _, err := svc.UpdateStatus(ctx, a.ID, StatusInput{Status: StatusConfirmed}); err == nil {
		t.Fatal("expected error")
	}
	repo.failUpdate = nil
	stored, _ := svc.Get(ctx, a.ID)
	if stored.Status != StatusScheduled || stored.Version != 1 {
		t.Errorf("failed write left changes behind: %+v", stored)
	}
}

func TestDelete_AnyStatus(t *testing.T) {
	svc, _, pid := newTestService()
	ctx := context.Background()
	a := createAt(t, svc, pid, testToday, "10:00")
	if _, err := svc.UpdateStatus(ctx, a.ID, StatusInput{Status: StatusNoShow}); err != nil {
		t.Fatalf("no_show: %v", err)
	}
	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, a.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestTodayAndUpcoming(t *testing.T) {
	svc, repo, pid := newTestService()
	ctx := context.Background()
	createAt(t, svc, pid, testToday, "15:00")
	createAt(t, svc, pid, testToday, "09:00")
	later := createAt(t, svc, pid, testToday.AddDays(3), "08:00")
	cancelled := createAt(t, svc, pid, testToday.AddDays(1), "08:00")
	if _, err := svc.UpdateStatus(ctx, cancelled.ID, StatusInput{Status: StatusCancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// an old appointment inserted directly, as if created before today
	past := Appointment{PatientID: pid, Date: testToday.AddDays(-10), Time: "08:00", Status: StatusScheduled}
	repo.Create(ctx, &past)

	today, err := svc.Today(ctx)
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if len(today) != 2 || today[0].Time != "09:00" {
		t.Errorf("unexpected today list %+v", today)
	}

	upcoming, err := svc.Upcoming(ctx, 10)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	if len(upcoming) != 3 {
		t.Fatalf("expected 3 upcoming, got %d", len(upcoming))
	}
	if upcoming[2].ID != later.ID {
		t.Errorf("expected the latest appointment last, got %+v", upcoming[2])
	}
	for _, a := range upcoming {
		if a.Status == StatusCancelled || a.Date.Before(testToday) {
			t.Errorf("unexpected upcoming entry %+v", a)
		}
	}
}

func TestList_Filters(t *testing.T) {
	svc, _, pid := newTestService()
	ctx := context.Background()
	createAt(t, svc, pid, testToday, "10:00")
	createAt(t, svc, pid, testToday.AddDays(20), "10:00")

	items, total, err := svc.List(ctx, Filter{PatientID: pid, From: testToday, To: testToday.AddDays(7)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("expected one appointment in range, got %d", total)
	}

	if _, _, err := svc.List(ctx, Filter{PatientID: uuid.New()}); !apperr.IsNotFound(err) {
		t.Errorf("expected unknown patient to be not found, got %v", err)
	}
	if _, _, err := svc.List(ctx, Filter{Statuses: []Status{"late"}}); !apperr.IsValidation(err) {
		t.Errorf("expected invalid status filter to fail, got %v", err)
	}
	if _, _, err := svc.List(ctx, Filter{From: testToday, To: testToday.AddDays(-1)}); !apperr.IsValidation(err) {
		t.Errorf("expected inverted range to fail, got %v", err)
	}
}

func TestMonth(t *testing.T) {
	svc, _, pid := newTestService()
	createAt(t, svc, pid, testToday, "10:00")
	createAt(t, svc, pid, civil.Date{Year: 2024, Month: time.July, Day: 1}, "10:00")

	grid, err := svc.Month(context.Background(), 2024, time.June)
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	placed := 0
	for _, c := range grid.Cells {
		placed += len(c.Appointments)
	}
	if placed != 1 {
		t.Errorf("expected only the June appointment on the grid, got %d", placed)
	}
}

func TestConcurrentStatusChanges(t *testing.T) {
	svc, _, pid := newTestService()
	ctx := context.Background()
	a := createAt(t, svc, pid, testToday, "10:00")

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateStatus(ctx, a.ID, StatusInput{Status: StatusConfirmed})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else if !apperr.IsInvalidTransition(err) {
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly one confirm to win, got %d", ok)
	}
}
