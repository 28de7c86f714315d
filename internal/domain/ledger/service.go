package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/pkg/civil"
)

// PatientLookup checks that a ledger belongs to a known patient.
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
		logger:   logger.With().Str("component", "ledger").Logger(),
		now:      time.Now,
	}
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now())
}

func (s *Service) requirePatient(ctx context.Context, patientID uuid.UUID) error {
	if patientID == uuid.Nil {
		return apperr.Validation("patient_id", "patient_id is required")
	}
	ok, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("patient", patientID.String())
	}
	return nil
}

// mutate runs fn against the locked account, then recomputes the totals from
// the lists, bumps the version and persists, all in one transaction.
func (s *Service) mutate(ctx context.Context, patientID uuid.UUID, fn func(ctx context.Context, a *Account) error) (*Account, error) {
	var result *Account
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.LockAccount(ctx, patientID)
		if err != nil {
			return err
		}
		if err := fn(ctx, a); err != nil {
			return err
		}
		a.recompute()
		a.Version++
		if err := s.repo.SaveTotals(ctx, a); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) AddBill(ctx context.Context, patientID uuid.UUID, in BillInput) (*Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	if in.BillDate.IsZero() {
		in.BillDate = s.today()
	}
	return s.mutate(ctx, patientID, func(ctx context.Context, a *Account) error {
		b := Bill{PatientID: patientID, Amount: in.Amount, Details: in.Details, BillDate: in.BillDate}
		if err := s.repo.InsertBill(ctx, &b); err != nil {
			return err
		}
		a.Bills = append([]Bill{b}, a.Bills...)
		return nil
	})
}

func (s *Service) DeleteBill(ctx context.Context, patientID, billID uuid.UUID) (*Account, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, patientID, func(ctx context.Context, a *Account) error {
		i, ok := a.FindBill(billID)
		if !ok {
			return apperr.NotFound("bill", billID.String())
		}
		if err := s.repo.DeleteBill(ctx, patientID, billID); err != nil {
			return err
		}
		a.Bills = append(a.Bills[:i], a.Bills[i+1:]...)
		return nil
	})
}

func (s *Service) AddPayment(ctx context.Context, patientID uuid.UUID, in PaymentInput) (*Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	if in.PaymentDate.IsZero() {
		in.PaymentDate = s.today()
	}
	return s.mutate(ctx, patientID, func(ctx context.Context, a *Account) error {
		p := Payment{
			PatientID:   patientID,
			Amount:      in.Amount,
			Method:      in.Method,
			Reference:   in.Reference,
			PaymentDate: in.PaymentDate,
		}
		if err := s.repo.InsertPayment(ctx, &p); err != nil {
			return err
		}
		a.Payments = append([]Payment{p}, a.Payments...)
		return nil
	})
}

func (s *Service) DeletePayment(ctx context.Context, patientID, paymentID uuid.UUID) (*Account, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, patientID, func(ctx context.Context, a *Account) error {
		i, ok := a.FindPayment(paymentID)
		if !ok {
			return apperr.NotFound("payment", paymentID.String())
		}
		if err := s.repo.DeletePayment(ctx, patientID, paymentID); err != nil {
			return err
		}
		a.Payments = append(a.Payments[:i], a.Payments[i+1:]...)
		return nil
	})
}

func (s *Service) GetAccount(ctx context.Context, patientID uuid.UUID) (*Account, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.GetAccount(ctx, patientID)
}

func (s *Service) ListBills(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Bill, int, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListBills(ctx, patientID, limit, offset)
}

func (s *Service) ListPayments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Payment, int, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListPayments(ctx, patientID, limit, offset)
}

// Reconcile recomputes the totals from the stored lists and compares them to
// the cached row. A mismatch is logged and returned as a *apperr.DriftError
// together with the report; the cached row is left as it is.
func (s *Service) Reconcile(ctx context.Context, patientID uuid.UUID) (*ReconcileReport, error) {
	a, err := s.GetAccount(ctx, patientID)
	if err != nil {
		return nil, err
	}
	report := &ReconcileReport{
		PatientID:  patientID,
		Cached:     a.Totals,
		Recomputed: ComputeTotals(a.Bills, a.Payments),
	}
	report.OK = report.Cached == report.Recomputed
	if report.OK {
		return report, nil
	}

	drift := driftOf(patientID, report.Cached, report.Recomputed)
	s.logger.Error().
		Str("patient_id", patientID.String()).
		Str("field", drift.Field).
		Str("cached_total_bills", report.Cached.TotalBills.String()).
		Str("cached_total_payments", report.Cached.TotalPayments.String()).
		Str("cached_balance", report.Cached.Balance.String()).
		Str("recomputed_total_bills", report.Recomputed.TotalBills.String()).
		Str("recomputed_total_payments", report.Recomputed.TotalPayments.String()).
		Str("recomputed_balance", report.Recomputed.Balance.String()).
		Int64("version", a.Version).
		Msg("ledger drift detected")
	return report, drift
}

// driftOf names the first field that disagrees.
func driftOf(patientID uuid.UUID, cached, recomputed Totals) *apperr.DriftError {
	d := &apperr.DriftError{Entity: "ledger", ID: patientID.String()}
	switch {
	case cached.TotalBills != recomputed.TotalBills:
		d.Field, d.Cached, d.Recomputed = "total_bills", cached.TotalBills.String(), recomputed.TotalBills.String()
	case cached.TotalPayments != recomputed.TotalPayments:
		d.Field, d.Cached, d.Recomputed = "total_payments", cached.TotalPayments.String(), recomputed.TotalPayments.String()
	default:
		d.Field, d.Cached, d.Recomputed = "balance", cached.Balance.String(), recomputed.Balance.String()
	}
	return d
}
