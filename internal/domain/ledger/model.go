package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/pkg/civil"
	"github.com/clinicops/clinic/pkg/money"
)

type Bill struct {
	ID        uuid.UUID    `json:"id"`
	PatientID uuid.UUID    `json:"patient_id"`
	Amount    money.Amount `json:"amount"`
	Details   string       `json:"details"`
	BillDate  civil.Date   `json:"bill_date"`
	CreatedAt time.Time    `json:"created_at"`
}

type Payment struct {
	ID          uuid.UUID    `json:"id"`
	PatientID   uuid.UUID    `json:"patient_id"`
	Amount      money.Amount `json:"amount"`
	Method      *string      `json:"method,omitempty"`
	Reference   *string      `json:"reference,omitempty"`
	PaymentDate civil.Date   `json:"payment_date"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Totals are the cached aggregates of an account.
type Totals struct {
	TotalBills    money.Amount `json:"total_bills"`
	TotalPayments money.Amount `json:"total_payments"`
	Balance       money.Amount `json:"balance"`
}

// ComputeTotals derives the aggregates from the full bill and payment lists.
func ComputeTotals(bills []Bill, payments []Payment) Totals {
	var t Totals
	for _, b := range bills {
		t.TotalBills += b.Amount
	}
	for _, p := range payments {
		t.TotalPayments += p.Amount
	}
	t.Balance = t.TotalBills - t.TotalPayments
	return t
}

// Account is a patient's ledger: both lists plus the totals derived from them.
// Version increases by one on every successful mutation.
type Account struct {
	PatientID uuid.UUID `json:"patient_id"`
	Bills     []Bill    `json:"bills"`
	Payments  []Payment `json:"payments"`
	Totals
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// recompute replaces the cached totals with values derived from the lists.
func (a *Account) recompute() {
	a.Totals = ComputeTotals(a.Bills, a.Payments)
}

func (a *Account) FindBill(id uuid.UUID) (int, bool) {
	for i := range a.Bills {
		if a.Bills[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (a *Account) FindPayment(id uuid.UUID) (int, bool) {
	for i := range a.Payments {
		if a.Payments[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

type BillInput struct {
	Amount   money.Amount `json:"amount"`
	Details  string       `json:"details"`
	BillDate civil.Date   `json:"bill_date"`
}

func (in BillInput) Validate() error {
	if !in.Amount.IsPositive() {
		return apperr.Validation("amount", "amount must be greater than 0")
	}
	return nil
}

type PaymentInput struct {
	Amount      money.Amount `json:"amount"`
	Method      *string      `json:"method,omitempty"`
	Reference   *string      `json:"reference,omitempty"`
	PaymentDate civil.Date   `json:"payment_date"`
}

func (in PaymentInput) Validate() error {
	if !in.Amount.IsPositive() {
		return apperr.Validation("amount", "amount must be greater than 0")
	}
	return nil
}

// ReconcileReport compares the stored totals against the lists.
type ReconcileReport struct {
	PatientID  uuid.UUID `json:"patient_id"`
	Cached     Totals    `json:"cached"`
	Recomputed Totals    `json:"recomputed"`
	OK         bool      `json:"ok"`
}
