package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/domain/ledger"
	"github.com/clinicops/clinic/internal/platform/apperr"
)

// LedgerStore caches patient accounts keyed by patient id.
type LedgerStore struct {
	t     *Transport
	cache *entityCache[ledger.Account]
}

func NewLedgerStore(t *Transport) *LedgerStore {
	return &LedgerStore{
		t:     t,
		cache: newEntityCache("ledger", func(a ledger.Account) int64 { return a.Version }),
	}
}

func ledgerPath(patientID uuid.UUID) string {
	return "/clinic/patients/" + patientID.String()
}

// Subscribe registers fn to run after every account change is applied.
func (s *LedgerStore) Subscribe(fn func(patientID uuid.UUID)) {
	s.cache.subscribe(fn)
}

// cloneAccount copies the bill and payment lists so callers cannot edit the
// cached account through the returned value.
func cloneAccount(a ledger.Account) ledger.Account {
	if a.Bills != nil {
		a.Bills = append([]ledger.Bill{}, a.Bills...)
	}
	if a.Payments != nil {
		a.Payments = append([]ledger.Payment{}, a.Payments...)
	}
	return a
}

// Cached returns the last applied account without a round trip.
func (s *LedgerStore) Cached(patientID uuid.UUID) (ledger.Account, bool) {
	a, ok := s.cache.get(patientID)
	if !ok {
		return ledger.Account{}, false
	}
	return cloneAccount(a), true
}

// Account returns the cached account, fetching it on a miss.
func (s *LedgerStore) Account(ctx context.Context, patientID uuid.UUID) (ledger.Account, error) {
	if a, ok := s.cache.get(patientID); ok {
		return cloneAccount(a), nil
	}
	return s.Refresh(ctx, patientID)
}

func (s *LedgerStore) Refresh(ctx context.Context, patientID uuid.UUID) (ledger.Account, error) {
	return s.send(ctx, patientID, http.MethodGet, ledgerPath(patientID)+"/ledger", nil)
}

func (s *LedgerStore) AddBill(ctx context.Context, patientID uuid.UUID, in ledger.BillInput) (ledger.Account, error) {
	if err := in.Validate(); err != nil {
		return ledger.Account{}, err
	}
	return s.send(ctx, patientID, http.MethodPost, ledgerPath(patientID)+"/bills", in)
}

func (s *LedgerStore) AddPayment(ctx context.Context, patientID uuid.UUID, in ledger.PaymentInput) (ledger.Account, error) {
	if err := in.Validate(); err != nil {
		return ledger.Account{}, err
	}
	return s.send(ctx, patientID, http.MethodPost, ledgerPath(patientID)+"/payments", in)
}

// DeleteBill fails locally when the cached account no longer lists the bill.
func (s *LedgerStore) DeleteBill(ctx context.Context, patientID, billID uuid.UUID) (ledger.Account, error) {
	if a, ok := s.cache.get(patientID); ok {
		if _, found := a.FindBill(billID); !found {
			return ledger.Account{}, apperr.NotFound("bill", billID.String())
		}
	}
	return s.send(ctx, patientID, http.MethodDelete, ledgerPath(patientID)+"/bills/"+billID.String(), nil)
}

func (s *LedgerStore) DeletePayment(ctx context.Context, patientID, paymentID uuid.UUID) (ledger.Account, error) {
	if a, ok := s.cache.get(patientID); ok {
		if _, found := a.FindPayment(paymentID); !found {
			return ledger.Account{}, apperr.NotFound("payment", paymentID.String())
		}
	}
	return s.send(ctx, patientID, http.MethodDelete, ledgerPath(patientID)+"/payments/"+paymentID.String(), nil)
}

// send issues the request and applies the returned account. A response that
// lost the race to a newer request is cached only when it carries a newer
// version than the cached account.
func (s *LedgerStore) send(ctx context.Context, patientID uuid.UUID, method, path string, body interface{}) (ledger.Account, error) {
	seq := s.cache.begin(patientID)
	var a ledger.Account
	if err := s.t.Do(ctx, method, path, body, &a); err != nil {
		return ledger.Account{}, err
	}
	s.cache.apply(patientID, seq, a)
	return cloneAccount(a), nil
}
