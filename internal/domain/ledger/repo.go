package ledger

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// LockAccount creates the ledger row if needed, locks it until the
	// surrounding transaction ends and loads the account with both lists.
	LockAccount(ctx context.Context, patientID uuid.UUID) (*Account, error)
	// GetAccount loads the account without locking. A patient with no
	// ledger row yet yields an empty account at version 0.
	GetAccount(ctx context.Context, patientID uuid.UUID) (*Account, error)
	SaveTotals(ctx context.Context, a *Account) error

	InsertBill(ctx context.Context, b *Bill) error
	DeleteBill(ctx context.Context, patientID, billID uuid.UUID) error
	InsertPayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, patientID, paymentID uuid.UUID) error

	ListBills(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Bill, int, error)
	ListPayments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Payment, int, error)
}
