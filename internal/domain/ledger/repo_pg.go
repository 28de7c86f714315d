package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/pkg/money"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const billCols = `id, patient_id, amount_minor, details, bill_date, created_at`
const paymentCols = `id, patient_id, amount_minor, method, reference, payment_date, created_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	var minor int64
	err := row.Scan(&b.ID, &b.PatientID, &minor, &b.Details, &b.BillDate, &b.CreatedAt)
	b.Amount = money.FromMinor(minor)
	return b, err
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	var minor int64
	err := row.Scan(&p.ID, &p.PatientID, &minor, &p.Method, &p.Reference, &p.PaymentDate, &p.CreatedAt)
	p.Amount = money.FromMinor(minor)
	return p, err
}

func (r *repoPG) LockAccount(ctx context.Context, patientID uuid.UUID) (*Account, error) {
	conn := db.Conn(ctx, r.pool)
	if _, err := conn.Exec(ctx, `
		INSERT INTO patient_ledger (patient_id) VALUES ($1)
		ON CONFLICT (patient_id) DO NOTHING`, patientID); err != nil {
		return nil, fmt.Errorf("ensure ledger row: %w", err)
	}
	return r.load(ctx, conn, patientID, ` FOR UPDATE`)
}

func (r *repoPG) GetAccount(ctx context.Context, patientID uuid.UUID) (*Account, error) {
	return r.load(ctx, db.Conn(ctx, r.pool), patientID, ``)
}

func (r *repoPG) load(ctx context.Context, conn db.Querier, patientID uuid.UUID, lock string) (*Account, error) {
	a := &Account{PatientID: patientID, Bills: []Bill{}, Payments: []Payment{}}
	var bills, payments, balance int64
	err := conn.QueryRow(ctx, `
		SELECT total_bills_minor, total_payments_minor, balance_minor, version, updated_at
		FROM patient_ledger WHERE patient_id = $1`+lock, patientID,
	).Scan(&bills, &payments, &balance, &a.Version, &a.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return a, nil
	case err != nil:
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	a.TotalBills = money.FromMinor(bills)
	a.TotalPayments = money.FromMinor(payments)
	a.Balance = money.FromMinor(balance)

	rows, err := conn.Query(ctx, `SELECT `+billCols+` FROM bill
		WHERE patient_id = $1 ORDER BY bill_date DESC, created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("load bills: %w", err)
	}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		a.Bills = append(a.Bills, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = conn.Query(ctx, `SELECT `+paymentCols+` FROM payment
		WHERE patient_id = $1 ORDER BY payment_date DESC, created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		a.Payments = append(a.Payments, p)
	}
	return a, rows.Err()
}

func (r *repoPG) SaveTotals(ctx context.Context, a *Account) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patient_ledger SET total_bills_minor=$2, total_payments_minor=$3,
			balance_minor=$4, version=$5, updated_at=NOW()
		WHERE patient_id = $1
		RETURNING updated_at`,
		a.PatientID, a.TotalBills.Minor(), a.TotalPayments.Minor(), a.Balance.Minor(), a.Version,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("ledger", a.PatientID.String())
	}
	if err != nil {
		return fmt.Errorf("save ledger totals: %w", err)
	}
	return nil
}

func (r *repoPG) InsertBill(ctx context.Context, b *Bill) error {
	b.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO bill (id, patient_id, amount_minor, details, bill_date)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		b.ID, b.PatientID, b.Amount.Minor(), b.Details, b.BillDate,
	).Scan(&b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

func (r *repoPG) DeleteBill(ctx context.Context, patientID, billID uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM bill WHERE id = $1 AND patient_id = $2`, billID, patientID)
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("bill", billID.String())
	}
	return nil
}

func (r *repoPG) InsertPayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO payment (id, patient_id, amount_minor, method, reference, payment_date)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		p.ID, p.PatientID, p.Amount.Minor(), p.Method, p.Reference, p.PaymentDate,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *repoPG) DeletePayment(ctx context.Context, patientID, paymentID uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM payment WHERE id = $1 AND patient_id = $2`, paymentID, patientID)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("payment", paymentID.String())
	}
	return nil
}

func (r *repoPG) ListBills(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Bill, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM bill WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bills: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+billCols+` FROM bill WHERE patient_id = $1
		ORDER BY bill_date DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()
	items := []Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListPayments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Payment, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM payment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+paymentCols+` FROM payment WHERE patient_id = $1
		ORDER BY payment_date DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	items := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
