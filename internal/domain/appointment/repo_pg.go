package appointment

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

const appointmentCols = `id, patient_id, appointment_date, appointment_time, appointment_type,
	status, payment_status, doctor_name, fee_minor, duration_minutes, notes, priority_level,
	vip_tier, cancellation_reason, cancelled_at, confirmed_at, completed_at,
	version, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, payment string
	var fee *int64
	err := row.Scan(&a.ID, &a.PatientID, &a.Date, &a.Time, &a.Type,
		&status, &payment, &a.DoctorName, &fee, &a.DurationMinutes, &a.Notes, &a.PriorityLevel,
		&a.VIPTier, &a.CancellationReason, &a.CancelledAt, &a.ConfirmedAt, &a.CompletedAt,
		&a.Version, &a.CreatedAt, &a.UpdatedAt)
	a.Status = Status(status)
	a.PaymentStatus = PaymentStatus(payment)
	if fee != nil {
		amt := money.FromMinor(*fee)
		a.Fee = &amt
	}
	return &a, err
}

func feeMinor(a *Appointment) *int64 {
	if a.Fee == nil {
		return nil
	}
	minor := a.Fee.Minor()
	return &minor
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.Version = 1
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, appointment_date, appointment_time, appointment_type,
			status, payment_status, doctor_name, fee_minor, duration_minutes, notes, priority_level,
			vip_tier, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.Date, a.Time, a.Type,
		string(a.Status), string(a.PaymentStatus), a.DoctorName, feeMinor(a), a.DurationMinutes, a.Notes, a.PriorityLevel,
		a.VIPTier, a.Version,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *repoPG) get(ctx context.Context, id uuid.UUID, lock string) (*Appointment, error) {
	a, err := scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, id, ``)
}

func (r *repoPG) LockByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, id, ` FOR UPDATE`)
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointment SET appointment_date=$2, appointment_time=$3, appointment_type=$4,
			status=$5, payment_status=$6, doctor_name=$7, fee_minor=$8, duration_minutes=$9,
			notes=$10, priority_level=$11, vip_tier=$12, cancellation_reason=$13,
			cancelled_at=$14, confirmed_at=$15, completed_at=$16, version=$17, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Date, a.Time, a.Type,
		string(a.Status), string(a.PaymentStatus), a.DoctorName, feeMinor(a), a.DurationMinutes,
		a.Notes, a.PriorityLevel, a.VIPTier, a.CancellationReason,
		a.CancelledAt, a.ConfirmedAt, a.CompletedAt, a.Version,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("appointment", a.ID.String())
	}
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment", id.String())
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != uuid.Nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, f.PatientID)
		idx++
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where += fmt.Sprintf(` AND status = ANY($%d)`, idx)
		args = append(args, statuses)
		idx++
	}
	if !f.From.IsZero() {
		where += fmt.Sprintf(` AND appointment_date >= $%d`, idx)
		args = append(args, f.From)
		idx++
	}
	if !f.To.IsZero() {
		where += fmt.Sprintf(` AND appointment_date <= $%d`, idx)
		args = append(args, f.To)
		idx++
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + appointmentCols + ` FROM appointment` + where +
		` ORDER BY appointment_date, appointment_time, created_at`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()
	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}
