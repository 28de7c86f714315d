package clinical

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const recordCols = `id, patient_id, kind, occurred_at, data, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	var kind string
	var data []byte
	err := row.Scan(&r.ID, &r.PatientID, &kind, &r.OccurredAt, &data, &r.CreatedAt, &r.UpdatedAt)
	r.Kind = Kind(kind)
	r.Data = data
	return &r, err
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO clinical_record (id, patient_id, kind, occurred_at, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, string(rec.Kind), rec.OccurredAt, []byte(rec.Data),
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert clinical record: %w", err)
	}
	return nil
}

func (r *repoPG) Lock(ctx context.Context, patientID uuid.UUID, kind Kind, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+recordCols+` FROM clinical_record
		WHERE id = $1 AND patient_id = $2 AND kind = $3 FOR UPDATE`,
		id, patientID, string(kind)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(string(kind), id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get clinical record: %w", err)
	}
	return rec, nil
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE clinical_record SET occurred_at = $2, data = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		rec.ID, rec.OccurredAt, []byte(rec.Data),
	).Scan(&rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(string(rec.Kind), rec.ID.String())
	}
	if err != nil {
		return fmt.Errorf("update clinical record: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, patientID uuid.UUID, kind Kind, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM clinical_record WHERE id = $1 AND patient_id = $2 AND kind = $3`,
		id, patientID, string(kind))
	if err != nil {
		return fmt.Errorf("delete clinical record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(string(kind), id.String())
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, patientID uuid.UUID, kind Kind, limit int) ([]*Record, error) {
	query := `SELECT ` + recordCols + ` FROM clinical_record
		WHERE patient_id = $1 AND kind = $2
		ORDER BY occurred_at DESC, created_at DESC`
	args := []interface{}{patientID, string(kind)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clinical records: %w", err)
	}
	defer rows.Close()
	out := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
