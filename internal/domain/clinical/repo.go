package clinical

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	// Lock returns the record only when it belongs to patientID and kind.
	Lock(ctx context.Context, patientID uuid.UUID, kind Kind, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, patientID uuid.UUID, kind Kind, id uuid.UUID) error
	// List returns records newest first by occurred_at. limit 0 means all.
	List(ctx context.Context, patientID uuid.UUID, kind Kind, limit int) ([]*Record, error)
}
