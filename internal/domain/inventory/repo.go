package inventory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, it *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	// LockByID loads the item and holds its row lock until the surrounding
	// transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List applies the category, type and search parts of f. A zero Limit
	// returns every match.
	List(ctx context.Context, f Filter) ([]*Item, int, error)
	SKUExists(ctx context.Context, sku string) (bool, error)
	Categories(ctx context.Context) ([]string, error)

	InsertMovement(ctx context.Context, m *Movement) error
	ListMovements(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]Movement, int, error)
}
