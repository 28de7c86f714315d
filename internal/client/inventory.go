package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/domain/inventory"
)

const inventoryPath = "/clinic/inventory/api"

// InventoryStore caches inventory items keyed by item id.
type InventoryStore struct {
	t     *Transport
	cache *entityCache[inventory.Item]
}

func NewInventoryStore(t *Transport) *InventoryStore {
	return &InventoryStore{
		t:     t,
		cache: newEntityCache("item", func(it inventory.Item) int64 { return it.Version }),
	}
}

func (s *InventoryStore) Subscribe(fn func(itemID uuid.UUID)) {
	s.cache.subscribe(fn)
}

func (s *InventoryStore) Cached(id uuid.UUID) (inventory.Item, bool) {
	return s.cache.get(id)
}

func (s *InventoryStore) Item(ctx context.Context, id uuid.UUID) (inventory.Item, error) {
	if it, ok := s.cache.get(id); ok {
		return it, nil
	}
	return s.send(ctx, id, http.MethodGet, inventoryPath+"/"+id.String(), nil)
}

func (s *InventoryStore) Create(ctx context.Context, in inventory.ItemInput) (inventory.Item, error) {
	if err := in.Validate(); err != nil {
		return inventory.Item{}, err
	}
	var it inventory.Item
	if err := s.t.Do(ctx, http.MethodPost, inventoryPath, in, &it); err != nil {
		return inventory.Item{}, err
	}
	s.cache.apply(it.ID, s.cache.begin(it.ID), it)
	return it, nil
}

// Update validates the patch against the cached item when there is one.
func (s *InventoryStore) Update(ctx context.Context, id uuid.UUID, patch inventory.ItemPatch) (inventory.Item, error) {
	if cur, ok := s.cache.get(id); ok {
		if _, err := patch.Apply(cur); err != nil {
			return inventory.Item{}, err
		}
	}
	return s.send(ctx, id, http.MethodPut, inventoryPath+"/"+id.String(), patch)
}

func (s *InventoryStore) AddStock(ctx context.Context, id uuid.UUID, in inventory.StockInput) (inventory.Item, error) {
	if err := in.Validate(); err != nil {
		return inventory.Item{}, err
	}
	return s.send(ctx, id, http.MethodPost, inventoryPath+"/"+id.String()+"/add-stock", in)
}

func (s *InventoryStore) RemoveStock(ctx context.Context, id uuid.UUID, in inventory.StockInput) (inventory.Item, error) {
	if err := in.Validate(); err != nil {
		return inventory.Item{}, err
	}
	return s.send(ctx, id, http.MethodPost, inventoryPath+"/"+id.String()+"/remove-stock", in)
}

func (s *InventoryStore) AdjustStock(ctx context.Context, id uuid.UUID, in inventory.AdjustInput) (inventory.Item, error) {
	if err := in.Validate(); err != nil {
		return inventory.Item{}, err
	}
	return s.send(ctx, id, http.MethodPost, inventoryPath+"/"+id.String()+"/adjust-stock", in)
}

func (s *InventoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	seq := s.cache.begin(id)
	if err := s.t.Do(ctx, http.MethodDelete, inventoryPath+"/"+id.String(), nil, nil); err != nil {
		return err
	}
	s.cache.remove(id, seq)
	return nil
}

func (s *InventoryStore) send(ctx context.Context, id uuid.UUID, method, path string, body interface{}) (inventory.Item, error) {
	seq := s.cache.begin(id)
	var it inventory.Item
	if err := s.t.Do(ctx, method, path, body, &it); err != nil {
		return inventory.Item{}, err
	}
	s.cache.apply(id, seq, it)
	return it, nil
}
