package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/cache"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/pkg/civil"
)

const categoriesKey = "inventory_categories"

type Service struct {
	repo       Repository
	tx         db.TxRunner
	categories cache.StringLists
	windowDays int
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService builds the stock engine. window is the "expiring soon"
// lookahead and is applied at day precision.
func NewService(repo Repository, tx db.TxRunner, categories cache.StringLists, window time.Duration, logger zerolog.Logger) *Service {
	if categories == nil {
		categories = cache.Nop{}
	}
	return &Service{
		repo:       repo,
		tx:         tx,
		categories: categories,
		windowDays: int(window / (24 * time.Hour)),
		logger:     logger.With().Str("component", "inventory").Logger(),
		now:        time.Now,
	}
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now())
}

// withStatus fills in the derived status. Every item leaving the service
// passes through here.
func (s *Service) withStatus(it *Item) *Item {
	it.StockStatus = DeriveStatus(it, s.today(), s.windowDays)
	return it
}

func (s *Service) invalidateCategories(ctx context.Context) {
	if err := s.categories.Invalidate(ctx, db.TenantFromContext(ctx), categoriesKey); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate category cache")
	}
}

func (s *Service) CreateItem(ctx context.Context, in ItemInput) (*Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	exists, err := s.repo.SKUExists(ctx, in.SKU)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Validation("sku", "sku %s already exists", in.SKU)
	}

	it := in.toItem()
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, it); err != nil {
			return err
		}
		if it.CurrentStock == 0 {
			return nil
		}
		price := it.UnitPrice
		return s.repo.InsertMovement(ctx, &Movement{
			ItemID:         it.ID,
			Delta:          it.CurrentStock,
			ResultingStock: it.CurrentStock,
			Reason:         ReasonAdd,
			Note:           "initial stock",
			UnitPrice:      &price,
			PerformedBy:    auth.ActorFromContext(ctx),
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCategories(ctx)
	return s.withStatus(it), nil
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withStatus(it), nil
}

func (s *Service) UpdateItem(ctx context.Context, id uuid.UUID, patch ItemPatch) (*Item, error) {
	var updated Item
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		updated, err = patch.Apply(*current)
		if err != nil {
			return err
		}
		updated.Version++
		return s.repo.Update(ctx, &updated)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCategories(ctx)
	return s.withStatus(&updated), nil
}

func (s *Service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateCategories(ctx)
	return nil
}

// move locks the item, lets change compute the new stock level and records
// the resulting movement in the same transaction.
func (s *Service) move(ctx context.Context, id uuid.UUID, reason Reason, note, ref string,
	change func(it *Item) error) (*Item, error) {
	var result *Item
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		it, err := s.repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		before := it.CurrentStock
		if err := change(it); err != nil {
			return err
		}
		it.Version++
		if err := s.repo.Update(ctx, it); err != nil {
			return err
		}
		price := it.UnitPrice
		m := &Movement{
			ItemID:          it.ID,
			Delta:           it.CurrentStock - before,
			ResultingStock:  it.CurrentStock,
			Reason:          reason,
			Note:            note,
			ReferenceNumber: ref,
			UnitPrice:       &price,
			PerformedBy:     auth.ActorFromContext(ctx),
		}
		if err := s.repo.InsertMovement(ctx, m); err != nil {
			return err
		}
		result = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("item_id", id.String()).
		Str("reason", string(reason)).
		Int("resulting_stock", result.CurrentStock).
		Msg("stock moved")
	return s.withStatus(result), nil
}

// AddStock receives qty units. A supplied unit price replaces the current
// one.
func (s *Service) AddStock(ctx context.Context, id uuid.UUID, in StockInput) (*Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.move(ctx, id, ReasonAdd, in.Note, in.ReferenceNumber, func(it *Item) error {
		it.CurrentStock += in.Quantity
		if in.UnitPrice != nil {
			it.UnitPrice = *in.UnitPrice
		}
		return nil
	})
}

func (s *Service) RemoveStock(ctx context.Context, id uuid.UUID, in StockInput) (*Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.move(ctx, id, ReasonRemove, in.Note, in.ReferenceNumber, func(it *Item) error {
		if in.Quantity > it.CurrentStock {
			return &apperr.InsufficientStockError{
				ItemID:    it.ID.String(),
				Requested: in.Quantity,
				Available: it.CurrentStock,
			}
		}
		it.CurrentStock -= in.Quantity
		return nil
	})
}

// AdjustStock sets the on-hand count after a physical count. An unchanged
// count is still recorded.
func (s *Service) AdjustStock(ctx context.Context, id uuid.UUID, in AdjustInput) (*Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.move(ctx, id, ReasonAdjust, in.Note, "", func(it *Item) error {
		it.CurrentStock = *in.NewQuantity
		return nil
	})
}

// ListItems returns one page of items. A status filter is applied after the
// status is derived, so it pages over the full filtered set.
func (s *Service) ListItems(ctx context.Context, f Filter) ([]*Item, int, error) {
	f.Search = strings.TrimSpace(f.Search)
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("status", "invalid stock status: %s", f.Status)
	}
	if f.Type != "" && !validTypes[f.Type] {
		return nil, 0, apperr.Validation("type", "invalid item type: %s", f.Type)
	}
	if f.Status == "" {
		items, total, err := s.repo.List(ctx, f)
		if err != nil {
			return nil, 0, err
		}
		for _, it := range items {
			s.withStatus(it)
		}
		return items, total, nil
	}

	page := f
	page.Limit, page.Offset = 0, 0
	all, _, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, 0, err
	}
	var matched []*Item
	for _, it := range all {
		if s.withStatus(it).StockStatus == f.Status {
			matched = append(matched, it)
		}
	}
	total := len(matched)
	if f.Offset >= total {
		return []*Item{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}

func (s *Service) ListMovements(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]Movement, int, error) {
	return s.repo.ListMovements(ctx, itemID, limit, offset)
}

// Categories returns the distinct non-empty categories in name order, from
// the cache when it has them.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	tenant := db.TenantFromContext(ctx)
	cached, ok, err := s.categories.Get(ctx, tenant, categoriesKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("category cache read failed")
	}
	if ok {
		return cached, nil
	}

	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.categories.Set(ctx, tenant, categoriesKey, categories); err != nil {
		s.logger.Warn().Err(err).Msg("category cache write failed")
	}
	return categories, nil
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	items, _, err := s.repo.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	sum := &Summary{TotalItems: len(items)}
	for _, it := range items {
		switch s.withStatus(it).StockStatus {
		case StatusExpired:
			sum.Expired++
		case StatusExpiringSoon:
			sum.ExpiringSoon++
		case StatusLowStock:
			sum.LowStock++
		default:
			sum.Normal++
		}
		sum.TotalValue += it.StockValue()
	}
	return sum, nil
}
