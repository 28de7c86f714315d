package inventory

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/pkg/civil"
	"github.com/clinicops/clinic/pkg/money"
)

// -- Mock Repository --

type mockRepo struct {
	items     map[uuid.UUID]Item
	movements []Movement

	categoryCalls int
	failMovement  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]Item)}
}

func (m *mockRepo) Create(_ context.Context, it *Item) error {
	for _, existing := range m.items {
		if existing.SKU == it.SKU {
			return apperr.Validation("sku", "sku %s already exists", it.SKU)
		}
	}
	it.ID = uuid.New()
	it.Version = 1
	it.CreatedAt = time.Now()
	it.UpdatedAt = it.CreatedAt
	m.items[it.ID] = *it
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("inventory item", id.String())
	}
	return &it, nil
}

func (m *mockRepo) LockByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(_ context.Context, it *Item) error {
	if _, ok := m.items[it.ID]; !ok {
		return apperr.NotFound("inventory item", it.ID.String())
	}
	it.UpdatedAt = time.Now()
	m.items[it.ID] = *it
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return apperr.NotFound("inventory item", id.String())
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]*Item, int, error) {
	var result []*Item
	for _, it := range m.items {
		it := it
		if f.Category != "" && it.Category != f.Category {
			continue
		}
		if f.Type != "" && it.Type != f.Type {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(it.Name), strings.ToLower(f.Search)) {
			continue
		}
		result = append(result, &it)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	total := len(result)
	if f.Limit > 0 {
		if f.Offset > total {
			f.Offset = total
		}
		end := f.Offset + f.Limit
		if end > total {
			end = total
		}
		result = result[f.Offset:end]
	}
	return result, total, nil
}

func (m *mockRepo) SKUExists(_ context.Context, sku string) (bool, error) {
	for _, it := range m.items {
		if it.SKU == sku {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) Categories(_ context.Context) ([]string, error) {
	m.categoryCalls++
	seen := map[string]bool{}
	out := []string{}
	for _, it := range m.items {
		if it.Category != "" && !seen[it.Category] {
			seen[it.Category] = true
			out = append(out, it.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockRepo) InsertMovement(_ context.Context, mv *Movement) error {
	if m.failMovement != nil {
		return m.failMovement
	}
	mv.ID = uuid.New()
	mv.CreatedAt = time.Now()
	m.movements = append(m.movements, *mv)
	return nil
}

func (m *mockRepo) ListMovements(_ context.Context, itemID uuid.UUID, _, _ int) ([]Movement, int, error) {
	var out []Movement
	for i := len(m.movements) - 1; i >= 0; i-- {
		if m.movements[i].ItemID == itemID {
			out = append(out, m.movements[i])
		}
	}
	return out, len(out), nil
}

type mockTx struct {
	mu   sync.Mutex
	repo *mockRepo
}

func (m *mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make(map[uuid.UUID]Item, len(m.repo.items))
	for k, v := range m.repo.items {
		items[k] = v
	}
	movements := append([]Movement(nil), m.repo.movements...)
	if err := fn(ctx); err != nil {
		m.repo.items, m.repo.movements = items, movements
		return err
	}
	return nil
}

// -- Mock Cache --

type mockCache struct {
	values      map[string][]string
	invalidated int
}

func (m *mockCache) Get(_ context.Context, tenant, name string) ([]string, bool, error) {
	v, ok := m.values[tenant+"/"+name]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, tenant, name string, values []string) error {
	m.values[tenant+"/"+name] = values
	return nil
}

func (m *mockCache) Invalidate(_ context.Context, tenant, name string) error {
	m.invalidated++
	delete(m.values, tenant+"/"+name)
	return nil
}

var testToday = civil.Date{Year: 2024, Month: time.June, Day: 15}

func newTestService() (*Service, *mockRepo, *mockCache) {
	repo := newMockRepo()
	c := &mockCache{values: map[string][]string{}}
	svc := NewService(repo, &mockTx{repo: repo}, c, 30*24*time.Hour, zerolog.Nop())
	svc.now = func() time.Time { return testToday.Time().Add(9 * time.Hour) }
	return svc, repo, c
}

func intPtr(i int) *int { return &i }

func validInput() ItemInput {
	return ItemInput{
		Name:         "Paracetamol 500mg",
		SKU:          "PAR-500",
		Category:     "analgesic",
		Type:         TypeMedicine,
		Unit:         "box",
		UnitPrice:    money.MustParse("4.50"),
		CurrentStock: 20,
		MinimumStock: 10,
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want StockStatus
	}{
		{"low stock without expiry", Item{CurrentStock: 5, MinimumStock: 10}, StatusLowStock},
		{"at minimum is low", Item{CurrentStock: 10, MinimumStock: 10}, StatusLowStock},
		{"normal", Item{CurrentStock: 50, MinimumStock: 10}, StatusNormal},
		{"expiring soon overrides normal", Item{CurrentStock: 50, MinimumStock: 10, ExpiryDate: testToday.AddDays(5)}, StatusExpiringSoon},
		{"expiring today", Item{CurrentStock: 50, MinimumStock: 10, ExpiryDate: testToday}, StatusExpiringSoon},
		{"window edge is expiring", Item{CurrentStock: 50, ExpiryDate: testToday.AddDays(30)}, StatusExpiringSoon},
		{"past window", Item{CurrentStock: 50, ExpiryDate: testToday.AddDays(31)}, StatusNormal},
		{"expired beats low stock", Item{CurrentStock: 0, MinimumStock: 10, ExpiryDate: testToday.AddDays(-1)}, StatusExpired},
		{"expiring beats low stock", Item{CurrentStock: 1, MinimumStock: 10, ExpiryDate: testToday.AddDays(2)}, StatusExpiringSoon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := tt.item
			if got := DeriveStatus(&it, testToday, 30); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			if again := DeriveStatus(&it, testToday, 30); again != tt.want {
				t.Error("DeriveStatus is not deterministic")
			}
		})
	}
}

func TestCreateItem_ValidationOrder(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(in *ItemInput)
		field string
	}{
		{"name", func(in *ItemInput) { in.Name = " "; in.SKU = "" }, "name"},
		{"sku", func(in *ItemInput) { in.SKU = ""; in.Type = "drug" }, "sku"},
		{"type", func(in *ItemInput) { in.Type = "drug"; in.UnitPrice = 0 }, "type"},
		{"unit price", func(in *ItemInput) { in.UnitPrice = 0; in.CurrentStock = -1 }, "unit_price"},
		{"current stock", func(in *ItemInput) { in.CurrentStock = -1; in.MinimumStock = -1 }, "current_stock"},
		{"minimum stock", func(in *ItemInput) { in.MinimumStock = -1 }, "minimum_stock"},
		{"maximum below minimum", func(in *ItemInput) { in.MaximumStock = intPtr(5) }, "maximum_stock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestService()
			in := validInput()
			tt.edit(&in)
			_, err := svc.CreateItem(context.Background(), in)
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected first violation on %s, got %s (%s)", tt.field, ve.Field, ve.Message)
			}
			if len(repo.items) != 0 {
				t.Error("invalid item must not be stored")
			}
		})
	}
}

func TestCreateItem_DuplicateSKU(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateItem(ctx, validInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.CreateItem(ctx, validInput())
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "sku" {
		t.Errorf("expected sku ValidationError, got %v", err)
	}
}

func TestCreateItem_LogsInitialStock(t *testing.T) {
	svc, repo, _ := newTestService()
	it, err := svc.CreateItem(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.StockStatus != StatusNormal {
		t.Errorf("expected normal status, got %s", it.StockStatus)
	}
	if len(repo.movements) != 1 {
		t.Fatalf("expected 1 movement, got %d", len(repo.movements))
	}
	mv := repo.movements[0]
	if mv.Reason != ReasonAdd || mv.Delta != 20 || mv.ResultingStock != 20 || mv.Note != "initial stock" {
		t.Errorf("unexpected initial movement %+v", mv)
	}

	in := validInput()
	in.SKU, in.CurrentStock = "PAR-250", 0
	if _, err := svc.CreateItem(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.movements) != 1 {
		t.Error("zero initial stock should not log a movement")
	}
}

func TestAddStock_ReplacesPrice(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	it, _ := svc.CreateItem(ctx, validInput())

	newPrice := money.MustParse("5.25")
	it, err := svc.AddStock(ctx, it.ID, StockInput{Quantity: 30, UnitPrice: &newPrice, ReferenceNumber: "PO-17"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.CurrentStock != 50 || it.UnitPrice != newPrice {
		t.Errorf("expected 50 @ 5.25, got %d @ %s", it.CurrentStock, it.UnitPrice)
	}
	if it.Version != 2 {
		t.Errorf("expected version 2, got %d", it.Version)
	}
	mv := repo.movements[len(repo.movements)-1]
	if mv.Delta != 30 || mv.ResultingStock != 50 || mv.ReferenceNumber != "PO-17" {
		t.Errorf("unexpected movement %+v", mv)
	}
}

func TestStockInput_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	it, _ := svc.CreateItem(ctx, validInput())

	if _, err := svc.AddStock(ctx, it.ID, StockInput{Quantity: 0}); !apperr.IsValidation(err) {
		t.Errorf("expected ValidationError for zero quantity, got %v", err)
	}
	zero := money.Zero
	if _, err := svc.AddStock(ctx, it.ID, StockInput{Quantity: 1, UnitPrice: &zero}); !apperr.IsValidation(err) {
		t.Errorf("expected ValidationError for zero price, got %v", err)
	}
	if _, err := svc.RemoveStock(ctx, it.ID, StockInput{Quantity: -2}); !apperr.IsValidation(err) {
		t.Errorf("expected ValidationError for negative quantity, got %v", err)
	}
	if _, err := svc.AdjustStock(ctx, it.ID, AdjustInput{}); !apperr.IsValidation(err) {
		t.Errorf("expected ValidationError for missing new_quantity, got %v", err)
	}
	if _, err := svc.AdjustStock(ctx, it.ID, AdjustInput{NewQuantity: intPtr(-1)}); !apperr.IsValidation(err) {
		t.Errorf("expected ValidationError for negative new_quantity, got %v", err)
	}
}

func TestRemoveStock_Insufficient(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	in := validInput()
	in.CurrentStock = 10
	it, _ := svc.CreateItem(ctx, in)
	movements := len(repo.movements)

	_, err := svc.RemoveStock(ctx, it.ID, StockInput{Quantity: 100})
	var stockErr *apperr.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 100 || stockErr.Available != 10 {
		t.Errorf("unexpected error detail %+v", stockErr)
	}

	got, _ := svc.GetItem(ctx, it.ID)
	if got.CurrentStock != 10 || got.Version != 1 {
		t.Errorf("rejected removal changed the item: %+v", got)
	}
	if len(repo.movements) != movements {
		t.Error("rejected removal logged a movement")
	}
}

func TestRemoveStock_ToLowStock(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	it, _ := svc.CreateItem(ctx, validInput())

	it, err := svc.RemoveStock(ctx, it.ID, StockInput{Quantity: 15, Note: "dispensed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.CurrentStock != 5 || it.StockStatus != StatusLowStock {
		t.Errorf("expected 5 and low_stock, got %d %s", it.CurrentStock, it.StockStatus)
	}
	if mv := repo.movements[len(repo.movements)-1]; mv.Delta != -15 || mv.Reason != ReasonRemove {
		t.Errorf("unexpected movement %+v", mv)
	}
}

func TestAdjustStock(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	it, _ := svc.CreateItem(ctx, validInput())

	it, err := svc.AdjustStock(ctx, it.ID, AdjustInput{NewQuantity: intPtr(12), Note: "count"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.CurrentStock != 12 {
		t.Errorf("expected 12, got %d", it.CurrentStock)
	}
	if mv := repo.movements[len(repo.movements)-1]; mv.Delta != -8 || mv.Reason != ReasonAdjust {
		t.Errorf("unexpected movement %+v", mv)
	}

	before := len(repo.movements)
	if _, err := svc.AdjustStock(ctx, it.ID, AdjustInput{NewQuantity: intPtr(12)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.movements) != before+1 || repo.movements[before].Delta != 0 {
		t.Error("expected a zero-delta adjustment to be recorded")
	}
}

func TestStockMutation_RollsBackOnMovementFailure(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	it, _ := svc.CreateItem(ctx, validInput())

	repo.failMovement = errors.New("insert failed")
	if _, err := svc.AddStock(ctx, it.ID, StockInput{Quantity: 5}); err == nil {
		t.Fatal("expected error")
	}
	got, _ := svc.GetItem(ctx, it.ID)
	if got.CurrentStock != 20 {
		t.Errorf("expected stock to stay 20, got %d", got.CurrentStock)
	}
}

func TestNonNegativeStock_RandomSequence(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	it, _ := svc.CreateItem(ctx, validInput())
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 500; i++ {
		qty := rng.Intn(15) + 1
		var err error
		var next *Item
		switch rng.Intn(3) {
		case 0:
			next, err = svc.AddStock(ctx, it.ID, StockInput{Quantity: qty})
		case 1:
			next, err = svc.RemoveStock(ctx, it.ID, StockInput{Quantity: qty})
			if qty > it.CurrentStock {
				if !apperr.IsInsufficientStock(err) {
					t.Fatalf("step %d: expected rejection, got %v", i, err)
				}
				continue
			}
		default:
			next, err = svc.AdjustStock(ctx, it.ID, AdjustInput{NewQuantity: intPtr(rng.Intn(40))})
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if next.CurrentStock < 0 {
			t.Fatalf("step %d: stock went negative", i)
		}
		it = next
	}
}

func TestUpdateItem(t *testing.T) {
	svc, _, c := newTestService()
	ctx := context.Background()
	it, _ := svc.CreateItem(ctx, validInput())
	invalidations := c.invalidated

	cat := "antipyretic"
	updated, err := svc.UpdateItem(ctx, it.ID, ItemPatch{Category: &cat, MinimumStock: intPtr(25)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Category != "antipyretic" || updated.CurrentStock != 20 || updated.StockStatus != StatusLowStock {
		t.Errorf("unexpected item %+v", updated)
	}
	if c.invalidated != invalidations+1 {
		t.Error("expected category cache invalidation")
	}

	if _, err := svc.UpdateItem(ctx, it.ID, ItemPatch{MaximumStock: intPtr(3)}); !apperr.IsValidation(err) {
		t.Errorf("expected ValidationError for maximum below minimum, got %v", err)
	}
	if _, err := svc.UpdateItem(ctx, uuid.New(), ItemPatch{}); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestUpdateItem_ClearMaximumStock(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	it, _ := svc.CreateItem(ctx, validInput())

	capped, err := svc.UpdateItem(ctx, it.ID, ItemPatch{MaximumStock: intPtr(200)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if capped.MaximumStock == nil || *capped.MaximumStock != 200 {
		t.Fatalf("expected maximum 200, got %v", capped.MaximumStock)
	}

	if _, err := svc.UpdateItem(ctx, it.ID, ItemPatch{MaximumStock: intPtr(300), ClearMaximumStock: true}); !apperr.IsValidation(err) {
		t.Errorf("expected ValidationError for set and clear together, got %v", err)
	}

	cleared, err := svc.UpdateItem(ctx, it.ID, ItemPatch{ClearMaximumStock: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleared.MaximumStock != nil {
		t.Errorf("expected no maximum, got %d", *cleared.MaximumStock)
	}
	if cleared.MinimumStock != 10 || cleared.Name != "Paracetamol 500mg" {
		t.Errorf("clear must leave other fields alone, got %+v", cleared)
	}
}

func TestDeleteItem_KeepsMovements(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	it, _ := svc.CreateItem(ctx, validInput())

	if err := svc.DeleteItem(ctx, it.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetItem(ctx, it.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
	if mv, _, _ := svc.ListMovements(ctx, it.ID, 10, 0); len(mv) != 1 {
		t.Errorf("expected movement history to survive, got %d", len(mv))
	}
}

func TestCategories_Cached(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	svc.CreateItem(ctx, validInput())
	in := validInput()
	in.SKU, in.Category = "GAU-1", "dressing"
	svc.CreateItem(ctx, in)

	first, err := svc.Categories(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := svc.Categories(ctx)
	if repo.categoryCalls != 1 {
		t.Errorf("expected one store call, got %d", repo.categoryCalls)
	}
	if strings.Join(first, ",") != "analgesic,dressing" || strings.Join(second, ",") != "analgesic,dressing" {
		t.Errorf("unexpected categories %v / %v", first, second)
	}

	in.SKU, in.Category = "SYR-5", "consumable"
	svc.CreateItem(ctx, in)
	third, _ := svc.Categories(ctx)
	if repo.categoryCalls != 2 || len(third) != 3 {
		t.Errorf("expected refresh after create, got %v (%d calls)", third, repo.categoryCalls)
	}
}

func TestListItems_StatusFilter(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for i, stock := range []int{1, 2, 50, 3} {
		in := validInput()
		in.Name = string(rune('a'+i)) + " item"
		in.SKU = uuid.NewString()
		in.CurrentStock = stock
		svc.CreateItem(ctx, in)
	}

	items, total, err := svc.ListItems(ctx, Filter{Status: StatusLowStock, Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Errorf("expected 2 of 3 low-stock items, got %d of %d", len(items), total)
	}
	for _, it := range items {
		if it.StockStatus != StatusLowStock {
			t.Errorf("unexpected status %s", it.StockStatus)
		}
	}

	if _, _, err := svc.ListItems(ctx, Filter{Status: "gone"}); !apperr.IsValidation(err) {
		t.Errorf("expected ValidationError for unknown status, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	normal := validInput()
	normal.CurrentStock = 50 // 50 x 4.50
	svc.CreateItem(ctx, normal)

	expired := validInput()
	expired.SKU, expired.CurrentStock, expired.ExpiryDate = "EXP-1", 2, testToday.AddDays(-3) // 2 x 4.50
	svc.CreateItem(ctx, expired)

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.TotalItems != 2 || sum.Normal != 1 || sum.Expired != 1 {
		t.Errorf("unexpected counts %+v", sum)
	}
	if sum.TotalValue != money.MustParse("234.00") {
		t.Errorf("expected total value 234.00, got %s", sum.TotalValue)
	}
}
