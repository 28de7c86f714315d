package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/pkg/civil"
	"github.com/clinicops/clinic/pkg/money"
)

const (
	TypeMedicine  = "medicine"
	TypeEquipment = "equipment"
	TypeSupply    = "supply"
	TypeOther     = "other"
)

var validTypes = map[string]bool{
	TypeMedicine: true, TypeEquipment: true, TypeSupply: true, TypeOther: true,
}

type StockStatus string

const (
	StatusNormal       StockStatus = "normal"
	StatusLowStock     StockStatus = "low_stock"
	StatusExpiringSoon StockStatus = "expiring_soon"
	StatusExpired      StockStatus = "expired"
)

var validStatuses = map[StockStatus]bool{
	StatusNormal: true, StatusLowStock: true, StatusExpiringSoon: true, StatusExpired: true,
}

type Reason string

const (
	ReasonAdd    Reason = "add"
	ReasonRemove Reason = "remove"
	ReasonAdjust Reason = "adjust"
)

// Item is an inventory entry. CurrentStock only changes through AddStock,
// RemoveStock and AdjustStock; StockStatus is filled in on every read.
type Item struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	SKU          string       `json:"sku"`
	Category     string       `json:"category"`
	Type         string       `json:"type"`
	Unit         string       `json:"unit"`
	UnitPrice    money.Amount `json:"unit_price"`
	CurrentStock int          `json:"current_stock"`
	MinimumStock int          `json:"minimum_stock"`
	MaximumStock *int         `json:"maximum_stock,omitempty"`
	ExpiryDate   civil.Date   `json:"expiry_date"`
	Supplier     *string      `json:"supplier,omitempty"`
	Description  *string      `json:"description,omitempty"`
	Version      int64        `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	StockStatus  StockStatus  `json:"stock_status"`
}

// StockValue is the on-hand quantity priced at the current unit price.
func (it *Item) StockValue() money.Amount {
	return it.UnitPrice.Mul(int64(it.CurrentStock))
}

// Movement is one entry of the append-only stock audit trail.
type Movement struct {
	ID              uuid.UUID     `json:"id"`
	ItemID          uuid.UUID     `json:"item_id"`
	Delta           int           `json:"delta"`
	ResultingStock  int           `json:"resulting_stock"`
	Reason          Reason        `json:"reason"`
	Note            string        `json:"note"`
	ReferenceNumber string        `json:"reference_number"`
	UnitPrice       *money.Amount `json:"unit_price,omitempty"`
	PerformedBy     string        `json:"performed_by"`
	CreatedAt       time.Time     `json:"created_at"`
}

// DeriveStatus classifies an item for the given day. Expiry wins over stock
// level: expired, then expiring within windowDays, then at or below the
// minimum, otherwise normal.
func DeriveStatus(it *Item, today civil.Date, windowDays int) StockStatus {
	if !it.ExpiryDate.IsZero() {
		if it.ExpiryDate.Before(today) {
			return StatusExpired
		}
		if !it.ExpiryDate.After(today.AddDays(windowDays)) {
			return StatusExpiringSoon
		}
	}
	if it.CurrentStock <= it.MinimumStock {
		return StatusLowStock
	}
	return StatusNormal
}

type ItemInput struct {
	Name         string       `json:"name"`
	SKU          string       `json:"sku"`
	Category     string       `json:"category"`
	Type         string       `json:"type"`
	Unit         string       `json:"unit"`
	UnitPrice    money.Amount `json:"unit_price"`
	CurrentStock int          `json:"current_stock"`
	MinimumStock int          `json:"minimum_stock"`
	MaximumStock *int         `json:"maximum_stock,omitempty"`
	ExpiryDate   civil.Date   `json:"expiry_date"`
	Supplier     *string      `json:"supplier,omitempty"`
	Description  *string      `json:"description,omitempty"`
}

// Validate reports the first violated rule.
func (in *ItemInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	in.Category = strings.TrimSpace(in.Category)
	if in.Name == "" {
		return apperr.Validation("name", "name is required")
	}
	if in.SKU == "" {
		return apperr.Validation("sku", "sku is required")
	}
	return validateFields(in.Type, in.UnitPrice, in.CurrentStock, in.MinimumStock, in.MaximumStock)
}

func validateFields(typ string, price money.Amount, current, minimum int, maximum *int) error {
	if !validTypes[typ] {
		return apperr.Validation("type", "type must be one of medicine, equipment, supply, other")
	}
	if !price.IsPositive() {
		return apperr.Validation("unit_price", "unit_price must be greater than 0")
	}
	if current < 0 {
		return apperr.Validation("current_stock", "current_stock cannot be negative")
	}
	if minimum < 0 {
		return apperr.Validation("minimum_stock", "minimum_stock cannot be negative")
	}
	if maximum != nil && *maximum < minimum {
		return apperr.Validation("maximum_stock", "maximum_stock must be greater than or equal to minimum_stock")
	}
	return nil
}

func (in *ItemInput) toItem() *Item {
	return &Item{
		Name:         in.Name,
		SKU:          in.SKU,
		Category:     in.Category,
		Type:         in.Type,
		Unit:         in.Unit,
		UnitPrice:    in.UnitPrice,
		CurrentStock: in.CurrentStock,
		MinimumStock: in.MinimumStock,
		MaximumStock: in.MaximumStock,
		ExpiryDate:   in.ExpiryDate,
		Supplier:     in.Supplier,
		Description:  in.Description,
	}
}

// ItemPatch carries the administrative fields of an item. Nil fields are left
// unchanged; ClearMaximumStock removes the ceiling. Stock on hand is not
// patchable.
type ItemPatch struct {
	Name         *string       `json:"name,omitempty"`
	Category     *string       `json:"category,omitempty"`
	Type         *string       `json:"type,omitempty"`
	Unit         *string       `json:"unit,omitempty"`
	UnitPrice    *money.Amount `json:"unit_price,omitempty"`
	MinimumStock *int          `json:"minimum_stock,omitempty"`
	MaximumStock *int          `json:"maximum_stock,omitempty"`
	ExpiryDate   *civil.Date   `json:"expiry_date,omitempty"`
	Supplier     *string       `json:"supplier,omitempty"`
	Description  *string       `json:"description,omitempty"`

	ClearMaximumStock bool `json:"clear_maximum_stock,omitempty"`
}

// Apply returns a copy of it with the patch applied and validated.
func (p ItemPatch) Apply(it Item) (Item, error) {
	if p.Name != nil {
		it.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		it.Category = strings.TrimSpace(*p.Category)
	}
	if p.Type != nil {
		it.Type = *p.Type
	}
	if p.Unit != nil {
		it.Unit = *p.Unit
	}
	if p.UnitPrice != nil {
		it.UnitPrice = *p.UnitPrice
	}
	if p.MinimumStock != nil {
		it.MinimumStock = *p.MinimumStock
	}
	if p.ClearMaximumStock && p.MaximumStock != nil {
		return it, apperr.Validation("maximum_stock", "maximum_stock cannot be set and cleared together")
	}
	if p.MaximumStock != nil {
		it.MaximumStock = p.MaximumStock
	}
	if p.ClearMaximumStock {
		it.MaximumStock = nil
	}
	if p.ExpiryDate != nil {
		it.ExpiryDate = *p.ExpiryDate
	}
	if p.Supplier != nil {
		it.Supplier = p.Supplier
	}
	if p.Description != nil {
		it.Description = p.Description
	}
	if it.Name == "" {
		return it, apperr.Validation("name", "name is required")
	}
	return it, validateFields(it.Type, it.UnitPrice, it.CurrentStock, it.MinimumStock, it.MaximumStock)
}

type StockInput struct {
	Quantity        int           `json:"quantity"`
	UnitPrice       *money.Amount `json:"unit_price,omitempty"`
	Note            string        `json:"note"`
	ReferenceNumber string        `json:"reference_number"`
}

func (in StockInput) Validate() error {
	if in.Quantity <= 0 {
		return apperr.Validation("quantity", "quantity must be greater than 0")
	}
	if in.UnitPrice != nil && !in.UnitPrice.IsPositive() {
		return apperr.Validation("unit_price", "unit_price must be greater than 0")
	}
	return nil
}

type AdjustInput struct {
	NewQuantity *int   `json:"new_quantity"`
	Note        string `json:"note"`
}

func (in AdjustInput) Validate() error {
	if in.NewQuantity == nil {
		return apperr.Validation("new_quantity", "new_quantity is required")
	}
	if *in.NewQuantity < 0 {
		return apperr.Validation("new_quantity", "new_quantity cannot be negative")
	}
	return nil
}

// Filter narrows ListItems. Status is matched against the derived status.
type Filter struct {
	Category string
	Type     string
	Status   StockStatus
	Search   string
	Limit    int
	Offset   int
}

// Summary counts items per derived status.
type Summary struct {
	TotalItems   int          `json:"total_items"`
	Normal       int          `json:"normal"`
	LowStock     int          `json:"low_stock"`
	ExpiringSoon int          `json:"expiring_soon"`
	Expired      int          `json:"expired"`
	TotalValue   money.Amount `json:"total_value"`
}
