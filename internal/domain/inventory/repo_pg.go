package inventory

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

const itemCols = `id, name, sku, category, item_type, unit, unit_price_minor,
	current_stock, minimum_stock, maximum_stock, expiry_date, supplier, description,
	version, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	var price int64
	err := row.Scan(&it.ID, &it.Name, &it.SKU, &it.Category, &it.Type, &it.Unit, &price,
		&it.CurrentStock, &it.MinimumStock, &it.MaximumStock, &it.ExpiryDate, &it.Supplier, &it.Description,
		&it.Version, &it.CreatedAt, &it.UpdatedAt)
	it.UnitPrice = money.FromMinor(price)
	return &it, err
}

func (r *repoPG) Create(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	it.Version = 1
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO inventory_item (id, name, sku, category, item_type, unit, unit_price_minor,
			current_stock, minimum_stock, maximum_stock, expiry_date, supplier, description, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		it.ID, it.Name, it.SKU, it.Category, it.Type, it.Unit, it.UnitPrice.Minor(),
		it.CurrentStock, it.MinimumStock, it.MaximumStock, it.ExpiryDate, it.Supplier, it.Description, it.Version,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	if db.IsUniqueViolation(err, "inventory_item_sku_key") {
		return apperr.Validation("sku", "sku %s already exists", it.SKU)
	}
	if err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	return nil
}

func (r *repoPG) get(ctx context.Context, id uuid.UUID, lock string) (*Item, error) {
	it, err := scanItem(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+itemCols+` FROM inventory_item WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("inventory item", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory item: %w", err)
	}
	return it, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return r.get(ctx, id, ``)
}

func (r *repoPG) LockByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return r.get(ctx, id, ` FOR UPDATE`)
}

func (r *repoPG) Update(ctx context.Context, it *Item) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE inventory_item SET name=$2, category=$3, item_type=$4, unit=$5, unit_price_minor=$6,
			current_stock=$7, minimum_stock=$8, maximum_stock=$9, expiry_date=$10,
			supplier=$11, description=$12, version=$13, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		it.ID, it.Name, it.Category, it.Type, it.Unit, it.UnitPrice.Minor(),
		it.CurrentStock, it.MinimumStock, it.MaximumStock, it.ExpiryDate,
		it.Supplier, it.Description, it.Version,
	).Scan(&it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("inventory item", it.ID.String())
	}
	if err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM inventory_item WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete inventory item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("inventory item", id.String())
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Item, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Category != "" {
		where += fmt.Sprintf(` AND category = $%d`, idx)
		args = append(args, f.Category)
		idx++
	}
	if f.Type != "" {
		where += fmt.Sprintf(` AND item_type = $%d`, idx)
		args = append(args, f.Type)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d OR sku ILIKE $%d OR supplier ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_item`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inventory items: %w", err)
	}

	query := `SELECT ` + itemCols + ` FROM inventory_item` + where + ` ORDER BY name, sku`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list inventory items: %w", err)
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *repoPG) SKUExists(ctx context.Context, sku string) (bool, error) {
	var ok bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM inventory_item WHERE sku = $1)`, sku).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check sku: %w", err)
	}
	return ok, nil
}

func (r *repoPG) Categories(ctx context.Context) ([]string, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT DISTINCT category FROM inventory_item WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const movementCols = `id, item_id, delta, resulting_stock, reason, note, reference_number,
	unit_price_minor, performed_by, created_at`

func (r *repoPG) InsertMovement(ctx context.Context, m *Movement) error {
	m.ID = uuid.New()
	var price *int64
	if m.UnitPrice != nil {
		minor := m.UnitPrice.Minor()
		price = &minor
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO stock_movement (id, item_id, delta, resulting_stock, reason, note,
			reference_number, unit_price_minor, performed_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		m.ID, m.ItemID, m.Delta, m.ResultingStock, string(m.Reason), m.Note,
		m.ReferenceNumber, price, m.PerformedBy,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

func (r *repoPG) ListMovements(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]Movement, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movement WHERE item_id = $1`, itemID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stock movements: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+movementCols+` FROM stock_movement WHERE item_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, itemID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()
	items := []Movement{}
	for rows.Next() {
		var m Movement
		var reason string
		var price *int64
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Delta, &m.ResultingStock, &reason, &m.Note,
			&m.ReferenceNumber, &price, &m.PerformedBy, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		m.Reason = Reason(reason)
		if price != nil {
			amt := money.FromMinor(*price)
			m.UnitPrice = &amt
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
