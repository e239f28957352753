package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/choko510/jirotter-sub000/internal/model"
)

// ShopRepo provides data access to the `shops` table. The editor reads the
// whole directory page and mutates exactly one column at a time, so the
// surface is a paged list, a single read and a single-field update.
type ShopRepo struct{ DB *sql.DB }

func NewShopRepo(db *sql.DB) *ShopRepo { return &ShopRepo{DB: db} }

// shopColumns maps editable field names to their column. Values go through
// this map only, so user input never reaches the SQL text.
var shopColumns = map[string]string{
	model.FieldName:          "name",
	model.FieldAddress:       "address",
	model.FieldBusinessHours: "business_hours",
	model.FieldClosedDays:    "closed_days",
	model.FieldSeats:         "seats",
	model.FieldWaitTime:      "wait_time",
}

const shopSelect = `SELECT s.id, s.name, s.address, s.business_hours, s.closed_days, s.seats,
       s.wait_time, s.updated_at,
       COALESCE((SELECT h.editor_name FROM shop_history h
                 WHERE h.shop_id = s.id ORDER BY h.id DESC LIMIT 1), '') AS updated_by
FROM shops s`

// List returns up to limit shops starting at offset, ordered by id. The
// last-editor name is derived from the most recent history entry per shop.
func (r *ShopRepo) List(ctx context.Context, limit, offset int) ([]model.Shop, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx, shopSelect+" ORDER BY s.id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shops := make([]model.Shop, 0, limit)
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		shops = append(shops, s)
	}
	return shops, rows.Err()
}

// GetByID fetches a single shop. Returns ErrShopNotFound when the id does
// not exist.
func (r *ShopRepo) GetByID(ctx context.Context, id int64) (model.Shop, error) {
	row := r.DB.QueryRowContext(ctx, shopSelect+" WHERE s.id=? LIMIT 1", id)
	s, err := scanShop(row)
	if err == sql.ErrNoRows {
		return model.Shop{}, ErrShopNotFound
	}
	return s, err
}

// UpdateField writes one editable column and stamps updated_at. The wait
// time is nullable; pass nil to clear it. The updated row is read back so
// callers return the server's view, not their own merge.
func (r *ShopRepo) UpdateField(ctx context.Context, id int64, field string, value any) (model.Shop, error) {
	col, ok := shopColumns[field]
	if !ok {
		return model.Shop{}, ErrFieldNotEditable
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE shops SET "+col+"=?, updated_at=UTC_TIMESTAMP() WHERE id=?",
		value, id)
	if err != nil {
		return model.Shop{}, err
	}
	// zero rows can mean a no-op write to an existing row; only a missing
	// row is an error
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return model.Shop{}, err
		}
	}
	return r.GetByID(ctx, id)
}

type rowScanner interface{ Scan(dest ...any) error }

func scanShop(row rowScanner) (model.Shop, error) {
	var (
		s        model.Shop
		waitTime sql.NullInt64
		updated  time.Time
	)
	err := row.Scan(&s.ID, &s.Name, &s.Address, &s.BusinessHours, &s.ClosedDays,
		&s.Seats, &waitTime, &updated, &s.UpdatedBy)
	if err != nil {
		return model.Shop{}, err
	}
	if waitTime.Valid {
		v := int(waitTime.Int64)
		s.WaitTime = &v
	}
	s.UpdatedAt = updated
	return s, nil
}
