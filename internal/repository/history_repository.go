package repository

import (
	"context"
	"database/sql"

	"github.com/choko510/jirotter-sub000/internal/model"
)

// HistoryRepo provides data access to the append-only `shop_history` table.
// Rows are written by the queue consumer and read by the history viewer;
// nothing updates or deletes them.
type HistoryRepo struct{ DB *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{DB: db} }

// Insert appends one change entry. CreatedAt is set by the database when the
// event carries no timestamp.
func (r *HistoryRepo) Insert(ctx context.Context, h model.ShopHistory) error {
	if h.CreatedAt.IsZero() {
		_, err := r.DB.ExecContext(ctx,
			`INSERT INTO shop_history (shop_id, field, old_value, new_value, editor_id, editor_name)
			 VALUES (?,?,?,?,?,?)`,
			h.ShopID, h.Field, h.OldValue, h.NewValue, h.EditorID, h.EditorName)
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO shop_history (shop_id, field, old_value, new_value, editor_id, editor_name, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		h.ShopID, h.Field, h.OldValue, h.NewValue, h.EditorID, h.EditorName,
		h.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	return err
}

// ListByShop returns the newest entries for one shop, capped at limit.
func (r *HistoryRepo) ListByShop(ctx context.Context, shopID int64, limit int) ([]model.ShopHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, shop_id, field, old_value, new_value, editor_id, editor_name, created_at
		 FROM shop_history WHERE shop_id=? ORDER BY id DESC LIMIT ?`,
		shopID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]model.ShopHistory, 0, limit)
	for rows.Next() {
		var h model.ShopHistory
		if err := rows.Scan(&h.ID, &h.ShopID, &h.Field, &h.OldValue, &h.NewValue,
			&h.EditorID, &h.EditorName, &h.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}
