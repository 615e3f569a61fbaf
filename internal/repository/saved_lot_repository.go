package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/lot-auction/internal/database"
	"github.com/iliyamo/lot-auction/internal/model"
)

// SavedLotRepo manages the user↔lot bookmark relation.
type SavedLotRepo struct {
	db *sql.DB
}

func NewSavedLotRepo(db *sql.DB) *SavedLotRepo {
	return &SavedLotRepo{db: db}
}

// Exists reports whether userID already bookmarked lotID.
func (r *SavedLotRepo) Exists(ctx context.Context, userID, lotID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM saved_lots WHERE user_id = ? AND lot_id = ?", userID, lotID).Scan(&n)
	return n > 0, err
}

// Save bookmarks lotID for userID.  It returns false without error when the
// pair already exists, whether that is caught by the pre-check or by the
// unique index after losing a race with a concurrent request.
func (r *SavedLotRepo) Save(ctx context.Context, userID, lotID uint64) (bool, error) {
	exists, err := r.Exists(ctx, userID, lotID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO saved_lots (user_id, lot_id, created_at) VALUES (?,?,?)",
		userID, lotID, time.Now().UTC().Truncate(time.Second))
	if err != nil {
		if database.IsDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remove deletes the bookmark and reports whether one existed.
func (r *SavedLotRepo) Remove(ctx context.Context, userID, lotID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM saved_lots WHERE user_id = ? AND lot_id = ?", userID, lotID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListByUser returns the user's bookmarks joined with their lots, oldest first.
func (r *SavedLotRepo) ListByUser(ctx context.Context, userID uint64) ([]model.SavedLot, error) {
	const q = `SELECT s.id, s.user_id, s.lot_id, s.created_at,
	                  l.id, l.title, l.description, l.price, l.image, l.category, l.user_id, l.created_at
	           FROM saved_lots s
	           JOIN lots l ON l.id = s.lot_id
	           WHERE s.user_id = ?
	           ORDER BY s.id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SavedLot, 0)
	for rows.Next() {
		var s model.SavedLot
		if err := rows.Scan(&s.ID, &s.UserID, &s.LotID, &s.CreatedAt,
			&s.Lot.ID, &s.Lot.Title, &s.Lot.Description, &s.Lot.Price, &s.Lot.Image,
			&s.Lot.Category, &s.Lot.UserID, &s.Lot.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByUser returns how many lots userID has bookmarked.
func (r *SavedLotRepo) CountByUser(ctx context.Context, userID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM saved_lots WHERE user_id = ?", userID).Scan(&n)
	return n, err
}
