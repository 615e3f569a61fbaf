// Package repository contains data access logic separated from HTTP handlers.
// This file holds the Lot queries: create, lookup, listing, title search and
// owner-checked deletion.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/lot-auction/internal/model"
)

// LotRepo encapsulates all database queries related to lots.
type LotRepo struct {
	db *sql.DB
}

func NewLotRepo(db *sql.DB) *LotRepo {
	return &LotRepo{db: db}
}

const lotColumns = "id, title, description, price, image, category, user_id, created_at"

// Create inserts a new lot.  On success l.ID and l.CreatedAt are populated.
func (r *LotRepo) Create(ctx context.Context, l *model.Lot) error {
	l.CreatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO lots (title, description, price, image, category, user_id, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		l.Title, l.Description, l.Price, l.Image, string(l.Category), l.UserID, l.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// GetByID fetches a lot by id.  It returns ErrLotNotFound if no row exists.
func (r *LotRepo) GetByID(ctx context.Context, id uint64) (*model.Lot, error) {
	var l model.Lot
	err := r.db.QueryRowContext(ctx, "SELECT "+lotColumns+" FROM lots WHERE id = ?", id).
		Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Image, &l.Category, &l.UserID, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLotNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ListAll returns every lot in storage order.
func (r *LotRepo) ListAll(ctx context.Context) ([]model.Lot, error) {
	return r.list(ctx, "SELECT "+lotColumns+" FROM lots ORDER BY id")
}

// ListByUser returns the lots owned by userID in storage order.
func (r *LotRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Lot, error) {
	return r.list(ctx, "SELECT "+lotColumns+" FROM lots WHERE user_id = ? ORDER BY id", userID)
}

// SearchByTitle returns the lots whose title contains query, matching case
// exactly.  An empty query returns all lots.  LIKE narrows the scan but is
// case-insensitive on both MySQL's default collation and SQLite, so the
// exact comparison happens here.
func (r *LotRepo) SearchByTitle(ctx context.Context, query string) ([]model.Lot, error) {
	if query == "" {
		return r.ListAll(ctx)
	}
	candidates, err := r.list(ctx,
		"SELECT "+lotColumns+" FROM lots WHERE title LIKE ? ESCAPE '!' ORDER BY id",
		"%"+escapeLike(query)+"%")
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for _, l := range candidates {
		if strings.Contains(l.Title, query) {
			out = append(out, l)
		}
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func (r *LotRepo) list(ctx context.Context, q string, args ...any) ([]model.Lot, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Lot, 0)
	for rows.Next() {
		var l model.Lot
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Image, &l.Category, &l.UserID, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByIDAndOwner removes a lot and its bookmarks if it belongs to ownerID.
// It returns ErrLotNotFound when the lot does not exist and ErrForbidden
// when it belongs to someone else; nothing is deleted in either case.
func (r *LotRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) (*model.Lot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var l model.Lot
	err = tx.QueryRowContext(ctx, "SELECT "+lotColumns+" FROM lots WHERE id = ?", id).
		Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Image, &l.Category, &l.UserID, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLotNotFound
		}
		return nil, err
	}
	if l.UserID != ownerID {
		return nil, ErrForbidden
	}
	// The FK cascades on engines that enforce it; this covers the rest.
	if _, err := tx.ExecContext(ctx, "DELETE FROM saved_lots WHERE lot_id = ?", id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM lots WHERE id = ?", id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Count returns the number of lots; used by tests and the migrate command.
func (r *LotRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lots").Scan(&n)
	return n, err
}
