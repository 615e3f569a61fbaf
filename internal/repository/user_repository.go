package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/lot-auction/internal/database"
	"github.com/iliyamo/lot-auction/internal/model"
	"github.com/iliyamo/lot-auction/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, first_name, last_name, middle_name, email, password_hash, photo, created_at"

// NormalizeEmail lower-cases and trims an address before lookup or insert.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create hashes password, inserts u and fills u.ID, u.Email and u.CreatedAt.
// A second account with the same email yields ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	u.Email = NormalizeEmail(u.Email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.CreatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (first_name, last_name, middle_name, email, password_hash, photo, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		u.FirstName, u.LastName, u.MiddleName, u.Email, u.PasswordHash, u.Photo, u.CreatedAt)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// EmailTaken is the registration pre-check; the unique index still guards
// against two concurrent registrations.
func (r *UserRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email=?", NormalizeEmail(email)).Scan(&n)
	return n > 0, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.MiddleName, &u.Email, &u.PasswordHash, &u.Photo, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
