package model

import (
	"strings"
	"time"
)

// User represents a registered account as stored in the `users` table.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	FirstName    – given name.
//	LastName     – family name.
//	MiddleName   – patronymic / middle name.
//	Email        – unique, normalised to lower case.
//	PasswordHash – bcrypt hashed password.
//	Photo        – filename under static/photos, empty when none was uploaded.
//	CreatedAt    – timestamp of registration.
type User struct {
	ID           uint64    // users.id
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	MiddleName   string    // users.middle_name
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Photo        string    // users.photo
	CreatedAt    time.Time // users.created_at
}

// FullName joins the non-empty name parts as "Last First Middle".
func (u User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.LastName, u.FirstName, u.MiddleName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Session models an entry in the `sessions` table.  The random session id
// handed to the browser is never stored, only its SHA-256 hash.
type Session struct {
	ID        uint64     // sessions.id
	UserID    uint64     // sessions.user_id
	TokenHash string     // sessions.token_hash
	ExpiresAt time.Time  // sessions.expires_at
	RevokedAt *time.Time // sessions.revoked_at (nullable)
	CreatedAt time.Time  // sessions.created_at
}
