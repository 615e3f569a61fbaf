package utils // package utils provides helpers for session tokens, hashing and uploads

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidSessionToken = errors.New("invalid session token")

// SessionToken is the signed value placed in the session cookie.  SID is the
// raw random session id; only HashSessionID(SID) is persisted.
type SessionToken struct {
	Token string
	SID   string
	Exp   time.Time
}

// SessionClaims are the claims carried by the cookie JWT.
type SessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewSessionToken builds and signs an HS256 JWT naming the user (sub) and a
// fresh random session id (sid).
func NewSessionToken(secret string, userID uint64, ttl time.Duration) (SessionToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	sid := uuid.NewString()
	claims := SessionClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, SID: sid, Exp: exp}, nil
}

// ParseSessionToken verifies signature and expiry and returns the user id and
// raw session id.
func ParseSessionToken(secret, raw string) (uint64, string, error) {
	var claims SessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return 0, "", ErrInvalidSessionToken
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 || claims.SID == "" {
		return 0, "", ErrInvalidSessionToken
	}
	return uid, claims.SID, nil
}

// HashSessionID returns the SHA-256 hex digest stored in sessions.token_hash.
func HashSessionID(sid string) string {
	sum := sha256.Sum256([]byte(sid))
	return hex.EncodeToString(sum[:])
}
