package middleware

// identity.go defines who is making the current request.  An Identity is
// either Anonymous or Authenticated; the Session middleware stores one in the
// echo context for every request and handlers switch on it explicitly.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// Identity is a closed sum type: Anonymous | Authenticated.
type Identity interface {
	isIdentity()
}

// Anonymous is a visitor without a valid session.
type Anonymous struct{}

// Authenticated is a visitor with a live session.  SessionHash identifies the
// server-side session row so logout can revoke it.
type Authenticated struct {
	UserID      uint64
	SessionHash string
}

func (Anonymous) isIdentity()     {}
func (Authenticated) isIdentity() {}

// CurrentIdentity returns the identity resolved for c, Anonymous when the
// Session middleware did not run or found no session.
func CurrentIdentity(c echo.Context) Identity {
	if id, ok := c.Get(identityKey).(Identity); ok {
		return id
	}
	return Anonymous{}
}

// SetIdentity stores id on c.
func SetIdentity(c echo.Context, id Identity) { c.Set(identityKey, id) }

// userKey renders the identity for rate-limit and cache keys.
func userKey(c echo.Context) string {
	if a, ok := CurrentIdentity(c).(Authenticated); ok {
		return strconv.FormatUint(a.UserID, 10)
	}
	return "anon"
}
