package middleware

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lot-auction/internal/utils"
	"github.com/iliyamo/lot-auction/internal/view"
)

// SessionCookie is the name of the cookie carrying the signed session JWT.
const SessionCookie = "session"

// SessionValidator resolves a stored session hash to its user.
type SessionValidator interface {
	Validate(ctx context.Context, tokenHash string) (uint64, error)
}

// Session resolves the session cookie into an Identity for every request.
// A cookie that fails signature, expiry or server-side checks is cleared and
// the request continues anonymously.
func Session(secret string, sessions SessionValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			SetIdentity(c, Anonymous{})
			ck, err := c.Cookie(SessionCookie)
			if err != nil || ck.Value == "" {
				return next(c)
			}
			uid, sid, err := utils.ParseSessionToken(secret, ck.Value)
			if err != nil {
				ClearSessionCookie(c)
				return next(c)
			}
			hash := utils.HashSessionID(sid)
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			stored, err := sessions.Validate(ctx, hash)
			cancel()
			if err != nil || stored != uid {
				ClearSessionCookie(c)
				return next(c)
			}
			SetIdentity(c, Authenticated{UserID: uid, SessionHash: hash})
			return next(c)
		}
	}
}

// SetSessionCookie writes the session cookie for tok.
func SetSessionCookie(c echo.Context, tok utils.SessionToken) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.Exp,
		HttpOnly: true,
		Secure:   c.IsTLS(),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie in the browser.
func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireLogin redirects anonymous visitors to the login page, remembering
// the page they asked for in ?next=.
func RequireLogin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := CurrentIdentity(c).(Authenticated); ok {
				return next(c)
			}
			view.AddFlash(c, view.FlashInfo, "Please log in to access this page.")
			target := "/login"
			if r := c.Request(); r.Method == http.MethodGet {
				target += "?next=" + url.QueryEscape(r.URL.RequestURI())
			}
			return c.Redirect(http.StatusSeeOther, target)
		}
	}
}
