package view

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

// FlashCategory selects the alert style of a flash message.
type FlashCategory string

const (
	FlashInfo    FlashCategory = "info"
	FlashSuccess FlashCategory = "success"
	FlashDanger  FlashCategory = "danger"
)

// Flash is a one-time notice shown on the next rendered page.
type Flash struct {
	Category FlashCategory `json:"c"`
	Message  string        `json:"m"`
}

const (
	flashCookie = "flash"
	pendingKey  = "flash.pending"
	consumedKey = "flash.consumed"
)

// AddFlash queues a message.  It is shown by the next render, which is either
// later in this request or on the page the browser is redirected to.
func AddFlash(c echo.Context, cat FlashCategory, msg string) {
	pending, _ := c.Get(pendingKey).([]Flash)
	pending = append(pending, Flash{Category: cat, Message: msg})
	c.Set(pendingKey, pending)

	carry := pending
	if consumed, _ := c.Get(consumedKey).(bool); !consumed {
		carry = append(incoming(c), pending...)
	}
	writeFlashCookie(c, carry)
}

// PopFlashes returns every undisplayed message and clears them.
func PopFlashes(c echo.Context) []Flash {
	var out []Flash
	if consumed, _ := c.Get(consumedKey).(bool); !consumed {
		out = append(out, incoming(c)...)
		c.Set(consumedKey, true)
	}
	if pending, _ := c.Get(pendingKey).([]Flash); len(pending) > 0 {
		out = append(out, pending...)
		c.Set(pendingKey, []Flash(nil))
	}
	if _, err := c.Cookie(flashCookie); err == nil || len(out) > 0 {
		writeFlashCookie(c, nil)
	}
	return out
}

// HasFlash reports whether a message is waiting to be shown.
func HasFlash(c echo.Context) bool {
	if pending, _ := c.Get(pendingKey).([]Flash); len(pending) > 0 {
		return true
	}
	ck, err := c.Cookie(flashCookie)
	return err == nil && ck.Value != ""
}

func incoming(c echo.Context) []Flash {
	ck, err := c.Cookie(flashCookie)
	if err != nil || ck.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		return nil
	}
	var fs []Flash
	if err := json.Unmarshal(raw, &fs); err != nil {
		return nil
	}
	return fs
}

func writeFlashCookie(c echo.Context, fs []Flash) {
	ck := &http.Cookie{Name: flashCookie, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}
	if len(fs) == 0 {
		ck.MaxAge = -1
	} else {
		raw, _ := json.Marshal(fs)
		ck.Value = base64.RawURLEncoding.EncodeToString(raw)
	}
	c.SetCookie(ck)
}
