package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lot-auction/internal/form"
	"github.com/iliyamo/lot-auction/internal/middleware"
	"github.com/iliyamo/lot-auction/internal/queue"
	"github.com/iliyamo/lot-auction/internal/repository"
	"github.com/iliyamo/lot-auction/internal/service"
	"github.com/iliyamo/lot-auction/internal/utils"
	"github.com/iliyamo/lot-auction/internal/view"
)

const dbTimeout = 5 * time.Second

// base carries what every page handler needs: the user lookup for the
// navigation bar, the event publisher and a logger.
type base struct {
	Users  *repository.UserRepo
	Events service.Publisher
	Log    *slog.Logger
}

func newBase(users *repository.UserRepo, events service.Publisher, log *slog.Logger) base {
	if users == nil {
		panic("nil user repository passed to handler")
	}
	if events == nil {
		events = service.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return base{Users: users, Events: events, Log: log}
}

func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// currentUserID returns the id of the logged-in user, if any.
func currentUserID(c echo.Context) (uint64, bool) {
	a, ok := middleware.CurrentIdentity(c).(middleware.Authenticated)
	return a.UserID, ok
}

// parseID reads the :id path parameter.
func parseID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// page builds the template data for c, loading the current user for the
// navigation bar.  A session whose user row is gone renders as anonymous.
func (b base) page(c echo.Context, title string) (*view.Page, error) {
	p := &view.Page{Title: title}
	uid, ok := currentUserID(c)
	if !ok {
		return p, nil
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := b.Users.GetByID(ctx, uid)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return p, nil
	case err != nil:
		return nil, err
	}
	p.User = u
	return p, nil
}

func (b base) render(c echo.Context, status int, name string, p *view.Page) error {
	return c.Render(status, name, p)
}

// fail logs an unexpected error and answers with a bare 500.
func (b base) fail(c echo.Context, err error) error {
	b.Log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.String(http.StatusInternalServerError, "internal error")
}

// emit publishes ev in the background; a broker failure is logged only.
func (b base) emit(ev queue.LotEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()
		if err := b.Events.Publish(ctx, ev); err != nil {
			b.Log.Warn("publish event failed", "type", ev.Type, "lot_id", ev.LotID, "err", err)
		}
	}()
}

func redirect(c echo.Context, to string) error {
	return c.Redirect(http.StatusSeeOther, to)
}

// optionalFile returns the uploaded file in field, or nil when none was sent.
// A file with an unusable name is reported in errs.
func optionalFile(c echo.Context, field string, errs form.Errors) *multipart.FileHeader {
	fh, err := c.FormFile(field)
	if err != nil || fh.Filename == "" {
		return nil
	}
	if _, err := utils.UploadName(fh.Filename); err != nil {
		errs.Add(field, "Invalid file name.")
		return nil
	}
	return fh
}

// storeFile saves fh under dir and returns its stored name; nil stores nothing.
func storeFile(fh *multipart.FileHeader, dir string) (string, error) {
	if fh == nil {
		return "", nil
	}
	return utils.SaveUpload(fh, dir)
}

// fileName is the name fh will be stored under, empty for no file.
func fileName(fh *multipart.FileHeader) string {
	if fh == nil {
		return ""
	}
	name, _ := utils.UploadName(fh.Filename)
	return name
}

// safeNext accepts only same-site absolute paths as a post-login target.
// Browsers drop tabs and newlines from Location, so any control or space
// character is refused outright.
func safeNext(next string) string {
	if next == "" || strings.IndexFunc(next, func(r rune) bool {
		return unicode.IsControl(r) || unicode.IsSpace(r)
	}) >= 0 {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" ||
		!strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func uploadDir(staticDir, kind string) string { return filepath.Join(staticDir, kind) }

// mergeErrors copies extra into dst without overwriting existing messages.
func mergeErrors(dst, extra form.Errors) form.Errors {
	if dst == nil {
		dst = form.Errors{}
	}
	for k, v := range extra {
		dst.Add(k, v)
	}
	return dst
}
