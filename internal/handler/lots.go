package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lot-auction/internal/config"
	"github.com/iliyamo/lot-auction/internal/form"
	"github.com/iliyamo/lot-auction/internal/model"
	"github.com/iliyamo/lot-auction/internal/queue"
	"github.com/iliyamo/lot-auction/internal/repository"
	"github.com/iliyamo/lot-auction/internal/service"
	"github.com/iliyamo/lot-auction/internal/view"
)

// LotHandler serves browsing, the lot detail page and lot management.
type LotHandler struct {
	base
	Cfg  config.Config
	Lots *repository.LotRepo
}

func NewLotHandler(cfg config.Config, u *repository.UserRepo, l *repository.LotRepo, ev service.Publisher, log *slog.Logger) *LotHandler {
	if l == nil {
		panic("nil lot repository passed to NewLotHandler")
	}
	return &LotHandler{base: newBase(u, ev, log), Cfg: cfg, Lots: l}
}

type homeData struct {
	Query string
	Lots  []model.Lot
}

type lotView struct {
	Lot   *model.Lot
	Owner *model.User
}

// Home lists every lot, or only those whose title contains ?query=
// (case-sensitive).
func (h *LotHandler) Home(c echo.Context) error {
	query := c.QueryParam("query")

	ctx, cancel := dbCtx(c)
	defer cancel()

	var (
		lots []model.Lot
		err  error
	)
	if query == "" {
		lots, err = h.Lots.ListAll(ctx)
	} else {
		lots, err = h.Lots.SearchByTitle(ctx, query)
	}
	if err != nil {
		return h.fail(c, err)
	}

	p, err := h.page(c, "")
	if err != nil {
		return h.fail(c, err)
	}
	p.Data = homeData{Query: query, Lots: lots}
	return h.render(c, http.StatusOK, "home", p)
}

// ViewLot renders a lot with its seller's name.
func (h *LotHandler) ViewLot(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.String(http.StatusNotFound, "Lot not found")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	lot, err := h.Lots.GetByID(ctx, id)
	if errors.Is(err, repository.ErrLotNotFound) {
		return c.String(http.StatusNotFound, "Lot not found")
	}
	if err != nil {
		return h.fail(c, err)
	}
	owner, err := h.Users.GetByID(ctx, lot.UserID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return h.fail(c, err)
	}

	p, err := h.page(c, lot.Title)
	if err != nil {
		return h.fail(c, err)
	}
	p.Data = lotView{Lot: lot, Owner: owner}
	return h.render(c, http.StatusOK, "view_lot", p)
}

// CreateLotForm renders the empty lot form.
func (h *LotHandler) CreateLotForm(c echo.Context) error {
	p, err := h.page(c, "Create lot")
	if err != nil {
		return h.fail(c, err)
	}
	p.Values = form.LotForm{}
	return h.render(c, http.StatusOK, "create_lot", p)
}

// CreateLot persists a lot owned by the current user and then stores its
// optional image.
func (h *LotHandler) CreateLot(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return redirect(c, "/login")
	}
	var f form.LotForm
	if err := c.Bind(&f); err != nil {
		return c.String(http.StatusBadRequest, "invalid form")
	}
	res := f.Parse()
	errs := mergeErrors(res.Errors, nil)
	image := optionalFile(c, "image", errs)
	if len(errs) > 0 {
		p, err := h.page(c, "Create lot")
		if err != nil {
			return h.fail(c, err)
		}
		p.Values, p.Errors = f, errs
		return h.render(c, http.StatusUnprocessableEntity, "create_lot", p)
	}

	v := res.Value
	lot := &model.Lot{
		Title:       v.Title,
		Description: v.Description,
		Price:       v.Price,
		Image:       fileName(image),
		Category:    v.Category,
		UserID:      uid,
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Lots.Create(ctx, lot); err != nil {
		return h.fail(c, err)
	}
	if _, err := storeFile(image, uploadDir(h.Cfg.StaticDir, "images")); err != nil {
		return h.fail(c, err)
	}

	ev := queue.NewLotEvent(queue.LotCreated, lot.ID, uid, lot.Title)
	ev.Price, ev.Category = lot.Price, string(lot.Category)
	h.emit(ev)

	view.AddFlash(c, view.FlashSuccess, "Lot created")
	return redirect(c, "/profile")
}

// DeleteLot removes a lot owned by the current user.  Every outcome ends
// on the profile page with a flash message.
func (h *LotHandler) DeleteLot(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return redirect(c, "/login")
	}
	id, ok := parseID(c)
	if !ok {
		view.AddFlash(c, view.FlashDanger, "Lot not found")
		return redirect(c, "/profile")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	lot, err := h.Lots.DeleteByIDAndOwner(ctx, id, uid)
	switch {
	case errors.Is(err, repository.ErrLotNotFound):
		view.AddFlash(c, view.FlashDanger, "Lot not found")
	case errors.Is(err, repository.ErrForbidden):
		h.Log.Warn("delete of foreign lot refused", "lot_id", id, "user_id", uid)
		view.AddFlash(c, view.FlashDanger, "You can only delete your own lots")
	case err != nil:
		return h.fail(c, err)
	default:
		h.emit(queue.NewLotEvent(queue.LotDeleted, lot.ID, uid, lot.Title))
		view.AddFlash(c, view.FlashSuccess, "Lot deleted")
	}
	return redirect(c, "/profile")
}
