package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lot-auction/internal/queue"
	"github.com/iliyamo/lot-auction/internal/repository"
	"github.com/iliyamo/lot-auction/internal/service"
	"github.com/iliyamo/lot-auction/internal/view"
)

// SavedHandler manages a user's bookmarked lots.
type SavedHandler struct {
	base
	Lots  *repository.LotRepo
	Saved *repository.SavedLotRepo
}

func NewSavedHandler(u *repository.UserRepo, l *repository.LotRepo, s *repository.SavedLotRepo, ev service.Publisher, log *slog.Logger) *SavedHandler {
	if l == nil || s == nil {
		panic("nil repository passed to NewSavedHandler")
	}
	return &SavedHandler{base: newBase(u, ev, log), Lots: l, Saved: s}
}

// SaveLot bookmarks a lot once; saving it again is a no-op.
func (h *SavedHandler) SaveLot(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return redirect(c, "/login")
	}
	id, ok := parseID(c)
	if !ok {
		view.AddFlash(c, view.FlashDanger, "Lot not found")
		return redirect(c, "/")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	lot, err := h.Lots.GetByID(ctx, id)
	if errors.Is(err, repository.ErrLotNotFound) {
		view.AddFlash(c, view.FlashDanger, "Lot not found")
		return redirect(c, "/")
	}
	if err != nil {
		return h.fail(c, err)
	}

	created, err := h.Saved.Save(ctx, uid, lot.ID)
	if err != nil {
		return h.fail(c, err)
	}
	if created {
		h.emit(queue.NewLotEvent(queue.LotSaved, lot.ID, uid, lot.Title))
		view.AddFlash(c, view.FlashSuccess, fmt.Sprintf(`Lot "%s" saved!`, lot.Title))
	} else {
		view.AddFlash(c, view.FlashInfo, fmt.Sprintf(`Lot "%s" is already saved.`, lot.Title))
	}
	return redirect(c, "/")
}

// UnsaveLot removes a bookmark if present.
func (h *SavedHandler) UnsaveLot(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return redirect(c, "/login")
	}
	id, ok := parseID(c)
	if !ok {
		view.AddFlash(c, view.FlashDanger, "Lot not found")
		return redirect(c, "/saved_lots")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	removed, err := h.Saved.Remove(ctx, uid, id)
	if err != nil {
		return h.fail(c, err)
	}
	if removed {
		view.AddFlash(c, view.FlashSuccess, "Lot removed from saved lots")
	} else {
		view.AddFlash(c, view.FlashInfo, "Lot was not in your saved lots")
	}
	return redirect(c, "/saved_lots")
}

// SavedLots lists the current user's bookmarks in the order they were saved.
func (h *SavedHandler) SavedLots(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return redirect(c, "/login")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	saved, err := h.Saved.ListByUser(ctx, uid)
	if err != nil {
		return h.fail(c, err)
	}
	p, err := h.page(c, "Saved lots")
	if err != nil {
		return h.fail(c, err)
	}
	p.Data = saved
	return h.render(c, http.StatusOK, "saved_lots", p)
}
