package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lot-auction/internal/model"
	"github.com/iliyamo/lot-auction/internal/repository"
	"github.com/iliyamo/lot-auction/internal/service"
)

// PageHandler serves the profile and the static rules page.
type PageHandler struct {
	base
	Lots  *repository.LotRepo
	Saved *repository.SavedLotRepo
}

func NewPageHandler(u *repository.UserRepo, l *repository.LotRepo, s *repository.SavedLotRepo, ev service.Publisher, log *slog.Logger) *PageHandler {
	return &PageHandler{base: newBase(u, ev, log), Lots: l, Saved: s}
}

type profileData struct {
	Lots       []model.Lot
	SavedCount int
}

// Profile shows the current user, the lots they listed and how many lots
// they bookmarked.
func (h *PageHandler) Profile(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return redirect(c, "/login")
	}
	p, err := h.page(c, "Profile")
	if err != nil {
		return h.fail(c, err)
	}
	if p.User == nil {
		return redirect(c, "/login")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	lots, err := h.Lots.ListByUser(ctx, uid)
	if err != nil {
		return h.fail(c, err)
	}
	n, err := h.Saved.CountByUser(ctx, uid)
	if err != nil {
		return h.fail(c, err)
	}
	p.Data = profileData{Lots: lots, SavedCount: n}
	return h.render(c, http.StatusOK, "profile", p)
}

func (h *PageHandler) Rules(c echo.Context) error {
	p, err := h.page(c, "Rules")
	if err != nil {
		return h.fail(c, err)
	}
	return h.render(c, http.StatusOK, "rules", p)
}
