package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lot-auction/internal/config"
	"github.com/iliyamo/lot-auction/internal/form"
	"github.com/iliyamo/lot-auction/internal/middleware"
	"github.com/iliyamo/lot-auction/internal/model"
	"github.com/iliyamo/lot-auction/internal/repository"
	"github.com/iliyamo/lot-auction/internal/service"
	"github.com/iliyamo/lot-auction/internal/utils"
	"github.com/iliyamo/lot-auction/internal/view"
)

// AuthHandler bundles dependencies for register, login and logout.
type AuthHandler struct {
	base
	Cfg      config.Config
	Sessions *repository.SessionRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, s *repository.SessionRepo, ev service.Publisher, log *slog.Logger) *AuthHandler {
	return &AuthHandler{base: newBase(u, ev, log), Cfg: cfg, Sessions: s}
}

const invalidCredentials = "Invalid email or password"

// RegisterForm renders the empty registration form.
func (h *AuthHandler) RegisterForm(c echo.Context) error {
	p, err := h.page(c, "Register")
	if err != nil {
		return h.fail(c, err)
	}
	p.Values = form.RegisterForm{}
	return h.render(c, http.StatusOK, "register", p)
}

// Register: validate, create the user, then store the optional photo and
// send them to the login page.  Nothing touches the disk until the row is in.
func (h *AuthHandler) Register(c echo.Context) error {
	var f form.RegisterForm
	if err := c.Bind(&f); err != nil {
		return c.String(http.StatusBadRequest, "invalid form")
	}
	res := f.Parse()
	errs := mergeErrors(res.Errors, nil)
	photo := optionalFile(c, "photo", errs)

	ctx, cancel := dbCtx(c)
	defer cancel()

	if _, bad := errs["email"]; !bad {
		taken, err := h.Users.EmailTaken(ctx, f.Email)
		if err != nil {
			return h.fail(c, err)
		}
		if taken {
			errs.Add("email", "Email already registered.")
		}
	}
	if len(errs) > 0 {
		return h.registerInvalid(c, f, errs)
	}

	reg := res.Value
	u := &model.User{
		FirstName:  reg.FirstName,
		LastName:   reg.LastName,
		MiddleName: reg.MiddleName,
		Email:      reg.Email,
		Photo:      fileName(photo),
	}
	if err := h.Users.Create(ctx, u, reg.Password, h.Cfg.BcryptCost); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return h.registerInvalid(c, f, form.Errors{"email": "Email already registered."})
		}
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return h.registerInvalid(c, f, form.Errors{"password": "Must be at most 72 bytes."})
		}
		return h.fail(c, err)
	}
	if _, err := storeFile(photo, uploadDir(h.Cfg.StaticDir, "photos")); err != nil {
		return h.fail(c, err)
	}
	h.Log.Info("user registered", "user_id", u.ID)
	view.AddFlash(c, view.FlashSuccess, "Registration successful")
	return redirect(c, "/login")
}

func (h *AuthHandler) registerInvalid(c echo.Context, f form.RegisterForm, errs form.Errors) error {
	p, err := h.page(c, "Register")
	if err != nil {
		return h.fail(c, err)
	}
	f.Password, f.ConfirmPassword = "", ""
	p.Values, p.Errors = f, errs
	return h.render(c, http.StatusUnprocessableEntity, "register", p)
}

// LoginForm renders the login form; ?next= is carried through the submit.
func (h *AuthHandler) LoginForm(c echo.Context) error {
	p, err := h.page(c, "Log in")
	if err != nil {
		return h.fail(c, err)
	}
	p.Values = form.LoginForm{}
	p.Data = c.QueryParam("next")
	return h.render(c, http.StatusOK, "login", p)
}

// Login verifies the credentials and opens a server-side session.  Unknown
// email and wrong password produce the same message.
func (h *AuthHandler) Login(c echo.Context) error {
	var f form.LoginForm
	if err := c.Bind(&f); err != nil {
		return c.String(http.StatusBadRequest, "invalid form")
	}
	res := f.Parse()
	if !res.OK() {
		return h.loginInvalid(c, f, res.Errors)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, res.Value.Email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return h.fail(c, err)
	}
	if u == nil || !utils.VerifyPassword(u.PasswordHash, res.Value.Password) {
		view.AddFlash(c, view.FlashDanger, invalidCredentials)
		return h.loginInvalid(c, f, nil)
	}

	tok, err := utils.NewSessionToken(h.Cfg.SessionSecret, u.ID, h.Cfg.SessionTTL)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Sessions.Create(ctx, u.ID, utils.HashSessionID(tok.SID), tok.Exp); err != nil {
		return h.fail(c, err)
	}
	middleware.SetSessionCookie(c, tok)
	h.Log.Info("user logged in", "user_id", u.ID)
	return redirect(c, safeNext(c.QueryParam("next")))
}

func (h *AuthHandler) loginInvalid(c echo.Context, f form.LoginForm, errs form.Errors) error {
	p, err := h.page(c, "Log in")
	if err != nil {
		return h.fail(c, err)
	}
	f.Password = ""
	p.Values, p.Errors = f, errs
	p.Data = c.QueryParam("next")
	return h.render(c, http.StatusUnprocessableEntity, "login", p)
}

// Logout revokes the current session row and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	if a, ok := middleware.CurrentIdentity(c).(middleware.Authenticated); ok {
		ctx, cancel := dbCtx(c)
		defer cancel()
		if err := h.Sessions.Revoke(ctx, a.SessionHash); err != nil {
			return h.fail(c, err)
		}
	}
	middleware.ClearSessionCookie(c)
	view.AddFlash(c, view.FlashInfo, "You have been logged out.")
	return redirect(c, "/")
}


// LogoutEverywhere revokes every session of the current user, including the
// one making the request.
func (h *AuthHandler) LogoutEverywhere(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return redirect(c, "/login")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Sessions.RevokeAllForUser(ctx, uid); err != nil {
		return h.fail(c, err)
	}
	h.Log.Info("all sessions revoked", "user_id", uid)
	middleware.ClearSessionCookie(c)
	view.AddFlash(c, view.FlashInfo, "You have been logged out on all devices.")
	return redirect(c, "/")
}
