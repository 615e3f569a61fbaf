// Package router builds the echo instance: global middleware, the renderer
// and every route of the site.
package router

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/lot-auction/internal/config"
	"github.com/iliyamo/lot-auction/internal/handler"
	"github.com/iliyamo/lot-auction/internal/middleware"
	"github.com/iliyamo/lot-auction/internal/repository"
	"github.com/iliyamo/lot-auction/internal/service"
	"github.com/iliyamo/lot-auction/internal/view"
)

// Deps is everything main constructs once and hands to the router.  Redis
// may be nil, which turns rate limiting and caching into pass-throughs.
type Deps struct {
	Cfg       config.Config
	DB        *sql.DB
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Events    service.Publisher
	Log       *slog.Logger
}

// New returns a fully wired echo instance.
func New(d Deps) (*echo.Echo, error) {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Events == nil {
		d.Events = service.NopPublisher{}
	}
	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	users := repository.NewUserRepo(d.DB)
	sessions := repository.NewSessionRepo(d.DB)
	lots := repository.NewLotRepo(d.DB)
	saved := repository.NewSavedLotRepo(d.DB)

	e.Use(requestLogger(d.Log))
	e.Use(echomw.Recover())
	if d.Cfg.MaxUploadBytes > 0 {
		e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", d.Cfg.MaxUploadBytes)))
	}
	e.Use(echomw.CSRFWithConfig(echomw.CSRFConfig{
		Skipper:        skipAssets,
		TokenLookup:    "form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	}))
	e.Use(middleware.Session(d.Cfg.SessionSecret, sessions))

	RegisterRoutes(e, handler.NewHealthHandler(d.DB), d.Cfg.StaticDir)
	RegisterAuth(e,
		handler.NewAuthHandler(d.Cfg, users, sessions, d.Events, d.Log),
		middleware.NewTokenBucket(d.RateLimit, d.Redis))
	RegisterPublic(e,
		handler.NewLotHandler(d.Cfg, users, lots, d.Events, d.Log),
		handler.NewPageHandler(users, lots, saved, d.Events, d.Log),
		middleware.NewRedisCache(d.Cache, d.Redis))
	RegisterSaved(e, handler.NewSavedHandler(users, lots, saved, d.Events, d.Log))
	return e, nil
}

// RegisterRoutes registers the health check and the upload directory.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler, staticDir string) {
	e.GET("/healthz", h.Health)
	e.Static("/static", staticDir)
}

// RegisterAuth registers registration, login and logout.  Credential
// submissions go through the rate limiter.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter echo.MiddlewareFunc) {
	e.GET("/register", a.RegisterForm)
	e.POST("/register", a.Register, limiter)
	e.GET("/login", a.LoginForm)
	e.POST("/login", a.Login, limiter)
	e.GET("/logout", a.Logout, middleware.RequireLogin())
	e.POST("/logout_all", a.LogoutEverywhere, middleware.RequireLogin())
}

// RegisterPublic registers lot browsing and lot management.  Browsing is
// open to everyone; creating, deleting and the profile require a session.
func RegisterPublic(e *echo.Echo, l *handler.LotHandler, p *handler.PageHandler, cache echo.MiddlewareFunc) {
	auth := middleware.RequireLogin()

	e.GET("/", l.Home)
	e.GET("/lot/:id", l.ViewLot)
	e.GET("/rules", p.Rules, cache)

	e.GET("/profile", p.Profile, auth)
	e.GET("/create_lot", l.CreateLotForm, auth)
	e.POST("/create_lot", l.CreateLot, auth)
	e.POST("/delete_lot/:id", l.DeleteLot, auth)
}

// RegisterSaved registers the bookmark endpoints; all require a session.
func RegisterSaved(e *echo.Echo, s *handler.SavedHandler) {
	auth := middleware.RequireLogin()
	e.POST("/save_lot/:id", s.SaveLot, auth)
	e.POST("/unsave_lot/:id", s.UnsaveLot, auth)
	e.GET("/saved_lots", s.SavedLots, auth)
}

func skipAssets(c echo.Context) bool {
	p := c.Request().URL.Path
	return strings.HasPrefix(p, "/static/") || p == "/healthz"
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				level = slog.LevelError
				attrs = append(attrs, slog.String("err", v.Error.Error()))
			}
			log.LogAttrs(context.Background(), level, "request", attrs...)
			return nil
		},
	})
}
