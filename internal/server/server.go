package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/oneauction/internal/config"
	"github.com/shinyyama/oneauction/internal/handler"
	"github.com/shinyyama/oneauction/internal/lockout"
	"github.com/shinyyama/oneauction/internal/mailer"
	appmw "github.com/shinyyama/oneauction/internal/middleware"
	"github.com/shinyyama/oneauction/internal/repository"
	"github.com/shinyyama/oneauction/internal/service"
	"github.com/shinyyama/oneauction/internal/storage"
	"gorm.io/gorm"
)

// Deps are the collaborators built outside the server because they need I/O to construct.
type Deps struct {
	Store    storage.Store
	Mailer   mailer.Mailer
	Verifier appmw.TokenVerifier
}

type dbSetter interface {
	SetDB(*gorm.DB)
}

type Server struct {
	e        *echo.Echo
	repos    []dbSetter
	sessions service.SessionService
	lockout  *lockout.Tracker
	dbReady  atomic.Bool
}

func New(cfg *config.Config, deps Deps, sha, buildTime string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(appmw.RequestContext)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc:  allowOrigin(cfg.CORSOrigins),
	}))

	// repositories start without a connection; SetDB injects it once the DB is up
	userRepo := repository.NewUserRepository(nil)
	sessionRepo := repository.NewSessionRepository(nil)
	itemRepo := repository.NewItemRepository(nil)
	bidRepo := repository.NewBidRepository(nil)
	orderRepo := repository.NewOrderRepository(nil)
	feedbackRepo := repository.NewFeedbackRepository(nil)
	addressRepo := repository.NewAddressRepository(nil)
	cardRepo := repository.NewPaymentMethodRepository(nil)
	notificationRepo := repository.NewNotificationRepository(nil)

	tracker := lockout.New()
	tracker.Limit("ip:", lockout.AddressMaxFailures)
	notifySvc := service.NewNotificationService(notificationRepo)
	sessionSvc := service.NewSessionService(sessionRepo, cfg.SessionTTL)
	accountSvc := service.NewAccountService(userRepo, service.NewTokenManager(cfg.JWTSecret), deps.Mailer, tracker, service.AccountConfig{
		Debug:    cfg.Debug,
		AppURL:   cfg.AppURL,
		TokenTTL: cfg.TokenTTL,
	})
	itemSvc := service.NewItemService(itemRepo, bidRepo, orderRepo, feedbackRepo, deps.Store, notifySvc)
	bidSvc := service.NewBidService(bidRepo, itemRepo, notifySvc)
	cartSvc := service.NewCartService(sessionRepo, itemRepo, orderRepo, notifySvc)
	orderSvc := service.NewOrderService(orderRepo, bidRepo, feedbackRepo, notifySvc)
	profileSvc := service.NewProfileService(addressRepo, cardRepo)
	adminSvc := service.NewAdminService(userRepo, itemRepo, bidRepo, orderRepo)

	authMw := appmw.NewAuthMiddleware(accountSvc, sessionSvc, cfg.SessionTTL, strings.HasPrefix(cfg.AppURL, "https://"))
	if deps.Verifier != nil {
		authMw.UseVerifier(deps.Verifier)
	}

	userHandler := handler.NewUserHandler(accountSvc, sessionSvc, authMw)
	itemHandler := handler.NewItemHandler(itemSvc)
	bidHandler := handler.NewBidHandler(bidSvc)
	cartHandler := handler.NewCartHandler(cartSvc, authMw)
	orderHandler := handler.NewOrderHandler(orderSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	notificationHandler := handler.NewNotificationHandler(notifySvc)
	adminHandler := handler.NewAdminHandler(adminSvc)

	s := &Server{
		e: e,
		repos: []dbSetter{
			userRepo, sessionRepo, itemRepo, bidRepo, orderRepo,
			feedbackRepo, addressRepo, cardRepo, notificationRepo,
		},
		sessions: sessionSvc,
		lockout:  tracker,
	}

	e.GET("/healthz", func(c echo.Context) error {
		db := "pending"
		if s.dbReady.Load() {
			db = "ready"
		}
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"db":         db,
			"git_sha":    sha,
			"build_time": buildTime,
		})
	})
	if deps.Store != nil {
		if _, local := deps.Store.(*storage.LocalStore); local {
			e.Static(cfg.MediaURL, cfg.MediaDir)
		}
	}

	app := e.Group("", authMw.Identify)
	authed := authMw.RequireAuth
	limited := middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      1,
		Burst:     10,
		ExpiresIn: 3 * time.Minute,
	}))

	app.GET("/", itemHandler.Index)
	app.POST("/register", userHandler.Register, limited)
	app.POST("/login", userHandler.Login, limited)
	app.GET("/activate-account/:uid/:token", userHandler.Activate)
	app.POST("/logout", userHandler.Logout)

	app.POST("/new-listing", itemHandler.Create, authed)
	app.GET("/user-listings", itemHandler.ListMine, authed)
	app.PUT("/edit-listing/:id", itemHandler.Update, authed)
	app.DELETE("/edit-listing/:id", itemHandler.Delete, authed)
	app.DELETE("/edit-listing/:id/images/:imageId", itemHandler.DeleteImage, authed)
	app.GET("/item-view/:id", itemHandler.Get)
	app.POST("/item-view/:id/bids", bidHandler.Place, authed)
	app.GET("/item-bids/:id", bidHandler.ListForItem, authed)
	app.GET("/items-from-user/:id", itemHandler.ListBySeller)
	app.GET("/closed-auctions", itemHandler.ClosedAuctions)
	app.GET("/user-bids", bidHandler.ListMine, authed)

	app.GET("/cart", cartHandler.View)
	app.POST("/cart/checkout", cartHandler.Checkout, authed)
	app.POST("/cart/:id", cartHandler.Add, authed)
	app.PATCH("/cart/:id", cartHandler.Update, authed)
	app.DELETE("/cart/:id", cartHandler.Remove, authed)

	app.GET("/user-orders", orderHandler.ListPurchases, authed)
	app.GET("/user-sales", orderHandler.ListSales, authed)
	app.GET("/order-detail/:id", orderHandler.Detail, authed)
	app.POST("/order-detail/:id/status", orderHandler.AddStatus, authed)
	app.POST("/order-detail/:id/notes", orderHandler.AddNote, authed)
	app.POST("/order-detail/:id/reviews", orderHandler.AddReview, authed)

	profile := app.Group("/profile", authed)
	profile.GET("/addresses", profileHandler.Addresses)
	profile.POST("/addresses", profileHandler.AddAddress)
	profile.PUT("/addresses/:id", profileHandler.UpdateAddress)
	profile.GET("/payment-methods", profileHandler.PaymentMethods)
	profile.POST("/payment-methods", profileHandler.AddPaymentMethod)
	profile.PUT("/payment-methods/:id", profileHandler.UpdatePaymentMethod)
	profile.GET("/settings", userHandler.Settings)
	profile.PUT("/settings", userHandler.UpdateSettings)
	profile.GET("/notifications", notificationHandler.List)
	profile.POST("/notifications/read", notificationHandler.MarkRead)

	api := app.Group("/api/v1", authed)
	api.DELETE("/address", profileHandler.DeleteAddress)
	api.DELETE("/payment-method", profileHandler.DeletePaymentMethod)

	admin := app.Group("/admin", authMw.RequireStaff)
	admin.GET("/stats", adminHandler.Stats)
	admin.GET("/users", adminHandler.Users)

	return s
}

func allowOrigin(configured []string) func(string) (bool, error) {
	return func(origin string) (bool, error) {
		low := strings.ToLower(origin)
		if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
			strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
			return true, nil
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false, nil
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false, nil
		}
		for _, o := range configured {
			if strings.EqualFold(strings.TrimRight(strings.TrimSpace(o), "/"), u.Scheme+"://"+u.Host) {
				return true, nil
			}
		}
		return false, nil
	}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) SetDB(db *gorm.DB) {
	for _, r := range s.repos {
		r.SetDB(db)
	}
	s.dbReady.Store(db != nil)
}

// Sweep drops expired sessions and stale lockout entries.
func (s *Server) Sweep(ctx context.Context) error {
	s.lockout.Sweep()
	if !s.dbReady.Load() {
		return nil
	}
	_, err := s.sessions.Sweep(ctx)
	return err
}
