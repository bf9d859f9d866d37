package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/wenwu/saas-platform/esim-storefront/internal/catalog"
	"github.com/wenwu/saas-platform/esim-storefront/internal/config"
	"github.com/wenwu/saas-platform/esim-storefront/internal/metrics"
	"github.com/wenwu/saas-platform/esim-storefront/internal/repository"
	"github.com/wenwu/saas-platform/esim-storefront/internal/service"
	"github.com/wenwu/saas-platform/esim-storefront/internal/store"
)

type Server struct {
	router         *gin.Engine
	httpServer     *http.Server
	handler        *Handler
	eventsHandler  *EventsHandler
	kvAdminHandler *KVAdminHandler
	cfg            *config.Config
	metrics        *metrics.Metrics
	log            zerolog.Logger

	// per client: 60 requests a minute on the user API
	userRateLimiter *RateLimiter
	// per client: 20 checkouts an hour
	createRateLimiter *RateLimiter
}

func NewServer(
	cfg *config.Config,
	log zerolog.Logger,
	m *metrics.Metrics,
	kv repository.KVStore,
	st *store.Store,
	cat *catalog.Catalog,
	orderService *service.OrderService,
	profileService *service.ProfileService,
	deviceService *service.DeviceService,
) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log, m))

	s := &Server{
		router:            router,
		handler:           NewHandler(cat, st, orderService, profileService, deviceService, log),
		eventsHandler:     NewEventsHandler(st, log),
		kvAdminHandler:    NewKVAdminHandler(kv),
		cfg:               cfg,
		metrics:           m,
		log:               log,
		userRateLimiter:   NewRateLimiter(60, time.Minute),
		createRateLimiter: NewRateLimiter(20, time.Hour),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "storefront-service",
		})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// Public API - catalog, no authentication
	public := s.router.Group("/api/v1/public")
	{
		public.GET("/countries", s.handler.ListCountries)
		public.GET("/countries/:id", s.handler.GetCountry)
		public.GET("/countries/:id/plans", s.handler.GetCountryPlans)
		public.GET("/regions", s.handler.GetRegions)
		public.GET("/plans/:id", s.handler.GetPlan)
		public.GET("/device/compatibility", s.handler.CheckDevice)
	}

	// User API - the device owner's profile and orders
	user := s.router.Group("/api/v1")
	user.Use(RateLimitMiddleware(s.userRateLimiter))
	{
		user.GET("/profile", s.handler.GetProfile)
		user.POST("/auth/login", s.handler.Login)
		user.POST("/auth/register", s.handler.Register)
		user.POST("/auth/logout", JWTAuthMiddleware(s.cfg.JWT.SecretKey), s.handler.Logout)

		user.GET("/orders", s.handler.ListOrders)
		user.GET("/orders/archive", s.handler.ListArchive)
		user.GET("/orders/:id", s.handler.GetOrder)
		// checkout has a stricter limit
		user.POST("/orders", RateLimitMiddleware(s.createRateLimiter), s.handler.CreateOrder)
		user.POST("/orders/:id/install", s.handler.CompleteInstall)
		user.POST("/orders/:id/cancel", s.handler.CancelOrder)
		user.GET("/orders/:id/share", s.handler.ShareOrder)

		user.GET("/events", s.eventsHandler.Stream)
	}

	// Internal API - operators, requires Internal Secret
	internal := s.router.Group("/api/internal")
	internal.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		internal.POST("/store/resync", s.handler.Resync)

		kvAdmin := internal.Group("/admin/kv")
		{
			kvAdmin.GET("/keys", s.kvAdminHandler.ListKeys)
			kvAdmin.GET("/keys/:key", s.kvAdminHandler.GetKey)
		}
	}
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until Shutdown is called
func (s *Server) Run() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("[Server] listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
