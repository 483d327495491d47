package api

import (
	"keygate/internal/api/handlers"
	"keygate/internal/api/middleware"
	"keygate/internal/config"
	"keygate/internal/database"
	"keygate/internal/gate"
	"keygate/internal/realtime"
	"keygate/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// Dependencies is everything the HTTP layer needs. Cleanup and Sessions may be nil.
type Dependencies struct {
	Config    *config.Config
	DB        *gorm.DB
	Gate      *gate.Service
	Repos     gate.Repositories
	Collector *realtime.Collector
	Cleanup   *database.CleanupService
	Sessions  *session.Store
	VisitPool *ants.Pool
	Logger    *pterm.Logger
}

// NewRouter wires every route onto a fresh gin engine
func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	logger := deps.Logger

	if cfg.Server.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger), middleware.RequestLogger(logger))
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Warn("Invalid TRUSTED_PROXIES, trusting none", logger.Args("error", err))
		_ = router.SetTrustedProxies(nil)
	}

	health := handlers.NewHealthHandler(deps.DB)
	router.GET("/healthz", health.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	gateHandler := handlers.NewGateHandler(deps.Gate, deps.VisitPool, logger)
	public := router.Group("/api", middleware.Session(cfg.Session.CookieName, cfg.Session.TTL))
	{
		public.POST("/gate/check", gateHandler.Check)
		public.POST("/gate/visit", gateHandler.Visit)
		public.POST("/checkout/customer-ban", gateHandler.CustomerBan)
	}

	logs := handlers.NewLogsHandler(deps.Repos.Visitors, deps.Repos.Blocked, logger)
	bans := handlers.NewBansHandler(deps.Repos.Bans, logger)
	settings := handlers.NewSettingsHandler(deps.Repos.Settings, logger)
	system := handlers.NewSystemHandler(deps.Repos.Visitors, deps.Repos.Blocked, deps.Cleanup, deps.Sessions, logger, cfg.Database.Path)
	summary := handlers.NewSummaryHandler(deps.Repos.Visitors, deps.Repos.Blocked, logger)
	live := handlers.NewRealtimeHandler(deps.Collector, logger)

	admin := router.Group("/api/admin", middleware.AdminAuth(cfg.Admin.User, cfg.Admin.Password, logger))
	{
		admin.GET("/visitors", logs.ListVisitors)
		admin.DELETE("/visitors", logs.DeleteVisitors)
		admin.GET("/blocked", logs.ListBlocked)
		admin.DELETE("/blocked", logs.DeleteBlocked)

		admin.GET("/bans/countries", bans.ListCountries)
		admin.POST("/bans/countries", bans.AddCountry)
		admin.DELETE("/bans/countries/:id", bans.RemoveCountry)
		admin.GET("/bans/ips", bans.ListIPs)
		admin.POST("/bans/ips", bans.AddIP)
		admin.DELETE("/bans/ips/:id", bans.RemoveIP)
		admin.GET("/bans/customers", bans.ListCustomers)
		admin.POST("/bans/customers", bans.AddCustomer)
		admin.DELETE("/bans/customers/:id", bans.RemoveCustomer)

		admin.GET("/settings", settings.GetSettings)
		admin.PUT("/settings", settings.UpdateSettings)

		admin.GET("/system", system.GetSystemStats)
		admin.POST("/cleanup", system.RunCleanup)
		admin.GET("/summary", summary.GetSummary)
		admin.GET("/stream", live.StreamDecisions)
		admin.GET("/stream/current", live.GetCurrent)
	}

	return router
}
