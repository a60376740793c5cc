package httpapi

import (
	"time"

	"github.com/coder/quartz"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/nes_dashboard/backend/internal/analytics"
	"github.com/nes_dashboard/backend/internal/config"
	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/http/handlers"
	"github.com/nes_dashboard/backend/internal/http/middleware"
	"github.com/nes_dashboard/backend/internal/service"

	_ "github.com/nes_dashboard/backend/docs"
)

type Deps struct {
	Config        config.Config
	Store         *db.Store
	Engine        *analytics.Engine
	Loader        *service.Loader
	Tickets       *service.Session
	Participation *service.Session
	Gatherer      prometheus.Gatherer
	Location      *time.Location
	Clock         quartz.Clock
	Logger        zerolog.Logger
}

func Router(d Deps) *gin.Engine {
	cfg := d.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.AdminKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" || cfg.CORSAllowed == "" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     d.Store,
		Engine:    d.Engine,
		Loader:    d.Loader,
		Validator: validator.New(),
		Logger:    d.Logger,
		Location:  d.Location,
		Clock:     d.Clock,
		RowCap:    cfg.RowCap,
	}
	tickets := handlers.TicketDataset(d.Store, d.Tickets, d.Location)
	participation := handlers.ParticipationDataset(d.Store, d.Participation, d.Location)

	r.GET("/healthz", h.Healthz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	api.GET("/status", h.Status)
	{
		g := api.Group("/tickets")
		dashboardRoutes(g, h, tickets)
		g.GET("/summary", h.TicketSummary(tickets))
	}
	{
		g := api.Group("/participation")
		dashboardRoutes(g, h, participation)
		g.GET("/kpis", h.KPIs(participation))
		g.GET("/geo", h.Geo(participation))
		g.GET("/states", h.States(participation))
	}

	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/refresh", h.Refresh)
		admin.DELETE("/cache", h.ClearCache)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func dashboardRoutes(g *gin.RouterGroup, h *handlers.Handler, ds handlers.Dataset) {
	g.GET("", h.Records(ds))
	g.GET("/options", h.Options(ds))
	g.GET("/distribution/:dimension", h.Distribution(ds))
	g.GET("/timeseries", h.TimeSeries(ds))
	g.GET("/crosstab", h.Crosstab(ds))
	g.GET("/export", h.Export(ds))

	if ds.Session == nil {
		return
	}
	s := g.Group("/session")
	s.GET("", h.SessionGet(ds))
	s.POST("/toggle", h.SessionToggle(ds))
	s.POST("/values", h.SessionValues(ds))
	s.POST("/dates", h.SessionDates(ds))
	s.POST("/quick-range", h.SessionQuickRange(ds))
	s.POST("/reset", h.SessionReset(ds))
	s.POST("/apply", h.SessionApply(ds))
	s.POST("/refresh", h.SessionRefresh(ds))
}
