package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tunedesk/internal/audit"
	auditdomain "github.com/smallbiznis/tunedesk/internal/audit/domain"
	"github.com/smallbiznis/tunedesk/internal/authorization"
	"github.com/smallbiznis/tunedesk/internal/config"
	"github.com/smallbiznis/tunedesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/tunedesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tunedesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tunedesk/internal/observability/tracing"
	"github.com/smallbiznis/tunedesk/internal/period"
	perioddomain "github.com/smallbiznis/tunedesk/internal/period/domain"
	"github.com/smallbiznis/tunedesk/internal/ratelimit"
	"github.com/smallbiznis/tunedesk/internal/report"
	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"github.com/smallbiznis/tunedesk/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	storage.Module,
	ratelimit.Module,
	period.Module,
	report.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	authzSvc   authorization.Service
	periodSvc  perioddomain.Service
	reportSvc  reportdomain.Service
	insightSvc reportdomain.InsightService
	store      *storage.Store
	limiter    *ratelimit.UploadLimiter
	auditSvc   auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	AuthzSvc   authorization.Service
	PeriodSvc  perioddomain.Service
	ReportSvc  reportdomain.Service
	InsightSvc reportdomain.InsightService
	Store      *storage.Store
	Limiter    *ratelimit.UploadLimiter `optional:"true"`
	AuditSvc   auditdomain.Service      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		authzSvc:   p.AuthzSvc,
		periodSvc:  p.PeriodSvc,
		reportSvc:  p.ReportSvc,
		insightSvc: p.InsightSvc,
		store:      p.Store,
		limiter:    p.Limiter,
		auditSvc:   p.AuditSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.IdentityRequired())

	// -------- Reports --------
	reports := api.Group("/reports", s.authorize(authorization.ObjectReport, authorization.ActionView))
	reports.GET("/available", s.ListAvailableReports)
	reports.GET("/category/:category", s.ListReportsByCategory)
	reports.GET("/period/:periodId", s.ListReportsByPeriod)
	reports.GET("/:id/summary", s.GetReportSummary)
	reports.GET("/:id/data", s.GetReportData)
	reports.GET("/:id/search", s.SearchReportData)

	// -------- Insights --------
	insights := api.Group("/insights", s.authorize(authorization.ObjectInsight, authorization.ActionView))
	insights.GET("/rollup", s.GetRollup)
	insights.GET("/top-tracks", s.GetTopTracks)
	insights.GET("/trends", s.GetMonthlyTrends)

	// -------- Periods --------
	periods := api.Group("/periods", s.authorize(authorization.ObjectPeriod, authorization.ActionView))
	periods.GET("/active", s.ListActivePeriods)
	periods.GET("/kind/:kind/active", s.ListActivePeriodsByKind)
	periods.GET("/:id", s.GetPeriod)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.IdentityRequired())

	reports := admin.Group("/reports", s.authorize(authorization.ObjectReport, authorization.ActionManage))
	reports.POST("/upload", s.UploadReport)
	reports.POST("/validate", s.ValidateReportFile)
	reports.GET("", s.ListReportBatches)
	reports.GET("/status", s.GetProcessingStatus)
	reports.GET("/:id", s.GetReportBatch)
	reports.DELETE("/:id", s.DeleteReportBatch)

	periods := admin.Group("/periods", s.authorize(authorization.ObjectPeriod, authorization.ActionManage))
	periods.POST("", s.CreatePeriod)
	periods.GET("", s.ListPeriods)
	periods.GET("/stats", s.GetPeriodStats)
	periods.GET("/:id", s.GetPeriod)
	periods.PATCH("/:id", s.UpdatePeriod)
	periods.POST("/:id/toggle", s.TogglePeriod)
	periods.DELETE("/:id", s.DeactivatePeriod)

	auditLogs := admin.Group("/audit-logs", s.authorize(authorization.ObjectAudit, authorization.ActionView))
	auditLogs.GET("", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
