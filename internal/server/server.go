package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/storefront/internal/access"
	"github.com/smallbiznis/storefront/internal/account"
	accountdomain "github.com/smallbiznis/storefront/internal/account/domain"
	"github.com/smallbiznis/storefront/internal/audit"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/auth"
	authdomain "github.com/smallbiznis/storefront/internal/auth/domain"
	"github.com/smallbiznis/storefront/internal/auth/session"
	"github.com/smallbiznis/storefront/internal/catalog"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/checkout"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/download"
	downloaddomain "github.com/smallbiznis/storefront/internal/download/domain"
	"github.com/smallbiznis/storefront/internal/entitlement"
	"github.com/smallbiznis/storefront/internal/history"
	historydomain "github.com/smallbiznis/storefront/internal/history/domain"
	"github.com/smallbiznis/storefront/internal/observability"
	obsmiddleware "github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	obstracing "github.com/smallbiznis/storefront/internal/observability/tracing"
	"github.com/smallbiznis/storefront/internal/payment"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/smallbiznis/storefront/internal/providers/email"
	"github.com/smallbiznis/storefront/internal/providers/pdf"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	email.Module,
	pdf.Module,
	ratelimit.Module,
	account.Module,
	audit.Module,
	auth.Module,
	catalog.Module,
	entitlement.Module,
	history.Module,
	access.Module,
	payment.Module,
	checkout.Module,
	download.Module,
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
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	sessions    *session.Manager
	authsvc     authdomain.Service
	accountsvc  accountdomain.Service
	catalogsvc  catalogdomain.Service
	checkoutsvc checkoutdomain.Service
	paymentsvc  paymentdomain.Service
	access      access.Evaluator
	historysvc  historydomain.Service
	downloadsvc downloaddomain.Service
	auditsvc    auditdomain.Service
	authLimiter *ratelimit.AuthLimiter
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Sessions    *session.Manager
	Authsvc     authdomain.Service
	AccountSvc  accountdomain.Service
	CatalogSvc  catalogdomain.Service
	CheckoutSvc checkoutdomain.Service
	PaymentSvc  paymentdomain.Service
	Access      access.Evaluator
	HistorySvc  historydomain.Service
	DownloadSvc downloaddomain.Service
	AuditSvc    auditdomain.Service
	AuthLimiter *ratelimit.AuthLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http"),
		sessions:    p.Sessions,
		authsvc:     p.Authsvc,
		accountsvc:  p.AccountSvc,
		catalogsvc:  p.CatalogSvc,
		checkoutsvc: p.CheckoutSvc,
		paymentsvc:  p.PaymentSvc,
		access:      p.Access,
		historysvc:  p.HistorySvc,
		downloadsvc: p.DownloadSvc,
		auditsvc:    p.AuditSvc,
		authLimiter: p.AuthLimiter,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerWebhookRoutes()
	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/api/webhooks", s.HandleStripeWebhook)
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/api/auth")

	auth.POST("/register", s.RateLimit("register"), s.Register)
	auth.POST("/login", s.RateLimit("login"), s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.POST("/verify-email", s.RateLimit("verify-email"), s.RequestVerification)
	auth.GET("/verify-email/confirm", s.ConfirmVerification)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/catalog/products", s.ListProducts)

	// -------- Checkout --------
	api.POST("/stripe/checkout", s.AuthRequired(), s.CreateCheckoutSession)
	api.POST("/checkout", s.AuthRequired(), s.CreateLegacyCheckoutSession)

	// -------- Account views --------
	user := api.Group("/user", s.AuthRequired())
	{
		user.GET("/access", s.GetAccess)
		user.GET("/purchases", s.ListPurchases)
		user.GET("/purchases/:id/receipt", s.DownloadReceipt)
		user.GET("/subscriptions", s.ListSubscriptions)
		user.GET("/downloads", s.ListDownloads)
	}

	api.GET("/download/:assetId", s.AuthRequired(), s.Download)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.AdminRequired())

	admin.GET("/users", s.ListUsers)
	admin.DELETE("/users", s.DeleteUsers)
	admin.GET("/audit-logs", s.ListAuditLogs)
}
