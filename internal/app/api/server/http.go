package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatflowers/membership/docs"
	"github.com/fatflowers/membership/internal/app/api/handlers"
	mw "github.com/fatflowers/membership/internal/app/api/middleware"
	"github.com/fatflowers/membership/internal/app/service/billingconfig"
	"github.com/fatflowers/membership/internal/app/service/checkout"
	"github.com/fatflowers/membership/internal/app/service/entitlement"
	"github.com/fatflowers/membership/internal/app/service/eventlog"
	"github.com/fatflowers/membership/internal/app/service/reconciler"
	"github.com/fatflowers/membership/internal/app/service/statistics"
	subsvc "github.com/fatflowers/membership/internal/app/service/subscription"
	"github.com/fatflowers/membership/internal/platform/auth"
	cfgpkg "github.com/fatflowers/membership/pkg/config"
	metrics "github.com/fatflowers/membership/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type RouteParams struct {
	fx.In

	Engine     *gin.Engine
	Log        *zap.SugaredLogger
	Cfg        *cfgpkg.Config
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Ingress       handlers.WebhookIngress
	Checkout      handlers.CheckoutCreator
	Entitlements  *entitlement.Service
	Verifier      mw.TokenVerifier
	Subscriptions *subsvc.Service
	Stats         *statistics.Service
	Config        *billingconfig.Resolver
	Events        *eventlog.Service
}

// MetricsServer is the optional dedicated metrics listener.
type MetricsServer struct {
	Addr   string
	Router *gin.Engine
}

func registerRoutes(p RouteParams) *MetricsServer {
	r, log, cfg := p.Engine, p.Log, p.Cfg

	prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{
		Registerer: p.Registerer,
		Gatherer:   p.Gatherer,
		Logger:     log,
	})
	var ms *MetricsServer
	if cfg.MetricsAddr != "" {
		prom.SetListenAddressWithRouter(cfg.MetricsAddr, gin.New())
		ms = &MetricsServer{Addr: prom.ListenAddress(), Router: prom.Router()}
	}
	prom.Use(r)

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))

	// The webhook authenticates by signature, not by bearer token.
	billing := apiV1.Group("/billing")
	handlers.RegisterWebhookRoutes(billing, p.Ingress, log)
	checkoutGroup := billing.Group("")
	checkoutGroup.Use(
		mw.BearerAuthMiddleware(p.Verifier, log),
		mw.RateLimitMiddleware(mw.NewRateLimiter(cfg.Checkout.RatePerMinute, cfg.Checkout.Burst)),
	)
	handlers.RegisterCheckoutRoutes(checkoutGroup, p.Checkout)

	ent := apiV1.Group("/entitlement")
	ent.Use(mw.BearerAuthMiddleware(p.Verifier, log))
	handlers.RegisterEntitlementRoutes(ent, p.Entitlements)

	admin := apiV1.Group("/admin")
	admin.Use(mw.BearerAuthMiddleware(p.Verifier, log), mw.RequireUserMiddleware(cfg.Auth.AdminUserIDs))
	handlers.RegisterAdminRoutes(admin, handlers.AdminDeps{
		Subscriptions: p.Subscriptions,
		Entitlements:  p.Entitlements,
		Stats:         p.Stats,
		Config:        p.Config,
		Events:        p.Events,
	})
	return ms
}

func serve(lc fx.Lifecycle, log *zap.SugaredLogger, name, addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "name", name, "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("%s server error: %v", name, err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server", "name", name)
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine, ms *MetricsServer) {
	serve(lc, log, "api", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), r)
	if ms != nil {
		serve(lc, log, "metrics", ms.Addr, ms.Router)
	}
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Provide(
		fx.Annotate(func(in *reconciler.Ingress) *reconciler.Ingress { return in }, fx.As(new(handlers.WebhookIngress))),
		fx.Annotate(func(s *checkout.Service) *checkout.Service { return s }, fx.As(new(handlers.CheckoutCreator))),
		fx.Annotate(func(v *auth.Verifier) *auth.Verifier { return v }, fx.As(new(mw.TokenVerifier))),
	),
	fx.Provide(registerRoutes),
	fx.Invoke(runServer),
)
