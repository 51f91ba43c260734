package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/docs"
	"github.com/fatflowers/clinicbilling/internal/app/api/handlers"
	mw "github.com/fatflowers/clinicbilling/internal/app/api/middleware"
	"github.com/fatflowers/clinicbilling/internal/app/service/billing"
	nh "github.com/fatflowers/clinicbilling/internal/app/service/notification_handler"
	"github.com/fatflowers/clinicbilling/internal/app/service/ratelimit"
	"github.com/fatflowers/clinicbilling/internal/app/service/signature"
	"github.com/fatflowers/clinicbilling/internal/app/store"
	cfgpkg "github.com/fatflowers/clinicbilling/pkg/config"
	"github.com/fatflowers/clinicbilling/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) (*gin.Engine, error) {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handlers.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r, nil
}

type routeDeps struct {
	fx.In

	Log        *zap.SugaredLogger
	Config     *cfgpkg.Config
	Store      store.Store
	Verifier   *signature.Verifier
	Dispatcher *nh.NotificationHandler
	Billing    *billing.Service
	Limiter    ratelimit.Limiter
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	log, cfg := d.Log, d.Config

	if cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	timeout := mw.Timeout(cfg.Server.RequestTimeout)

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log), timeout)
	handlers.RegisterHealthRoutes(pub, d.Store, log)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	protected := []gin.HandlerFunc{
		mw.RequestLoggerMiddleware(log),
		mw.AccessLogMiddleware(log),
		timeout,
		mw.Auth(cfg.Auth.JWTSecret, log),
		mw.RateLimit(d.Limiter, log),
	}

	// the webhook is signed by the processor, not bearer-authenticated
	subs := r.Group("/subscriptions")
	hooks := subs.Group("")
	hooks.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log), timeout)
	handlers.RegisterWebhookRoutes(hooks, d.Verifier, d.Dispatcher)

	commands := subs.Group("")
	commands.Use(protected...)
	handlers.RegisterSubscriptionRoutes(commands, d.Billing, log)

	tenants := r.Group("/api/v1/tenants")
	tenants.Use(protected...)
	handlers.RegisterTenantRoutes(tenants, d.Billing, log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
