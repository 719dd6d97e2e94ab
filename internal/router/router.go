package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-queue/internal/handler/stream"
	"github.com/jwalitptl/clinic-queue/internal/middleware"
	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	authH    Handler
	healthH  Handler
	streamH  *stream.Handler
	handlers []Handler
	gatherer prometheus.Gatherer
}

type RouterConfig struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	Mode     string
}

// NewRouter wires the middleware chain. handlers are mounted behind
// authentication; authH, healthH and the follow-up stream are public.
func NewRouter(
	auth *middleware.AuthMiddleware,
	authH Handler,
	healthH Handler,
	streamH *stream.Handler,
	handlers []Handler,
	log *logger.Logger,
	m *metrics.Metrics,
	config RouterConfig,
) (*Router, error) {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	gin.SetMode(config.Mode)
	if err := middleware.RegisterValidators(); err != nil {
		return nil, err
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.Metrics(m),
		middleware.CORS(config.CORSConfig),
		middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		}).RateLimit(),
	)

	return &Router{
		engine:   engine,
		auth:     auth,
		authH:    authH,
		healthH:  healthH,
		streamH:  streamH,
		handlers: handlers,
		gatherer: config.Gatherer,
	}, nil
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)
	r.authH.RegisterRoutes(api)
	r.streamH.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.streamH.RegisterRoutes(protected)
	for _, h := range r.handlers {
		h.RegisterRoutes(protected)
	}
}

// RequireAdmin is handed to handlers that mount admin-only routes.
func RequireAdmin(auth *middleware.AuthMiddleware) gin.HandlerFunc {
	return auth.RequireRole(model.RoleAdmin)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
