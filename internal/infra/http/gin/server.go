package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"peerrent/internal/infra/config"
	"peerrent/internal/infra/obs"
)

type ReservationHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Permissions(c *gin.Context)
	Act(c *gin.Context)
	RequestPayment(c *gin.Context)
}

type AvailabilityHTTP interface {
	BlockedDays(c *gin.Context)
	ItemReservations(c *gin.Context)
}

type WebhookHTTP interface {
	Payment(c *gin.Context)
}

type Handlers struct {
	Reservations ReservationHTTP
	Availability AvailabilityHTTP
	Webhook      WebhookHTTP
	Metrics      http.Handler
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", userHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	router.Use(Principal())

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := router.Group("/api/v1")
	if h.Reservations != nil {
		res := api.Group("/reservations")
		res.POST("", h.Reservations.Create)
		res.GET("/:id", h.Reservations.Get)
		res.GET("/:id/permissions", h.Reservations.Permissions)
		res.POST("/:id/payment", h.Reservations.RequestPayment)
		res.POST("/:id/actions/:action", h.Reservations.Act)
	}
	if h.Availability != nil {
		api.GET("/items/:id/blocked-days", h.Availability.BlockedDays)
		api.GET("/items/:id/reservations", h.Availability.ItemReservations)
	}
	if h.Webhook != nil {
		api.POST("/payments/webhook", h.Webhook.Payment)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
