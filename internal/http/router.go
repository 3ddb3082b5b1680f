package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/aimee/backend/internal/config"
	"github.com/aimee/backend/internal/http/handlers"
	"github.com/aimee/backend/internal/http/middleware"
	"github.com/aimee/backend/internal/service"

	_ "github.com/aimee/backend/docs"
)

func Router(cfg config.Config, advisor *service.Advisor, db handlers.Pinger, gatherer prometheus.Gatherer, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if origins := config.List(cfg.CORSAllowed); len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = origins
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Advisor:        advisor,
		DB:             db,
		Validator:      validator.New(),
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
	}

	r.GET("/healthz", h.Healthz)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.POST("/chat/message", h.ChatMessage)
		api.POST("/chat/sessions/sweep", h.SessionSweep)
		api.GET("/chat/sessions/:id", h.SessionHistory)
		api.DELETE("/chat/sessions/:id", h.SessionDelete)

		api.POST("/suggestions", h.Suggest)

		api.GET("/approvals", h.ApprovalsList)
		api.POST("/approvals/bulk", h.ApprovalsBulk)
		api.GET("/approvals/:id", h.ApprovalDetails)
		api.POST("/approvals/:id/action", h.ApprovalAction)

		api.GET("/alerts", h.AlertsList)
		api.POST("/alerts/resolve", h.ResolveAlert)

		api.GET("/locations", h.LocationsList)
		api.GET("/processes", h.ProcessesList)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
