package http

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"     // swagger embed files
	ginSwagger "github.com/swaggo/gin-swagger" // gin-swagger middleware

	"github.com/dwarvesf/onchain-tracker/internal/handler"
	"github.com/dwarvesf/onchain-tracker/internal/monitoring"
	"github.com/dwarvesf/onchain-tracker/internal/utils/config"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

func setupCORS(r *gin.Engine, cfg *config.AppConfig) {
	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS", "HEAD"},
		AllowHeaders: []string{
			"Origin", "Host", "Content-Type", "Content-Length", "Accept-Encoding", "Accept-Language", "Accept",
			"X-Requested-With",
		},
		ExposeHeaders: []string{"X-Data-Stale"},
	}

	// a wildcard origin cannot be combined with credentials
	origins := strings.TrimSpace(cfg.ApiServer.AllowedOrigins)
	if origins == "" || origins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		for _, o := range strings.Split(origins, ";") {
			if o = strings.TrimSpace(o); o != "" {
				corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, o)
			}
		}
		corsConfig.AllowCredentials = true
	}

	r.Use(cors.New(corsConfig))
}

func NewHttpServer(appConfig *config.AppConfig, logger *logger.Logger, h *handler.Handler, httpMetrics *monitoring.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.LoggerWithWriter(gin.DefaultWriter, "/healthz", "/metrics"),
		gin.Recovery(),
	)
	if httpMetrics != nil {
		r.Use(monitoring.HTTPMetricsMiddleware(httpMetrics))
	}
	setupCORS(r, appConfig)

	// use ginSwagger middleware to serve the API docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/metrics", h.MetricsHandler.Handler())

	// load api
	loadV1Routes(r, h)

	logger.Info("[HTTP][NewHttpServer] routes loaded", map[string]string{
		"origins": appConfig.ApiServer.AllowedOrigins,
	})
	return r
}
