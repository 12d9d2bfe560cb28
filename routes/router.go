package routes

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/crowdgauge/crowdgauge/config"
	"github.com/crowdgauge/crowdgauge/controllers"
	"github.com/crowdgauge/crowdgauge/middleware"
	"github.com/crowdgauge/crowdgauge/services"
	"github.com/crowdgauge/crowdgauge/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, ingest *services.IngestService) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authController := controllers.NewAuthController(db)
	siteController := controllers.NewSiteController(db)
	ingestController := controllers.NewIngestController(ingest)
	analyticsController := controllers.NewAnalyticsController(db, ingest.Ledger())

	api := r.Group("/api/v1")

	// Device-facing: no JWT, sensors only carry their device id. The rate
	// limiter is the only admission control in front of the counter engine.
	iotGroup := api.Group("/iot")
	iotGroup.Use(middleware.RateLimitMiddleware())
	iotGroup.POST("/update", ingestController.Update)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	sitesGroup := api.Group("/sites")
	sitesGroup.GET("", siteController.List)
	sitesGroup.POST("", middleware.AuthRequired(), siteController.Create)
	sitesGroup.PATCH("/mine", middleware.AuthRequired(), siteController.Update)
	sitesGroup.GET("/mine", middleware.AuthRequired(), siteController.Mine)

	analyticsGroup := api.Group("/analytics")
	analyticsGroup.Use(middleware.AuthRequired())
	analyticsGroup.GET("/hourly", analyticsController.Hourly)

	return r
}
