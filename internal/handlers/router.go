package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sme-docengine/internal/auth"
	"sme-docengine/internal/engine"
	"sme-docengine/internal/middleware"
)

// RouterConfig is everything the HTTP layer needs.
type RouterConfig struct {
	DB                *gorm.DB
	Engine            *engine.Engine
	Signer            *auth.Signer
	CORSOrigins       []string
	AllowRegistration bool
}

// NewRouter builds the gin engine with public and protected routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "online"}) })

	authHandler := NewAuthHandler(cfg.DB, cfg.Signer)
	r.POST("/login", authHandler.Login)
	if cfg.AllowRegistration {
		r.POST("/register", authHandler.Register)
	}

	// --- PROTECTED ROUTES ---
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg.Signer))
	{
		RegisterDocumentRoutes(api, cfg.Engine)

		reports := NewReportHandler(cfg.Engine)
		api.GET("/reports/summary", reports.GetSummary)
	}

	return r
}
