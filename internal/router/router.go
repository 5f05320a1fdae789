package router

import (
	"time"

	"boxtrack/internal/config"
	"boxtrack/internal/handler"
	"boxtrack/internal/infra"
	"boxtrack/internal/middleware"
	"boxtrack/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators built by the composition root.
// Redis is nil with the memory cache backend.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Products service.ProductService
	Auth     service.AuthService
	Queue    handler.QueueStats
	CB       *infra.CircuitBreaker
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository/Cache ← DB/Redis
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(d.Auth)
	productsH := handler.NewProductsHandler(d.Products)
	syncH := handler.NewSyncHandler(d.Products, d.Queue)
	uploadH := handler.NewUploadHandler(d.Products, cfg.Catalog(), cfg.ImagesDir)
	reportsH := handler.NewReportsHandler(d.Products, cfg.ReportsDir)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.Redis, d.CB))
	r.StaticFile("/product-links.json", cfg.LinksFile)
	r.Static("/images", cfg.ImagesDir)

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
	}

	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	admin := middleware.RequireRole("admin")

	r.POST("/api/upload-photo", jwtMW, admin, uploadH.UploadPhoto)

	// Protected routes
	v1 := r.Group("/v1", jwtMW, admin)
	{
		v1.POST("/auth/2fa/setup", authH.SetupTOTP)
		v1.POST("/auth/2fa/enable", authH.EnableTOTP)
		v1.POST("/auth/password", authH.SetPassword)

		v1.GET("/search/:sku", productsH.Search)

		store := v1.Group("/stores/:store", middleware.RequireStore("store"))
		{
			store.GET("/products", productsH.List)
			store.POST("/products", productsH.Add)
			store.DELETE("/products", productsH.Remove)
			store.GET("/products/:sku", productsH.Get)
			store.PATCH("/products/:sku", productsH.Update)
			store.POST("/products/:sku/move", productsH.Move)
			store.POST("/products/:sku/promotion", productsH.Promotion)
			store.POST("/products/:sku/gender", productsH.Gender)

			store.GET("/boxes", productsH.Boxes)
			store.GET("/boxes/:caixa", productsH.Box)
			store.GET("/deletions", productsH.Deletions)

			store.GET("/sync", syncH.Status)
			store.POST("/sync", syncH.Force)
			store.POST("/sync/retry-failed", syncH.RetryFailed)

			store.GET("/reports/boxes.pdf", reportsH.BoxesPDF)
		}
	}

	// Swagger UI outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
