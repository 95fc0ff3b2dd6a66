package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/metrics"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/storage"
	"github.com/safar/storefront/internal/store"
	"go.uber.org/zap"
)

type Server struct {
	cfg       *config.Config
	db        *sql.DB
	log       *zap.Logger
	tokens    auth.TokenGenerator
	verifier  auth.TokenVerifier
	passwords *auth.PasswordHasher
	pictures  *storage.ProfilePictures
	metrics   *metrics.Metrics

	loadUser func(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func NewServer(cfg *config.Config, db *sql.DB, logger *zap.Logger, pictures *storage.ProfilePictures, m *metrics.Metrics) *Server {
	tokens := auth.NewJWTTokens(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTTTL)
	s := &Server{
		cfg:       cfg,
		db:        db,
		log:       logger,
		tokens:    tokens,
		verifier:  tokens,
		passwords: auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		pictures:  pictures,
		metrics:   m,
	}
	s.loadUser = func(ctx context.Context, id uuid.UUID) (*models.User, error) {
		return store.GetUser(ctx, s.db, id)
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = s.cfg.Upload.MaxBytes + 1<<20
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.log))
	router.Use(s.metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.Server.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	router.StaticFS(s.pictures.URLPrefix(), s.pictures.FileSystem())

	router.POST("/register", s.register)
	router.POST("/login", s.login)

	router.GET("/products", s.listProducts)
	router.GET("/products/:id", s.getProduct)

	authed := router.Group("", s.authenticate())
	{
		authed.GET("/me", s.me)
		authed.PUT("/update-profile", s.updateProfile)
		authed.POST("/upload-profile-picture", s.uploadProfilePicture)

		orders := authed.Group("/orders")
		{
			orders.POST("", s.createCart)
			orders.GET("/me", s.listMyOrders)
			orders.GET("/:id", s.getOrder)
			orders.POST("/:id/items", s.addItem)
			orders.DELETE("/:id/items/:item", s.removeItem)
			orders.POST("/:id/checkout", s.checkout)
			orders.POST("/:id/status", s.requireRoles(models.FulfilmentStaff...), s.updateOrderStatus)
		}

		seller := authed.Group("/seller", s.requireRoles(models.CatalogManagers...))
		{
			seller.GET("/products", s.listSellerProducts)
			seller.POST("/products", s.createProduct)
			seller.PUT("/products/:id", s.updateProduct)
			seller.PATCH("/products/:id/active", s.setProductActive)
			seller.DELETE("/products/:id", s.deleteProduct)
			seller.POST("/products/:id/variants", s.createVariant)
			seller.PUT("/products/:id/variants/:variant", s.updateVariant)
			seller.GET("/orders", s.listOrdersByStatus)
		}

		admin := authed.Group("/admin", s.requireRoles(models.Administrators...))
		{
			admin.GET("/users", s.listUsers)
			admin.PUT("/users/:id/role", s.setUserRole)
		}
	}

	return router
}
