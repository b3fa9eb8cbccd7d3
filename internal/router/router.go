package router

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	_ "taskhub/api/swagger" // swagger docs
	"taskhub/internal/config"
	"taskhub/internal/handler"
	"taskhub/internal/middleware"
	"taskhub/internal/rbac"
	"taskhub/internal/service"
	"taskhub/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps are the services and RBAC components the HTTP layer is built from.
type Deps struct {
	Auth       service.AuthService
	Users      service.UserService
	Roles      service.RoleService
	Projects   service.ProjectService
	Categories service.CategoryService
	Tasks      service.TaskService
	Transfers  service.TransferService
	Audit      service.AuditService
	Statistics service.StatisticsService

	Prober  *rbac.SchemaProber
	Backend rbac.Backend
	Gate    *rbac.Gate
	Hub     *websocket.Hub
	Logger  *slog.Logger
}

// New builds the gin engine with every API route mounted under /api.
func New(cfg *config.Config, deps Deps) (*gin.Engine, error) {
	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}
	origins := cfg.Server.Origins()
	if len(origins) == 0 {
		return nil, errors.New("router: at least one allowed origin is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecureHeaders(cfg.IsRelease()))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	if deps.Hub != nil {
		router.GET("/ws", websocket.ServeWs(deps.Hub, deps.Auth))
	}

	guards := handler.Guards{
		Auth:     middleware.Authenticate(deps.Auth),
		Throttle: middleware.RateLimit(cfg.Server.AuthRateLimit, time.Minute),
		Roles: func(roles ...string) gin.HandlerFunc {
			return middleware.RequireAnyRole(deps.Gate, roles...)
		},
		Permissions: func(perms ...string) gin.HandlerFunc {
			return middleware.RequirePermission(deps.Gate, perms...)
		},
	}
	cookies := middleware.CookieOptions{Secure: cfg.IsRelease()}

	api := router.Group("/api")
	api.Use(middleware.ClientIP(), middleware.ProbeSchema(deps.Prober, deps.Backend))

	handler.NewAuthHandler(deps.Auth, cookies).RegisterRoutes(api, guards)
	handler.NewUserHandler(deps.Users).RegisterRoutes(api, guards)
	handler.NewRoleHandler(deps.Roles).RegisterRoutes(api, guards)
	handler.NewProjectHandler(deps.Projects).RegisterRoutes(api, guards)
	handler.NewCategoryHandler(deps.Categories).RegisterRoutes(api, guards)
	handler.NewTaskHandler(deps.Tasks).RegisterRoutes(api, guards)
	handler.NewTransferHandler(deps.Transfers).RegisterRoutes(api, guards)
	handler.NewAuditHandler(deps.Audit).RegisterRoutes(api, guards)
	handler.NewStatisticsHandler(deps.Statistics).RegisterRoutes(api, guards)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "API endpoint not found"})
	})

	return router, nil
}
