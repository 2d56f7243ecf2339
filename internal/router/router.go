// Package router assembles the gin engine: global middleware, the /api groups and the
// operational endpoints.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-planner-api/api/swagger"
	"github.com/noah-isme/course-planner-api/internal/handler"
	"github.com/noah-isme/course-planner-api/internal/middleware"
	"github.com/noah-isme/course-planner-api/internal/service"
	"github.com/noah-isme/course-planner-api/pkg/config"
	"github.com/noah-isme/course-planner-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-planner-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-planner-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Catalog *handler.CatalogHandler
	Planner *handler.PlannerHandler
	Ops     *handler.MetricsHandler
}

// Deps carries the shared infrastructure used by middleware.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *service.MetricsService
	Tokens  middleware.TokenValidator
	Redis   *redis.Client
}

// Setup builds the engine.
func Setup(deps Deps, h Handlers) *gin.Engine {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Ops.Health)
	r.GET("/ready", h.Ops.Ready)
	r.GET("/metrics", h.Ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	requireUser := middleware.Identity(deps.Tokens, cfg.Auth.AllowUserHeader)
	optionalUser := middleware.OptionalIdentity(deps.Tokens, cfg.Auth.AllowUserHeader)
	limit := middleware.RateLimit(cfg.RateLimit, deps.Redis, log)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", limit, h.Auth.Register)
	auth.POST("/login", limit, h.Auth.Login)
	auth.POST("/refresh", limit, h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)
	auth.GET("/me", middleware.JWT(deps.Tokens), h.Auth.Me)

	courses := api.Group("/courses")
	courses.GET("", h.Catalog.ListCourses)
	courses.GET("/search", h.Catalog.SearchCourses)
	courses.GET("/:id", h.Catalog.GetCourse)
	courses.GET("/:id/schedules", h.Catalog.CourseSchedules)

	sections := api.Group("/sections")
	sections.GET("/cards", optionalUser, h.Catalog.SectionCards)
	sections.GET("/:id", h.Catalog.GetSection)

	api.POST("/plan-add", requireUser, h.Planner.Add)
	planner := api.Group("/planner", requireUser)
	planner.GET("", h.Planner.List)
	planner.POST("", h.Planner.Add)
	planner.GET("/export", h.Planner.Export)
	planner.DELETE("/:id", h.Planner.Remove)

	return r
}
