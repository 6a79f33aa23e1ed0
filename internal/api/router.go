package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/serenitygrove/membership-api/internal/api/handler"
	"github.com/serenitygrove/membership-api/internal/api/middleware"
	"github.com/serenitygrove/membership-api/internal/core/domain"
	"github.com/serenitygrove/membership-api/internal/core/service"
	"github.com/serenitygrove/membership-api/internal/core/token"
	"github.com/serenitygrove/membership-api/internal/infrastructure/config"
	mongodb "github.com/serenitygrove/membership-api/internal/infrastructure/db/mongo"
	redisdb "github.com/serenitygrove/membership-api/internal/infrastructure/db/redis"
	"github.com/serenitygrove/membership-api/internal/infrastructure/notify"
)

// NewRouter builds the Echo instance with every dependency wired and all
// routes registered.
func NewRouter(client *mongo.Client, db *mongo.Database, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("membership"))

	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Repositories ---
	userRepo := mongodb.NewUserRepository(db)
	linkRepo := mongodb.NewMagicLinkRepository(db)
	sessionRepo := mongodb.NewSessionRepository(db)
	auditRepo := mongodb.NewAuditRepository(db)
	attendanceRepo := mongodb.NewAttendanceRepository(db)
	assignmentRepo := mongodb.NewAssignmentRepository(db)
	txRunner := mongodb.NewTxRunner(client)
	limiter := redisdb.NewCooldownLimiter(rdb)

	// --- Services ---
	issuer := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	recorder := service.NewAuditRecorder(auditRepo, log)
	sessionService := service.NewSessionService(sessionRepo, issuer, log)
	notifier := notify.NewLogNotifier(cfg.PublicBaseURL, log)
	linkService := service.NewMagicLinkService(
		linkRepo, userRepo, sessionService, notifier, limiter, recorder,
		service.MagicLinkConfig{LinkTTL: cfg.Auth.MagicLinkTTL, Cooldown: cfg.Auth.MagicLinkCooldown},
		log,
	)
	privacyService := service.NewPrivacyService(
		userRepo, sessionRepo, linkRepo, auditRepo, attendanceRepo, assignmentRepo,
		txRunner, recorder, log,
	)
	adminService := service.NewAdminService(userRepo, assignmentRepo, recorder, log)

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(linkService, sessionService, privacyService, adminService, recorder)
	adminHandler := handler.NewAdminHandler(adminService, privacyService)

	authed := middleware.Auth(issuer, userRepo)
	memberUp := middleware.RBAC(
		domain.RoleMember, domain.RoleSecretary, domain.RoleTreasurer,
		domain.RoleHost, domain.RoleAdmin,
	)
	adminRead := middleware.RBAC(domain.RoleAdmin, domain.RoleSecretary)
	adminOnly := middleware.RBAC(domain.RoleAdmin)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/magic-link", authHandler.RequestMagicLink)
	auth.POST("/verify", authHandler.VerifyMagicLink)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/anonymous", authHandler.CreateAnonymous)
	auth.POST("/logout", authHandler.Logout, authed)

	// --- Profile routes ---
	users := e.Group("/users", authed)
	users.GET("/me", authHandler.Me)
	users.PUT("/me", authHandler.UpdateMe)
	users.DELETE("/me", authHandler.DeleteMe)
	users.GET("/directory", adminHandler.Directory, memberUp)

	// --- Admin routes ---
	admin := e.Group("/admin", authed)
	admin.GET("/users", adminHandler.ListUsers, adminRead)
	admin.POST("/users", adminHandler.CreateUser, adminOnly)
	admin.PUT("/users/:id", adminHandler.UpdateUser, adminOnly)
	admin.DELETE("/users/:id", adminHandler.DeleteUser, adminOnly)
	admin.POST("/users/:id/anonymize", adminHandler.AnonymizeUser, adminOnly)
	admin.GET("/users/:id/privacy-report", adminHandler.PrivacyReport, adminOnly)
	admin.GET("/stats", adminHandler.Stats, adminRead)
	admin.POST("/users/:id/service-assignments", adminHandler.CreateAssignment, adminOnly)
	admin.DELETE("/service-assignments/:id", adminHandler.RemoveAssignment, adminOnly)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
