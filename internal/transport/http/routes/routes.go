package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/infra/config"
	"github.com/dreamwise/dreamwise-api/internal/transport/http/handlers"
	"github.com/dreamwise/dreamwise-api/internal/transport/http/middleware"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth      *usecase.AuthService
	Journal   *usecase.JournalService
	Community *usecase.CommunityService
	Users     *usecase.UserService
	Admin     *usecase.AdminService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	HTTPMetrics *middleware.HTTPMetrics
	AuthMetrics middleware.AuthFailureRecorder
	Gatherer    prometheus.Gatherer
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	Ping(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config == nil {
		deps.Config = &config.AppConfig{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}
	r.Use(middleware.CORS(deps.Config.CORS))

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.Ping))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	responder := handlers.NewResponder(!deps.Config.App.IsProduction(), deps.Logger)
	services := deps.Services
	if services.Auth == nil {
		return r
	}

	authn := middleware.NewAuthenticator(services.Auth, deps.AuthMetrics, deps.Logger)
	requireAuth := authn.RequireAuth()
	optionalAuth := authn.OptionalAuth()
	rl := newLimits(deps)

	api := r.Group("/api")

	authHandler := handlers.NewAuthHandler(services.Auth, responder)
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", chain(rl.register, authHandler.Register)...)
		authGroup.POST("/login", chain(rl.login, authHandler.Login)...)
		authGroup.GET("/me", requireAuth, authHandler.Me)
		authGroup.POST("/refresh", requireAuth, authHandler.Refresh)
		authGroup.POST("/logout", requireAuth, authHandler.Logout)
		authGroup.POST("/verify-email", chain(requireAuth, rl.verification, authHandler.VerifyEmail)...)
		authGroup.POST("/resend-verification", chain(requireAuth, rl.verification, authHandler.ResendVerification)...)
		authGroup.POST("/forgot-password", chain(rl.passwordReset, authHandler.ForgotPassword)...)
		authGroup.POST("/reset-password", chain(rl.passwordReset, authHandler.ResetPassword)...)
		authGroup.PUT("/change-password", chain(requireAuth, rl.passwordChange, authHandler.ChangePassword)...)
	}

	if services.Journal != nil {
		journalHandler := handlers.NewJournalHandler(services.Journal, responder)
		journalGroup := api.Group("/journal")
		journalGroup.GET("", requireAuth, journalHandler.List)
		journalGroup.POST("", requireAuth, journalHandler.Create)
		journalGroup.GET("/public", optionalAuth, journalHandler.ListPublic)
		journalGroup.GET("/stats", requireAuth, journalHandler.Stats)
		journalGroup.GET("/:id", optionalAuth, journalHandler.Get)
		journalGroup.PUT("/:id", requireAuth, journalHandler.LoadEntry(), middleware.RequireOwnershipOrModerator(), journalHandler.Update)
		journalGroup.DELETE("/:id", requireAuth, journalHandler.LoadEntry(), middleware.RequireOwnershipOrModerator(), journalHandler.Delete)
	}

	if services.Community != nil {
		communityHandler := handlers.NewCommunityHandler(services.Community, responder)
		moderators := middleware.RequireRole(domain.RoleModerator, domain.RoleAdmin)
		posts := api.Group("/community/posts")
		posts.GET("", optionalAuth, communityHandler.List)
		posts.POST("", requireAuth, communityHandler.Create)
		posts.GET("/:id", optionalAuth, communityHandler.Get)
		posts.PUT("/:id", requireAuth, communityHandler.LoadPost(), middleware.RequireOwnershipOrModerator(), communityHandler.Update)
		posts.DELETE("/:id", requireAuth, communityHandler.LoadPost(), middleware.RequireOwnershipOrModerator(), communityHandler.Delete)
		posts.PUT("/:id/pin", requireAuth, moderators, communityHandler.Pin)
		posts.PUT("/:id/feature", requireAuth, moderators, communityHandler.Feature)
	}

	if services.Users != nil {
		userHandler := handlers.NewUserHandler(services.Users, responder)
		userGroup := api.Group("/user")
		userGroup.GET("/profile", requireAuth, userHandler.Profile)
		userGroup.PUT("/profile", requireAuth, userHandler.UpdateProfile)
		userGroup.PUT("/preferences", requireAuth, userHandler.UpdatePreferences)
		userGroup.GET("/stats", requireAuth, userHandler.Stats)
		userGroup.POST("/avatar/upload-url", requireAuth, userHandler.AvatarUploadURL)
		userGroup.GET("/:id", optionalAuth, userHandler.PublicProfile)
	}

	if services.Admin != nil {
		adminHandler := handlers.NewAdminHandler(services.Admin, responder)
		adminGroup := api.Group("/admin")
		adminGroup.Use(requireAuth, middleware.RequireRole(domain.RoleAdmin))
		adminGroup.GET("/users", adminHandler.ListUsers)
		adminGroup.PUT("/users/:id/role", adminHandler.ChangeRole)
		adminGroup.PUT("/users/:id/status", adminHandler.SetStatus)
	}

	return r
}

// chain drops nil handlers so optional rate limits can be spliced in.
func chain(hs ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

type limits struct {
	login          gin.HandlerFunc
	register       gin.HandlerFunc
	passwordReset  gin.HandlerFunc
	passwordChange gin.HandlerFunc
	verification   gin.HandlerFunc
}

func newLimits(deps Dependencies) limits {
	if deps.RateLimiter == nil {
		return limits{}
	}

	settings := deps.Config.RateLimit
	window := settings.WindowDuration
	if window <= 0 {
		window = 15 * time.Minute
	}

	build := func(name string, limit int, identify middleware.IdentifierFunc) gin.HandlerFunc {
		if limit <= 0 {
			return nil
		}
		return deps.RateLimiter.RateLimit(middleware.RateLimitRule{
			Name:       name,
			Limit:      limit,
			Window:     window,
			Identifier: identify,
		})
	}

	byIP := middleware.ClientIPIdentifier()
	byPrincipal := middleware.PrincipalOrIPIdentifier()
	return limits{
		login:          build("auth_login", settings.LoginMaxAttempts, byIP),
		register:       build("auth_register", settings.RegisterMaxAttempts, byIP),
		passwordReset:  build("password_reset", settings.PasswordResetMaxAttempts, byIP),
		passwordChange: build("password_change", settings.PasswordChangeMaxAttempts, byPrincipal),
		verification:   build("email_verification", settings.VerificationMaxAttempts, byPrincipal),
	}
}
