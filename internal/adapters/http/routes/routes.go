package routes

import (
	"ssc-carecard/internal/adapters/http/handlers"
	"ssc-carecard/internal/adapters/http/middleware"
	"ssc-carecard/internal/adapters/persistence/repositories"
	"ssc-carecard/internal/config"
	"ssc-carecard/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	counterRepo := repositories.NewCounterRepository(db)
	cardRepo := repositories.NewCardRepository(db)
	holderRepo := repositories.NewHolderRepository(db)
	siteRepo := repositories.NewSiteRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)

	// Initialize services
	authz := services.NewRoleAuthorizer()
	authService := services.NewAuthService(userRepo, refreshTokenRepo, cfg)
	userService := services.NewUserService(userRepo)
	cardService := services.NewCardService(cardRepo, holderRepo, counterRepo, authz)
	siteService := services.NewSiteService(siteRepo, authz)
	discountService := services.NewDiscountService(settingsRepo, siteRepo, authz)
	billingService := services.NewBillingService(cardService, siteRepo, settingsRepo, counterRepo, transactionRepo, authz)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	cardHandler := handlers.NewCardHandler(cardService)
	siteHandler := handlers.NewSiteHandler(siteService)
	billingHandler := handlers.NewBillingHandler(billingService, discountService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	setupAPIV1Routes(apiV1, healthHandler, authHandler, userHandler, cardHandler,
		siteHandler, billingHandler, cfg)
}

// setupAPIV1Routes configures API v1 routes
func setupAPIV1Routes(
	router fiber.Router,
	healthHandler *handlers.HealthHandler,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	cardHandler *handlers.CardHandler,
	siteHandler *handlers.SiteHandler,
	billingHandler *handlers.BillingHandler,
	cfg *config.Config,
) {
	// API Info
	router.Get("/", healthHandler.APIInfo)

	// Auth routes (public)
	authRoutes := router.Group("/auth")
	setupAuthRoutes(authRoutes, authHandler, cfg)

	// User management routes (Admin only)
	userRoutes := router.Group("/users")
	userRoutes.Use(middleware.AuthMiddleware(cfg))
	userRoutes.Use(middleware.AdminOnly())
	setupUserRoutes(userRoutes, userHandler)

	// Card routes (Staff/Admin; verify is open to all authenticated roles)
	cardRoutes := router.Group("/cards")
	cardRoutes.Use(middleware.AuthMiddleware(cfg))
	setupCardRoutes(cardRoutes, cardHandler)

	// Holder routes (Staff/Admin)
	holderRoutes := router.Group("/holders")
	holderRoutes.Use(middleware.AuthMiddleware(cfg))
	holderRoutes.Use(middleware.StaffOrAdmin())
	setupHolderRoutes(holderRoutes, cardHandler)

	// Site routes (read for all authenticated, writes Admin only)
	siteRoutes := router.Group("/sites")
	siteRoutes.Use(middleware.AuthMiddleware(cfg))
	setupSiteRoutes(siteRoutes, siteHandler)

	// Billing routes (all authenticated roles can bill)
	billingRoutes := router.Group("/billing")
	billingRoutes.Use(middleware.AuthMiddleware(cfg))
	setupBillingRoutes(billingRoutes, billingHandler)

	// Settings routes
	settingsRoutes := router.Group("/settings")
	settingsRoutes.Use(middleware.AuthMiddleware(cfg))
	setupSettingsRoutes(settingsRoutes, billingHandler)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, cfg *config.Config) {
	// Public routes (rate-limited against brute force)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	// Protected routes
	router.Get("/me", middleware.AuthMiddleware(cfg), handler.Me)
	router.Post("/logout-all", middleware.AuthMiddleware(cfg), handler.LogoutAll)
}

// setupUserRoutes configures user management routes (Admin only)
func setupUserRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/", handler.ListUsers)
	router.Post("/", handler.CreateUser)
	router.Patch("/:id/active", handler.SetUserActive)
}

// setupCardRoutes configures card routes
func setupCardRoutes(router fiber.Router, handler *handlers.CardHandler) {
	// Any authenticated role may verify (operators verify before billing)
	router.Post("/verify", handler.Verify)

	// Staff/Admin
	staffRoutes := router.Group("")
	staffRoutes.Use(middleware.StaffOrAdmin())

	staffRoutes.Post("/", handler.IssueCard)
	staffRoutes.Get("/", handler.ListCards)
	staffRoutes.Get("/:serial", handler.GetCard)
	staffRoutes.Post("/:serial/renew", handler.Renew)
	staffRoutes.Post("/:serial/suspend", handler.Suspend)
	staffRoutes.Post("/:serial/reactivate", handler.Reactivate)
	staffRoutes.Post("/:serial/report-lost", handler.ReportLost)
}

// setupHolderRoutes configures holder routes (Staff/Admin)
func setupHolderRoutes(router fiber.Router, handler *handlers.CardHandler) {
	router.Get("/", handler.ListHolders)
	router.Post("/", handler.CreateHolder)
	router.Patch("/:id/activate", handler.ActivateHolder)
	router.Patch("/:id/deactivate", handler.DeactivateHolder)
}

// setupSiteRoutes configures site routes
func setupSiteRoutes(router fiber.Router, handler *handlers.SiteHandler) {
	router.Get("/", handler.ListSites)
	router.Get("/:code", handler.GetSite)

	// Admin only
	adminRoutes := router.Group("")
	adminRoutes.Use(middleware.AdminOnly())
	adminRoutes.Post("/", handler.CreateSite)
	adminRoutes.Patch("/:code", handler.UpdateSite)
}

// setupBillingRoutes configures billing routes
func setupBillingRoutes(router fiber.Router, handler *handlers.BillingHandler) {
	// Preview is free: no counter, no rate limit beyond the global one
	router.Post("/preview", handler.Preview)

	// Commits are rate-limited per IP
	router.Post("/transactions", middleware.BillingRateLimiter(), handler.CreateTransaction)

	router.Get("/transactions", handler.ListTransactions)
	router.Get("/transactions/:receipt", handler.GetTransaction)
	router.Get("/sites/:code/summary", handler.SiteDaySummary)
}

// setupSettingsRoutes configures discount settings routes
func setupSettingsRoutes(router fiber.Router, handler *handlers.BillingHandler) {
	router.Get("/discount", handler.GetSettings)
	router.Put("/discount", middleware.AdminOnly(), handler.UpdateSettings)
}
