package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"ssc-carecard/internal/adapters/http/middleware"
	"ssc-carecard/internal/adapters/http/routes"
	"ssc-carecard/internal/adapters/persistence/models"
	"ssc-carecard/internal/adapters/persistence/repositories"
	"ssc-carecard/internal/config"
	"ssc-carecard/internal/core/services"

	"github.com/gofiber/fiber/v2"
)

// @title SSC CareCard API
// @version 1.0
// @description SSC CareCard discount health card program API
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@ssc.or.th

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host api.carecard.ssc.or.th
// @BasePath /api/v1
// @schemes https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.Close()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	// Seed admin account, discount settings, and dev demo data
	if err := config.NewSeeder(db, cfg).Run(); err != nil {
		log.Printf("⚠️ Warning: Failed to seed database: %v", err)
	}

	// Start the nightly expiry sweep (00:05 daily)
	cardService := services.NewCardService(
		repositories.NewCardRepository(db),
		repositories.NewHolderRepository(db),
		repositories.NewCounterRepository(db),
		services.NewRoleAuthorizer(),
	)
	expiryService := services.NewExpiryService(cardService)
	expiryService.Start()
	defer expiryService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "SSC CareCard API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes (pass db and cfg for dependency injection)
	routes.Setup(app, db, cfg)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
