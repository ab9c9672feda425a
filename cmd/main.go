package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"

	"montisprint/internal/caching"
	"montisprint/internal/handlers"
	"montisprint/internal/jobs/background"
	"montisprint/internal/middleware"
	"montisprint/internal/repositories"
	"montisprint/internal/services"
	"montisprint/pkg/database"
)

const version = "1.0.0"

func main() {
	// Database connection
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := database.NewPool(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// JWT configuration for the admin surface
	jwtSecret := os.Getenv("JWT_SECRET")
	jwksURL := os.Getenv("JWKS_URL")
	if jwtSecret == "" && jwksURL == "" {
		jwtSecret = random.String(32) // Generate random secret for development
		log.Printf("WARNING: Using generated JWT secret: %s", jwtSecret)
	}

	// Redis configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379" // Default Redis address
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDBStr := os.Getenv("REDIS_DB")
	redisDB := 0 // Default DB
	if redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	// Create repositories
	printerRepo := repositories.NewPrinterRepo(pool)
	tokenRepo := repositories.NewPairingTokenRepo(pool)
	jobRepo := repositories.NewPrintJobRepo(pool)

	// Create cache service
	cacheSvc := caching.NewRedisCacheService(redisAddr, redisPassword, redisDB)

	// Create services
	printerSvc := services.NewPrinterService(printerRepo)
	pairingSvc := services.NewPairingService(tokenRepo)
	jobSvc := services.NewPrintJobService(jobRepo, printerRepo)
	livenessSvc := services.NewLivenessService(printerRepo, cacheSvc)

	// Create handlers
	printerHandlers := handlers.NewPrinterHandlers(printerSvc)
	pairingHandlers := handlers.NewPairingHandlers(pairingSvc, cacheSvc)
	jobHandlers := handlers.NewJobHandlers(jobSvc, livenessSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc)

	// Auth middleware
	adminAuth, err := middleware.NewAdminAuth(middleware.AdminAuthConfig{
		JWTSecret: jwtSecret,
		JWKSURL:   jwksURL,
	})
	if err != nil {
		log.Fatalf("Failed to configure admin auth: %v", err)
	}
	agentAuth := middleware.AgentAuth(printerRepo)
	optionalAgentAuth := middleware.OptionalAgentAuth(printerRepo)

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/detailed", healthHandlers.DetailedHealthCheck)

	// API routes
	print := e.Group("/v1/print")

	// Pairing redemption: the agent has no credentials yet, only the code.
	print.POST("/pair", pairingHandlers.Pair)

	// Admin surface (JWT required)
	admin := print.Group("", adminAuth)
	admin.POST("/printers/register", printerHandlers.Register)
	admin.POST("/pairing-token", pairingHandlers.CreateToken)
	admin.GET("/printers", printerHandlers.List)
	admin.PATCH("/printers/:id/config", printerHandlers.UpdateConfig)
	admin.DELETE("/printers/:id", printerHandlers.Delete)
	admin.POST("/jobs", jobHandlers.Create)

	// Hybrid surface: agents authenticate by API key, admins by JWT.
	// Agent auth runs first and tags the request so the JWT check skips it.
	print.GET("/jobs", jobHandlers.ListOrClaim, optionalAgentAuth, adminAuth)

	// Agent-only surface (API key required)
	agent := print.Group("", agentAuth)
	agent.POST("/jobs/:id/ack", jobHandlers.Acknowledge)
	agent.POST("/printers/:id/heartbeat", jobHandlers.Heartbeat)

	// Background maintenance
	scheduler := background.NewJobScheduler(jobRepo, tokenRepo)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start background scheduler: %v", err)
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("Failed to stop background scheduler: %v", err)
		}
	}()

	// Start server
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("Invalid port %s: %v", portStr, err)
	}

	log.Printf("Montisprint server v%s starting on port %d", version, port)

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", port)))
}
