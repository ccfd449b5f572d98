package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/pi-pioneer-hub/config"
	"github.com/yourusername/pi-pioneer-hub/handlers"
	"github.com/yourusername/pi-pioneer-hub/middleware"
	"github.com/yourusername/pi-pioneer-hub/payments"
	"github.com/yourusername/pi-pioneer-hub/rawlog"
	"github.com/yourusername/pi-pioneer-hub/reconcile"
	"github.com/yourusername/pi-pioneer-hub/referrals"
	"github.com/yourusername/pi-pioneer-hub/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize stores
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	rdb, err := config.InitRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	logger := logrus.New()

	// Construct components once, pass them in; no package-level state.
	rawLog := rawlog.NewStore(rdb)
	engine := reconcile.NewEngine(db, rawLog, logger)
	enricher := reconcile.NewEnricher(db, rawLog, logger)
	piClient := payments.NewPiClient(cfg.PiAPIBaseURL, cfg.PiAPIKey)
	chain := utils.NewChainClient(cfg.HorizonURL, cfg.NetworkPassphrase, cfg.AppWalletSecret)
	settlement := payments.NewService(db, piClient, chain, rawLog, logger)
	tracker := referrals.NewTracker(db, logger)

	// Setup router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "pi-pioneer-hub-api",
		})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		reconcileHandler := handlers.NewReconcileHandler(engine, rawLog)
		api.POST("/register", reconcileHandler.Register)

		userHandler := handlers.NewUserHandler(db, enricher, chain)
		api.GET("/users", userHandler.List)
		api.GET("/users/:key", userHandler.Get)
		api.GET("/wallet/:address", userHandler.Wallet)

		paymentHandler := handlers.NewPaymentHandler(db, settlement)
		api.POST("/payments/approve", paymentHandler.Approve)
		api.POST("/payments/complete", paymentHandler.Complete)
		api.GET("/payments/:id", paymentHandler.Get)

		referralHandler := handlers.NewReferralHandler(tracker)
		api.POST("/referrals", referralHandler.Create)
		api.POST("/referrals/confirm", referralHandler.Confirm)
		api.POST("/referrals/reject", referralHandler.Reject)
		api.POST("/referrals/claim", referralHandler.Claim)
		api.GET("/referrals/:wallet", referralHandler.Stats)

		// Destructive or custodial operations sit behind the admin guard.
		admin := api.Group("/")
		admin.Use(middleware.JwtAuthMiddleware(cfg), middleware.RequireRole("admin"))
		admin.POST("/reconcile", reconcileHandler.Reconcile)
		admin.POST("/payments/payout", paymentHandler.Payout)
	}

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting Pi Pioneer Hub API server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
