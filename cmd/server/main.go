package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"tca/internal/analysis"
	"tca/internal/config"
	"tca/internal/database"
	"tca/internal/handlers"
	"tca/internal/logging"
	"tca/internal/pipeline"
	"tca/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting TCA Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Printf("⚠️ %v - running in fallback mode", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, Mode: %s)", cfg.Port, cfg.DefaultMode)

	// Local fallback store is always available.
	fileStore, err := database.NewFileStore(cfg.MemoryFilePath)
	if err != nil {
		log.Fatalf("❌ Failed to open fallback store: %v", err)
	}

	// Durable store is optional: without it everything degrades to the
	// file-backed fallback.
	var mongoDB *database.MongoDB
	var primary database.DocumentStore = fileStore
	var fallback database.DocumentStore

	if cfg.UseMongo && cfg.MongoURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		mongoDB, err = database.NewMongoDB(cfg.MongoURI)
		if err != nil {
			log.Printf("⚠️ Failed to connect to MongoDB: %v (using file fallback)", err)
		} else {
			defer mongoDB.Close(context.Background())
			if err := mongoDB.Initialize(context.Background()); err != nil {
				log.Printf("⚠️ Failed to initialize MongoDB indexes: %v", err)
			}
			primary = database.NewMongoStore(mongoDB)
			fallback = fileStore
		}
	} else {
		log.Println("⚠️ MongoDB not configured, using file fallback store")
	}

	// Services
	userContext := services.NewUserContextService(primary, fallback)
	// Warm the default user's context so the first turn sees persisted state.
	userContext.Load(context.Background(), cfg.DefaultUserID)
	personalization := services.NewPersonalizationService(primary, userContext)
	chatHistory := services.NewChatHistoryService(primary, fallback)
	summaries := services.NewSummaryService(userContext, services.HeuristicSummarizer{})

	// Mode registry, validated before any turn runs.
	registry := pipeline.NewRegistry()
	modes := map[string]pipeline.Mode{
		"therapist":       {Analyzer: analysis.TherapistAnalyzer{}, Responder: analysis.TherapistResponder{}},
		"security":        {Analyzer: analysis.SecurityAnalyzer{}, Responder: analysis.SecurityResponder{}},
		"personalization": {Analyzer: analysis.NewPersonalizationAnalyzer(nil), Responder: analysis.PersonalizationResponder{}},
	}
	for name, mode := range modes {
		if err := registry.Register(name, mode); err != nil {
			log.Fatalf("❌ Failed to register mode %q: %v", name, err)
		}
	}
	if _, err := registry.Lookup(cfg.DefaultMode); err != nil {
		log.Fatalf("❌ Invalid DEFAULT_MODE: %v", err)
	}

	manager := pipeline.NewSessionManager(registry, cfg.DefaultMode, userContext, personalization, chatHistory)

	if err := summaries.Start(cfg.SummaryInterval, manager.ActiveTurns); err != nil {
		log.Printf("⚠️ Summary job not started: %v", err)
	}
	defer summaries.Stop()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName:      "tca-server",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(logger.New())

	chatHandler := handlers.NewChatHandler(manager, chatHistory)
	contextHandler := handlers.NewContextHandler(personalization)
	healthHandler := handlers.NewHealthHandler(mongoDB, manager)

	app.Get("/health", healthHandler.Handle)
	app.Post("/api/chat", chatHandler.Handle)
	app.Delete("/api/chat/:sessionID", chatHandler.Clear)
	app.Get("/api/context/:sessionID", contextHandler.Fetch)
	app.Post("/api/context/:sessionID", contextHandler.SaveField)

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("⚠️ Server shutdown: %v", err)
		}
	}()

	log.Printf("🌐 Listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
	log.Println("👋 Server stopped")
}
