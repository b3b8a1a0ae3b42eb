package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/kbmirror/backend/internal/api/handlers"
	rediscache "github.com/kbmirror/backend/internal/cache/redis"
	"github.com/kbmirror/backend/internal/chat"
	"github.com/kbmirror/backend/internal/gateway"
	"github.com/kbmirror/backend/internal/keywords"
	"github.com/kbmirror/backend/internal/metrics"
	"github.com/kbmirror/backend/internal/middleware/ratelimit"
	"github.com/kbmirror/backend/internal/middleware/security"
	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/internal/storage/sqlite"
	"github.com/kbmirror/backend/internal/syncer"
	"github.com/kbmirror/backend/internal/upload"
	"github.com/kbmirror/backend/internal/vector/milvus"
	"github.com/kbmirror/backend/pkg/config"
	appLogger "github.com/kbmirror/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting knowledge-base mirror API server")

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cache *rediscache.Client
	if cfg.Redis.Enabled {
		cache, err = rediscache.NewClient(context.Background(), rediscache.Config{
			Host:           cfg.Redis.Host,
			Port:           cfg.Redis.Port,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			ModelListTTL:   time.Duration(cfg.Remote.ModelListTTL) * time.Second,
			ParseStatusTTL: time.Duration(cfg.Remote.ParseStatusTTL) * time.Second,
		})
		if err != nil {
			appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	var vectorClient *milvus.Client
	if cfg.Milvus.Enabled {
		vectorClient, err = milvus.NewClient(context.Background(), cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, cfg.Milvus.VectorDim)
		if err != nil {
			appLogger.Warn("Milvus unavailable, running without vector mirror", zap.Error(err))
			vectorClient = nil
		} else {
			defer vectorClient.Close()
			if err := vectorClient.EnsureCollection(context.Background()); err != nil {
				appLogger.Warn("Failed to prepare vector collection", zap.Error(err))
			}
		}
	}

	metrics.Init()

	engine := syncer.NewEngine(store)

	var indexer syncer.ChunkIndexer
	if vectorClient != nil {
		indexer = vectorClient
	}
	orchestrator := syncer.NewOrchestrator(store, engine, indexer, cfg.Remote.PageSize)

	gatewayFor := func(inst *models.Instance) *gateway.Client {
		return gateway.NewClient(inst.Name, inst.BaseURL, inst.APIKey, cfg.Remote.TimeoutSec, cfg.Remote.MaxRetries)
	}

	chatClient := chat.NewClient(chat.Options{
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
		TimeoutSec:  cfg.Chat.TimeoutSec,
	})
	preparer := upload.NewPreparer(cfg.Upload.MaxFileSize)
	extractor := keywords.NewExtractor(0)

	instanceHandler := handlers.NewInstanceHandler(store, gatewayFor)
	datasetHandler := handlers.NewDatasetHandler(store, orchestrator, engine, gatewayFor)
	documentHandler := handlers.NewDocumentHandler(store, orchestrator, preparer, gatewayFor, cfg.Upload.Dir, cache, vectorClient)
	chunkHandler := handlers.NewChunkHandler(store, engine, extractor, gatewayFor)
	assistantHandler := handlers.NewAssistantHandler(store, orchestrator, engine, chatClient, gatewayFor)
	modelHandler := handlers.NewModelHandler(store, engine, gatewayFor, cache)
	wsHandler := handlers.NewWebSocketHandler(store, chatClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	syncLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 30,
		Logger:               appLogger.GetLogger(),
	})
	defer syncLimiter.Stop()

	api := app.Group("/api/v1")

	api.Get("/instances", instanceHandler.List)
	api.Post("/instances", instanceHandler.Create)
	api.Get("/instances/:id", instanceHandler.Get)
	api.Put("/instances/:id", instanceHandler.Update)
	api.Delete("/instances/:id", instanceHandler.Delete)
	api.Post("/instances/:id/health", instanceHandler.CheckHealth)

	api.Get("/instances/:id/datasets", datasetHandler.List)
	api.Post("/instances/:id/datasets", datasetHandler.Create)
	api.Post("/instances/:id/sync", syncLimiter.Middleware(), datasetHandler.SyncAll)

	api.Get("/datasets/:id", datasetHandler.Get)
	api.Delete("/datasets/:id", datasetHandler.Delete)
	api.Post("/datasets/:id/sync-documents", syncLimiter.Middleware(), datasetHandler.SyncDocuments)
	api.Post("/datasets/:id/sync-chunks", syncLimiter.Middleware(), datasetHandler.SyncChunks)

	api.Get("/datasets/:id/documents", documentHandler.List)
	api.Post("/datasets/:id/documents", documentHandler.Upload)
	api.Get("/documents/:id", documentHandler.Get)
	api.Delete("/documents/:id", documentHandler.Delete)
	api.Post("/documents/:id/retry", documentHandler.Retry)
	api.Post("/documents/:id/parse", documentHandler.StartParse)
	api.Post("/documents/:id/stop-parse", documentHandler.StopParse)
	api.Get("/documents/:id/status", documentHandler.Status)
	api.Post("/documents/:id/sync-chunks", syncLimiter.Middleware(), documentHandler.SyncChunks)
	api.Get("/documents/:id/chunks", chunkHandler.List)
	api.Post("/documents/:id/chunks", chunkHandler.Add)
	api.Put("/chunks/:id", chunkHandler.Update)
	api.Delete("/chunks/:id", chunkHandler.Delete)

	api.Post("/instances/:id/retrieval", chunkHandler.Retrieve)

	api.Get("/instances/:id/assistants", assistantHandler.List)
	api.Post("/instances/:id/assistants", assistantHandler.Create)
	api.Put("/assistants/:id", assistantHandler.Update)
	api.Delete("/assistants/:id", assistantHandler.Delete)
	api.Post("/instances/:id/sync-assistants", syncLimiter.Middleware(), assistantHandler.SyncAll)
	api.Get("/assistants/:id/conversations", assistantHandler.ListConversations)
	api.Post("/assistants/:id/conversations", assistantHandler.CreateConversation)
	api.Post("/assistants/:id/messages", assistantHandler.SendMessage)
	api.Post("/assistants/:id/completions", assistantHandler.Complete)

	api.Get("/instances/:id/models", modelHandler.List)
	api.Post("/instances/:id/sync-models", syncLimiter.Middleware(), modelHandler.Sync)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
