package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/auth"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/client"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/config"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/handler"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/middleware"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/service"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/store"
	ws "github.com/flexpertsdev/mitchly-music-generator-sub000/internal/websocket"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients with a shared retry policy
	retryPolicy := client.PolicyFromConfig(&cfg.Retry)
	groqClient := client.NewGroqClient(&cfg.Groq, retryPolicy)
	falClient := client.NewFalClient(&cfg.Fal, retryPolicy)
	sunoClient := client.NewSunoClient(&cfg.Suno, retryPolicy)

	// Initialize R2 client (optional - continues if not configured)
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		var err error
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		}
	} else {
		log.Println("Info: R2 storage not configured, keeping provider audio URLs")
	}
	var storage client.StorageClient
	if r2Client != nil {
		storage = r2Client
	}

	// Initialize Zitadel JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.Zitadel.Issuer != "" {
		var err error
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Initialize store and services
	recordStore := store.NewRedisStore(redisClient)
	stageService := service.NewStageService(recordStore, groqClient, falClient, sunoClient, cfg.Pipeline, hub)
	pollService := service.NewPollService(recordStore, sunoClient, storage, cfg.Pipeline, hub)
	bandService := service.NewBandService(recordStore, stageService, asynqClient)

	// Initialize handlers
	bandHandler := handler.NewBandHandler(bandService, validate)
	songHandler := handler.NewSongHandler(bandService, pollService)
	pollHandler := handler.NewPollHandler(pollService, validate)

	// Initialize auth handler for ForwardAuth verification
	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	// Initialize middleware (with fallback support)
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		// Direct mode: auth is handled by the backend itself
		var authMiddleware *middleware.AuthMiddleware
		if jwksVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
		} else if jwksVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"groq": groqClient.IsConfigured(),
				"fal":  falClient.IsConfigured(),
				"suno": sunoClient.IsConfigured(),
				"r2":   r2Client != nil,
				"auth": jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Band routes
	bands := api.Group("/bands")
	bands.Post("/generate", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), bandHandler.Generate)
	bands.Get("/:bandId", bandHandler.Get)
	bands.Get("/:bandId/songs", bandHandler.Songs)
	bands.Post("/:bandId/resume", bandHandler.Resume)

	// Song routes
	songs := api.Group("/songs")
	songs.Get("/:songId", songHandler.Get)
	songs.Post("/:songId/process", songHandler.Process)
	songs.Post("/:songId/retry", rateLimiter.RetryLimit(cfg.RateLimit.GeneratePerHour), songHandler.Retry)
	songs.Post("/:songId/audio/wait", songHandler.WaitAudio)

	// Manual poll trigger
	api.Post("/poll", rateLimiter.PollLimit(cfg.RateLimit.PollPerMin), pollHandler.Run)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/bands/:bandId", websocket.New(func(c *websocket.Conn) {
		bandID := c.Params("bandId")
		hub.HandleConnection(c, bandID)
	}))

	// Start Asynq worker server and the poll scheduler
	go startWorkerServer(cfg, bandService, pollService)
	go startPollScheduler(cfg)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, bandService *service.BandService, pollService *service.PollService) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				service.QueueGeneration: 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	generationWorker := worker.NewGenerationWorker(bandService)
	pollWorker := worker.NewPollWorker(pollService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeBandGenerate, generationWorker.ProcessBandTask)
	mux.HandleFunc(service.TaskTypeSongProcess, generationWorker.ProcessSongTask)
	mux.HandleFunc(service.TaskTypeAudioPoll, pollWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

// startPollScheduler enqueues the periodic audio:poll task. The cycle itself
// applies per-song grace and cooldown, so a fixed cadence here is enough.
func startPollScheduler(cfg *config.Config) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		nil,
	)

	task, err := service.NewAudioPollTask(false)
	if err != nil {
		log.Printf("Poll scheduler: failed to build task: %v", err)
		return
	}

	interval := cfg.Pipeline.PollInterval
	if interval < time.Second {
		interval = 30 * time.Second
	}
	spec := "@every " + interval.String()
	if _, err := scheduler.Register(spec, task, asynq.Queue(service.QueueGeneration)); err != nil {
		log.Printf("Poll scheduler: failed to register: %v", err)
		return
	}

	if err := scheduler.Run(); err != nil {
		log.Printf("Poll scheduler error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
