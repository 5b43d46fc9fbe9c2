package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/PryCoder/flowdesk/internal/api"
	"github.com/PryCoder/flowdesk/internal/auth"
	"github.com/PryCoder/flowdesk/internal/canvas"
	"github.com/PryCoder/flowdesk/internal/config"
	"github.com/PryCoder/flowdesk/internal/directory"
	"github.com/PryCoder/flowdesk/internal/room"
	"github.com/PryCoder/flowdesk/internal/snapshot"
	"github.com/PryCoder/flowdesk/internal/worker"
	"github.com/PryCoder/flowdesk/internal/ws"
)

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("❌ Invalid configuration: %v", err)
	}
	if cfg.JWTSecret == "" {
		logrus.Fatal("❌ JWT_SECRET is not set")
	}

	// 2. Snapshot cache (Redis, degrades to memory-only)
	var provider snapshot.Provider
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	redisOK := false
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.WithError(err).Warn("⚠️ Redis unavailable, snapshots are memory-only for this process")
		provider = snapshot.NewMemoryProvider(cfg.SnapshotTTL)
	} else {
		logrus.Info("✅ Connected to Redis")
		provider = snapshot.NewRedisProvider(redisClient, cfg.SnapshotTTL)
		redisOK = true
	}

	// 3. Directory (Postgres, degrades to open-join memory mode)
	var dir directory.Directory
	var creds directory.CredentialStore
	var store *directory.Store
	if cfg.DatabaseDSN != "" {
		store, err = directory.NewStore(cfg.DatabaseDSN)
		if err != nil {
			logrus.Fatalf("❌ Failed to connect to Postgres: %v", err)
		}
		if err := store.AutoMigrate(); err != nil {
			logrus.Fatalf("❌ Migration failed: %v", err)
		}
		logrus.Info("✅ Connected to PostgreSQL")
		dir = store
		creds = store
	} else {
		logrus.Warn("⚠️ DB_DSN not set, running with an open-join in-memory directory")
		mem := directory.NewMemoryDirectory(true)
		dir = mem
		creds = mem
	}

	// 4. Core engine
	presence := canvas.NewPresenceStore()
	registry := room.NewRegistry(provider, presence, cfg.ChatCap)

	// 5. Write-behind snapshot archive (needs both Redis and Postgres)
	var workerSrv *worker.Server
	if redisOK && store != nil {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		enqueuer := worker.NewEnqueuer(redisOpt)
		registry.SetArchiver(enqueuer)
		defer enqueuer.Close()

		workerSrv = worker.NewServer(redisOpt, store)
		if err := workerSrv.Start(); err != nil {
			logrus.Fatalf("❌ Failed to start worker: %v", err)
		}
		logrus.Info("✅ Snapshot archive worker started")
	}

	// 6. Gateway + HTTP surface
	hub := ws.NewHub(registry, presence, dir)
	go hub.Run()

	authService := auth.NewService(creds, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)
	authMiddleware := auth.NewMiddleware(authService)
	wsHandler := ws.NewHandler(hub)
	apiHandler := api.New(registry, provider)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	// Public
	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)
	r.Get("/health", apiHandler.Health)

	// Protected (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/ws", wsHandler.ServeWs)

		r.Get("/api/stats", apiHandler.Stats)
		r.Get("/api/rooms/{roomID}/snapshot", apiHandler.GetSnapshot)
		r.Post("/api/rooms/{roomID}/snapshot", apiHandler.SaveSnapshot)
	})

	// 7. Graceful shutdown: checkpoint every active room before exit.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logrus.Info("Shutting down, checkpointing active rooms...")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		registry.Shutdown(ctx)
		if workerSrv != nil {
			workerSrv.Shutdown()
		}
		if store != nil {
			store.Close()
		}
		os.Exit(0)
	}()

	logrus.Infof("🚀 Canvas server starting on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		logrus.Fatal(err)
	}
}
