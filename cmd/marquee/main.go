package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"marquee/internal/api"
	"marquee/internal/config"
	"marquee/internal/db"
	"marquee/internal/hero"
	"marquee/internal/jobs"
	"marquee/internal/metadata"
	"marquee/internal/models"
	"marquee/internal/policy"
	"marquee/internal/poolcache"
	"marquee/internal/scheduler"
	"marquee/internal/version"
)

func main() {
	ver := version.Load()
	log.Printf("Marquee %s starting...", ver.Version)

	cfg := config.Load()

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("database open failed: %v", err)
	}
	defer database.Close()

	cfg.MergeFromDB(database.DB)

	ctx := context.Background()
	loader := policy.NewLoader(cfg.PolicySource)
	pol := loader.Load(ctx)
	if issues := loader.ValidationIssues(); len(issues) > 0 {
		log.Printf("policy loaded with %d issue(s): %v", len(issues), issues)
	}
	log.Printf("policy hash %s (source=%s)", loader.CurrentHash(), cfg.PolicySource)

	client := metadata.NewClient(cfg.TMDBAPIKey, cfg.TMDBToken)
	if !client.Configured() {
		log.Println("TMDB credentials not set, pools will use catalog data only")
	}
	enricher := metadata.NewEnricher(client, database.DB, pol.TTL(), pol.Language)

	// Session tier is Redis when configured, in-process memory otherwise.
	// The SQLite tier survives restarts either way.
	var sessionTier poolcache.Tier = poolcache.NewMemoryTier()
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		sessionTier = poolcache.NewRedisTier(redisClient, pol.TTL()+pol.Grace())
		log.Printf("session cache on redis at %s", cfg.RedisAddr)
	}
	store := poolcache.NewStore(sessionTier, poolcache.NewSQLiteTier(database.DB))

	builder := hero.NewBuilder(enricher)
	flags := hero.Flags{EnvOverride: cfg.HeroEnabled, Settings: nil}

	var srv *api.Server
	builder.OnProgress = func(ev hero.ProgressEvent) {
		if srv == nil {
			return
		}
		event := "hero:progress"
		if ev.Done {
			event = "hero:complete"
		}
		srv.WSHub().Broadcast(event, ev)
	}

	orch := hero.NewOrchestrator(loader, nil, builder, store, flags)

	// Rebuilds go through asynq when Redis is available, otherwise a
	// direct goroutine.
	var queue *jobs.Queue
	rebuild := func(kind models.MediaKind) error {
		go func() {
			if _, err := orch.Rebuild(context.Background(), kind); err != nil && err != hero.ErrDisabled {
				log.Printf("background rebuild %s failed: %v", kind, err)
			}
		}()
		return nil
	}
	if cfg.RedisAddr != "" {
		queue = jobs.NewQueue(cfg.RedisAddr)
		rebuild = func(kind models.MediaKind) error {
			_, err := queue.EnqueueUnique(jobs.TaskHeroRebuild,
				jobs.HeroRebuildPayload{Kind: string(kind)}, "hero:rebuild:"+string(kind))
			return err
		}
	}

	srv = api.NewServer(cfg, database, loader, orch, rebuild)
	orch.Catalog = srv.CatalogRepo()
	orch.Flags.Settings = srv.SettingsRepo()

	if queue != nil {
		jobs.RegisterHandlers(queue, orch, loader, srv.WSHub())
		if err := queue.Start(ctx); err != nil {
			log.Fatalf("job queue start failed: %v", err)
		}
		defer queue.Stop()
	}

	rotation := scheduler.New(loader, func(kind models.MediaKind) {
		if err := rebuild(kind); err != nil {
			log.Printf("rotation rebuild %s failed: %v", kind, err)
		}
	})
	rotation.Short = orch.ShortPool
	rotation.Start()
	defer rotation.Stop()

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
}
