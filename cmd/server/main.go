package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-ingest/config"
	"catalog-ingest/internal/api"
	"catalog-ingest/internal/broker"
	"catalog-ingest/internal/media"
	"catalog-ingest/internal/redisclient"
	"catalog-ingest/internal/scraper"
	"catalog-ingest/internal/service"
	"catalog-ingest/internal/store"
	"catalog-ingest/internal/util"
	"catalog-ingest/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting catalog ingest service", zap.String("base_url", cfg.Parser.BaseURL))

	tp, err := util.InitTracer("catalog-ingest", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		log.Println("Database schema applied")
	}

	extractor, err := scraper.NewExtractor(cfg.Parser.BaseURL)
	if err != nil {
		log.Fatalf("Invalid parser configuration: %v", err)
	}

	var opts []service.Option
	var events service.EventPublisher

	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		opts = append(opts, service.WithLocker(redisClient))
		log.Println("Redis connected, run lock enabled")
	}

	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		events = broker.NewEventPublisher(producer)
		opts = append(opts, service.WithEvents(events))
		log.Println("Kafka producer initialized")
	}

	pipeline := media.NewPipeline(media.Config{
		Dir:       cfg.Parser.ImageDir,
		URLPrefix: cfg.Parser.ImageURLPrefix,
		UserAgent: cfg.Parser.UserAgent,
		Referer:   extractor.Base().String() + "/",
		Timeout:   cfg.Parser.ImageTimeout,
		Delay:     cfg.Parser.ImageDelay,
		MaxImages: cfg.Parser.MaxImages,
	}, db)

	writer := service.NewCatalogWriter(db, pipeline, events)
	orchestrator := service.NewOrchestrator(cfg.Parser, db, writer, extractor, opts...)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var commandWorker *worker.CommandWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCommands, cfg.Kafka.ConsumerGroup)
		commandWorker = worker.NewCommandWorker(consumer, orchestrator)
		go func() {
			if err := commandWorker.Start(workerCtx); err != nil && err != context.Canceled {
				log.Printf("Command worker error: %v", err)
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(orchestrator, db, cfg.Auth.AdminJWTSecret)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := orchestrator.Stop(shutdownCtx); err == nil {
		log.Println("Active ingestion run stopped")
	}

	workerCancel()
	if commandWorker != nil {
		if err := commandWorker.Stop(); err != nil {
			log.Printf("Error stopping command worker: %v", err)
		}
	}

	log.Println("Server exited")
}
