package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"catalog-ingest/config"
	"catalog-ingest/internal/media"
	"catalog-ingest/internal/scraper"
	"catalog-ingest/internal/service"
	"catalog-ingest/internal/store"
	"catalog-ingest/internal/util"

	"go.uber.org/zap"
)

// ingest performs a single blocking run and exits non-zero when it fails.
func main() {
	categories := flag.String("categories", "", "comma separated category slugs, empty for all")
	mode := flag.String("mode", "", "fetcher mode override: static or dynamic")
	migrate := flag.Bool("migrate", false, "apply the schema before running")
	flag.Parse()

	cfg := config.Load()
	if *mode != "" {
		cfg.Parser.Mode = *mode
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrate || cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	extractor, err := scraper.NewExtractor(cfg.Parser.BaseURL)
	if err != nil {
		log.Fatalf("Invalid parser configuration: %v", err)
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
	writer := service.NewCatalogWriter(db, pipeline, nil)
	orchestrator := service.NewOrchestrator(cfg.Parser, db, writer, extractor)

	var opts service.StartOptions
	if *categories != "" {
		for _, s := range strings.Split(*categories, ",") {
			if s = strings.TrimSpace(s); s != "" {
				opts.Categories = append(opts.Categories, s)
			}
		}
	}

	stats, err := orchestrator.Run(ctx, opts)
	if err != nil {
		logger.Error("Ingestion failed", zap.Error(err), zap.Any("stats", stats))
		util.SyncLogger()
		os.Exit(1)
	}
	logger.Info("Ingestion finished",
		zap.Int("parsed", stats.Parsed),
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors))
}
