package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/better-analytics/better-analytics-go/api"
	"github.com/better-analytics/better-analytics-go/cache"
	"github.com/better-analytics/better-analytics-go/ingest"
	"github.com/better-analytics/better-analytics-go/messaging"
	"github.com/better-analytics/better-analytics-go/models"
	"github.com/better-analytics/better-analytics-go/projections"
	"github.com/better-analytics/better-analytics-go/store"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the collection API server",
	Run:   runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) {
	log.Info().Msg("Starting server")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DBSource), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Auto migrate tables
	err = db.AutoMigrate(&models.ProcessedEvent{}, &models.Site{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	// Initialize event and site stores
	gormStore := store.NewGormStore(db)

	// Initialize the ingestion pipeline
	geo := ingest.NewGeolocator(cfg.GeoEndpoint, cfg.GeoTimeout)
	processor := ingest.NewProcessor(gormStore, gormStore, geo, cfg.IPHeaders)

	// Optional site-settings cache
	if cfg.RedisEnabled {
		redisClient, err := cache.NewRedisClient(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis, continuing without cache")
		} else {
			defer redisClient.Close()
			processor.WithCache(redisClient)
		}
	}

	// Optional search projection
	if cfg.ElasticSearchEnabled {
		esClient, err := projections.NewElasticsearchClient(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Elasticsearch")
		}
		if err := projections.EnsureIndices(esClient, cfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure Elasticsearch indices")
		}
		processor.WithIndexer(projections.NewEventIndexer(esClient, cfg))
	}

	// Optional downstream forwarder
	if cfg.AzureQueueConnStr != "" {
		forwarder, err := messaging.NewForwarder(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize service bus forwarder")
		}
		defer forwarder.Close(context.Background())
		processor.WithForwarder(forwarder)
	}

	// Initialize server
	server := api.NewServer(cfg, processor)

	// Start HTTP server
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server gracefully
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
