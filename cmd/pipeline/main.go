// Command pipeline runs one full ingestion for the configured topology and
// then serves the query API. Every store falls back to its in-memory
// implementation when no endpoint is configured, so the binary works out of
// the box as a deterministic local simulator.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"pasture-analytics/internal/config"
	"pasture-analytics/internal/controller"
	"pasture-analytics/internal/generator"
	"pasture-analytics/internal/middleware"
	"pasture-analytics/internal/pipeline"
	"pasture-analytics/internal/store"
	"pasture-analytics/internal/store/cassandra"
	"pasture-analytics/internal/store/memory"
	"pasture-analytics/internal/store/neo4j"
	"pasture-analytics/internal/store/postgres"
	"pasture-analytics/internal/store/redis"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", "error", err.Error())
		os.Exit(1)
	}

	meta, ts, cache, graph, cleanup, err := openStores(cfg, logger)
	if err != nil {
		logger.Error("store connection failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanup()

	genCfg := generator.Config{NumFarms: cfg.NumFarms, Seed: cfg.Seed}
	orchestrator := pipeline.NewOrchestrator(meta, ts, cache, graph, logger, pipeline.Config{
		NumDays:        cfg.NumDays,
		ReadingsPerDay: cfg.ReadingsPerDay,
		BatchSize:      cfg.BatchSize,
		Workers:        cfg.Workers,
		MaxRetries:     cfg.MaxRetries,
	})

	topo, err := generator.NewTopology(genCfg)
	if err != nil {
		logger.Error("topology generation failed", "error", err.Error())
		os.Exit(1)
	}

	ctx := context.Background()
	if _, err := orchestrator.Run(ctx, topo, cfg.Start(time.Now())); err != nil {
		logger.Error("initial ingestion run failed", "error", err.Error())
		os.Exit(1)
	}

	ctrl := controller.NewPipelineController(orchestrator, meta, cache, graph, logger, genCfg, cfg.NumDays)
	router := newRouter(ctrl, logger)

	logger.Info("serving", "addr", cfg.HTTPAddr)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		logger.Error("server stopped", "error", err.Error())
		os.Exit(1)
	}
}

func newRouter(ctrl *controller.PipelineController, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.StructuredLoggingMiddleware(logger))

	router.GET("/health", ctrl.HealthCheck)
	router.GET("/metrics", middleware.MetricsHandler)

	v1 := router.Group("/v1")
	{
		v1.POST("/ingestion/runs", ctrl.TriggerIngestionRun)
		v1.GET("/fields/:field_id/snapshot", ctrl.GetFieldSnapshot)
		v1.GET("/fields/:field_id/alerts", ctrl.GetFieldAlerts)
		v1.GET("/alerts", ctrl.GetRecentAlerts)
		v1.GET("/farmers/:farmer_id/fields", ctrl.GetFarmerFields)
		v1.POST("/maintenance", ctrl.ScheduleMaintenance)
		v1.GET("/maintenance/upcoming", ctrl.GetUpcomingMaintenance)
		v1.POST("/maintenance/:task_id/complete", ctrl.CompleteMaintenance)
	}
	return router
}

// openStores connects each configured backend, substituting the in-memory
// implementation for any store without an endpoint.
func openStores(cfg config.Config, logger *slog.Logger) (store.MetadataStore, store.TimeSeriesStore, store.CacheStore, store.GraphStore, func(), error) {
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	var meta store.MetadataStore
	if cfg.PostgresDSN != "" {
		pg, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, nil, err
		}
		meta = pg
	} else {
		logger.Info("metadata store: in-memory")
		meta = memory.NewMetadataStore()
	}

	var ts store.TimeSeriesStore
	if len(cfg.CassandraHosts) > 0 {
		cs, err := cassandra.Open(cfg.CassandraHosts, cfg.StoreTimeout)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, nil, err
		}
		closers = append(closers, cs.Close)
		ts = cs
	} else {
		logger.Info("time-series store: in-memory")
		ts = memory.NewTimeSeriesStore()
	}

	var cache store.CacheStore
	if cfg.RedisAddr != "" {
		cache = redis.Open(cfg.RedisAddr, 0)
	} else {
		logger.Info("cache store: in-memory")
		cache = memory.NewCacheStore()
	}

	var graph store.GraphStore
	if cfg.Neo4jURI != "" {
		g, err := neo4j.Open(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, nil, err
		}
		closers = append(closers, func() { _ = g.Close(context.Background()) })
		graph = g
	} else {
		logger.Info("graph store: in-memory")
		graph = memory.NewGraphStore()
	}

	return meta, ts, cache, graph, cleanup, nil
}
