package controller

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pasture-analytics/internal/generator"
	"pasture-analytics/internal/model"
	"pasture-analytics/internal/pipeline"
	"pasture-analytics/internal/store"

	"github.com/gin-gonic/gin"
)

const farmerFieldsCacheTTL = 5 * time.Minute

// PipelineController handles ingestion and field query HTTP requests
type PipelineController struct {
	orchestrator *pipeline.Orchestrator
	meta         store.MetadataStore
	cache        store.CacheStore
	graph        store.GraphStore
	logger       *slog.Logger

	genCfg  generator.Config
	numDays int

	// runMu serializes ingestion runs; concurrent replaces of the same
	// collections would interleave destructively.
	runMu sync.Mutex
}

// NewPipelineController creates a new pipeline controller
func NewPipelineController(orchestrator *pipeline.Orchestrator, meta store.MetadataStore, cache store.CacheStore, graph store.GraphStore, logger *slog.Logger, genCfg generator.Config, numDays int) *PipelineController {
	return &PipelineController{
		orchestrator: orchestrator,
		meta:         meta,
		cache:        cache,
		graph:        graph,
		logger:       logger,
		genCfg:       genCfg,
		numDays:      numDays,
	}
}

// TriggerIngestionRun handles POST /v1/ingestion/runs
// Body (optional JSON):
//   - seed (optional): Override the configured generation seed
//   - num_farms (optional): Override the configured farm count
func (c *PipelineController) TriggerIngestionRun(ctx *gin.Context) {
	startTime := time.Now()

	var body struct {
		Seed     *int64 `json:"seed"`
		NumFarms *int   `json:"num_farms"`
	}
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"message": "body must be a JSON object with optional seed and num_farms",
			})
			return
		}
	}

	genCfg := c.genCfg
	if body.Seed != nil {
		genCfg.Seed = *body.Seed
	}
	if body.NumFarms != nil {
		genCfg.NumFarms = *body.NumFarms
	}

	topo, err := generator.NewTopology(genCfg)
	if err != nil {
		c.logger.Warn("topology generation rejected",
			"num_farms", genCfg.NumFarms,
			"error", err.Error(),
		)
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid generation parameters",
			"message": err.Error(),
		})
		return
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()

	start := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -c.numDays)
	summary, err := c.orchestrator.Run(ctx.Request.Context(), topo, start)
	if err != nil {
		latency := time.Since(startTime)
		c.logger.Error("ingestion run failed",
			"seed", genCfg.Seed,
			"num_farms", genCfg.NumFarms,
			"error", err.Error(),
			"latency_ms", latency.Milliseconds(),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Ingestion run failed",
		})
		return
	}

	latency := time.Since(startTime)
	c.logger.Info("ingestion run completed",
		"seed", genCfg.Seed,
		"farms", summary.Metadata.Farms,
		"fields", summary.Metadata.Fields,
		"failed_fields", len(summary.FailedFields),
		"latency_ms", latency.Milliseconds(),
	)
	ctx.JSON(http.StatusOK, summary)
}

// GetFieldSnapshot handles GET /v1/fields/{field_id}/snapshot
func (c *PipelineController) GetFieldSnapshot(ctx *gin.Context) {
	fieldID := ctx.Param("field_id")

	exists, err := c.meta.FieldExists(ctx.Request.Context(), fieldID)
	if err != nil {
		c.logger.Error("failed to check field existence",
			"field_id", fieldID,
			"error", err.Error(),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to verify field existence",
		})
		return
	}
	if !exists {
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "Field not found",
			"message": fmt.Sprintf("Field %s does not exist", fieldID),
		})
		return
	}

	snap, err := c.cache.FieldMetrics(ctx.Request.Context(), fieldID)
	if err != nil {
		c.logger.Error("failed to read field snapshot",
			"field_id", fieldID,
			"error", err.Error(),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to read field snapshot",
		})
		return
	}
	if snap == nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "Snapshot not found",
			"message": fmt.Sprintf("No current snapshot for field %s", fieldID),
		})
		return
	}
	ctx.JSON(http.StatusOK, snap)
}

// GetFieldAlerts handles GET /v1/fields/{field_id}/alerts
// Query parameters:
//   - limit (optional): Maximum alerts to return (default: 20)
func (c *PipelineController) GetFieldAlerts(ctx *gin.Context) {
	fieldID := ctx.Param("field_id")
	limit, ok := parseLimit(ctx, 20)
	if !ok {
		return
	}

	alerts, err := c.cache.AlertsForField(ctx.Request.Context(), fieldID, limit)
	if err != nil {
		c.logger.Error("failed to read field alerts",
			"field_id", fieldID,
			"error", err.Error(),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to read alerts",
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"field_id": fieldID, "alerts": alerts})
}

// GetRecentAlerts handles GET /v1/alerts
// Query parameters:
//   - limit (optional): Maximum alerts to return (default: 50)
func (c *PipelineController) GetRecentAlerts(ctx *gin.Context) {
	limit, ok := parseLimit(ctx, 50)
	if !ok {
		return
	}

	alerts, err := c.cache.RecentAlerts(ctx.Request.Context(), limit)
	if err != nil {
		c.logger.Error("failed to read recent alerts", "error", err.Error())
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to read alerts",
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// GetFarmerFields handles GET /v1/farmers/{farmer_id}/fields
// The traversal result is served from the query cache when fresh.
func (c *PipelineController) GetFarmerFields(ctx *gin.Context) {
	farmerID := ctx.Param("farmer_id")
	cacheKey := "farmer_fields:" + farmerID

	if payload, ok, err := c.cache.CachedQueryResult(ctx.Request.Context(), cacheKey); err == nil && ok {
		ctx.Data(http.StatusOK, "application/json", payload)
		return
	}

	fields, err := c.graph.FieldsByFarmer(ctx.Request.Context(), farmerID)
	if err != nil {
		c.logger.Error("farmer fields traversal failed",
			"farmer_id", farmerID,
			"error", err.Error(),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to traverse farmer fields",
		})
		return
	}

	payload, err := json.Marshal(gin.H{"farmer_id": farmerID, "fields": fields})
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to encode response",
		})
		return
	}
	if err := c.cache.CacheQueryResult(ctx.Request.Context(), cacheKey, payload, farmerFieldsCacheTTL); err != nil {
		c.logger.Warn("query cache write failed", "key", cacheKey, "error", err.Error())
	}
	ctx.Data(http.StatusOK, "application/json", payload)
}

// ScheduleMaintenance handles POST /v1/maintenance
func (c *PipelineController) ScheduleMaintenance(ctx *gin.Context) {
	var body struct {
		TaskID      string    `json:"task_id"`
		FieldID     string    `json:"field_id"`
		TaskType    string    `json:"task_type"`
		Details     string    `json:"details"`
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"message": err.Error(),
		})
		return
	}
	if body.TaskID == "" || body.FieldID == "" || body.ScheduledAt.IsZero() {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required fields",
			"message": "task_id, field_id, and scheduled_at are required",
		})
		return
	}

	exists, err := c.meta.FieldExists(ctx.Request.Context(), body.FieldID)
	if err != nil {
		c.logger.Error("failed to check field existence",
			"field_id", body.FieldID,
			"error", err.Error(),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to verify field existence",
		})
		return
	}
	if !exists {
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "Field not found",
			"message": fmt.Sprintf("Field %s does not exist", body.FieldID),
		})
		return
	}

	task := model.MaintenanceTask{
		TaskID:      body.TaskID,
		FieldID:     body.FieldID,
		TaskType:    body.TaskType,
		Details:     body.Details,
		ScheduledAt: body.ScheduledAt.UTC(),
	}
	if err := c.cache.ScheduleMaintenance(ctx.Request.Context(), task); err != nil {
		c.logger.Error("failed to schedule maintenance",
			"task_id", task.TaskID,
			"error", err.Error(),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to schedule maintenance",
		})
		return
	}
	ctx.JSON(http.StatusCreated, task)
}

// GetUpcomingMaintenance handles GET /v1/maintenance/upcoming
// Query parameters:
//   - days (optional): Window length in days from now (default: 7)
func (c *PipelineController) GetUpcomingMaintenance(ctx *gin.Context) {
	days := 7
	if daysStr := ctx.Query("days"); daysStr != "" {
		d, err := strconv.Atoi(daysStr)
		if err != nil || d <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid days",
				"message": "days must be a positive integer",
			})
			return
		}
		days = d
	}

	now := time.Now().UTC()
	tasks, err := c.cache.UpcomingMaintenance(ctx.Request.Context(), now, now.AddDate(0, 0, days))
	if err != nil {
		c.logger.Error("failed to read maintenance schedule", "error", err.Error())
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to read maintenance schedule",
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// CompleteMaintenance handles POST /v1/maintenance/{task_id}/complete
func (c *PipelineController) CompleteMaintenance(ctx *gin.Context) {
	taskID := ctx.Param("task_id")

	removed, err := c.cache.CompleteMaintenance(ctx.Request.Context(), taskID)
	if err != nil {
		c.logger.Error("failed to complete maintenance task",
			"task_id", taskID,
			"error", err.Error(),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to complete maintenance task",
		})
		return
	}
	if !removed {
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "Task not found",
			"message": fmt.Sprintf("Maintenance task %s does not exist", taskID),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"task_id": taskID, "completed": true})
}

// HealthCheck handles GET /health
func (c *PipelineController) HealthCheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseLimit(ctx *gin.Context, def int) (int, bool) {
	limitStr := ctx.Query("limit")
	if limitStr == "" {
		return def, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid limit",
			"message": "limit must be a positive integer",
		})
		return 0, false
	}
	return limit, true
}
