// Package redis implements the cache/stream store contract on Redis: field
// snapshots as TTL'd hashes, the alert log as a capped stream, the
// maintenance schedule as a sorted set scored by epoch time, and a TTL'd
// key namespace for query results.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store"
)

const (
	alertStream     = "alerts"
	maintenanceKey  = "maintenance_schedule"
	queryCachePfx   = "cache:query:"
	fieldKeyPfx     = "field:"
	updatedAtField  = "updated_at"
	fieldScanWindow = 100
)

// CacheStore implements store.CacheStore.
type CacheStore struct {
	client *redis.Client
}

// Open connects to Redis and returns a cache store.
func Open(addr string, db int) *CacheStore {
	return &CacheStore{client: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

// New wraps an existing client.
func New(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Ping verifies connectivity.
func (s *CacheStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// UpdateFieldMetrics writes the latest metric values for a field into the
// field:{id} hash and resets its expiry.
func (s *CacheStore) UpdateFieldMetrics(ctx context.Context, fieldID string, metrics map[string]float64, at time.Time) error {
	key := fieldKeyPfx + fieldID

	values := make(map[string]interface{}, len(metrics)+1)
	for name, v := range metrics {
		values[name] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	values[updatedAtField] = at.UTC().Format(time.RFC3339)

	if err := s.client.HSet(ctx, key, values).Err(); err != nil {
		return fmt.Errorf("failed to update metrics for %s: %w", fieldID, err)
	}
	if err := s.client.Expire(ctx, key, store.SnapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot expiry for %s: %w", fieldID, err)
	}
	return nil
}

// FieldMetrics reads the snapshot hash for a field, or nil when absent.
func (s *CacheStore) FieldMetrics(ctx context.Context, fieldID string) (*model.FieldMetricsSnapshot, error) {
	values, err := s.client.HGetAll(ctx, fieldKeyPfx+fieldID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics for %s: %w", fieldID, err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	snap := &model.FieldMetricsSnapshot{
		FieldID: fieldID,
		Metrics: make(map[string]float64, len(values)),
	}
	for name, raw := range values {
		if name == updatedAtField {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				snap.UpdatedAt = ts
			}
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue // foreign hash field, not one of ours
		}
		snap.Metrics[name] = v
	}
	return snap, nil
}

// PublishAlert appends to the alerts stream, trimming it to approximately
// the stream cap in the same call.
func (s *CacheStore) PublishAlert(ctx context.Context, alert model.Alert) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: alertStream,
		MaxLen: store.AlertStreamCap,
		Approx: true,
		Values: map[string]interface{}{
			"field_id":  alert.FieldID,
			"type":      alert.Type,
			"value":     strconv.FormatFloat(alert.Value, 'f', -1, 64),
			"threshold": strconv.FormatFloat(alert.Threshold, 'f', -1, 64),
			"severity":  string(alert.Severity),
			"timestamp": alert.Timestamp.UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish alert for %s: %w", alert.FieldID, err)
	}
	return nil
}

// RecentAlerts returns up to count alerts, newest first.
func (s *CacheStore) RecentAlerts(ctx context.Context, count int) ([]model.Alert, error) {
	messages, err := s.client.XRevRangeN(ctx, alertStream, "+", "-", int64(count)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}

	out := make([]model.Alert, 0, len(messages))
	for _, msg := range messages {
		out = append(out, decodeAlert(msg.Values))
	}
	return out, nil
}

// AlertsForField scans the recent stream window and filters by field id.
func (s *CacheStore) AlertsForField(ctx context.Context, fieldID string, count int) ([]model.Alert, error) {
	recent, err := s.RecentAlerts(ctx, fieldScanWindow)
	if err != nil {
		return nil, err
	}
	out := make([]model.Alert, 0, count)
	for _, a := range recent {
		if a.FieldID == fieldID {
			out = append(out, a)
			if len(out) == count {
				break
			}
		}
	}
	return out, nil
}

// ScheduleMaintenance adds a task to the schedule sorted set, scored by its
// scheduled epoch time. The member embeds the task id before the payload so
// completion can remove by id.
func (s *CacheStore) ScheduleMaintenance(ctx context.Context, task model.MaintenanceTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode maintenance task %s: %w", task.TaskID, err)
	}
	err = s.client.ZAdd(ctx, maintenanceKey, redis.Z{
		Score:  float64(task.ScheduledAt.Unix()),
		Member: task.TaskID + ":" + string(payload),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance task %s: %w", task.TaskID, err)
	}
	return nil
}

// UpcomingMaintenance returns tasks scheduled inside [from, to].
func (s *CacheStore) UpcomingMaintenance(ctx context.Context, from, to time.Time) ([]model.MaintenanceTask, error) {
	members, err := s.client.ZRangeByScore(ctx, maintenanceKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.Unix(), 10),
		Max: strconv.FormatInt(to.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read maintenance schedule: %w", err)
	}

	var out []model.MaintenanceTask
	for _, member := range members {
		_, payload, found := strings.Cut(member, ":")
		if !found {
			continue
		}
		var task model.MaintenanceTask
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			continue // malformed member, skip rather than fail the window
		}
		out = append(out, task)
	}
	return out, nil
}

// CompleteMaintenance removes a task by id, reporting whether it existed.
func (s *CacheStore) CompleteMaintenance(ctx context.Context, taskID string) (bool, error) {
	members, err := s.client.ZRange(ctx, maintenanceKey, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("failed to scan maintenance schedule: %w", err)
	}
	for _, member := range members {
		if strings.HasPrefix(member, taskID+":") {
			if err := s.client.ZRem(ctx, maintenanceKey, member).Err(); err != nil {
				return false, fmt.Errorf("failed to remove maintenance task %s: %w", taskID, err)
			}
			return true, nil
		}
	}
	return false, nil
}

// CacheQueryResult stores a TTL'd query payload.
func (s *CacheStore) CacheQueryResult(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, queryCachePfx+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache query result %s: %w", key, err)
	}
	return nil
}

// CachedQueryResult returns a cached payload if present.
func (s *CacheStore) CachedQueryResult(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, queryCachePfx+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached query %s: %w", key, err)
	}
	return payload, true, nil
}

func decodeAlert(values map[string]interface{}) model.Alert {
	alert := model.Alert{
		FieldID:  asString(values["field_id"]),
		Type:     asString(values["type"]),
		Severity: model.Severity(asString(values["severity"])),
	}
	alert.Value, _ = strconv.ParseFloat(asString(values["value"]), 64)
	alert.Threshold, _ = strconv.ParseFloat(asString(values["threshold"]), 64)
	if ts, err := time.Parse(time.RFC3339, asString(values["timestamp"])); err == nil {
		alert.Timestamp = ts
	}
	return alert
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
