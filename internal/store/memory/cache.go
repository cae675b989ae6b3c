package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store"
)

type cachedSnapshot struct {
	snapshot model.FieldMetricsSnapshot
	expires  time.Time
}

type cachedPayload struct {
	payload []byte
	expires time.Time
}

// CacheStore is an in-memory store.CacheStore. TTLs are enforced lazily on
// read; the alert log is trimmed on write like the real stream.
type CacheStore struct {
	mu          sync.RWMutex
	snapshots   map[string]cachedSnapshot
	alerts      []model.Alert
	maintenance []model.MaintenanceTask
	queryCache  map[string]cachedPayload

	now func() time.Time
}

// NewCacheStore returns an empty cache store.
func NewCacheStore() *CacheStore {
	return &CacheStore{
		snapshots:  make(map[string]cachedSnapshot),
		queryCache: make(map[string]cachedPayload),
		now:        time.Now,
	}
}

// UpdateFieldMetrics writes the latest-value snapshot for a field with the
// standard snapshot TTL.
func (s *CacheStore) UpdateFieldMetrics(ctx context.Context, fieldID string, metrics map[string]float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(map[string]float64, len(metrics))
	for k, v := range metrics {
		copied[k] = v
	}
	s.snapshots[fieldID] = cachedSnapshot{
		snapshot: model.FieldMetricsSnapshot{FieldID: fieldID, Metrics: copied, UpdatedAt: at},
		expires:  s.now().Add(store.SnapshotTTL),
	}
	return nil
}

// FieldMetrics returns the snapshot for a field, or nil if absent or expired.
func (s *CacheStore) FieldMetrics(ctx context.Context, fieldID string) (*model.FieldMetricsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.snapshots[fieldID]
	if !ok || s.now().After(entry.expires) {
		return nil, nil
	}
	snap := entry.snapshot
	return &snap, nil
}

// PublishAlert appends to the alert log, trimming to the stream cap.
func (s *CacheStore) PublishAlert(ctx context.Context, alert model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > store.AlertStreamCap {
		s.alerts = s.alerts[len(s.alerts)-store.AlertStreamCap:]
	}
	return nil
}

// RecentAlerts returns up to count alerts, newest first.
func (s *CacheStore) RecentAlerts(ctx context.Context, count int) ([]model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Alert, 0, count)
	for i := len(s.alerts) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, s.alerts[i])
	}
	return out, nil
}

// AlertsForField scans the recent window and filters by field id.
func (s *CacheStore) AlertsForField(ctx context.Context, fieldID string, count int) ([]model.Alert, error) {
	recent, err := s.RecentAlerts(ctx, 100)
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

// ScheduleMaintenance adds a task ordered by scheduled time.
func (s *CacheStore) ScheduleMaintenance(ctx context.Context, task model.MaintenanceTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maintenance = append(s.maintenance, task)
	sort.SliceStable(s.maintenance, func(i, j int) bool {
		return s.maintenance[i].ScheduledAt.Before(s.maintenance[j].ScheduledAt)
	})
	return nil
}

// UpcomingMaintenance returns tasks scheduled inside [from, to].
func (s *CacheStore) UpcomingMaintenance(ctx context.Context, from, to time.Time) ([]model.MaintenanceTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.MaintenanceTask
	for _, t := range s.maintenance {
		if !t.ScheduledAt.Before(from) && !t.ScheduledAt.After(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

// CompleteMaintenance removes a task by id, reporting whether it existed.
func (s *CacheStore) CompleteMaintenance(ctx context.Context, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.maintenance {
		if t.TaskID == taskID {
			s.maintenance = append(s.maintenance[:i], s.maintenance[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// CacheQueryResult stores a TTL'd query payload.
func (s *CacheStore) CacheQueryResult(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queryCache[key] = cachedPayload{
		payload: append([]byte(nil), payload...),
		expires: s.now().Add(ttl),
	}
	return nil
}

// CachedQueryResult returns a cached payload if present and unexpired.
func (s *CacheStore) CachedQueryResult(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.queryCache[key]
	if !ok || s.now().After(entry.expires) {
		return nil, false, nil
	}
	return append([]byte(nil), entry.payload...), true, nil
}

// AlertCount reports the current alert log length.
func (s *CacheStore) AlertCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// SetClock overrides the store's clock. Test hook for TTL behavior.
func (s *CacheStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
