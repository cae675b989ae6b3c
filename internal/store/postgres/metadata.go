// Package postgres implements the metadata store contract on PostgreSQL via
// gorm. Collections map to tables; topology ingestion uses truncate-then-
// insert semantics so a re-run converges to identical row counts.
package postgres

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store"
)

const insertBatchSize = 100

// MetadataStore implements store.MetadataStore.
type MetadataStore struct {
	db *gorm.DB
}

// Open connects to PostgreSQL and returns a metadata store.
func Open(dsn string) (*MetadataStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to metadata store: %w", err)
	}
	return &MetadataStore{db: db}, nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *MetadataStore {
	return &MetadataStore{db: db}
}

// Init migrates the metadata tables. AutoMigrate is additive, so calling it
// against an existing schema is safe.
func (s *MetadataStore) Init(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&model.Farm{},
		&model.Field{},
		&model.Farmer{},
		&model.TreatmentEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate metadata schema: %w", err)
	}
	return nil
}

// ReplaceTopology truncates and repopulates the farms, fields, and
// farmer_profiles tables in one transaction.
func (s *MetadataStore) ReplaceTopology(ctx context.Context, farms []model.Farm, fields []model.Field, farmers []model.Farmer) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"fields", "farms", "farmer_profiles"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		if len(farmers) > 0 {
			if err := tx.CreateInBatches(farmers, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert farmer profiles: %w", err)
			}
		}
		if len(farms) > 0 {
			if err := tx.CreateInBatches(farms, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert farms: %w", err)
			}
		}
		if len(fields) > 0 {
			if err := tx.CreateInBatches(fields, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert fields: %w", err)
			}
		}
		return nil
	})
}

// ReplaceTreatmentEvents truncates and repopulates treatment_events.
func (s *MetadataStore) ReplaceTreatmentEvents(ctx context.Context, events []model.TreatmentEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM treatment_events").Error; err != nil {
			return fmt.Errorf("failed to clear treatment_events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(events, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert treatment events: %w", err)
		}
		return nil
	})
}

// FieldExists checks if a field with the given ID exists
func (s *MetadataStore) FieldExists(ctx context.Context, fieldID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Field{}).Where("field_id = ?", fieldID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Counts returns row counts per collection.
func (s *MetadataStore) Counts(ctx context.Context) (store.MetadataCounts, error) {
	var counts store.MetadataCounts
	db := s.db.WithContext(ctx)

	if err := db.Model(&model.Farm{}).Count(&counts.Farms).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&model.Field{}).Count(&counts.Fields).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&model.Farmer{}).Count(&counts.Farmers).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&model.TreatmentEvent{}).Count(&counts.TreatmentEvents).Error; err != nil {
		return counts, err
	}
	return counts, nil
}
