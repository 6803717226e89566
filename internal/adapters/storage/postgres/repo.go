// Package postgres stores pipelines in a hosted PostgreSQL database through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/evanschultz/funnel/internal/app"
	"github.com/evanschultz/funnel/internal/domain"
)

// Repository implements the app repository and preference backend on gorm.
type Repository struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	repo := New(db)
	if err := repo.Migrate(context.Background()); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

// New wraps an open gorm handle without migrating.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the tables.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&stageRecord{}, &itemRecord{}, &cardPreferenceRecord{}); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ListItems lists items of one pipeline.
func (r *Repository) ListItems(ctx context.Context, p domain.Pipeline) ([]domain.Item, error) {
	var records []itemRecord
	if err := r.db.WithContext(ctx).Where("pipeline = ?", string(p)).Order("created_at, id").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Item, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

// GetItem returns one item.
func (r *Repository) GetItem(ctx context.Context, id string) (domain.Item, error) {
	var rec itemRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Item{}, app.ErrNotFound
		}
		return domain.Item{}, err
	}
	return rec.toDomain(), nil
}

// UpsertItems inserts or replaces items in one statement.
func (r *Repository) UpsertItems(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	records := make([]itemRecord, 0, len(items))
	for _, item := range items {
		records = append(records, itemRecordFromDomain(item))
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"pipeline", "status", "title", "person", "organization", "owner", "tag",
			"value", "probability", "expected_close_at", "notes", "updated_at",
		}),
	}).Create(&records).Error
}

// UpdateItemStatus changes exactly the status column of one item.
func (r *Repository) UpdateItemStatus(ctx context.Context, id, status string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&itemRecord{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"status":     status,
		"updated_at": at.UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ListStages lists stages of one pipeline by position.
func (r *Repository) ListStages(ctx context.Context, p domain.Pipeline) ([]domain.Stage, error) {
	var records []stageRecord
	if err := r.db.WithContext(ctx).Where("pipeline = ?", string(p)).Order("position, id").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Stage, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

// UpsertStages writes a stage batch in one transaction.
func (r *Repository) UpsertStages(ctx context.Context, p domain.Pipeline, stages []domain.Stage) error {
	if len(stages) == 0 {
		return nil
	}
	records := make([]stageRecord, 0, len(stages))
	for _, s := range stages {
		records = append(records, stageRecordFromDomain(p, s))
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pipeline"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "color", "position", "updated_at"}),
		}).Create(&records).Error
	})
}

// DeleteStages removes stages by id.
func (r *Repository) DeleteStages(ctx context.Context, p domain.Pipeline, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("pipeline = ? AND id IN ?", string(p), ids).Delete(&stageRecord{}).Error
}

// LoadCardFields returns the stored card field selection for user.
func (r *Repository) LoadCardFields(ctx context.Context, user string) ([]domain.FieldID, bool, error) {
	var rec cardPreferenceRecord
	if err := r.db.WithContext(ctx).Where("user_id = ?", user).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return domain.ParseFieldIDs(rec.Fields), true, nil
}

// SaveCardFields replaces the stored selection for user.
func (r *Repository) SaveCardFields(ctx context.Context, user string, fields []domain.FieldID) error {
	rec := cardPreferenceRecord{
		UserID:    user,
		Fields:    domain.FieldStrings(fields),
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fields", "updated_at"}),
	}).Create(&rec).Error
}
