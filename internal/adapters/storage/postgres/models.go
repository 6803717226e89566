package postgres

import (
	"time"

	"github.com/evanschultz/funnel/internal/domain"
)

type itemRecord struct {
	ID              string     `gorm:"primaryKey"`
	Pipeline        string     `gorm:"not null;index:idx_pipeline_items_pipeline_status"`
	Status          string     `gorm:"not null;index:idx_pipeline_items_pipeline_status"`
	Title           string     `gorm:"not null"`
	Person          string     `gorm:"not null"`
	Organization    string     `gorm:"not null"`
	Owner           string     `gorm:"not null"`
	Tag             string     `gorm:"not null"`
	Value           string     `gorm:"not null"`
	Probability     *int
	ExpectedCloseAt *time.Time
	Notes           string `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (itemRecord) TableName() string { return "pipeline_items" }

type stageRecord struct {
	Pipeline  string `gorm:"primaryKey"`
	ID        string `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	Color     string `gorm:"not null"`
	Position  int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (stageRecord) TableName() string { return "pipeline_stages" }

type cardPreferenceRecord struct {
	UserID    string   `gorm:"primaryKey"`
	Fields    []string `gorm:"serializer:json;not null"`
	UpdatedAt time.Time
}

func (cardPreferenceRecord) TableName() string { return "card_preferences" }

func itemRecordFromDomain(item domain.Item) itemRecord {
	return itemRecord{
		ID:              item.ID,
		Pipeline:        string(item.Pipeline),
		Status:          item.Status,
		Title:           item.Title,
		Person:          item.Person,
		Organization:    item.Organization,
		Owner:           item.Owner,
		Tag:             item.Tag,
		Value:           string(item.Value),
		Probability:     item.Probability,
		ExpectedCloseAt: item.ExpectedCloseAt,
		Notes:           item.Notes,
		CreatedAt:       item.CreatedAt.UTC(),
		UpdatedAt:       item.UpdatedAt.UTC(),
	}
}

func (r itemRecord) toDomain() domain.Item {
	item := domain.Item{
		ID:              r.ID,
		Pipeline:        domain.Pipeline(r.Pipeline),
		Status:          r.Status,
		Title:           r.Title,
		Person:          r.Person,
		Organization:    r.Organization,
		Owner:           r.Owner,
		Tag:             r.Tag,
		Value:           domain.MonetaryValue(r.Value),
		Probability:     r.Probability,
		ExpectedCloseAt: r.ExpectedCloseAt,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if item.ExpectedCloseAt != nil {
		t := item.ExpectedCloseAt.UTC()
		item.ExpectedCloseAt = &t
	}
	return item
}

func stageRecordFromDomain(p domain.Pipeline, s domain.Stage) stageRecord {
	return stageRecord{
		Pipeline:  string(p),
		ID:        s.ID,
		Title:     s.Title,
		Color:     s.Color,
		Position:  s.Position,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}
}

func (r stageRecord) toDomain() domain.Stage {
	return domain.Stage{
		ID:        r.ID,
		Pipeline:  domain.Pipeline(r.Pipeline),
		Title:     r.Title,
		Color:     r.Color,
		Position:  r.Position,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}
