package app

import (
	"context"
	"time"

	"github.com/evanschultz/funnel/internal/domain"
)

// Repository represents the persistence collaborator used by the service.
type Repository interface {
	ListItems(context.Context, domain.Pipeline) ([]domain.Item, error)
	GetItem(context.Context, string) (domain.Item, error)
	UpsertItems(context.Context, []domain.Item) error
	UpdateItemStatus(context.Context, string, string, time.Time) error

	ListStages(context.Context, domain.Pipeline) ([]domain.Stage, error)
	UpsertStages(context.Context, domain.Pipeline, []domain.Stage) error
	DeleteStages(context.Context, domain.Pipeline, []string) error
}
