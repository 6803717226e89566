package common

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/funnel/internal/app"
	"github.com/evanschultz/funnel/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service pipeline APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// Board returns the partitioned board of one pipeline.
func (a *AppServiceAdapter) Board(ctx context.Context, pipeline string) (Board, error) {
	if err := a.ready(); err != nil {
		return Board{}, err
	}
	p, err := parsePipeline(pipeline)
	if err != nil {
		return Board{}, err
	}
	summary, err := a.service.Summary(ctx, p)
	if err != nil {
		return Board{}, mapAppError("board", err)
	}

	out := Board{
		Pipeline: string(summary.Pipeline),
		Columns:  make([]Column, 0, len(summary.Columns)),
		Count:    summary.Count,
		Total:    summary.Total,
	}
	for i, col := range summary.Columns {
		column := Column{
			Stage: Stage{ID: col.StageID, Title: col.Title, Color: col.Color, Position: i},
			Count: col.Count,
			Total: col.Total,
			Items: make([]Item, 0, len(col.Items)),
		}
		for _, item := range col.Items {
			column.Items = append(column.Items, itemFromSnapshot(item))
		}
		out.Columns = append(out.Columns, column)
	}
	for _, item := range summary.Unplaced {
		out.Unplaced = append(out.Unplaced, itemFromSnapshot(item))
	}
	return out, nil
}

// ListStages returns stages of one pipeline in display order.
func (a *AppServiceAdapter) ListStages(ctx context.Context, pipeline string) ([]Stage, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	p, err := parsePipeline(pipeline)
	if err != nil {
		return nil, err
	}
	stages, err := a.service.ListStages(ctx, p)
	if err != nil {
		return nil, mapAppError("list stages", err)
	}
	return stagesFromDomain(stages), nil
}

// SaveStages replaces the stage list of one pipeline. Rows without an id get
// one derived from their title.
func (a *AppServiceAdapter) SaveStages(ctx context.Context, pipeline string, in []StageInput) ([]Stage, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	p, err := parsePipeline(pipeline)
	if err != nil {
		return nil, err
	}
	if len(in) == 0 {
		return nil, fmt.Errorf("save stages: %w", errors.Join(ErrInvalidRequest, app.ErrNoStages))
	}
	current, err := a.service.ListStages(ctx, p)
	if err != nil {
		return nil, mapAppError("save stages", err)
	}
	existing := domain.StageList(current)

	// Explicit ids are reserved up front so a derived id never takes one
	// that a later row names.
	reserved := make(domain.StageList, 0, len(in))
	for _, row := range in {
		if id := strings.ToLower(strings.TrimSpace(row.ID)); id != "" {
			reserved = append(reserved, domain.Stage{ID: id})
		}
	}

	now := time.Now().UTC()
	next := make(domain.StageList, 0, len(in))
	for _, row := range in {
		id := strings.ToLower(strings.TrimSpace(row.ID))
		if id == "" {
			taken := append(slices.Clone(next), reserved...)
			_, stage, err := taken.Add(p, row.Title, row.Color, now)
			if err != nil {
				return nil, mapAppError("save stages", err)
			}
			next = append(next, stage)
			continue
		}
		stage := domain.Stage{ID: id, Pipeline: p, Title: row.Title, Color: row.Color}
		if idx := existing.Index(id); idx >= 0 {
			stage.CreatedAt = existing[idx].CreatedAt
		}
		next = append(next, stage)
	}

	saved, err := a.service.SaveStages(ctx, p, next)
	if err != nil {
		return nil, mapAppError("save stages", err)
	}
	return stagesFromDomain(saved), nil
}

// MoveItem moves one item into a stage and reports whether anything changed.
func (a *AppServiceAdapter) MoveItem(ctx context.Context, in MoveItemRequest) (MoveItemResult, error) {
	if err := a.ready(); err != nil {
		return MoveItemResult{}, err
	}
	p, err := parsePipeline(in.Pipeline)
	if err != nil {
		return MoveItemResult{}, err
	}
	if strings.TrimSpace(in.ItemID) == "" {
		return MoveItemResult{}, fmt.Errorf("item_id is required: %w", ErrInvalidRequest)
	}
	if strings.TrimSpace(in.Status) == "" {
		return MoveItemResult{}, fmt.Errorf("status is required: %w", ErrInvalidRequest)
	}
	res, err := a.service.MoveItem(ctx, p, in.ItemID, in.Status)
	if err != nil {
		return MoveItemResult{}, mapAppError("move item", err)
	}
	return MoveItemResult{
		Item:    itemFromDomain(res.Item),
		From:    res.From,
		Changed: res.Changed,
	}, nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrInvalidRequest)
	}
	return nil
}

func parsePipeline(raw string) (domain.Pipeline, error) {
	p, err := domain.ParsePipeline(raw)
	if err != nil {
		return "", fmt.Errorf("pipeline %q: %w", raw, errors.Join(ErrInvalidRequest, err))
	}
	return p, nil
}

// mapAppError maps app and domain failures into transport-facing error categories.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrStageInUse):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrStageNotFound),
		errors.Is(err, domain.ErrDuplicateStage),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPipeline),
		errors.Is(err, domain.ErrInvalidColor),
		errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, app.ErrNoStages):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

func stagesFromDomain(stages []domain.Stage) []Stage {
	out := make([]Stage, 0, len(stages))
	for _, s := range stages {
		out = append(out, Stage{ID: s.ID, Title: s.Title, Color: s.Color, Position: s.Position})
	}
	return out
}

func itemFromDomain(item domain.Item) Item {
	return Item{
		ID:              item.ID,
		Pipeline:        string(item.Pipeline),
		Status:          item.Status,
		Title:           item.Title,
		Person:          item.Person,
		Organization:    item.Organization,
		Owner:           item.Owner,
		Tag:             item.Tag,
		Value:           string(item.Value),
		Amount:          item.Amount(),
		Probability:     item.Probability,
		ExpectedCloseAt: item.ExpectedCloseAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

func itemFromSnapshot(item app.SnapshotItem) Item {
	return Item{
		ID:              item.ID,
		Pipeline:        string(item.Pipeline),
		Status:          item.Status,
		Title:           item.Title,
		Person:          item.Person,
		Organization:    item.Organization,
		Owner:           item.Owner,
		Tag:             item.Tag,
		Value:           string(item.Value),
		Amount:          item.Value.Float(),
		Probability:     item.Probability,
		ExpectedCloseAt: item.ExpectedCloseAt,
	}
}
