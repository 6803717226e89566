package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/funnel/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	StageTemplates map[domain.Pipeline][]domain.StageTemplate
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service coordinates pipeline reads, status writes and stage management.
type Service struct {
	repo           Repository
	idGen          IDGenerator
	clock          Clock
	stageTemplates map[domain.Pipeline][]domain.StageTemplate
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	templates := map[domain.Pipeline][]domain.StageTemplate{}
	for _, p := range domain.Pipelines() {
		tpl := sanitizeStageTemplates(cfg.StageTemplates[p])
		if len(tpl) == 0 {
			tpl = domain.DefaultStageTemplates(p)
		}
		templates[p] = tpl
	}
	return &Service{
		repo:           repo,
		idGen:          idGen,
		clock:          clock,
		stageTemplates: templates,
	}
}

// ListItems returns every item of a pipeline.
func (s *Service) ListItems(ctx context.Context, p domain.Pipeline) ([]domain.Item, error) {
	return s.repo.ListItems(ctx, p)
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	return s.repo.GetItem(ctx, strings.TrimSpace(itemID))
}

// ListStages returns the pipeline's stages in display order, seeding the
// configured defaults the first time a pipeline is read.
func (s *Service) ListStages(ctx context.Context, p domain.Pipeline) ([]domain.Stage, error) {
	return s.EnsureDefaultStages(ctx, p)
}

// EnsureDefaultStages seeds the configured stage templates when a pipeline has
// no stored stages and returns the stored list otherwise.
func (s *Service) EnsureDefaultStages(ctx context.Context, p domain.Pipeline) ([]domain.Stage, error) {
	stages, err := s.repo.ListStages(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(stages) > 0 {
		return domain.SortedStages(stages), nil
	}

	seeded, err := domain.StagesFromTemplates(p, s.stageTemplates[p], s.clock())
	if err != nil {
		return nil, fmt.Errorf("seed %s stages: %w", p, err)
	}
	if err := s.repo.UpsertStages(ctx, p, seeded); err != nil {
		return nil, fmt.Errorf("seed %s stages: %w", p, err)
	}
	return seeded, nil
}

// UpdateItemStatus persists a single status change without validation.
// The board validates targets before calling it.
func (s *Service) UpdateItemStatus(ctx context.Context, itemID, status string) error {
	return s.repo.UpdateItemStatus(ctx, strings.TrimSpace(itemID), strings.TrimSpace(status), s.clock())
}

// MoveResult describes the outcome of a server-confirmed move.
type MoveResult struct {
	Item    domain.Item
	From    string
	Changed bool
}

// MoveItem validates and persists a stage transition. Moving an item onto its
// current stage succeeds without a write.
func (s *Service) MoveItem(ctx context.Context, p domain.Pipeline, itemID, status string) (MoveResult, error) {
	item, err := s.repo.GetItem(ctx, strings.TrimSpace(itemID))
	if err != nil {
		return MoveResult{}, err
	}
	if item.Pipeline != p {
		return MoveResult{}, fmt.Errorf("item %q in %s: %w", itemID, p, ErrNotFound)
	}
	stages, err := s.ListStages(ctx, p)
	if err != nil {
		return MoveResult{}, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if !domain.StageList(stages).Contains(status) {
		return MoveResult{}, fmt.Errorf("%w: %q", domain.ErrStageNotFound, status)
	}

	from := item.Status
	if from == status {
		return MoveResult{Item: item, From: from}, nil
	}
	now := s.clock()
	if err := item.SetStatus(status, now); err != nil {
		return MoveResult{}, err
	}
	if err := s.repo.UpdateItemStatus(ctx, item.ID, status, now); err != nil {
		return MoveResult{}, err
	}
	return MoveResult{Item: item, From: from, Changed: true}, nil
}

// SaveStages persists a full stage list as one batch: positions follow list
// order, missing stages are deleted, and stages still holding items are kept.
func (s *Service) SaveStages(ctx context.Context, p domain.Pipeline, stages []domain.Stage) ([]domain.Stage, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}
	now := s.clock()
	list := domain.StageList(stages).Normalize()
	for i := range list {
		list[i].Pipeline = p
		list[i].ID = strings.ToLower(strings.TrimSpace(list[i].ID))
		list[i].Title = strings.TrimSpace(list[i].Title)
		color, err := domain.NormalizeColor(list[i].Color)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", list[i].ID, err)
		}
		list[i].Color = color
		if list[i].CreatedAt.IsZero() {
			list[i].CreatedAt = now.UTC()
		}
		list[i].UpdatedAt = now.UTC()
	}
	if err := list.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListStages(ctx, p)
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0)
	for _, stage := range existing {
		if !list.Contains(stage.ID) {
			removed = append(removed, stage.ID)
		}
	}
	if len(removed) > 0 {
		items, err := s.repo.ListItems(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if slices.Contains(removed, item.Status) {
				return nil, fmt.Errorf("delete stage %q: %w", item.Status, ErrStageInUse)
			}
		}
	}

	if err := s.repo.UpsertStages(ctx, p, list); err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		if err := s.repo.DeleteStages(ctx, p, removed); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// EditStages loads the current stages, applies edit, and saves the result.
func (s *Service) EditStages(ctx context.Context, p domain.Pipeline, edit func(domain.StageList) (domain.StageList, error)) ([]domain.Stage, error) {
	stages, err := s.ListStages(ctx, p)
	if err != nil {
		return nil, err
	}
	next, err := edit(domain.StageList(stages))
	if err != nil {
		return nil, err
	}
	return s.SaveStages(ctx, p, next)
}

// AddStage appends a stage derived from title.
func (s *Service) AddStage(ctx context.Context, p domain.Pipeline, title, color string) (domain.Stage, error) {
	var added domain.Stage
	_, err := s.EditStages(ctx, p, func(list domain.StageList) (domain.StageList, error) {
		next, stage, err := list.Add(p, title, color, s.clock())
		added = stage
		return next, err
	})
	if err != nil {
		return domain.Stage{}, err
	}
	return added, nil
}

// RenameStage renames one stage.
func (s *Service) RenameStage(ctx context.Context, p domain.Pipeline, id, title string) ([]domain.Stage, error) {
	return s.EditStages(ctx, p, func(list domain.StageList) (domain.StageList, error) {
		return list.Rename(id, title, s.clock())
	})
}

// RecolorStage changes one stage color.
func (s *Service) RecolorStage(ctx context.Context, p domain.Pipeline, id, color string) ([]domain.Stage, error) {
	return s.EditStages(ctx, p, func(list domain.StageList) (domain.StageList, error) {
		return list.Recolor(id, color, s.clock())
	})
}

// DeleteStage removes one stage that holds no items.
func (s *Service) DeleteStage(ctx context.Context, p domain.Pipeline, id string) ([]domain.Stage, error) {
	return s.EditStages(ctx, p, func(list domain.StageList) (domain.StageList, error) {
		return list.Remove(id)
	})
}

// MoveStage reorders one stage to index.
func (s *Service) MoveStage(ctx context.Context, p domain.Pipeline, id string, index int) ([]domain.Stage, error) {
	return s.EditStages(ctx, p, func(list domain.StageList) (domain.StageList, error) {
		return list.Move(id, index, s.clock())
	})
}

// sanitizeStageTemplates drops blank templates and duplicate ids.
func sanitizeStageTemplates(in []domain.StageTemplate) []domain.StageTemplate {
	out := make([]domain.StageTemplate, 0, len(in))
	seen := map[string]struct{}{}
	for _, tpl := range in {
		tpl.ID = strings.ToLower(strings.TrimSpace(tpl.ID))
		tpl.Title = strings.TrimSpace(tpl.Title)
		if tpl.ID == "" || tpl.Title == "" {
			continue
		}
		if _, ok := seen[tpl.ID]; ok {
			continue
		}
		seen[tpl.ID] = struct{}{}
		out = append(out, tpl)
	}
	return out
}
