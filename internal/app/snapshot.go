package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/funnel/internal/board"
	"github.com/evanschultz/funnel/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "funnel.snapshot.v1"

// Snapshot is the portable JSON form of one or more pipelines.
type Snapshot struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Stages     []SnapshotStage `json:"stages,omitempty"`
	Items      []SnapshotItem  `json:"items"`
}

// SnapshotStage represents snapshot stage data used by this package.
type SnapshotStage struct {
	ID       string          `json:"id"`
	Pipeline domain.Pipeline `json:"pipeline"`
	Title    string          `json:"title"`
	Color    string          `json:"color,omitempty"`
	Position int             `json:"position"`
}

// SnapshotItem represents snapshot item data used by this package.
type SnapshotItem struct {
	ID              string               `json:"id,omitempty"`
	Pipeline        domain.Pipeline      `json:"pipeline"`
	Status          string               `json:"status"`
	Title           string               `json:"title"`
	Person          string               `json:"person,omitempty"`
	Organization    string               `json:"organization,omitempty"`
	Owner           string               `json:"owner,omitempty"`
	Tag             string               `json:"tag,omitempty"`
	Value           domain.MonetaryValue `json:"value,omitempty"`
	Probability     *int                 `json:"probability,omitempty"`
	ExpectedCloseAt *time.Time           `json:"expected_close_at,omitempty"`
	Notes           string               `json:"notes,omitempty"`
	CreatedAt       *time.Time           `json:"created_at,omitempty"`
}

// ImportResult counts rows written by ImportSnapshot.
type ImportResult struct {
	Items  int `json:"items"`
	Stages int `json:"stages"`
}

// ExportSnapshot returns every stage and item of the requested pipelines.
func (s *Service) ExportSnapshot(ctx context.Context, pipelines ...domain.Pipeline) (Snapshot, error) {
	if len(pipelines) == 0 {
		pipelines = domain.Pipelines()
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Stages:     make([]SnapshotStage, 0),
		Items:      make([]SnapshotItem, 0),
	}
	for _, p := range pipelines {
		stages, err := s.ListStages(ctx, p)
		if err != nil {
			return Snapshot{}, err
		}
		for _, stage := range stages {
			snap.Stages = append(snap.Stages, snapshotStageFromDomain(stage))
		}
		items, err := s.repo.ListItems(ctx, p)
		if err != nil {
			return Snapshot{}, err
		}
		for _, item := range items {
			snap.Items = append(snap.Items, snapshotItemFromDomain(item))
		}
	}
	slices.SortStableFunc(snap.Items, func(a, b SnapshotItem) int {
		if c := strings.Compare(string(a.Pipeline), string(b.Pipeline)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return snap, nil
}

// ImportSnapshot validates and upserts a snapshot. Stages listed in the
// snapshot replace each affected pipeline's stage list; items without an id
// receive a generated one.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) (ImportResult, error) {
	if err := snap.Validate(); err != nil {
		return ImportResult{}, err
	}
	now := s.clock()

	var result ImportResult
	byPipeline := map[domain.Pipeline][]domain.Stage{}
	for _, st := range snap.Stages {
		byPipeline[st.Pipeline] = append(byPipeline[st.Pipeline], domain.Stage{
			ID:       st.ID,
			Pipeline: st.Pipeline,
			Title:    st.Title,
			Color:    st.Color,
			Position: st.Position,
		})
	}
	for _, p := range domain.Pipelines() {
		stages, ok := byPipeline[p]
		if !ok {
			continue
		}
		saved, err := s.SaveStages(ctx, p, domain.SortedStages(stages))
		if err != nil {
			return ImportResult{}, fmt.Errorf("import %s stages: %w", p, err)
		}
		result.Stages += len(saved)
	}

	items := make([]domain.Item, 0, len(snap.Items))
	for idx, si := range snap.Items {
		if strings.TrimSpace(si.ID) == "" {
			si.ID = s.idGen()
		}
		item, err := si.toDomain(now)
		if err != nil {
			return ImportResult{}, fmt.Errorf("%w: items[%d]: %w", ErrInvalidImport, idx, err)
		}
		items = append(items, item)
	}
	if len(items) > 0 {
		if err := s.repo.UpsertItems(ctx, items); err != nil {
			return ImportResult{}, err
		}
	}
	result.Items = len(items)
	return result, nil
}

// Validate checks version and pipeline fields before any write happens.
func (s Snapshot) Validate() error {
	if strings.TrimSpace(s.Version) != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidImport, s.Version)
	}
	for idx, st := range s.Stages {
		if _, err := domain.ParsePipeline(string(st.Pipeline)); err != nil {
			return fmt.Errorf("%w: stages[%d]: %w", ErrInvalidImport, idx, err)
		}
	}
	seen := map[string]struct{}{}
	for idx, si := range s.Items {
		if _, err := domain.ParsePipeline(string(si.Pipeline)); err != nil {
			return fmt.Errorf("%w: items[%d]: %w", ErrInvalidImport, idx, err)
		}
		id := strings.TrimSpace(si.ID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate item id %q", ErrInvalidImport, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// BoardSummary is a read-only view of one pipeline for headless surfaces.
type BoardSummary struct {
	Pipeline domain.Pipeline `json:"pipeline"`
	Columns  []ColumnSummary `json:"columns"`
	Unplaced []SnapshotItem  `json:"unplaced,omitempty"`
	Count    int             `json:"count"`
	Total    float64         `json:"total"`
}

// ColumnSummary is one column of a BoardSummary.
type ColumnSummary struct {
	StageID string         `json:"stage_id"`
	Title   string         `json:"title"`
	Color   string         `json:"color"`
	Count   int            `json:"count"`
	Total   float64        `json:"total"`
	Items   []SnapshotItem `json:"items"`
}

// Summary partitions a pipeline into columns with counts and totals.
func (s *Service) Summary(ctx context.Context, p domain.Pipeline) (BoardSummary, error) {
	stages, err := s.ListStages(ctx, p)
	if err != nil {
		return BoardSummary{}, err
	}
	items, err := s.repo.ListItems(ctx, p)
	if err != nil {
		return BoardSummary{}, err
	}

	columns, unplaced := board.Partition(stages, items)
	out := BoardSummary{
		Pipeline: p,
		Columns:  make([]ColumnSummary, 0, len(columns)),
	}
	for _, column := range columns {
		summary := ColumnSummary{
			StageID: column.Stage.ID,
			Title:   column.Stage.Title,
			Color:   column.Stage.Color,
			Count:   column.Count(),
			Total:   column.Total,
			Items:   make([]SnapshotItem, 0, column.Count()),
		}
		for _, item := range column.Items {
			summary.Items = append(summary.Items, snapshotItemFromDomain(item))
		}
		out.Columns = append(out.Columns, summary)
		out.Count += summary.Count
		out.Total += summary.Total
	}
	for _, item := range unplaced {
		out.Unplaced = append(out.Unplaced, snapshotItemFromDomain(item))
	}
	return out, nil
}

func snapshotStageFromDomain(st domain.Stage) SnapshotStage {
	return SnapshotStage{
		ID:       st.ID,
		Pipeline: st.Pipeline,
		Title:    st.Title,
		Color:    st.Color,
		Position: st.Position,
	}
}

func snapshotItemFromDomain(item domain.Item) SnapshotItem {
	created := item.CreatedAt
	return SnapshotItem{
		ID:              item.ID,
		Pipeline:        item.Pipeline,
		Status:          item.Status,
		Title:           item.Title,
		Person:          item.Person,
		Organization:    item.Organization,
		Owner:           item.Owner,
		Tag:             item.Tag,
		Value:           item.Value,
		Probability:     item.Probability,
		ExpectedCloseAt: item.ExpectedCloseAt,
		Notes:           item.Notes,
		CreatedAt:       &created,
	}
}

func (si SnapshotItem) toDomain(now time.Time) (domain.Item, error) {
	in := domain.ItemInput{
		ID:              si.ID,
		Pipeline:        si.Pipeline,
		Status:          si.Status,
		Title:           si.Title,
		Person:          si.Person,
		Organization:    si.Organization,
		Owner:           si.Owner,
		Tag:             si.Tag,
		Value:           si.Value,
		Probability:     si.Probability,
		ExpectedCloseAt: si.ExpectedCloseAt,
		Notes:           si.Notes,
	}
	if si.CreatedAt != nil {
		in.CreatedAt = *si.CreatedAt
	}
	return domain.NewItem(in, now)
}
