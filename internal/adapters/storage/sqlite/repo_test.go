package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/evanschultz/funnel/internal/app"
	"github.com/evanschultz/funnel/internal/board"
	"github.com/evanschultz/funnel/internal/domain"
	"github.com/evanschultz/funnel/internal/prefs"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "funnel.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestRepository_ItemLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	prob := 70
	closeAt := now.Add(72 * time.Hour)
	item, err := domain.NewItem(domain.ItemInput{
		ID:              "o1",
		Pipeline:        domain.PipelineOpportunities,
		Status:          "aberta",
		Title:           "Acme renewal",
		Organization:    "Acme",
		Value:           "R$ 12.500,00",
		Probability:     &prob,
		ExpectedCloseAt: &closeAt,
		Notes:           "# Call notes",
	}, now)
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	other, err := domain.NewItem(domain.ItemInput{ID: "l1", Pipeline: domain.PipelineLeads, Status: "new", Title: "Ana"}, now)
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	if err := repo.UpsertItems(ctx, []domain.Item{item, other}); err != nil {
		t.Fatalf("UpsertItems() error = %v", err)
	}

	items, err := repo.ListItems(ctx, domain.PipelineOpportunities)
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(items))
	}
	got := items[0]
	if got.Value != "R$ 12.500,00" || got.Amount() != 12500 {
		t.Fatalf("unexpected value %q", got.Value)
	}
	if got.Probability == nil || *got.Probability != 70 {
		t.Fatalf("unexpected probability %#v", got.Probability)
	}
	if got.ExpectedCloseAt == nil || !got.ExpectedCloseAt.Equal(closeAt) {
		t.Fatalf("unexpected expected close %#v", got.ExpectedCloseAt)
	}

	later := now.Add(time.Hour)
	if err := repo.UpdateItemStatus(ctx, "o1", "ganha", later); err != nil {
		t.Fatalf("UpdateItemStatus() error = %v", err)
	}
	loaded, err := repo.GetItem(ctx, "o1")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if loaded.Status != "ganha" || !loaded.UpdatedAt.Equal(later) || loaded.Title != "Acme renewal" {
		t.Fatalf("unexpected item after status update %#v", loaded)
	}

	if err := repo.UpdateItemStatus(ctx, "missing", "ganha", later); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetItem(ctx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	item.Title = "Acme renewal 2027"
	if err := repo.UpsertItems(ctx, []domain.Item{item}); err != nil {
		t.Fatalf("UpsertItems(update) error = %v", err)
	}
	loaded, _ = repo.GetItem(ctx, "o1")
	if loaded.Title != "Acme renewal 2027" {
		t.Fatalf("expected upsert to replace title, got %q", loaded.Title)
	}
}

func TestRepository_StageBatchSave(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

	stages, err := domain.StagesFromTemplates(domain.PipelineLeads, domain.DefaultStageTemplates(domain.PipelineLeads), now)
	if err != nil {
		t.Fatalf("StagesFromTemplates() error = %v", err)
	}
	if err := repo.UpsertStages(ctx, domain.PipelineLeads, stages); err != nil {
		t.Fatalf("UpsertStages() error = %v", err)
	}

	moved, err := stages.Move("lost", 0, now)
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if err := repo.UpsertStages(ctx, domain.PipelineLeads, moved); err != nil {
		t.Fatalf("UpsertStages(reorder) error = %v", err)
	}
	if err := repo.DeleteStages(ctx, domain.PipelineLeads, []string{"won"}); err != nil {
		t.Fatalf("DeleteStages() error = %v", err)
	}

	loaded, err := repo.ListStages(ctx, domain.PipelineLeads)
	if err != nil {
		t.Fatalf("ListStages() error = %v", err)
	}
	if len(loaded) != 8 || loaded[0].ID != "lost" || loaded[1].ID != "new" {
		t.Fatalf("unexpected stage order %#v", domain.StageList(loaded).IDs())
	}
	if slices.Contains(domain.StageList(loaded).IDs(), "won") {
		t.Fatal("expected won to be deleted")
	}
	if other, _ := repo.ListStages(ctx, domain.PipelineOpportunities); len(other) != 0 {
		t.Fatalf("expected stages scoped by pipeline, got %#v", other)
	}
}

func TestRepository_CardPreferencesBackend(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	store := prefs.NewStore(repo, "ana")
	if got := store.Get(ctx); !slices.Equal(got, domain.DefaultCardFields()) {
		t.Fatalf("expected defaults, got %#v", got)
	}
	want := []domain.FieldID{domain.FieldValue, domain.FieldTitle, "custom"}
	if err := store.Set(ctx, want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	fields, ok, err := repo.LoadCardFields(ctx, "ana")
	if err != nil || !ok || !slices.Equal(fields, want) {
		t.Fatalf("LoadCardFields() = %#v, %v, %v", fields, ok, err)
	}
	if _, ok, _ := repo.LoadCardFields(ctx, "bruno"); ok {
		t.Fatal("expected no preferences for another user")
	}
}

func TestRepository_BoardDropPersistsStatus(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	svc := app.NewService(repo, nil, nil, app.ServiceConfig{})

	now := time.Now()
	items := make([]domain.Item, 0, 3)
	for _, in := range []domain.ItemInput{
		{ID: "item1", Pipeline: domain.PipelineLeads, Status: "new", Title: "One", Value: "100"},
		{ID: "item2", Pipeline: domain.PipelineLeads, Status: "new", Title: "Two"},
		{ID: "item3", Pipeline: domain.PipelineLeads, Status: "qualified", Title: "Three"},
	} {
		item, err := domain.NewItem(in, now)
		if err != nil {
			t.Fatalf("NewItem() error = %v", err)
		}
		items = append(items, item)
	}
	if err := repo.UpsertItems(ctx, items); err != nil {
		t.Fatalf("UpsertItems() error = %v", err)
	}

	b := board.New(domain.PipelineLeads, svc, nil)
	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := b.Drop(ctx, "item1", "new", "qualified"); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	stored, err := repo.GetItem(ctx, "item1")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if stored.Status != "qualified" {
		t.Fatalf("expected persisted status qualified, got %q", stored.Status)
	}
}
