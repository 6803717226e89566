package app

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/evanschultz/funnel/internal/domain"
)

// TestImportSnapshotFromJSON verifies behavior for the covered scenario.
func TestImportSnapshotFromJSON(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, seqIDs(), fixedClock(), ServiceConfig{})

	raw := `{
		"version": "funnel.snapshot.v1",
		"stages": [
			{"id": "new", "pipeline": "leads", "title": "Novo", "position": 0},
			{"id": "won", "pipeline": "leads", "title": "Ganho", "color": "#10B981", "position": 1}
		],
		"items": [
			{"id": "l1", "pipeline": "leads", "status": "new", "title": "Ana", "value": "R$ 1.500,00"},
			{"pipeline": "leads", "status": "won", "title": "Bruno", "value": 250}
		]
	}`
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	res, err := svc.ImportSnapshot(context.Background(), snap)
	if err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	if res.Items != 2 || res.Stages != 2 {
		t.Fatalf("unexpected import result %#v", res)
	}
	if _, ok := repo.items["gen-1"]; !ok {
		t.Fatalf("expected generated id for item without id, got %#v", repo.items)
	}

	summary, err := svc.Summary(context.Background(), domain.PipelineLeads)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(summary.Columns) != 2 || summary.Count != 2 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if math.Abs(summary.Columns[0].Total-1500) > 1e-9 || summary.Columns[1].Total != 250 || summary.Total != 1750 {
		t.Fatalf("unexpected totals %#v", summary.Columns)
	}
}

// TestImportSnapshotRejectsInvalid verifies behavior for the covered scenario.
func TestImportSnapshotRejectsInvalid(t *testing.T) {
	svc := NewService(newFakeRepo(), seqIDs(), fixedClock(), ServiceConfig{})
	cases := []Snapshot{
		{Version: "other.v9"},
		{Items: []SnapshotItem{{ID: "x", Pipeline: "clients", Status: "new", Title: "x"}}},
		{Items: []SnapshotItem{{ID: "x", Pipeline: domain.PipelineLeads, Status: "new", Title: "a"}, {ID: "x", Pipeline: domain.PipelineLeads, Status: "new", Title: "b"}}},
		{Items: []SnapshotItem{{ID: "x", Pipeline: domain.PipelineLeads, Status: "new", Title: " "}}},
	}
	for idx, snap := range cases {
		if _, err := svc.ImportSnapshot(context.Background(), snap); !errors.Is(err, ErrInvalidImport) {
			t.Fatalf("case %d: expected ErrInvalidImport, got %v", idx, err)
		}
	}
}

// TestExportSnapshotRoundTrip verifies behavior for the covered scenario.
func TestExportSnapshotRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, seqIDs(), fixedClock(), ServiceConfig{})
	seedItem(t, repo, "b", domain.PipelineLeads, "new", "10")
	seedItem(t, repo, "a", domain.PipelineOpportunities, "aberta", "")

	snap, err := svc.ExportSnapshot(context.Background())
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if snap.Version != SnapshotVersion || len(snap.Stages) != 12 || len(snap.Items) != 2 {
		t.Fatalf("unexpected snapshot version=%q stages=%d items=%d", snap.Version, len(snap.Stages), len(snap.Items))
	}
	if snap.Items[0].ID != "b" || snap.Items[1].ID != "a" {
		t.Fatalf("expected items ordered by pipeline then id, got %#v", snap.Items)
	}

	other := NewService(newFakeRepo(), seqIDs(), fixedClock(), ServiceConfig{})
	if _, err := other.ImportSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("ImportSnapshot(exported) error = %v", err)
	}
}

// TestSummaryReportsUnplacedItems verifies behavior for the covered scenario.
func TestSummaryReportsUnplacedItems(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, fixedClock(), ServiceConfig{})
	seedItem(t, repo, "l1", domain.PipelineLeads, "new", "5")
	seedItem(t, repo, "l2", domain.PipelineLeads, "archived", "7")

	summary, err := svc.Summary(context.Background(), domain.PipelineLeads)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(summary.Unplaced) != 1 || summary.Unplaced[0].ID != "l2" {
		t.Fatalf("unexpected unplaced items %#v", summary.Unplaced)
	}
	if summary.Count != 1 || summary.Total != 5 {
		t.Fatalf("expected unplaced items excluded from totals, got count=%d total=%v", summary.Count, summary.Total)
	}
}
