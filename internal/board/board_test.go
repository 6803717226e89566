package board

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/funnel/internal/domain"
)

type statusWrite struct {
	ItemID string
	Status string
}

// fakeSource represents fake source data used by this test package.
type fakeSource struct {
	mu        sync.Mutex
	stages    []domain.Stage
	items     []domain.Item
	writes    []statusWrite
	updateErr error
	listErr   error
}

func (f *fakeSource) ListItems(context.Context, domain.Pipeline) ([]domain.Item, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Item(nil), f.items...), nil
}

func (f *fakeSource) ListStages(context.Context, domain.Pipeline) ([]domain.Stage, error) {
	return append([]domain.Stage(nil), f.stages...), nil
}

func (f *fakeSource) UpdateItemStatus(_ context.Context, itemID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, statusWrite{ItemID: itemID, Status: status})
	return f.updateErr
}

type notification struct {
	Message     string
	Kind        NotifyKind
	AutoDismiss bool
}

// recordingNotifier represents recording notifier data used by this test package.
type recordingNotifier struct {
	got []notification
}

func (r *recordingNotifier) Notify(message string, kind NotifyKind, autoDismiss bool) {
	r.got = append(r.got, notification{Message: message, Kind: kind, AutoDismiss: autoDismiss})
}

func (r *recordingNotifier) count(kind NotifyKind) int {
	n := 0
	for _, got := range r.got {
		if got.Kind == kind {
			n++
		}
	}
	return n
}

func testStages(ids ...string) []domain.Stage {
	out := make([]domain.Stage, 0, len(ids))
	for idx, id := range ids {
		out = append(out, domain.Stage{ID: id, Pipeline: domain.PipelineLeads, Title: strings.ToUpper(id), Color: "#111111", Position: idx})
	}
	return out
}

func testItem(id, status, value string) domain.Item {
	return domain.Item{ID: id, Pipeline: domain.PipelineLeads, Status: status, Title: "Item " + id, Value: domain.MonetaryValue(value)}
}

func newLoadedBoard(t *testing.T, src *fakeSource) (*Board, *recordingNotifier) {
	t.Helper()
	notes := &recordingNotifier{}
	b := New(domain.PipelineLeads, src, notes, WithLogger(log.New(&bytes.Buffer{})))
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return b, notes
}

func columnCounts(columns []Column) map[string]int {
	out := map[string]int{}
	for _, column := range columns {
		out[column.Stage.ID] = column.Count()
	}
	return out
}

// TestPartitionPlacesEachItemOnce verifies behavior for the covered scenario.
func TestPartitionPlacesEachItemOnce(t *testing.T) {
	stages := testStages("new", "qualified", "lost")
	items := []domain.Item{
		testItem("1", "new", "100"),
		testItem("2", "qualified", "R$ 1.000,50"),
		testItem("3", "archived", "5"),
		testItem("4", "new", "junk"),
	}

	columns, unplaced := Partition(stages, items)
	if len(columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(columns))
	}
	seen := map[string]int{}
	for _, column := range columns {
		for _, item := range column.Items {
			if item.Status != column.Stage.ID {
				t.Fatalf("item %q with status %q placed in %q", item.ID, item.Status, column.Stage.ID)
			}
			seen[item.ID]++
		}
	}
	for _, id := range []string{"1", "2", "4"} {
		if seen[id] != 1 {
			t.Fatalf("item %q appeared %d times", id, seen[id])
		}
	}
	if len(unplaced) != 1 || unplaced[0].ID != "3" {
		t.Fatalf("unexpected unplaced items %#v", unplaced)
	}
	if columns[0].Total != 100 || math.Abs(columns[1].Total-1000.5) > 1e-9 {
		t.Fatalf("unexpected totals %v / %v", columns[0].Total, columns[1].Total)
	}
	if columns[2].Total != 0 || columns[2].Items == nil || columns[2].Count() != 0 {
		t.Fatalf("expected empty lost column, got %#v", columns[2])
	}
}

// TestTotalIgnoresItemOrder verifies behavior for the covered scenario.
func TestTotalIgnoresItemOrder(t *testing.T) {
	items := []domain.Item{
		testItem("a", "new", "0.1"),
		testItem("b", "new", "R$ 2.500,25"),
		testItem("c", "new", ""),
		testItem("d", "new", "-3"),
	}
	forward := Total(items)
	reversed := Total([]domain.Item{items[3], items[2], items[1], items[0]})
	if math.Abs(forward-reversed) > 1e-9 {
		t.Fatalf("totals differ by order: %v vs %v", forward, reversed)
	}
	if math.Abs(forward-2497.35) > 1e-9 {
		t.Fatalf("unexpected total %v", forward)
	}
}

// TestBoardScenarioDragNewToQualified verifies behavior for the covered scenario.
func TestBoardScenarioDragNewToQualified(t *testing.T) {
	src := &fakeSource{
		stages: testStages("new", "qualified", "lost"),
		items: []domain.Item{
			testItem("item1", "new", "10"),
			testItem("item2", "new", "20"),
			testItem("item3", "qualified", "30"),
		},
	}
	b, notes := newLoadedBoard(t, src)

	counts := columnCounts(b.Columns())
	if counts["new"] != 2 || counts["qualified"] != 1 || counts["lost"] != 0 {
		t.Fatalf("unexpected initial counts %#v", counts)
	}
	if lost := b.Columns()[2]; lost.Total != 0 {
		t.Fatalf("expected lost total 0, got %v", lost.Total)
	}

	if err := b.Drop(context.Background(), "item1", "new", "qualified"); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	counts = columnCounts(b.Columns())
	if counts["new"] != 1 || counts["qualified"] != 2 || counts["lost"] != 0 {
		t.Fatalf("unexpected counts after drop %#v", counts)
	}
	if len(src.writes) != 1 || src.writes[0] != (statusWrite{ItemID: "item1", Status: "qualified"}) {
		t.Fatalf("unexpected writes %#v", src.writes)
	}
	if notes.count(NotifySuccess) != 1 || !notes.got[0].AutoDismiss {
		t.Fatalf("expected one auto-dismissing success notification, got %#v", notes.got)
	}
}

// TestBoardSameStageDropIsNoOp verifies behavior for the covered scenario.
func TestBoardSameStageDropIsNoOp(t *testing.T) {
	src := &fakeSource{stages: testStages("new", "won"), items: []domain.Item{testItem("1", "new", "")}}
	b, notes := newLoadedBoard(t, src)

	move, ok, err := b.BeginMove("1", "new", "new")
	if err != nil || ok {
		t.Fatalf("BeginMove(same) = %#v, %v, %v", move, ok, err)
	}
	if err := b.Drop(context.Background(), "1", "new", "new"); err != nil {
		t.Fatalf("Drop(same) error = %v", err)
	}
	if len(src.writes) != 0 || len(notes.got) != 0 {
		t.Fatalf("expected no writes or notifications, got %#v / %#v", src.writes, notes.got)
	}
}

// TestBoardRejectsUnknownTarget verifies behavior for the covered scenario.
func TestBoardRejectsUnknownTarget(t *testing.T) {
	src := &fakeSource{stages: testStages("new", "won"), items: []domain.Item{testItem("1", "new", "")}}
	b, notes := newLoadedBoard(t, src)

	_, ok, err := b.BeginMove("1", "new", "limbo")
	if ok || !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got ok=%v err=%v", ok, err)
	}
	if item, _ := b.Item("1"); item.Status != "new" {
		t.Fatalf("expected status unchanged, got %q", item.Status)
	}
	if len(src.writes) != 0 || notes.count(NotifyError) != 1 {
		t.Fatalf("expected one error notification and no writes, got %#v / %#v", src.writes, notes.got)
	}

	if _, _, err := b.BeginMove("missing", "new", "won"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

// TestBoardOptimisticApplyAndRollback verifies behavior for the covered scenario.
func TestBoardOptimisticApplyAndRollback(t *testing.T) {
	src := &fakeSource{
		stages:    testStages("new", "won"),
		items:     []domain.Item{testItem("1", "new", "50")},
		updateErr: errors.New("network down"),
	}
	b, notes := newLoadedBoard(t, src)

	move, ok, err := b.BeginMove("1", "new", "won")
	if err != nil || !ok {
		t.Fatalf("BeginMove() = %v, %v", ok, err)
	}
	if item, _ := b.Item("1"); item.Status != "won" {
		t.Fatalf("expected optimistic status won before persistence, got %q", item.Status)
	}
	if len(src.writes) != 0 {
		t.Fatalf("expected no write before Persist, got %#v", src.writes)
	}

	persistErr := b.Persist(context.Background(), move)
	b.Settle(move, persistErr)
	if item, _ := b.Item("1"); item.Status != "new" {
		t.Fatalf("expected rollback to new, got %q", item.Status)
	}
	if notes.count(NotifyError) != 1 || notes.count(NotifySuccess) != 0 {
		t.Fatalf("expected exactly one error notification, got %#v", notes.got)
	}
}

// TestBoardSettleSkipsRollbackAfterLaterMove verifies behavior for the covered scenario.
func TestBoardSettleSkipsRollbackAfterLaterMove(t *testing.T) {
	src := &fakeSource{stages: testStages("new", "won", "lost"), items: []domain.Item{testItem("1", "new", "")}}
	b, _ := newLoadedBoard(t, src)

	first, _, _ := b.BeginMove("1", "new", "won")
	if _, ok, err := b.BeginMove("1", "won", "lost"); err != nil || !ok {
		t.Fatalf("second BeginMove() = %v, %v", ok, err)
	}
	b.Settle(first, errors.New("late failure"))
	if item, _ := b.Item("1"); item.Status != "lost" {
		t.Fatalf("expected later move to survive, got %q", item.Status)
	}
}

// TestBoardReloadReappliesPendingMoves verifies a fetch taken before a write
// lands does not undo the optimistic status.
func TestBoardReloadReappliesPendingMoves(t *testing.T) {
	src := &fakeSource{stages: testStages("new", "won", "lost"), items: []domain.Item{testItem("1", "new", "")}}
	b, _ := newLoadedBoard(t, src)

	first, _, _ := b.BeginMove("1", "new", "won")
	second, _, _ := b.BeginMove("1", "won", "lost")
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if item, _ := b.Item("1"); item.Status != "lost" {
		t.Fatalf("expected pending move to survive reload, got %q", item.Status)
	}

	b.Settle(first, nil)
	if b.Pending() != 1 {
		t.Fatalf("expected later move to stay pending, got %d", b.Pending())
	}
	b.Settle(second, nil)
	if b.Pending() != 0 {
		t.Fatalf("expected no pending moves, got %d", b.Pending())
	}
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if item, _ := b.Item("1"); item.Status != "new" {
		t.Fatalf("expected settled board to follow storage, got %q", item.Status)
	}
}

// TestBoardLoadingState verifies behavior for the covered scenario.
func TestBoardLoadingState(t *testing.T) {
	src := &fakeSource{stages: testStages("new"), items: []domain.Item{testItem("1", "new", "")}}
	notes := &recordingNotifier{}
	b := New(domain.PipelineLeads, src, notes)
	if !b.Loading() {
		t.Fatal("expected new board to be loading")
	}
	if _, _, err := b.BeginMove("1", "new", "won"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}

	failing := &fakeSource{listErr: errors.New("boom")}
	fb := New(domain.PipelineLeads, failing, notes, WithLogger(log.New(&bytes.Buffer{})))
	if err := fb.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if fb.Loading() || len(fb.Columns()) != 0 || notes.count(NotifyError) != 1 {
		t.Fatalf("unexpected failed-load state loading=%v notes=%#v", fb.Loading(), notes.got)
	}
}

// TestBoardWarnsOnceForUnplacedItems verifies behavior for the covered scenario.
func TestBoardWarnsOnceForUnplacedItems(t *testing.T) {
	var logs bytes.Buffer
	src := &fakeSource{stages: testStages("new"), items: []domain.Item{testItem("1", "ghost", ""), testItem("2", "new", "")}}
	b := New(domain.PipelineLeads, src, nil, WithLogger(log.New(&logs)))
	for range 2 {
		if err := b.Load(context.Background()); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	}
	if got := strings.Count(logs.String(), "matches no stage"); got != 1 {
		t.Fatalf("expected one warning, got %d in %q", got, logs.String())
	}
	if unplaced := b.Unplaced(); len(unplaced) != 1 || unplaced[0].ID != "1" {
		t.Fatalf("unexpected unplaced %#v", unplaced)
	}
}

// TestBoardDragHighlightsSingleColumn verifies behavior for the covered scenario.
func TestBoardDragHighlightsSingleColumn(t *testing.T) {
	src := &fakeSource{stages: testStages("new", "qualified", "lost"), items: []domain.Item{testItem("1", "new", "")}}
	b, _ := newLoadedBoard(t, src)
	item, _ := b.Item("1")

	b.Drag().Press(item, Point{X: 3, Y: 5})
	b.Drag().Move(Point{X: 10, Y: 5}, "qualified")
	if !b.Lifted("1") {
		t.Fatal("expected card to be lifted while dragging")
	}
	over := 0
	for _, column := range b.Columns() {
		if column.Over {
			over++
			if column.Stage.ID != "qualified" {
				t.Fatalf("unexpected hover column %q", column.Stage.ID)
			}
		}
	}
	if over != 1 {
		t.Fatalf("expected exactly one highlighted column, got %d", over)
	}
	if counts := columnCounts(b.Columns()); counts["new"] != 1 {
		t.Fatalf("expected card to stay in source column while dragging, got %#v", counts)
	}

	move, ok, err := b.EndDrag("qualified")
	if err != nil || !ok || move.To != "qualified" || move.From != "new" {
		t.Fatalf("EndDrag() = %#v, %v, %v", move, ok, err)
	}
	for _, column := range b.Columns() {
		if column.Over {
			t.Fatalf("expected no highlight after drop, got %q", column.Stage.ID)
		}
	}
}

// TestLogNotifierLevels verifies notifications map onto logger levels.
func TestLogNotifierLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel, Formatter: log.LogfmtFormatter})
	n := LogNotifier{Logger: logger}

	n.Notify("moved Padaria Sol", NotifySuccess, true)
	n.Notify("failed to move", NotifyError, false)
	n.Notify("reloaded", NotifyInfo, true)

	out := buf.String()
	for _, want := range []string{
		`level=info msg="moved Padaria Sol" kind=success`,
		`level=error msg="failed to move"`,
		`level=info msg=reloaded`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in log output, got %q", want, out)
		}
	}
}

// TestNotifierFuncForwards verifies the function adapter.
func TestNotifierFuncForwards(t *testing.T) {
	var gotMsg string
	var gotKind NotifyKind
	var gotAuto bool
	var n Notifier = NotifierFunc(func(message string, kind NotifyKind, autoDismiss bool) {
		gotMsg, gotKind, gotAuto = message, kind, autoDismiss
	})
	n.Notify("hello", NotifyInfo, true)
	if gotMsg != "hello" || gotKind != NotifyInfo || !gotAuto {
		t.Fatalf("unexpected forward: %q %q %v", gotMsg, gotKind, gotAuto)
	}
}
