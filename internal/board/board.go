package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/evanschultz/funnel/internal/domain"
)

// SkeletonColumns is the number of placeholder columns drawn while loading.
const SkeletonColumns = 4

// ErrUnknownStage and related errors describe rejected board operations.
var (
	ErrUnknownStage = errors.New("unknown stage")
	ErrItemNotFound = errors.New("item not found")
	ErrNotLoaded    = errors.New("board is still loading")
)

// Source is the persistence collaborator the board reads from and writes to.
type Source interface {
	ListItems(context.Context, domain.Pipeline) ([]domain.Item, error)
	ListStages(context.Context, domain.Pipeline) ([]domain.Stage, error)
	UpdateItemStatus(context.Context, string, string) error
}

// Data is the result of one fetch.
type Data struct {
	Stages []domain.Stage
	Items  []domain.Item
}

// Move is a locally applied status change waiting for persistence.
type Move struct {
	ItemID string
	Title  string
	From   string
	To     string
}

// Option customizes a board.
type Option func(*Board)

// WithLogger routes board warnings to logger.
func WithLogger(logger *log.Logger) Option {
	return func(b *Board) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithDragThreshold sets the pointer travel that starts a drag.
func WithDragThreshold(cells int) Option {
	return func(b *Board) {
		b.drag = NewDragController(cells)
	}
}

// WithActivationWindow sets the double-activation window.
func WithActivationWindow(window time.Duration) Option {
	return func(b *Board) {
		b.activation = NewActivationDetector(window)
	}
}

// Board owns the item collection of one pipeline and is the only writer of
// status changes. It is not safe for concurrent use; Persist is the one
// method that may run off the owning goroutine.
type Board struct {
	pipeline   domain.Pipeline
	source     Source
	notifier   Notifier
	logger     *log.Logger
	drag       *DragController
	activation *ActivationDetector

	loading bool
	stages  domain.StageList
	items   []domain.Item
	warned  map[string]struct{}
	// pending holds moves applied locally but not yet settled, keyed by item id.
	pending map[string]Move
}

// New constructs a board in the loading state.
func New(pipeline domain.Pipeline, source Source, notifier Notifier, opts ...Option) *Board {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	b := &Board{
		pipeline:   pipeline,
		source:     source,
		notifier:   notifier,
		logger:     log.Default(),
		drag:       NewDragController(DefaultDragThreshold),
		activation: NewActivationDetector(DefaultActivationWindow),
		loading:    true,
		warned:     map[string]struct{}{},
		pending:    map[string]Move{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Pipeline returns the pipeline shown by the board.
func (b *Board) Pipeline() domain.Pipeline {
	return b.pipeline
}

// Loading reports whether the first load has not finished.
func (b *Board) Loading() bool {
	return b.loading
}

// Drag returns the board's drag controller.
func (b *Board) Drag() *DragController {
	return b.drag
}

// Activation returns the board's double-activation detector.
func (b *Board) Activation() *ActivationDetector {
	return b.activation
}

// Stages returns the loaded stages in display order.
func (b *Board) Stages() []domain.Stage {
	return slices.Clone(b.stages)
}

// Items returns the loaded items.
func (b *Board) Items() []domain.Item {
	return slices.Clone(b.items)
}

// Item returns one loaded item.
func (b *Board) Item(itemID string) (domain.Item, bool) {
	idx := b.itemIndex(itemID)
	if idx < 0 {
		return domain.Item{}, false
	}
	return b.items[idx], true
}

// Fetch loads items and stages concurrently. It touches no board state.
func (b *Board) Fetch(ctx context.Context) (Data, error) {
	var data Data
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := b.source.ListItems(gctx, b.pipeline)
		if err != nil {
			return fmt.Errorf("load items: %w", err)
		}
		data.Items = items
		return nil
	})
	g.Go(func() error {
		stages, err := b.source.ListStages(gctx, b.pipeline)
		if err != nil {
			return fmt.Errorf("load stages: %w", err)
		}
		data.Stages = stages
		return nil
	})
	if err := g.Wait(); err != nil {
		return Data{}, err
	}
	return data, nil
}

// Apply installs fetched data and ends the loading state. Unsettled moves are
// re-applied on top, since the fetch may predate their writes.
func (b *Board) Apply(data Data) {
	b.stages = domain.SortedStages(data.Stages)
	b.items = slices.Clone(data.Items)
	for itemID, move := range b.pending {
		if idx := b.itemIndex(itemID); idx >= 0 {
			b.items[idx].Status = move.To
		}
	}
	b.loading = false
	b.warnUnplaced()
}

// Pending reports the number of moves waiting for Settle.
func (b *Board) Pending() int {
	return len(b.pending)
}

// FailLoad ends the loading state with an empty board and one error notification.
func (b *Board) FailLoad(err error) {
	b.loading = false
	b.stages = nil
	b.items = nil
	b.logger.Error("board load failed", "pipeline", b.pipeline, "err", err)
	b.notifier.Notify(fmt.Sprintf("Could not load %s: %v", b.pipeline, err), NotifyError, true)
}

// Load fetches and applies in one step.
func (b *Board) Load(ctx context.Context) error {
	data, err := b.Fetch(ctx)
	if err != nil {
		b.FailLoad(err)
		return err
	}
	b.Apply(data)
	return nil
}

// Columns partitions the items and marks the drag hover target.
func (b *Board) Columns() []Column {
	columns, _ := Partition(b.stages, b.items)
	for i := range columns {
		columns[i].Over = b.drag.IsOver(columns[i].Stage.ID)
	}
	return columns
}

// Unplaced returns items whose status matches no stage.
func (b *Board) Unplaced() []domain.Item {
	_, unplaced := Partition(b.stages, b.items)
	return unplaced
}

// Lifted reports whether itemID is the card being dragged.
func (b *Board) Lifted(itemID string) bool {
	session, ok := b.drag.Session()
	return ok && session.ItemID == itemID
}

// EndDrag releases the active drag over a column and begins the resulting move.
func (b *Board) EndDrag(over string) (Move, bool, error) {
	result, dropped := b.drag.Release(over)
	b.activation.Reset()
	if !dropped {
		return Move{}, false, nil
	}
	return b.BeginMove(result.ItemID, result.SourceStageID, result.TargetStageID)
}

// BeginMove validates a drop and applies it locally. It reports false with a
// nil error when the drop is a no-op.
func (b *Board) BeginMove(itemID, sourceStageID, targetStageID string) (Move, bool, error) {
	if b.loading {
		return Move{}, false, ErrNotLoaded
	}
	if sourceStageID == targetStageID {
		return Move{}, false, nil
	}
	stageIdx := b.stages.Index(targetStageID)
	if stageIdx < 0 {
		b.notifier.Notify(fmt.Sprintf("Cannot move to unknown stage %q", targetStageID), NotifyError, true)
		return Move{}, false, fmt.Errorf("%w: %q", ErrUnknownStage, targetStageID)
	}
	targetStageID = b.stages[stageIdx].ID
	idx := b.itemIndex(itemID)
	if idx < 0 {
		b.notifier.Notify(fmt.Sprintf("Item %q is no longer on the board", itemID), NotifyError, true)
		return Move{}, false, fmt.Errorf("%w: %q", ErrItemNotFound, itemID)
	}

	item := &b.items[idx]
	if sourceStageID == "" {
		sourceStageID = item.Status
	}
	if sourceStageID == targetStageID {
		return Move{}, false, nil
	}
	move := Move{
		ItemID: item.ID,
		Title:  item.Title,
		From:   sourceStageID,
		To:     targetStageID,
	}
	item.Status = targetStageID
	b.pending[item.ID] = move
	return move, true, nil
}

// Persist writes the move's target status. It touches no board state.
func (b *Board) Persist(ctx context.Context, move Move) error {
	return b.source.UpdateItemStatus(ctx, move.ItemID, move.To)
}

// Settle completes a move after persistence. A failure reverts the item to
// its source stage when it still sits in the target stage.
func (b *Board) Settle(move Move, err error) {
	if b.pending[move.ItemID] == move {
		delete(b.pending, move.ItemID)
	}
	if err != nil {
		if idx := b.itemIndex(move.ItemID); idx >= 0 && b.items[idx].Status == move.To {
			b.items[idx].Status = move.From
		}
		b.logger.Error("status update failed", "item", move.ItemID, "from", move.From, "to", move.To, "err", err)
		b.notifier.Notify(fmt.Sprintf("Could not move %q: %v", move.Title, err), NotifyError, true)
		return
	}
	b.notifier.Notify(fmt.Sprintf("Moved %q to %s", move.Title, b.stageTitle(move.To)), NotifySuccess, true)
}

// Drop runs a complete move synchronously.
func (b *Board) Drop(ctx context.Context, itemID, sourceStageID, targetStageID string) error {
	move, ok, err := b.BeginMove(itemID, sourceStageID, targetStageID)
	if err != nil || !ok {
		return err
	}
	err = b.Persist(ctx, move)
	b.Settle(move, err)
	return err
}

func (b *Board) itemIndex(itemID string) int {
	return slices.IndexFunc(b.items, func(item domain.Item) bool { return item.ID == itemID })
}

func (b *Board) stageTitle(stageID string) string {
	if idx := b.stages.Index(stageID); idx >= 0 {
		return b.stages[idx].Title
	}
	return stageID
}

// warnUnplaced logs items whose status matches no stage, once per item and status.
func (b *Board) warnUnplaced() {
	_, unplaced := Partition(b.stages, b.items)
	for _, item := range unplaced {
		key := item.ID + "\x00" + item.Status
		if _, ok := b.warned[key]; ok {
			continue
		}
		b.warned[key] = struct{}{}
		b.logger.Warn("item status matches no stage; omitted from board", "pipeline", b.pipeline, "item", item.ID, "status", item.Status)
	}
}
