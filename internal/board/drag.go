package board

import "github.com/evanschultz/funnel/internal/domain"

// DefaultDragThreshold is the pointer travel, in cells, that turns a press into a drag.
const DefaultDragThreshold = 2

// DragState identifies the drag controller state.
type DragState int

// DragIdle and related constants enumerate drag states.
const (
	DragIdle DragState = iota
	DragDragging
	DragDropped
	DragCancelled
)

// String returns a readable state name.
func (s DragState) String() string {
	switch s {
	case DragIdle:
		return "idle"
	case DragDragging:
		return "dragging"
	case DragDropped:
		return "dropped"
	case DragCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Point is a pointer position in terminal cells.
type Point struct {
	X int
	Y int
}

// DragSession describes the gesture in progress.
type DragSession struct {
	ItemID        string
	SourceStageID string
	Preview       domain.Item
	Origin        Point
	Pointer       Point
}

// DropResult is emitted when a drag ends over a column.
type DropResult struct {
	ItemID        string
	SourceStageID string
	TargetStageID string
}

// SameStage reports whether the drop landed on the source column.
func (r DropResult) SameStage() bool {
	return r.SourceStageID == r.TargetStageID
}

// DragController owns the drag session state machine. A gesture moves from
// idle to dragging and ends dropped or cancelled; terminal states clear the
// session before returning, so the controller is idle again between gestures.
type DragController struct {
	threshold int
	pressed   *DragSession
	session   *DragSession
	over      string
	outcome   DragState
}

// NewDragController constructs a controller; a non-positive threshold uses the default.
func NewDragController(threshold int) *DragController {
	if threshold <= 0 {
		threshold = DefaultDragThreshold
	}
	return &DragController{threshold: threshold, outcome: DragIdle}
}

// State returns DragDragging while a session is active, otherwise DragIdle.
func (c *DragController) State() DragState {
	if c.session != nil {
		return DragDragging
	}
	return DragIdle
}

// Dragging reports whether a session is active.
func (c *DragController) Dragging() bool {
	return c.session != nil
}

// Pressed reports whether a card is pressed but the threshold is not yet crossed.
func (c *DragController) Pressed() bool {
	return c.pressed != nil
}

// Session returns a copy of the active session.
func (c *DragController) Session() (DragSession, bool) {
	if c.session == nil {
		return DragSession{}, false
	}
	return *c.session, true
}

// Over returns the current hover target, or "" when none.
func (c *DragController) Over() string {
	if c.session == nil {
		return ""
	}
	return c.over
}

// IsOver reports whether stageID is the current hover target.
func (c *DragController) IsOver(stageID string) bool {
	return stageID != "" && c.Over() == stageID
}

// Outcome returns the terminal state of the last finished gesture.
func (c *DragController) Outcome() DragState {
	return c.outcome
}

// Press arms a drag on item at the pointer position.
func (c *DragController) Press(item domain.Item, at Point) {
	if c.session != nil {
		return
	}
	c.pressed = &DragSession{
		ItemID:        item.ID,
		SourceStageID: item.Status,
		Preview:       item,
		Origin:        at,
		Pointer:       at,
	}
}

// Start begins a drag immediately, as keyboard grabs do.
func (c *DragController) Start(item domain.Item) bool {
	if c.session != nil {
		return false
	}
	c.pressed = nil
	c.session = &DragSession{
		ItemID:        item.ID,
		SourceStageID: item.Status,
		Preview:       item,
	}
	c.over = item.Status
	return true
}

// Move tracks pointer motion. A pressed card starts dragging once the pointer
// travels at least the threshold; while dragging, over becomes the hover target.
// It reports whether a session is active after the update.
func (c *DragController) Move(at Point, over string) bool {
	if c.session == nil {
		if c.pressed == nil {
			return false
		}
		if chebyshev(c.pressed.Origin, at) < c.threshold {
			return false
		}
		session := *c.pressed
		c.pressed = nil
		c.session = &session
	}
	c.session.Pointer = at
	c.over = over
	return true
}

// Hover sets the hover target without pointer motion.
func (c *DragController) Hover(over string) {
	if c.session == nil {
		return
	}
	c.over = over
}

// Release ends the gesture. Releasing over a column drops, even onto the
// source column; releasing over nothing cancels. A press that never became a
// drag is cleared and reports false.
func (c *DragController) Release(over string) (DropResult, bool) {
	c.pressed = nil
	if c.session == nil {
		return DropResult{}, false
	}
	if over == "" {
		c.finish(DragCancelled)
		return DropResult{}, false
	}
	result := DropResult{
		ItemID:        c.session.ItemID,
		SourceStageID: c.session.SourceStageID,
		TargetStageID: over,
	}
	c.finish(DragDropped)
	return result, true
}

// Cancel abandons the gesture without a drop.
func (c *DragController) Cancel() bool {
	c.pressed = nil
	if c.session == nil {
		return false
	}
	c.finish(DragCancelled)
	return true
}

func (c *DragController) finish(outcome DragState) {
	c.session = nil
	c.over = ""
	c.outcome = outcome
}

func chebyshev(a, b Point) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return max(dx, dy)
}
