package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"

	"github.com/evanschultz/funnel/internal/board"
	"github.com/evanschultz/funnel/internal/domain"
	"github.com/evanschultz/funnel/internal/prefs"
)

// Service is the persistence surface behind the board.
type Service interface {
	board.Source
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define the overlay modes.
const (
	modeNone inputMode = iota
	modeDetail
	modeFieldPicker
)

const (
	loadTimeout    = 10 * time.Second
	persistTimeout = 10 * time.Second
)

// boardLoadedMsg carries one fetch result for the board that issued it.
type boardLoadedMsg struct {
	board *board.Board
	data  board.Data
	err   error
}

// moveSettledMsg carries the persistence outcome of one move.
type moveSettledMsg struct {
	board *board.Board
	move  board.Move
	err   error
}

type fieldsLoadedMsg struct {
	fields []domain.FieldID
}

type fieldsSavedMsg struct {
	fields []domain.FieldID
	err    error
}

// preferencesChangedMsg reports an external edit of the preferences file.
type preferencesChangedMsg struct{}

type clipboardMsg struct {
	text string
	err  error
}

// Model is the bubbletea model of the pipeline board.
type Model struct {
	service    Service
	fieldStore *prefs.Store
	watcher    PreferenceWatcher
	logger     *log.Logger
	now        func() time.Time
	copyText   func(string) error

	pipelines   []domain.Pipeline
	pipelineIdx int
	board       *board.Board

	dragThreshold    int
	activationWindow time.Duration
	toastDuration    time.Duration
	currencyPrefix   string
	format           board.AmountFormatter

	fields []domain.FieldID

	width          int
	height         int
	selectedColumn int
	selectedCard   int
	firstColumn    int
	keyboardGrab   bool

	mode     inputMode
	detailID string
	picker   fieldPicker
	notes    *notesRenderer

	notifications *toastQueue
	toasts        []toast

	keys keyMap
	help help.Model
}

// NewModel constructs the board model. Data loads in Init.
func NewModel(svc Service, opts ...Option) Model {
	m := Model{
		service:          svc,
		logger:           log.Default(),
		now:              time.Now,
		copyText:         clipboard.WriteAll,
		pipelines:        domain.Pipelines(),
		dragThreshold:    board.DefaultDragThreshold,
		activationWindow: board.DefaultActivationWindow,
		toastDuration:    DefaultToastDuration,
		currencyPrefix:   "R$",
		notes:            &notesRenderer{},
		notifications:    &toastQueue{},
		keys:             newKeyMap(),
		help:             help.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	if m.fieldStore == nil {
		m.fieldStore = prefs.NewStore(nil, prefs.DefaultUser, prefs.WithLogger(m.logger))
	}
	m.fields = m.fieldStore.Defaults()
	m.format = board.CurrencyFormatter(m.currencyPrefix)
	m.board = m.newBoard(m.currentPipeline())
	return m
}

// Init starts the first load and the preference watch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoard(), m.loadFields(), m.waitForPreferenceChange())
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scrollColumns()
		return m, nil

	case boardLoadedMsg:
		if msg.board != m.board {
			return m, nil
		}
		if msg.err != nil {
			m.board.FailLoad(msg.err)
		} else {
			m.board.Apply(msg.data)
		}
		m.clampSelection()
		cmd := m.flushToasts()
		return m, cmd

	case moveSettledMsg:
		msg.board.Settle(msg.move, msg.err)
		cmd := m.flushToasts()
		return m, cmd

	case fieldsLoadedMsg:
		m.fields = msg.fields
		m.clampSelection()
		return m, nil

	case fieldsSavedMsg:
		if msg.err != nil {
			cmd := m.notify("Could not save card fields: "+msg.err.Error(), board.NotifyError)
			return m, cmd
		}
		m.fields = msg.fields
		cmd := m.notify("Card fields saved", board.NotifySuccess)
		return m, cmd

	case preferencesChangedMsg:
		m.fieldStore.Invalidate()
		toastCmd := m.notify("Card fields reloaded", board.NotifyInfo)
		return m, tea.Batch(m.loadFields(), m.waitForPreferenceChange(), toastCmd)

	case clipboardMsg:
		if msg.err != nil {
			cmd := m.notify("Copy failed: "+msg.err.Error(), board.NotifyError)
			return m, cmd
		}
		cmd := m.notify("Copied "+msg.text, board.NotifyInfo)
		return m, cmd

	case toastExpiredMsg:
		m.dismissToast(msg.id)
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	default:
		return m, nil
	}
}

func (m Model) newBoard(p domain.Pipeline) *board.Board {
	return board.New(p, m.service, m.notifications,
		board.WithLogger(m.logger),
		board.WithDragThreshold(m.dragThreshold),
		board.WithActivationWindow(m.activationWindow),
	)
}

func (m Model) currentPipeline() domain.Pipeline {
	if len(m.pipelines) == 0 {
		return domain.PipelineLeads
	}
	return m.pipelines[clamp(m.pipelineIdx, 0, len(m.pipelines)-1)]
}

// loadBoard fetches the current board off the update loop.
func (m Model) loadBoard() tea.Cmd {
	b := m.board
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		data, err := b.Fetch(ctx)
		return boardLoadedMsg{board: b, data: data, err: err}
	}
}

// persist writes one locally applied move.
func (m Model) persist(move board.Move) tea.Cmd {
	b := m.board
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		return moveSettledMsg{board: b, move: move, err: b.Persist(ctx, move)}
	}
}

func (m Model) loadFields() tea.Cmd {
	store := m.fieldStore
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		return fieldsLoadedMsg{fields: store.Get(ctx)}
	}
}

func (m Model) saveFields(fields []domain.FieldID) tea.Cmd {
	store, watcher := m.fieldStore, m.watcher
	return func() tea.Msg {
		if watcher != nil {
			watcher.NotifySave()
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		return fieldsSavedMsg{fields: fields, err: store.Set(ctx, fields)}
	}
}

// waitForPreferenceChange blocks until the watcher reports an external edit.
func (m Model) waitForPreferenceChange() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	reloads := m.watcher.Reloads()
	return func() tea.Msg {
		if _, ok := <-reloads; !ok {
			return nil
		}
		return preferencesChangedMsg{}
	}
}

func (m Model) copyItemID(id string) tea.Cmd {
	write := m.copyText
	return func() tea.Msg {
		return clipboardMsg{text: id, err: write(id)}
	}
}

// handleKey routes one key press by mode and drag state.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeDetail:
		return m.handleDetailKey(msg)
	case modeFieldPicker:
		return m.handlePickerKey(msg)
	}
	if m.board.Drag().Dragging() {
		return m.handleGrabKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.cancel):
		m.help.ShowAll = false
		m.toasts = nil
	case key.Matches(msg, m.keys.reload):
		return m, m.loadBoard()
	case key.Matches(msg, m.keys.nextPipeline):
		return m.switchPipeline(1)
	case key.Matches(msg, m.keys.prevPipeline):
		return m.switchPipeline(-1)
	case key.Matches(msg, m.keys.moveLeft):
		m.selectColumn(m.selectedColumn - 1)
	case key.Matches(msg, m.keys.moveRight):
		m.selectColumn(m.selectedColumn + 1)
	case key.Matches(msg, m.keys.moveUp):
		m.selectedCard--
		m.clampSelection()
	case key.Matches(msg, m.keys.moveDown):
		m.selectedCard++
		m.clampSelection()
	case key.Matches(msg, m.keys.grab):
		m.grabSelected()
	case key.Matches(msg, m.keys.itemInfo):
		if item, ok := m.selectedItem(); ok {
			m.openDetail(item.ID)
		}
	case key.Matches(msg, m.keys.moveCardLeft):
		return m.shiftSelected(-1)
	case key.Matches(msg, m.keys.moveCardRight):
		return m.shiftSelected(1)
	case key.Matches(msg, m.keys.fields):
		m.picker = newFieldPicker(m.fields)
		m.mode = modeFieldPicker
	}
	return m, nil
}

// handleGrabKey handles keys while a card is held.
func (m Model) handleGrabKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.cancel):
		m.board.Drag().Cancel()
		m.board.Activation().Reset()
		m.keyboardGrab = false
		m.scrollColumns()
	case !m.keyboardGrab:
		// A mouse drag owns the gesture; only esc applies.
	case key.Matches(msg, m.keys.moveLeft):
		m.hoverBy(-1)
	case key.Matches(msg, m.keys.moveRight):
		m.hoverBy(1)
	case key.Matches(msg, m.keys.drop):
		return m.endDrag(m.board.Drag().Over())
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.copyID):
		if m.detailID != "" {
			return m, m.copyItemID(m.detailID)
		}
	case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.itemInfo):
		m.mode = modeNone
		m.detailID = ""
	}
	return m, nil
}

func (m Model) handlePickerKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.cancel):
		m.mode = modeNone
	case key.Matches(msg, m.keys.moveUp):
		m.picker.move(-1)
	case key.Matches(msg, m.keys.moveDown):
		m.picker.move(1)
	case key.Matches(msg, m.keys.grab):
		if !m.picker.toggle() {
			cmd := m.notify(fmt.Sprintf("Cards show at most %d fields", domain.MaxVisibleCardFields), board.NotifyInfo)
			return m, cmd
		}
	case key.Matches(msg, m.keys.resetFields):
		m.picker.reset(m.fieldStore.Defaults())
	case key.Matches(msg, m.keys.drop):
		m.mode = modeNone
		return m, m.saveFields(m.picker.selected)
	}
	return m, nil
}

// handleMouseClick selects the card under the pointer, opens it on a double
// click and otherwise arms a drag.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if msg.Button != tea.MouseLeft || m.mode != modeNone || m.board.Loading() {
		return m, nil
	}
	drag := m.board.Drag()
	if drag.Dragging() {
		return m, nil
	}
	if _, ok := m.columnAt(msg.X, msg.Y); !ok {
		return m, nil
	}
	column, card, hit := m.cardAt(msg.X, msg.Y)
	m.selectedColumn = column
	if !hit {
		m.clampSelection()
		return m, nil
	}
	m.selectedCard = card
	m.clampSelection()
	item, ok := m.selectedItem()
	if !ok {
		return m, nil
	}
	if m.board.Activation().Activate(item.ID, m.now(), drag.Dragging()) {
		m.openDetail(item.ID)
		return m, nil
	}
	drag.Press(item, board.Point{X: msg.X, Y: msg.Y})
	return m, nil
}

func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	drag := m.board.Drag()
	if m.keyboardGrab || (!drag.Pressed() && !drag.Dragging()) {
		return m, nil
	}
	drag.Move(board.Point{X: msg.X, Y: msg.Y}, m.stageAt(msg.X, msg.Y))
	return m, nil
}

// handleMouseRelease drops over the column under the pointer. A press that
// never became a drag is a plain click.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if m.keyboardGrab {
		return m, nil
	}
	drag := m.board.Drag()
	if !drag.Dragging() {
		drag.Release("")
		return m, nil
	}
	return m.endDrag(m.stageAt(msg.X, msg.Y))
}

func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeFieldPicker {
		switch msg.Button {
		case tea.MouseWheelUp:
			m.picker.move(-1)
		case tea.MouseWheelDown:
			m.picker.move(1)
		}
		return m, nil
	}
	if m.mode != modeNone || m.board.Drag().Dragging() {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		m.selectedCard--
	case tea.MouseWheelDown:
		m.selectedCard++
	}
	m.clampSelection()
	return m, nil
}

// endDrag releases the held card over stageID and persists the resulting move.
func (m Model) endDrag(stageID string) (tea.Model, tea.Cmd) {
	move, moved, err := m.board.EndDrag(stageID)
	m.keyboardGrab = false
	toastCmd := m.flushToasts()
	if err != nil || !moved {
		m.scrollColumns()
		return m, toastCmd
	}
	m.followCard(move)
	return m, tea.Batch(toastCmd, m.persist(move))
}

// shiftSelected moves the selected card one stage left or right.
func (m Model) shiftSelected(delta int) (tea.Model, tea.Cmd) {
	if m.board.Loading() {
		return m, nil
	}
	item, ok := m.selectedItem()
	if !ok {
		return m, nil
	}
	columns := m.board.Columns()
	target := m.selectedColumn + delta
	if target < 0 || target >= len(columns) {
		return m, nil
	}
	move, moved, err := m.board.BeginMove(item.ID, item.Status, columns[target].Stage.ID)
	toastCmd := m.flushToasts()
	if err != nil || !moved {
		return m, toastCmd
	}
	m.followCard(move)
	return m, tea.Batch(toastCmd, m.persist(move))
}

func (m *Model) grabSelected() {
	if m.board.Loading() {
		return
	}
	item, ok := m.selectedItem()
	if !ok {
		return
	}
	if m.board.Drag().Start(item) {
		m.keyboardGrab = true
		m.board.Activation().Reset()
	}
}

// hoverBy moves the keyboard drop target across columns.
func (m *Model) hoverBy(delta int) {
	columns := m.board.Columns()
	if len(columns) == 0 {
		return
	}
	idx := m.hoverColumnIndex()
	if idx < 0 {
		idx = m.selectedColumn
	}
	idx = clamp(idx+delta, 0, len(columns)-1)
	m.board.Drag().Hover(columns[idx].Stage.ID)
	m.scrollColumns()
}

func (m Model) hoverColumnIndex() int {
	over := m.board.Drag().Over()
	if over == "" {
		return -1
	}
	for idx, column := range m.board.Columns() {
		if column.Stage.ID == over {
			return idx
		}
	}
	return -1
}

// followCard moves the selection onto a card that just changed column.
func (m *Model) followCard(move board.Move) {
	for colIdx, column := range m.board.Columns() {
		if column.Stage.ID != move.To {
			continue
		}
		m.selectedColumn = colIdx
		for cardIdx, item := range column.Items {
			if item.ID == move.ItemID {
				m.selectedCard = cardIdx
			}
		}
	}
	m.clampSelection()
}

func (m Model) switchPipeline(delta int) (tea.Model, tea.Cmd) {
	if len(m.pipelines) < 2 {
		return m, nil
	}
	m.board.Drag().Cancel()
	m.keyboardGrab = false
	m.pipelineIdx = (m.pipelineIdx + delta + len(m.pipelines)) % len(m.pipelines)
	m.board = m.newBoard(m.currentPipeline())
	m.selectedColumn = 0
	m.selectedCard = 0
	m.firstColumn = 0
	m.mode = modeNone
	m.detailID = ""
	return m, m.loadBoard()
}

func (m *Model) selectColumn(idx int) {
	m.selectedColumn = idx
	m.clampSelection()
}

func (m *Model) openDetail(itemID string) {
	m.mode = modeDetail
	m.detailID = itemID
}

// clampSelection keeps the selected column and card inside the board.
func (m *Model) clampSelection() {
	columns := m.board.Columns()
	if len(columns) == 0 {
		m.selectedColumn = 0
		m.selectedCard = 0
		m.firstColumn = 0
		return
	}
	m.selectedColumn = clamp(m.selectedColumn, 0, len(columns)-1)
	m.selectedCard = clamp(m.selectedCard, 0, len(columns[m.selectedColumn].Items)-1)
	m.scrollColumns()
}

func (m Model) selectedItem() (domain.Item, bool) {
	columns := m.board.Columns()
	if m.selectedColumn < 0 || m.selectedColumn >= len(columns) {
		return domain.Item{}, false
	}
	items := columns[m.selectedColumn].Items
	if m.selectedCard < 0 || m.selectedCard >= len(items) {
		return domain.Item{}, false
	}
	return items[m.selectedCard], true
}

func (m Model) cardRows(item domain.Item) []board.CardRow {
	return board.CardRows(item, m.fields, m.format)
}

func (m Model) stageTitle(stageID string) string {
	for _, stage := range m.board.Stages() {
		if stage.ID == stageID {
			return stage.Title
		}
	}
	return stageID + " (no stage)"
}

// View renders the board.
func (m Model) View() tea.View {
	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")

	width, height := m.viewWidth(), m.viewHeight()
	boardRows := m.boardInnerHeight() + 2
	var body string
	if m.board.Loading() {
		body = m.renderSkeleton(dim)
	} else {
		body = m.renderColumns(accent, muted, dim)
	}
	sections := []string{
		m.renderHeader(accent, muted),
		"",
		fitLines(body, boardRows),
		m.renderFooter(),
	}
	content := fitLines(strings.Join(sections, "\n"), height)

	switch m.mode {
	case modeDetail:
		content = overlayCentered(content, m.renderDetail(accent, muted), width, height)
	case modeFieldPicker:
		content = overlayCentered(content, m.picker.render(accent, muted), width, height)
	}
	if toasts := m.renderToasts(); toasts != "" {
		content = overlayAt(content, toasts, width-lipgloss.Width(toasts)-1, 0, width, height)
	}

	view := tea.NewView(content)
	view.MouseMode = tea.MouseModeCellMotion
	view.AltScreen = true
	return view
}

func (m Model) renderHeader(accent, muted color.Color) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	activeStyle := lipgloss.NewStyle().Bold(true).Underline(true).Foreground(accent)
	mutedStyle := lipgloss.NewStyle().Foreground(muted)

	tabs := make([]string, 0, len(m.pipelines))
	for idx, p := range m.pipelines {
		if idx == m.pipelineIdx {
			tabs = append(tabs, activeStyle.Render(pipelineLabel(p)))
			continue
		}
		tabs = append(tabs, mutedStyle.Render(pipelineLabel(p)))
	}
	header := titleStyle.Render("funnel") + "  " + strings.Join(tabs, mutedStyle.Render(" │ "))
	if m.board.Loading() {
		return header + mutedStyle.Render("  loading…")
	}
	count := 0
	var total float64
	for _, column := range m.board.Columns() {
		count += column.Count()
		total += column.Total
	}
	return header + mutedStyle.Render(fmt.Sprintf("  %d items · %s", count, m.format(total)))
}

func (m Model) renderColumns(accent, muted, dim color.Color) string {
	columns := m.board.Columns()
	if len(columns) == 0 {
		return lipgloss.NewStyle().Foreground(muted).Padding(1, 2).
			Render(fmt.Sprintf("No stages for %s. Add one with `funnel stages add`.", pipelineLabel(m.board.Pipeline())))
	}
	inner, first, count := m.columnGeometry(len(columns))
	innerHeight := m.boardInnerHeight()
	views := make([]string, 0, count)
	for idx := first; idx < first+count; idx++ {
		views = append(views, m.renderColumn(columns[idx], idx, inner, innerHeight, accent, muted, dim))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

func (m Model) renderColumn(column board.Column, colIdx, inner, innerHeight int, accent, muted, dim color.Color) string {
	stageColor := stageColorOr(column.Stage.Color, accent)
	mutedStyle := lipgloss.NewStyle().Foreground(muted)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		MarginRight(1)
	switch {
	case column.Over:
		box = box.Border(lipgloss.ThickBorder()).BorderForeground(accent)
	case colIdx == m.selectedColumn && !m.board.Drag().Dragging():
		box = box.BorderForeground(stageColor)
	}

	countLabel := fmt.Sprintf(" (%d)", column.Count())
	title := lipgloss.NewStyle().Bold(true).Foreground(stageColor).
		Render(truncate(column.Stage.Title, max(1, inner-len(countLabel))))
	blank := strings.Repeat(" ", inner)
	lines := []string{
		padCell(title+mutedStyle.Render(countLabel), inner),
		padCell(mutedStyle.Render(m.format(column.Total)), inner),
		blank,
	}
	if column.Over {
		lines[2] = padCell(lipgloss.NewStyle().Foreground(accent).Render("▾ drop here"), inner)
	}

	cardLines := make([]string, 0, len(column.Items)*3)
	if len(column.Items) == 0 {
		cardLines = append(cardLines, padCell(mutedStyle.Render("(empty)"), inner))
	}
	for idx, item := range column.Items {
		selected := colIdx == m.selectedColumn && idx == m.selectedCard
		cardLines = append(cardLines, m.renderCard(item, inner, selected, m.board.Lifted(item.ID), muted)...)
		if idx < len(column.Items)-1 {
			cardLines = append(cardLines, blank)
		}
	}
	window := max(1, innerHeight-columnHeadRows)
	if top := m.cardScroll(colIdx, m.cardSpans(colIdx)); top < len(cardLines) {
		cardLines = cardLines[top:]
	}
	if len(cardLines) > window {
		cardLines = cardLines[:window]
	}
	for len(cardLines) < window {
		cardLines = append(cardLines, blank)
	}
	return box.Render(strings.Join(append(lines, cardLines...), "\n"))
}

// renderCard renders one card; a lifted card stays in place, dimmed.
func (m Model) renderCard(item domain.Item, inner int, selected, lifted bool, muted color.Color) []string {
	marker := "  "
	switch {
	case lifted:
		marker = "⇡ "
	case selected:
		marker = "▌ "
	}
	titleStyle := lipgloss.NewStyle().Bold(true)
	rowStyle := lipgloss.NewStyle().Foreground(muted)
	if selected {
		titleStyle = titleStyle.Foreground(lipgloss.Color("212"))
	}
	if lifted {
		titleStyle = titleStyle.Faint(true)
		rowStyle = rowStyle.Faint(true)
	}
	width := max(1, inner-2)

	rows := m.cardRows(item)
	if len(rows) == 0 {
		return []string{padCell(marker+rowStyle.Render(truncate(item.ID, width)), inner)}
	}
	lines := make([]string, 0, len(rows))
	for idx, row := range rows {
		prefix := "  "
		if idx == 0 || selected {
			prefix = marker
		}
		if row.Field == domain.FieldTitle {
			lines = append(lines, padCell(prefix+titleStyle.Render(truncate(row.Value, width)), inner))
			continue
		}
		lines = append(lines, padCell(prefix+rowStyle.Render(truncate(row.Label+": "+row.Value, width)), inner))
	}
	return lines
}

// renderSkeleton draws placeholder columns while the first load runs.
func (m Model) renderSkeleton(dim color.Color) string {
	inner, _, count := m.columnGeometry(board.SkeletonColumns)
	innerHeight := m.boardInnerHeight()
	shimmer := lipgloss.NewStyle().Foreground(dim)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		MarginRight(1)
	views := make([]string, 0, count)
	for range count {
		lines := []string{
			padCell(shimmer.Render(strings.Repeat("░", inner/2)), inner),
			padCell(shimmer.Render(strings.Repeat("░", inner/3)), inner),
			strings.Repeat(" ", inner),
		}
		for card := 0; card < 3; card++ {
			lines = append(lines,
				padCell(shimmer.Render(strings.Repeat("▒", inner-2)), inner),
				padCell(shimmer.Render(strings.Repeat("░", (inner-2)*2/3)), inner),
				strings.Repeat(" ", inner),
			)
		}
		views = append(views, box.Render(fitLines(strings.Join(lines, "\n"), innerHeight)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// renderFooter renders the status line and help bar.
func (m Model) renderFooter() string {
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.viewWidth()-2))
	helpView := helpBubble.View(m.keys)
	if m.board.Drag().Dragging() && !m.help.ShowAll {
		helpView = helpBubble.ShortHelpView(m.keys.grabKeys())
	}
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.viewWidth())).
		Render(helpView)
	return statusStyle.Render(truncate(m.statusText(), m.viewWidth())) + "\n" + helpLine
}

// statusText describes the drag in progress or hidden items.
func (m Model) statusText() string {
	if session, ok := m.board.Drag().Session(); ok {
		target := "release over a column to drop"
		if over := m.board.Drag().Over(); over != "" {
			target = "→ " + m.stageTitle(over)
		}
		return fmt.Sprintf("moving %q %s", session.Preview.Title, target)
	}
	if m.board.Loading() {
		return ""
	}
	if hidden := len(m.board.Unplaced()); hidden > 0 {
		return fmt.Sprintf("%d items hidden: status matches no stage", hidden)
	}
	return ""
}

func (m Model) renderDetail(accent, muted color.Color) string {
	item, ok := m.board.Item(m.detailID)
	if !ok {
		return ""
	}
	width := clamp(m.viewWidth()-8, 30, 72)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle := lipgloss.NewStyle().Foreground(muted)

	lines := []string{
		titleStyle.Render(truncate(item.Title, width)),
		mutedStyle.Render(truncate(fmt.Sprintf("%s · %s · %s", pipelineLabel(item.Pipeline), m.stageTitle(item.Status), item.ID), width)),
		"",
	}
	for _, row := range board.CardRows(item, domain.KnownFields(), m.format) {
		if row.Field == domain.FieldTitle {
			continue
		}
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("%-15s", row.Label))+truncate(row.Value, width-16))
	}
	if notes := m.notes.render(item.Notes, width); notes != "" {
		lines = append(lines, "", notes)
	}
	lines = append(lines, "", mutedStyle.Render("y copy id • esc close"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
}

func pipelineLabel(p domain.Pipeline) string {
	switch p {
	case domain.PipelineLeads:
		return "Leads"
	case domain.PipelineOpportunities:
		return "Opportunities"
	default:
		return string(p)
	}
}

// stageColorOr parses a stage's hex color, falling back when it is blank.
func stageColorOr(hex string, fallback color.Color) color.Color {
	if _, err := domain.NormalizeColor(hex); err != nil || strings.TrimSpace(hex) == "" {
		return fallback
	}
	return lipgloss.Color(hex)
}
