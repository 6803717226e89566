package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the board key bindings.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	moveLeft      key.Binding
	moveRight     key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	grab          key.Binding
	drop          key.Binding
	cancel        key.Binding
	itemInfo      key.Binding
	moveCardLeft  key.Binding
	moveCardRight key.Binding
	fields        key.Binding
	nextPipeline  key.Binding
	prevPipeline  key.Binding
	copyID        key.Binding
	resetFields   key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "card up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "card down")),
		grab:          key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "grab card")),
		drop:          key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop card")),
		cancel:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		itemInfo:      key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "card details")),
		moveCardLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move card left")),
		moveCardRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move card right")),
		fields:        key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "card fields")),
		nextPipeline:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next pipeline")),
		prevPipeline:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous pipeline")),
		copyID:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
		resetFields:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "default fields")),
	}
}

// ShortHelp returns the footer bindings.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.grab, k.itemInfo, k.moveCardLeft, k.moveCardRight, k.fields, k.nextPipeline, k.toggleHelp, k.quit,
	}
}

// FullHelp returns every binding grouped by concern.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.grab, k.drop, k.cancel, k.moveCardLeft, k.moveCardRight},
		{k.itemInfo, k.copyID, k.fields, k.resetFields},
		{k.nextPipeline, k.prevPipeline, k.reload, k.toggleHelp, k.quit},
	}
}

// grabKeys is the short hint shown while a card is held.
func (k keyMap) grabKeys() []key.Binding {
	return []key.Binding{k.moveLeft, k.moveRight, k.drop, k.cancel}
}
