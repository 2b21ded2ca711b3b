package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the board key bindings.
type keyMap struct {
	quit        key.Binding
	reload      key.Binding
	toggleHelp  key.Binding
	focusLeft   key.Binding
	focusRight  key.Binding
	selectUp    key.Binding
	selectDown  key.Binding
	statusLeft  key.Binding
	statusRight key.Binding
	detail      key.Binding
	copyID      key.Binding
	back        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		focusLeft:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		focusRight:  key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		selectUp:    key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		selectDown:  key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		statusLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous status")),
		statusRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next status")),
		detail:      key.NewBinding(key.WithKeys("enter", "i"), key.WithHelp("enter", "task detail")),
		copyID:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy task id")),
		back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close detail")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.detail, k.statusLeft, k.statusRight, k.copyID, k.toggleHelp, k.quit}
}

// FullHelp returns every binding grouped by purpose.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.focusLeft, k.focusRight, k.selectUp, k.selectDown},
		{k.statusLeft, k.statusRight, k.detail, k.back, k.copyID},
		{k.reload, k.toggleHelp, k.quit},
	}
}
