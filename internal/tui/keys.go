package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	up        key.Binding
	down      key.Binding
	open      key.Binding
	back      key.Binding
	crumb     key.Binding
	edit      key.Binding
	title     key.Binding
	desc      key.Binding
	progress  key.Binding
	diff      key.Binding
	kind      key.Binding
	create    key.Binding
	del       key.Binding
	complete  key.Binding
	color     key.Binding
	managers  key.Binding
	report    key.Binding
	view      key.Binding
	refresh   key.Binding
	quit      key.Binding
	forceQuit key.Binding

	// managers pane
	capability key.Binding
	revoke     key.Binding
	invite     key.Binding
	close      key.Binding

	// confirmation modal
	yes key.Binding
	no  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j", "down")),
		open:      key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "open")),
		back:      key.NewBinding(key.WithKeys("backspace", "h"), key.WithHelp("h", "back")),
		crumb:     key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("0-9", "jump to crumb")),
		edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit/save")),
		title:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "title")),
		desc:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "description")),
		progress:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "progress")),
		diff:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "difficulty")),
		kind:      key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "task/project")),
		create:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new/commit")),
		del:       key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete")),
		complete:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "done")),
		color:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "color")),
		managers:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "managers")),
		report:    key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "report")),
		view:      key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "board/table")),
		refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		forceQuit: key.NewBinding(key.WithKeys("ctrl+c")),

		capability: key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6"), key.WithHelp("1-6", "toggle grant")),
		revoke:     key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "revoke")),
		invite:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "invite")),
		close:      key.NewBinding(key.WithKeys("esc", "q"), key.WithHelp("esc", "close")),

		yes: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
		no:  key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "no")),
	}
}
