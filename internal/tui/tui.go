// Package tui provides an interactive terminal UI for tplan using Bubble Tea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/taxilian/tplan/internal/collection"
	"github.com/taxilian/tplan/internal/controller"
	"github.com/taxilian/tplan/internal/model"
	"github.com/taxilian/tplan/internal/perm"
	"github.com/taxilian/tplan/internal/prefs"
	"github.com/taxilian/tplan/internal/report"
)

// Pane is the part of the screen that owns the keyboard.
type Pane int

const (
	PaneItems Pane = iota
	PaneManagers
	PaneReport
)

// InputMode represents what kind of text input is active.
type InputMode int

const (
	InputNone        InputMode = iota
	InputTitle                 // Editing the selected row's title
	InputDescription           // Editing the selected row's description
	InputProgress              // Entering a progress percentage
	InputColor                 // Entering a color tag
	InputInvite                // Entering a username to invite
)

// Deps are the collaborators the TUI drives.
type Deps struct {
	Controller *controller.Controller
	// Reloads carries the results of the controller's debounced reloads.
	// When nil, the TUI reloads right after each navigation.
	Reloads     <-chan error
	Permissions perm.Gateway
	Lister      report.Lister
	Reporter    report.Generator // optional
	Prefs       *prefs.Store     // optional
	Logger      *log.Logger
}

type confirmState struct {
	prompt string
	ref    model.Ref
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	deps   Deps
	ctrl   *controller.Controller
	keys   keyMap
	cursor int
	pane   Pane

	layout  prefs.ViewMode
	columns []string

	// Input state
	inputMode InputMode
	input     textinput.Model
	confirm   *confirmState

	// Managers pane
	delegation    *perm.Delegation
	managerCursor int

	// Report pane
	reportTitle string
	reportText  string

	// UI state
	loading bool
	spinner spinner.Model
	width   int
	height  int
	err     error
	warning string
	message string
}

// New creates a TUI model over the given collaborators.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	ti := textinput.New()
	ti.CharLimit = 512
	ti.Width = 50

	m := Model{
		deps:    deps,
		ctrl:    deps.Controller,
		keys:    newKeyMap(),
		layout:  prefs.ViewTable,
		columns: append([]string(nil), prefs.DefaultColumns...),
		input:   ti,
		spinner: s,
	}
	if deps.Prefs != nil {
		if mode, err := deps.Prefs.ViewMode(); err == nil {
			m.layout = mode
		} else {
			deps.Logger.Printf("[tui] warning: failed to read view mode: %v", err)
		}
		if cols, err := deps.Prefs.Columns(); err == nil {
			m.columns = cols
		} else {
			deps.Logger.Printf("[tui] warning: failed to read columns: %v", err)
		}
	}
	return m
}

// Messages
type loadedMsg struct {
	err       error
	debounced bool
}

type actionMsg struct {
	message string
	err     error
}

type managersMsg struct {
	err error
}

type reportMsg struct {
	title string
	text  string
	err   error
}

func (m Model) reload() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return loadedMsg{err: ctrl.Reload(context.Background())}
	}
}

// waitReload delivers the next debounced reload result.
func (m Model) waitReload() tea.Cmd {
	ch := m.deps.Reloads
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return nil
		}
		return loadedMsg{err: err, debounced: true}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.reload(), m.waitReload())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Clear message on any key
		m.message = ""
		m.warning = ""
		m.err = nil
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.loading = false
		m.setError(msg.err)
		m.clampCursor()
		// A debounced result arrived; keep listening for the next one.
		if msg.debounced {
			return m, m.waitReload()
		}
		return m, nil

	case actionMsg:
		m.loading = false
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.message = msg.message
		}
		m.clampCursor()
		return m, nil

	case managersMsg:
		m.loading = false
		if msg.err != nil {
			m.setError(msg.err)
			m.pane = PaneItems
			m.delegation = nil
		}
		return m, nil

	case reportMsg:
		m.loading = false
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.pane = PaneReport
		m.reportTitle = msg.title
		m.reportText = msg.text
		return m, nil
	}

	if m.inputMode != InputNone {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// setError routes conflict warnings to the warning line and everything else
// to the error line.
func (m *Model) setError(err error) {
	if err == nil {
		return
	}
	var cw *model.ConflictWarning
	if errors.As(err, &cw) {
		m.warning = cw.Message
		return
	}
	if errors.Is(err, controller.ErrCancelled) {
		m.message = "Cancelled"
		return
	}
	m.err = err
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.Rows())
	if m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

func (m Model) selected() (collection.Row, bool) {
	rows := m.ctrl.Rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return collection.Row{}, false
	}
	return rows[m.cursor], true
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.forceQuit) {
		return m, tea.Quit
	}
	if m.confirm != nil {
		return m.handleConfirmKey(msg)
	}
	if m.inputMode != InputNone {
		return m.handleInputKey(msg)
	}

	switch m.pane {
	case PaneManagers:
		return m.handleManagersKey(msg)
	case PaneReport:
		if key.Matches(msg, m.keys.close) {
			m.pane = PaneItems
		}
		return m, nil
	}
	return m.handleListKey(msg)
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		ref := m.confirm.ref
		m.confirm = nil
		ctrl := m.ctrl
		return m, func() tea.Msg {
			if err := ctrl.Delete(context.Background(), ref, controller.Confirmed); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: "Deleted"}
		}
	case key.Matches(msg, m.keys.no):
		m.confirm = nil
		m.message = "Cancelled"
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.inputMode = InputNone
		m.input.Blur()
		return m, nil
	case "enter":
		return m.submitInput()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startInput(mode InputMode, prompt, value string) (Model, tea.Cmd) {
	m.inputMode = mode
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	focus := m.input.Focus()
	return m, tea.Batch(focus, textinput.Blink)
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	mode := m.inputMode
	m.inputMode = InputNone
	m.input.Blur()
	ctrl := m.ctrl
	index := m.cursor

	switch mode {
	case InputTitle:
		m.setError(ctrl.Edit(index, model.Patch{Title: model.Some(optional(text))}))
		return m, nil

	case InputDescription:
		m.setError(ctrl.Edit(index, model.Patch{Description: model.Some(optional(text))}))
		return m, nil

	case InputProgress:
		value, err := strconv.Atoi(strings.TrimSuffix(text, "%"))
		if err != nil {
			m.err = fmt.Errorf("progress must be a number: %q", text)
			return m, nil
		}
		row, ok := m.selected()
		if !ok {
			return m, nil
		}
		if row.Editing {
			m.setError(ctrl.Edit(index, model.Patch{Progress: model.Some(value)}))
			return m, nil
		}
		id, persisted := model.IDOf(row.Node)
		if !persisted {
			return m, nil
		}
		return m, func() tea.Msg {
			if err := ctrl.SetProgress(context.Background(), id, value); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: fmt.Sprintf("Progress set to %d%%", value)}
		}

	case InputColor:
		return m, func() tea.Msg {
			if err := ctrl.SetColor(context.Background(), index, text); err != nil {
				return actionMsg{err: err}
			}
			if text == "" {
				return actionMsg{message: "Color cleared"}
			}
			return actionMsg{message: "Color set to " + text}
		}

	case InputInvite:
		d := m.delegation
		if d == nil {
			return m, nil
		}
		title := "Manage item " + d.ItemID().String()
		return m, func() tea.Msg {
			if err := d.Invite(context.Background(), text, title, ""); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: "Invited " + text}
		}
	}
	return m, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.ctrl.Rows()
	row, hasRow := m.selected()
	ctrl := m.ctrl

	switch {
	case key.Matches(msg, m.keys.quit):
		if ctrl.HasUnsavedChanges() {
			m.warning = "save changes before quitting (ctrl+c discards them)"
			return m, nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.down):
		if m.cursor < len(rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.open):
		if !hasRow {
			return m, nil
		}
		id, persisted := model.IDOf(row.Node)
		if !persisted {
			m.warning = "save changes before navigating"
			return m, nil
		}
		if err := ctrl.NavigateToChild(id); err != nil {
			m.setError(err)
			return m, nil
		}
		return m.afterNavigate()

	case key.Matches(msg, m.keys.back):
		if err := ctrl.NavigateBack(); err != nil {
			m.setError(err)
			return m, nil
		}
		return m.afterNavigate()

	case key.Matches(msg, m.keys.crumb):
		index, _ := strconv.Atoi(msg.String())
		if err := ctrl.NavigateTo(index); err != nil {
			m.setError(err)
			return m, nil
		}
		return m.afterNavigate()

	case key.Matches(msg, m.keys.edit):
		if !hasRow {
			return m, nil
		}
		index := m.cursor
		if !row.Editing && !model.IsDraft(row.Node) {
			m.setError(ctrl.ToggleEdit(context.Background(), index))
			return m, nil
		}
		m.loading = true
		return m, func() tea.Msg {
			if err := ctrl.ToggleEdit(context.Background(), index); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: "Saved"}
		}

	case key.Matches(msg, m.keys.create):
		if !ctrl.IsCreating() {
			if err := ctrl.BeginOrCommitCreate(context.Background()); err != nil {
				m.setError(err)
				return m, nil
			}
			m.cursor = len(ctrl.Rows()) - 1
			return m.startInput(InputTitle, "Title: ", "")
		}
		m.loading = true
		return m, func() tea.Msg {
			if err := ctrl.BeginOrCommitCreate(context.Background()); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: "Created"}
		}

	case key.Matches(msg, m.keys.title), key.Matches(msg, m.keys.desc):
		if !hasRow || !row.Editing {
			m.warning = "press e to edit this item first"
			return m, nil
		}
		attrs := row.Node.Attrs()
		if key.Matches(msg, m.keys.title) {
			return m.startInput(InputTitle, "Title: ", attrs.TitleText())
		}
		desc := ""
		if attrs.Description != nil {
			desc = *attrs.Description
		}
		return m.startInput(InputDescription, "Description: ", desc)

	case key.Matches(msg, m.keys.diff):
		if !hasRow || !row.Editing {
			m.warning = "press e to edit this item first"
			return m, nil
		}
		next := (row.Node.Attrs().DiffLevel + 1) % (model.DiffHard + 1)
		m.setError(ctrl.Edit(m.cursor, model.Patch{DiffLevel: model.Some(next)}))

	case key.Matches(msg, m.keys.kind):
		if !hasRow || !row.Editing {
			m.warning = "press e to edit this item first"
			return m, nil
		}
		next := model.KindProject
		if row.Node.Attrs().Kind == model.KindProject {
			next = model.KindTask
		}
		m.setError(ctrl.Edit(m.cursor, model.Patch{Kind: model.Some(next)}))

	case key.Matches(msg, m.keys.progress):
		if !hasRow {
			return m, nil
		}
		return m.startInput(InputProgress, "Progress (0-100): ", strconv.Itoa(row.Node.Attrs().Progress))

	case key.Matches(msg, m.keys.del):
		if !hasRow {
			return m, nil
		}
		ref := row.Ref()
		if err := ctrl.CheckDelete(ref); err != nil {
			m.setError(err)
			return m, nil
		}
		m.confirm = &confirmState{
			prompt: fmt.Sprintf("Delete %q? (y/n)", row.Node.Attrs().TitleText()),
			ref:    ref,
		}

	case key.Matches(msg, m.keys.complete):
		if !hasRow {
			return m, nil
		}
		id, persisted := model.IDOf(row.Node)
		if !persisted {
			return m, nil
		}
		return m, func() tea.Msg {
			if err := ctrl.ToggleComplete(context.Background(), id); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{}
		}

	case key.Matches(msg, m.keys.color):
		if !hasRow {
			return m, nil
		}
		return m.startInput(InputColor, "Color (empty clears): ", row.Node.Attrs().ColorText())

	case key.Matches(msg, m.keys.managers):
		if !hasRow {
			return m, nil
		}
		id, persisted := model.IDOf(row.Node)
		if !persisted || m.deps.Permissions == nil {
			return m, nil
		}
		d := perm.New(m.deps.Permissions, id, m.deps.Logger)
		m.delegation = d
		m.managerCursor = 0
		m.pane = PaneManagers
		m.loading = true
		return m, func() tea.Msg {
			_, err := d.ListManagers(context.Background())
			return managersMsg{err: err}
		}

	case key.Matches(msg, m.keys.report):
		return m.startReport(row, hasRow)

	case key.Matches(msg, m.keys.view):
		m.layout = m.layout.Toggle()
		if m.deps.Prefs != nil {
			if err := m.deps.Prefs.SetViewMode(m.layout); err != nil {
				m.err = err
			}
		}

	case key.Matches(msg, m.keys.refresh):
		if ctrl.HasUnsavedChanges() {
			m.warning = "save changes before refreshing"
			return m, nil
		}
		m.loading = true
		return m, m.reload()
	}

	return m, nil
}

func (m Model) afterNavigate() (tea.Model, tea.Cmd) {
	m.cursor = 0
	m.loading = true
	if m.deps.Reloads != nil {
		// The controller's debounced reload reports through Reloads.
		return m, nil
	}
	return m, m.reload()
}

func (m Model) startReport(row collection.Row, ok bool) (tea.Model, tea.Cmd) {
	if !ok {
		return m, nil
	}
	it, persisted := row.Node.(*model.Item)
	if !persisted {
		return m, nil
	}
	if m.deps.Reporter == nil || m.deps.Lister == nil {
		m.warning = "reports are not configured (set ANTHROPIC_API_KEY)"
		return m, nil
	}
	root := *it
	lister, gen := m.deps.Lister, m.deps.Reporter
	m.loading = true
	return m, func() tea.Msg {
		ctx := context.Background()
		tree, err := report.Collect(ctx, lister, root, report.DefaultMaxDepth)
		if err != nil {
			return reportMsg{err: err}
		}
		text, err := gen.Generate(ctx, tree)
		return reportMsg{title: root.TitleText(), text: text, err: err}
	}
}

var capabilityNames = []string{"edit", "finish", "add", "delete", "add member", "remove member"}

func capabilityPatch(index int, value bool) model.CapabilityPatch {
	var p model.CapabilityPatch
	switch index {
	case 0:
		p.CanEdit = &value
	case 1:
		p.CanFinish = &value
	case 2:
		p.CanAdd = &value
	case 3:
		p.CanDelete = &value
	case 4:
		p.CanAddMember = &value
	case 5:
		p.CanRemoveMember = &value
	}
	return p
}

func capabilityValue(c model.Capabilities, index int) bool {
	return []bool{c.CanEdit, c.CanFinish, c.CanAdd, c.CanDelete, c.CanAddMember, c.CanRemoveMember}[index]
}

func (m Model) handleManagersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.delegation
	if d == nil {
		m.pane = PaneItems
		return m, nil
	}
	managers := d.Managers()

	switch {
	case key.Matches(msg, m.keys.close):
		m.pane = PaneItems
		m.delegation = nil

	case key.Matches(msg, m.keys.up):
		if m.managerCursor > 0 {
			m.managerCursor--
		}

	case key.Matches(msg, m.keys.down):
		if m.managerCursor < len(managers)-1 {
			m.managerCursor++
		}

	case key.Matches(msg, m.keys.capability):
		if m.managerCursor >= len(managers) {
			return m, nil
		}
		mgr := managers[m.managerCursor]
		index, _ := strconv.Atoi(msg.String())
		index--
		patch := capabilityPatch(index, !capabilityValue(mgr.Permissions, index))
		name := capabilityNames[index]
		return m, func() tea.Msg {
			if err := d.GrantOrUpdate(context.Background(), mgr.PermissionID, mgr.User.ID, patch); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: fmt.Sprintf("Updated %s for %s", name, mgr.User.Username)}
		}

	case key.Matches(msg, m.keys.revoke):
		if m.managerCursor >= len(managers) {
			return m, nil
		}
		mgr := managers[m.managerCursor]
		if m.managerCursor > 0 && m.managerCursor == len(managers)-1 {
			m.managerCursor--
		}
		return m, func() tea.Msg {
			if err := d.Revoke(context.Background(), mgr.User.ID); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: "Revoked " + mgr.User.Username}
		}

	case key.Matches(msg, m.keys.invite):
		return m.startInput(InputInvite, "Invite username: ", "")
	}
	return m, nil
}

// Run starts the TUI.
func Run(deps Deps) error {
	m := New(deps)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
