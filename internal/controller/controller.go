// Package controller turns user intents into collection transitions and
// gateway calls. Local (optimistic) steps are applied synchronously under a
// lock; the lock is released while a gateway call is in flight so other
// intents stay responsive. Unsafe intents are rejected up front instead of
// being serialised: see HasUnsavedChanges.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/taxilian/tplan/internal/collection"
	"github.com/taxilian/tplan/internal/model"
	"github.com/taxilian/tplan/internal/nav"
)

// DefaultReloadDebounce is the delay between a navigation and its reload.
const DefaultReloadDebounce = 150 * time.Millisecond

const (
	msgFinishEdits    = "finish other edits first"
	msgSaveBeforeNav  = "save changes before navigating"
	msgSaveInProgress = "the draft is already being saved"
)

// ErrCancelled is returned when the user declines a confirmation prompt.
var ErrCancelled = errors.New("cancelled")

// ItemGateway performs item CRUD against the server.
type ItemGateway interface {
	List(ctx context.Context, locator string) ([]model.Item, error)
	Create(ctx context.Context, d *model.Draft) (model.Item, error)
	Update(ctx context.Context, id model.ItemID, patch model.Patch) error
	Delete(ctx context.Context, id model.ItemID) error
}

// Confirmer is the yes/no prompt shown before destructive intents.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Confirmed is a Confirmer for callers that already asked the user.
var Confirmed Confirmer = ConfirmFunc(func(string) bool { return true })

// Options tunes a Controller.
type Options struct {
	Logger *log.Logger
	// OnReload, when set, enables debounced reloads after navigation. It is
	// called from the timer goroutine with the result of the reload.
	OnReload       func(error)
	ReloadDebounce time.Duration
}

// Controller owns one collection store and drives it against the gateway.
// The history is shared with whoever else renders the breadcrumb trail.
type Controller struct {
	gw      ItemGateway
	logger  *log.Logger
	flight  singleflight.Group
	reloads *Debouncer

	mu          sync.Mutex
	store       *collection.Store
	history     *nav.History
	needsReload bool
	committing  bool
}

// New creates a controller for history's current node. The collection starts
// empty and marked for reload.
func New(gw ItemGateway, history *nav.History, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	c := &Controller{
		gw:          gw,
		logger:      logger,
		store:       collection.New(),
		history:     history,
		needsReload: true,
	}
	if opts.OnReload != nil {
		onReload := opts.OnReload
		c.reloads = NewDebouncer(opts.ReloadDebounce, func() {
			onReload(c.Reload(context.Background()))
		})
	}
	return c
}

// Close cancels any pending debounced reload.
func (c *Controller) Close() {
	c.reloads.Cancel()
}

// Rows returns a snapshot of the collection.
func (c *Controller) Rows() []collection.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Rows()
}

// Breadcrumbs returns the navigation trail, root first.
func (c *Controller) Breadcrumbs() []nav.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Entries()
}

// Current returns the node being displayed.
func (c *Controller) Current() nav.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Current()
}

func (c *Controller) IsCreating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.IsCreating()
}

// NeedsReload reports whether a navigation happened since the last load.
func (c *Controller) NeedsReload() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.needsReload
}

// HasUnsavedChanges is true while a draft exists or any row is editing. It
// gates navigation, deletion and quitting.
func (c *Controller) HasUnsavedChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.HasUnsavedChanges()
}

// Reload loads the current node's collection.
func (c *Controller) Reload(ctx context.Context) error {
	return c.Load(ctx, c.Current().Locator)
}

// Load fetches the collection at locator and replaces the store with it,
// minus Personal items. On failure the store is cleared and the transport
// error returned. A result for a node that is no longer current, failed or
// not, is dropped without touching the store.
func (c *Controller) Load(ctx context.Context, locator string) error {
	// A second load of the same locator joins the one in flight instead of
	// fetching again, so the store is written once.
	_, err, _ := c.flight.Do(locator, func() (any, error) {
		items, err := c.gw.List(ctx, locator)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.history.Current().Locator != locator {
			// Navigated elsewhere while the fetch was in flight.
			c.logger.Printf("[controller] dropping stale load of %s (err: %v)", locator, err)
			return nil, nil
		}
		if err != nil {
			c.store.Clear()
			c.logger.Printf("[controller] warning: failed to load %s: %v", locator, err)
			return nil, asTransport("load items", err)
		}
		c.store.SetItems(withoutPersonal(items))
		c.needsReload = false
		return nil, nil
	})
	return err
}

// BeginOrCommitCreate starts a draft under the current node, or, when a
// draft already exists, persists it. A failed save leaves the draft in place.
func (c *Controller) BeginOrCommitCreate(ctx context.Context) error {
	c.mu.Lock()
	if !c.store.IsCreating() {
		defer c.mu.Unlock()
		if c.committing {
			return &model.ConflictWarning{Op: "create", Message: msgSaveInProgress}
		}
		if c.store.AnyEditing() {
			return &model.ConflictWarning{Op: "create", Message: msgFinishEdits}
		}
		return c.store.AddDraft(model.NewDraft(c.history.Current().NodeID))
	}
	if c.committing {
		c.mu.Unlock()
		return &model.ConflictWarning{Op: "create", Message: msgSaveInProgress}
	}
	row, ok := c.store.Find(model.DraftRef())
	if !ok {
		c.mu.Unlock()
		return collection.ErrNoDraft
	}
	draft := row.Node.(*model.Draft)
	c.committing = true
	c.mu.Unlock()

	created, err := c.gw.Create(ctx, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.committing = false
	if err != nil {
		c.logger.Printf("[controller] warning: failed to create item: %v", err)
		return asTransport("create item", err)
	}
	if err := c.store.ReplaceDraft(created); err != nil {
		// The draft was discarded or the collection reloaded meanwhile.
		c.logger.Printf("[controller] created item %s but its draft is gone: %v", created.ID, err)
	}
	return nil
}

// Edit applies patch to the row at index, which must be in edit mode.
func (c *Controller) Edit(index int, patch model.Patch) error {
	if err := validatePatch(patch); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	row, err := c.store.Row(index)
	if err != nil {
		return &model.ValidationRejection{Op: "edit", Reason: err.Error()}
	}
	if !row.Editing {
		return &model.ValidationRejection{Op: "edit", Reason: "item is not in edit mode"}
	}
	if c.committing && model.IsDraft(row.Node) {
		return &model.ConflictWarning{Op: "edit", Message: msgSaveInProgress}
	}
	return c.store.UpdateItem(index, patch)
}

// ToggleEdit flips edit mode on the row at index. Leaving edit mode saves
// the row's current fields; on failure the local fields stay as edited.
// Toggling the draft commits it.
func (c *Controller) ToggleEdit(ctx context.Context, index int) error {
	c.mu.Lock()
	row, err := c.store.Row(index)
	if err != nil {
		c.mu.Unlock()
		return &model.ValidationRejection{Op: "edit", Reason: err.Error()}
	}
	if model.IsDraft(row.Node) {
		c.mu.Unlock()
		return c.BeginOrCommitCreate(ctx)
	}
	if !row.Editing {
		defer c.mu.Unlock()
		if c.store.HasUnsavedChanges() {
			return &model.ConflictWarning{Op: "edit", Message: msgFinishEdits}
		}
		return c.store.ToggleEditing(index)
	}
	if err := c.store.ToggleEditing(index); err != nil {
		c.mu.Unlock()
		return err
	}
	id, _ := model.IDOf(row.Node)
	patch := model.FullPatch(*row.Node.Attrs())
	c.mu.Unlock()

	if err := c.gw.Update(ctx, id, patch); err != nil {
		c.logger.Printf("[controller] warning: failed to save item %s: %v", id, err)
		return asTransport("save item", err)
	}
	return nil
}

// CheckDelete reports whether ref could be deleted right now, without
// prompting. UIs with asynchronous prompts call it before showing one.
func (c *Controller) CheckDelete(ref model.Ref) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteGuard(ref)
}

// Delete removes the row ref addresses after confirm agrees. The draft is
// discarded locally; persisted items are removed only once the server
// confirms.
func (c *Controller) Delete(ctx context.Context, ref model.Ref, confirm Confirmer) error {
	c.mu.Lock()
	if err := c.deleteGuard(ref); err != nil {
		c.mu.Unlock()
		return err
	}
	row, _ := c.store.Find(ref)
	c.mu.Unlock()

	if confirm == nil || !confirm.Confirm(deletePrompt(row)) {
		return ErrCancelled
	}

	c.mu.Lock()
	// The prompt may have taken a while; check again.
	if err := c.deleteGuard(ref); err != nil {
		c.mu.Unlock()
		return err
	}
	id, persisted := ref.ID()
	if !persisted {
		defer c.mu.Unlock()
		return c.store.DeleteItem(ref)
	}
	c.mu.Unlock()

	if err := c.gw.Delete(ctx, id); err != nil {
		c.logger.Printf("[controller] warning: failed to delete item %s: %v", id, err)
		return asTransport("delete item", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.DeleteItem(ref); err != nil && !errors.Is(err, collection.ErrNotFound) {
		return err
	}
	return nil
}

func (c *Controller) deleteGuard(ref model.Ref) error {
	if _, ok := c.store.Find(ref); !ok {
		return &model.ValidationRejection{Op: "delete", Reason: fmt.Sprintf("no item %s in this view", ref)}
	}
	if ref.IsDraft() && c.committing {
		return &model.ConflictWarning{Op: "delete", Message: msgSaveInProgress}
	}
	for _, r := range c.store.Rows() {
		if ref.Matches(r.Node) {
			continue
		}
		if r.Editing || model.IsDraft(r.Node) {
			return &model.ConflictWarning{Op: "delete", Message: msgFinishEdits}
		}
	}
	return nil
}

func deletePrompt(row collection.Row) string {
	title := row.Node.Attrs().TitleText()
	if title == "" {
		title = "this item"
	}
	return fmt.Sprintf("Delete %q?", title)
}

// SetProgress applies value locally and then confirms it with the server.
// A failed confirmation is reported but not rolled back. Repeated calls with
// the same value each send a confirmation.
func (c *Controller) SetProgress(ctx context.Context, id model.ItemID, value int) error {
	if value < 0 || value > 100 {
		return &model.ValidationRejection{Op: "progress", Reason: "progress must be between 0 and 100"}
	}
	c.mu.Lock()
	if err := c.store.SetProgress(id, value); err != nil {
		c.mu.Unlock()
		return &model.ValidationRejection{Op: "progress", Reason: err.Error()}
	}
	c.mu.Unlock()

	if err := c.gw.Update(ctx, id, model.ProgressPatch(value)); err != nil {
		c.logger.Printf("[controller] warning: failed to confirm progress of %s: %v", id, err)
		return asTransport("update progress", err)
	}
	return nil
}

// ToggleComplete flips a task between 0 and 100 percent.
func (c *Controller) ToggleComplete(ctx context.Context, id model.ItemID) error {
	c.mu.Lock()
	row, ok := c.store.Find(model.RefTo(id))
	c.mu.Unlock()
	if !ok {
		return &model.ValidationRejection{Op: "progress", Reason: fmt.Sprintf("no item %s in this view", id)}
	}
	value := 100
	if row.Node.Attrs().Done() {
		value = 0
	}
	return c.SetProgress(ctx, id, value)
}

// SetColor tags the row at index. Persisted rows are confirmed with a
// color-only update; a failed confirmation is not rolled back. The draft
// keeps the color locally until it is created.
func (c *Controller) SetColor(ctx context.Context, index int, color string) error {
	patch := model.ColorPatch(color)
	c.mu.Lock()
	row, err := c.store.Row(index)
	if err != nil {
		c.mu.Unlock()
		return &model.ValidationRejection{Op: "color", Reason: err.Error()}
	}
	if c.committing && model.IsDraft(row.Node) {
		c.mu.Unlock()
		return &model.ConflictWarning{Op: "color", Message: msgSaveInProgress}
	}
	if err := c.store.UpdateItem(index, patch); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	id, persisted := model.IDOf(row.Node)
	if !persisted {
		return nil
	}
	if err := c.gw.Update(ctx, id, patch); err != nil {
		c.logger.Printf("[controller] warning: failed to confirm color of %s: %v", id, err)
		return asTransport("update color", err)
	}
	return nil
}

// NavigateToChild opens the item with the given id as the new current node.
func (c *Controller) NavigateToChild(id model.ItemID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store.HasUnsavedChanges() {
		return &model.ConflictWarning{Op: "navigate", Message: msgSaveBeforeNav}
	}
	row, ok := c.store.Find(model.RefTo(id))
	if !ok {
		return &model.ValidationRejection{Op: "navigate", Reason: fmt.Sprintf("no item %s in this view", id)}
	}
	c.history.Push(nav.EntryFor(*row.Node.(*model.Item)))
	c.markForReload()
	return nil
}

// NavigateBack returns to the previous node.
func (c *Controller) NavigateBack() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store.HasUnsavedChanges() {
		return &model.ConflictWarning{Op: "navigate", Message: msgSaveBeforeNav}
	}
	if !c.history.Pop() {
		return &model.ValidationRejection{Op: "navigate", Reason: "already at the top level"}
	}
	c.markForReload()
	return nil
}

// NavigateTo jumps back to the breadcrumb at index.
func (c *Controller) NavigateTo(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store.HasUnsavedChanges() {
		return &model.ConflictWarning{Op: "navigate", Message: msgSaveBeforeNav}
	}
	if err := c.history.TruncateTo(index); err != nil {
		return &model.ValidationRejection{Op: "navigate", Reason: err.Error()}
	}
	c.markForReload()
	return nil
}

// Reset discards all local state and returns to the root, as on sign-out.
func (c *Controller) Reset() {
	c.reloads.Cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.ResetToRoot()
	c.store.Clear()
	c.needsReload = true
}

func (c *Controller) markForReload() {
	c.store.SetNavigating(true)
	c.needsReload = true
	c.reloads.Trigger()
}

func withoutPersonal(items []model.Item) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it.Kind == model.KindPersonal {
			continue
		}
		out = append(out, it)
	}
	return out
}

func validatePatch(p model.Patch) error {
	if p.Progress.Set && (p.Progress.Value < 0 || p.Progress.Value > 100) {
		return &model.ValidationRejection{Op: "edit", Reason: "progress must be between 0 and 100"}
	}
	if p.DiffLevel.Set && !p.DiffLevel.Value.IsValid() {
		return &model.ValidationRejection{Op: "edit", Reason: fmt.Sprintf("invalid difficulty %d", p.DiffLevel.Value)}
	}
	if p.Kind.Set && (p.Kind.Value == model.KindPersonal || !p.Kind.Value.IsValid()) {
		return &model.ValidationRejection{Op: "edit", Reason: fmt.Sprintf("invalid kind %q", p.Kind.Value)}
	}
	return nil
}

func asTransport(op string, err error) error {
	var te *model.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &model.TransportError{Op: op, Err: err}
}
