// Package collection holds the in-memory list of items shown at the current
// tree node. The Store is a plain state container: every operation is a
// synchronous transition with no side effects.
package collection

import (
	"errors"
	"fmt"

	"github.com/taxilian/tplan/internal/model"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNotFound        = errors.New("item not found")
	ErrDraftExists     = errors.New("a draft already exists")
	ErrNoDraft         = errors.New("no draft to replace")
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")
)

// Row is one item in the collection along with its transient view state.
type Row struct {
	Node    model.Node
	Index   int  // dense position, recomputed after every structural change
	Editing bool // fields open for local mutation; never persisted
}

// Ref returns the ref addressing this row.
func (r Row) Ref() model.Ref {
	return model.RefOf(r.Node)
}

func (r Row) clone() Row {
	r.Node = r.Node.Clone()
	return r
}

// Store is the collection state: rows plus the creating and navigating flags.
type Store struct {
	rows       []Row
	creating   bool
	navigating bool
}

// New returns an empty store.
func New() *Store {
	return &Store{rows: []Row{}}
}

// Rows returns a deep copy of the current rows.
func (s *Store) Rows() []Row {
	out := make([]Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.clone()
	}
	return out
}

// Row returns a copy of the row at index.
func (s *Store) Row(index int) (Row, error) {
	if index < 0 || index >= len(s.rows) {
		return Row{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return s.rows[index].clone(), nil
}

// Find returns a copy of the row ref addresses.
func (s *Store) Find(ref model.Ref) (Row, bool) {
	i := s.indexOf(ref)
	if i < 0 {
		return Row{}, false
	}
	return s.rows[i].clone(), true
}

func (s *Store) Len() int         { return len(s.rows) }
func (s *Store) IsCreating() bool { return s.creating }

func (s *Store) IsNavigating() bool { return s.navigating }

// SetNavigating marks that a navigation is pending; SetItems clears it.
func (s *Store) SetNavigating(v bool) { s.navigating = v }

// HasDraft reports whether an unsaved draft is present.
func (s *Store) HasDraft() bool {
	return s.indexOf(model.DraftRef()) >= 0
}

// AnyEditing reports whether any row is open for editing.
func (s *Store) AnyEditing() bool {
	for _, r := range s.rows {
		if r.Editing {
			return true
		}
	}
	return false
}

// HasUnsavedChanges is true while creating or while any row is editing.
func (s *Store) HasUnsavedChanges() bool {
	return s.creating || s.AnyEditing()
}

// SetItems replaces the whole collection. Every row starts out of edit mode
// and both flags are cleared; fetched sets are never merged.
func (s *Store) SetItems(items []model.Item) {
	rows := make([]Row, len(items))
	for i := range items {
		rows[i] = Row{Node: items[i].Clone()}
	}
	s.rows = rows
	s.creating = false
	s.navigating = false
	s.reindex()
}

// UpdateItem shallow-merges patch into the row at index.
func (s *Store) UpdateItem(index int, patch model.Patch) error {
	if index < 0 || index >= len(s.rows) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	patch.Apply(s.rows[index].Node.Attrs())
	return nil
}

// AddDraft appends draft in edit mode and enters the creating state.
// At most one draft may exist at a time.
func (s *Store) AddDraft(draft *model.Draft) error {
	if s.HasDraft() {
		return ErrDraftExists
	}
	s.rows = append(s.rows, Row{Node: draft.Clone(), Editing: true})
	s.creating = true
	s.reindex()
	return nil
}

// ReplaceDraft swaps the draft for its persisted version and leaves the
// creating state.
func (s *Store) ReplaceDraft(item model.Item) error {
	i := s.indexOf(model.DraftRef())
	if i < 0 {
		return ErrNoDraft
	}
	s.rows[i] = Row{Node: item.Clone()}
	s.creating = false
	s.reindex()
	return nil
}

// DeleteItem removes the row ref addresses.
func (s *Store) DeleteItem(ref model.Ref) error {
	i := s.indexOf(ref)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	if ref.IsDraft() {
		s.creating = false
	}
	s.reindex()
	return nil
}

// ToggleEditing flips edit mode on the row at index only.
func (s *Store) ToggleEditing(index int) error {
	if index < 0 || index >= len(s.rows) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	s.rows[index].Editing = !s.rows[index].Editing
	return nil
}

// SetProgress sets progress on the persisted item with the given id.
func (s *Store) SetProgress(id model.ItemID, value int) error {
	if value < 0 || value > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidProgress, value)
	}
	i := s.indexOf(model.RefTo(id))
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.rows[i].Node.Attrs().Progress = value
	return nil
}

// Clear empties the collection and leaves the creating state.
func (s *Store) Clear() {
	s.rows = []Row{}
	s.creating = false
}

func (s *Store) indexOf(ref model.Ref) int {
	for i, r := range s.rows {
		if ref.Matches(r.Node) {
			return i
		}
	}
	return -1
}

func (s *Store) reindex() {
	for i := range s.rows {
		s.rows[i].Index = i
	}
}
