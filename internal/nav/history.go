// Package nav tracks the breadcrumb trail of visited tree nodes.
package nav

import (
	"errors"
	"fmt"

	"github.com/taxilian/tplan/internal/model"
)

const (
	DefaultRootLocator = "/items"
	DefaultRootTitle   = "Home"
)

var ErrInvalidTruncate = errors.New("truncate index must be before the current node")

// Entry is one visited tree node.
type Entry struct {
	NodeID  *model.ItemID // nil for the root
	Locator string        // collection URL the node's children are fetched from
	Title   string
}

// ChildLocator returns the collection locator for the children of id.
func ChildLocator(id model.ItemID) string {
	return fmt.Sprintf("/items/%d/children", id)
}

// EntryFor derives the history entry for opening item it.
func EntryFor(it model.Item) Entry {
	id := it.ID
	return Entry{NodeID: &id, Locator: ChildLocator(id), Title: it.TitleText()}
}

// History is a non-empty stack of entries; the last one is the current node.
type History struct {
	root    Entry
	entries []Entry
}

// NewHistory returns a history holding only root.
func NewHistory(root Entry) *History {
	if root.Locator == "" {
		root.Locator = DefaultRootLocator
	}
	if root.Title == "" {
		root.Title = DefaultRootTitle
	}
	return &History{root: root, entries: []Entry{root}}
}

// Push makes e the current node.
func (h *History) Push(e Entry) {
	h.entries = append(h.entries, e)
}

// TruncateTo drops every entry after index. index must be strictly before
// the current node.
func (h *History) TruncateTo(index int) error {
	if index < 0 || index >= len(h.entries)-1 {
		return fmt.Errorf("%w: %d (len %d)", ErrInvalidTruncate, index, len(h.entries))
	}
	h.entries = h.entries[:index+1]
	return nil
}

// Pop goes back one node. It reports false and does nothing at the root.
func (h *History) Pop() bool {
	if len(h.entries) <= 1 {
		return false
	}
	return h.TruncateTo(len(h.entries)-2) == nil
}

// ResetToRoot collapses the history to its initial root entry.
func (h *History) ResetToRoot() {
	h.entries = []Entry{h.root}
}

// Current returns the node being displayed.
func (h *History) Current() Entry {
	return h.entries[len(h.entries)-1]
}

func (h *History) Len() int { return len(h.entries) }

func (h *History) AtRoot() bool { return len(h.entries) == 1 }

// Entries returns a copy of the trail, root first.
func (h *History) Entries() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}
