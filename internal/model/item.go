// Package model defines the core data types shared by the item collection,
// tree navigation and delegation components.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ItemID is the server-assigned identifier of a persisted item.
type ItemID int64

func (id ItemID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseItemID parses a decimal item id as typed on the command line.
func ParseItemID(s string) (ItemID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid item id: %q", s)
	}
	return ItemID(n), nil
}

type Kind string

const (
	KindTask     Kind = "task"
	KindProject  Kind = "project"
	KindPersonal Kind = "personal"
)

func (k Kind) IsValid() bool {
	return k == KindTask || k == KindProject || k == KindPersonal
}

// DiffLevel is the difficulty of an item. DiffUnset means undetermined and
// travels as null on the wire.
type DiffLevel int

const (
	DiffUnset  DiffLevel = 0
	DiffEasy   DiffLevel = 1
	DiffMedium DiffLevel = 2
	DiffHard   DiffLevel = 3
)

func (d DiffLevel) IsValid() bool {
	return d >= DiffUnset && d <= DiffHard
}

func (d DiffLevel) MarshalJSON() ([]byte, error) {
	if d == DiffUnset {
		return []byte("null"), nil
	}
	return json.Marshal(int(d))
}

func (d *DiffLevel) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = DiffUnset
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*d = DiffLevel(n)
	return nil
}

// Owner is the read-only owner summary attached to every item.
type Owner struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// User identifies a person the item can be delegated to.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Attributes holds everything an item carries besides its identity.
// Optional text fields are nil when unset.
type Attributes struct {
	Kind          Kind      `json:"kind"`
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	BeginTime     *string   `json:"beginTime"` // ISO-8601, no ordering enforced against EndTime
	EndTime       *string   `json:"endTime"`
	Progress      int       `json:"progress"` // 0..100
	DiffLevel     DiffLevel `json:"diffLevel"`
	Color         *string   `json:"color"`
	Owner         *Owner    `json:"owner,omitempty"`
	ManagersCount int       `json:"managersCount"`
	Managers      []User    `json:"managers,omitempty"`
	ParentID      *ItemID   `json:"parentId"`
}

// TitleText returns the title or "" when unset.
func (a Attributes) TitleText() string {
	if a.Title == nil {
		return ""
	}
	return *a.Title
}

// ColorText returns the color tag or "" when unset.
func (a Attributes) ColorText() string {
	if a.Color == nil {
		return ""
	}
	return *a.Color
}

// Done reports whether a task counts as completed.
func (a Attributes) Done() bool {
	return a.Progress >= 100
}

func (a Attributes) clone() Attributes {
	out := a
	out.Title = cloneString(a.Title)
	out.Description = cloneString(a.Description)
	out.BeginTime = cloneString(a.BeginTime)
	out.EndTime = cloneString(a.EndTime)
	out.Color = cloneString(a.Color)
	if a.Owner != nil {
		o := *a.Owner
		out.Owner = &o
	}
	if a.Managers != nil {
		out.Managers = append([]User(nil), a.Managers...)
	}
	if a.ParentID != nil {
		p := *a.ParentID
		out.ParentID = &p
	}
	return out
}

// Node is one row of a collection: either a persisted *Item or the unsaved
// *Draft. No other implementations exist.
type Node interface {
	Attrs() *Attributes
	Clone() Node
	node()
}

// Item is a persisted node in the hierarchy.
type Item struct {
	ID ItemID `json:"id"`
	Attributes
}

func (it *Item) Attrs() *Attributes { return &it.Attributes }

func (it *Item) Clone() Node {
	c := *it
	c.Attributes = it.Attributes.clone()
	return &c
}

func (*Item) node() {}

// Draft is an item that has not been persisted yet and therefore has no id.
type Draft struct {
	Attributes
}

func (d *Draft) Attrs() *Attributes { return &d.Attributes }

func (d *Draft) Clone() Node {
	c := *d
	c.Attributes = d.Attributes.clone()
	return &c
}

func (*Draft) node() {}

// NewDraft returns the default draft created under parent: an untitled task.
func NewDraft(parent *ItemID) *Draft {
	d := &Draft{Attributes: Attributes{Kind: KindTask}}
	if parent != nil {
		p := *parent
		d.ParentID = &p
	}
	return d
}

// IDOf returns the id of n, or false when n is the draft.
func IDOf(n Node) (ItemID, bool) {
	if it, ok := n.(*Item); ok {
		return it.ID, true
	}
	return 0, false
}

// IsDraft reports whether n is the unsaved draft.
func IsDraft(n Node) bool {
	_, ok := n.(*Draft)
	return ok
}

// Ref addresses a row either by persisted id or as "the draft".
type Ref struct {
	id    ItemID
	draft bool
}

// RefTo addresses the persisted item with the given id.
func RefTo(id ItemID) Ref { return Ref{id: id} }

// DraftRef addresses the unsaved draft.
func DraftRef() Ref { return Ref{draft: true} }

// RefOf returns the ref addressing n.
func RefOf(n Node) Ref {
	if id, ok := IDOf(n); ok {
		return RefTo(id)
	}
	return DraftRef()
}

func (r Ref) IsDraft() bool { return r.draft }

// ID returns the persisted id, or false for the draft ref.
func (r Ref) ID() (ItemID, bool) { return r.id, !r.draft }

// Matches reports whether n is the row r addresses.
func (r Ref) Matches(n Node) bool {
	if r.draft {
		return IsDraft(n)
	}
	id, ok := IDOf(n)
	return ok && id == r.id
}

func (r Ref) String() string {
	if r.draft {
		return "draft"
	}
	return r.id.String()
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
