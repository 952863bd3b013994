package collection

import (
	"errors"
	"testing"

	"github.com/taxilian/tplan/internal/model"
)

func item(id model.ItemID, title string) model.Item {
	return model.Item{ID: id, Attributes: model.Attributes{Kind: model.KindTask, Title: model.StringPtr(title)}}
}

func assertDense(t *testing.T, s *Store) {
	t.Helper()
	for i, r := range s.Rows() {
		if r.Index != i {
			t.Fatalf("row %d has index %d", i, r.Index)
		}
	}
}

func countDrafts(s *Store) int {
	n := 0
	for _, r := range s.Rows() {
		if model.IsDraft(r.Node) {
			n++
		}
	}
	return n
}

func TestSetItems(t *testing.T) {
	s := New()
	s.SetItems([]model.Item{item(1, "A"), item(2, "B")})
	_ = s.ToggleEditing(0)
	s.SetNavigating(true)

	s.SetItems([]model.Item{item(3, "C")})

	rows := s.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected full replace, got %d rows", len(rows))
	}
	if id, _ := model.IDOf(rows[0].Node); id != 3 {
		t.Errorf("row id = %d, want 3", id)
	}
	if rows[0].Editing || rows[0].Index != 0 {
		t.Errorf("unexpected row state: %+v", rows[0])
	}
	if s.IsCreating() || s.IsNavigating() {
		t.Error("SetItems should clear both flags")
	}
}

func TestSetItems_Idempotent(t *testing.T) {
	s := New()
	input := []model.Item{item(1, "A"), item(2, "B")}
	s.SetItems(input)
	first := s.Rows()
	s.SetItems(input)
	second := s.Rows()

	if len(first) != len(second) {
		t.Fatalf("len mismatch %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Ref() != second[i].Ref() || first[i].Index != second[i].Index {
			t.Errorf("row %d differs", i)
		}
	}
}

func TestRowsAreCopies(t *testing.T) {
	s := New()
	s.SetItems([]model.Item{item(1, "A")})
	rows := s.Rows()
	rows[0].Node.Attrs().Title = model.StringPtr("mutated")

	got, _ := s.Row(0)
	if got.Node.Attrs().TitleText() != "A" {
		t.Errorf("store was mutated through a snapshot")
	}
}

func TestUpdateItem(t *testing.T) {
	s := New()
	s.SetItems([]model.Item{item(1, "A")})

	if err := s.UpdateItem(0, model.Patch{Title: model.Some(model.StringPtr("A2"))}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	r, _ := s.Row(0)
	if r.Node.Attrs().TitleText() != "A2" {
		t.Errorf("title = %q", r.Node.Attrs().TitleText())
	}

	if err := s.UpdateItem(5, model.ProgressPatch(1)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := s.UpdateItem(-1, model.ProgressPatch(1)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestAddDraft_SingleDraft(t *testing.T) {
	s := New()
	s.SetItems([]model.Item{item(1, "A")})

	for i := 0; i < 5; i++ {
		err := s.AddDraft(model.NewDraft(nil))
		if i == 0 && err != nil {
			t.Fatalf("first AddDraft: %v", err)
		}
		if i > 0 && !errors.Is(err, ErrDraftExists) {
			t.Fatalf("AddDraft #%d: expected ErrDraftExists, got %v", i, err)
		}
		if n := countDrafts(s); n != 1 {
			t.Fatalf("drafts = %d after %d calls", n, i+1)
		}
		assertDense(t, s)
	}

	rows := s.Rows()
	if len(rows) != 2 || !model.IsDraft(rows[1].Node) || !rows[1].Editing {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if !s.IsCreating() || !s.HasUnsavedChanges() {
		t.Error("store should be creating")
	}
}

func TestReplaceDraft(t *testing.T) {
	s := New()
	s.SetItems([]model.Item{item(1, "A")})

	if err := s.ReplaceDraft(item(2, "")); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft, got %v", err)
	}

	_ = s.AddDraft(model.NewDraft(nil))
	if err := s.ReplaceDraft(item(2, "")); err != nil {
		t.Fatalf("ReplaceDraft: %v", err)
	}
	rows := s.Rows()
	if id, ok := model.IDOf(rows[1].Node); !ok || id != 2 {
		t.Errorf("second row should be item 2, got %v", rows[1].Ref())
	}
	if rows[1].Editing || s.IsCreating() || s.HasDraft() {
		t.Error("replace should leave creating and editing")
	}
	assertDense(t, s)
}

func TestDeleteItem(t *testing.T) {
	s := New()
	s.SetItems([]model.Item{item(1, "A"), item(2, "B"), item(3, "C")})
	_ = s.AddDraft(model.NewDraft(nil))

	if err := s.DeleteItem(model.RefTo(2)); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	assertDense(t, s)
	if !s.IsCreating() {
		t.Error("deleting a persisted item must not clear creating")
	}

	if err := s.DeleteItem(model.DraftRef()); err != nil {
		t.Fatalf("DeleteItem(draft): %v", err)
	}
	assertDense(t, s)
	if s.IsCreating() || s.HasDraft() {
		t.Error("deleting the draft should clear creating")
	}
	if s.Len() != 2 {
		t.Errorf("len = %d, want 2", s.Len())
	}

	if err := s.DeleteItem(model.RefTo(99)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestToggleEditing(t *testing.T) {
	s := New()
	s.SetItems([]model.Item{item(1, "A"), item(2, "B")})

	_ = s.ToggleEditing(1)
	rows := s.Rows()
	if rows[0].Editing || !rows[1].Editing {
		t.Errorf("only row 1 should be editing: %+v", rows)
	}
	_ = s.ToggleEditing(1)
	if s.AnyEditing() {
		t.Error("second toggle should leave edit mode")
	}
	if err := s.ToggleEditing(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestSetProgress(t *testing.T) {
	s := New()
	s.SetItems([]model.Item{item(1, "A")})

	if err := s.SetProgress(1, 100); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if err := s.SetProgress(1, 100); err != nil {
		t.Fatalf("SetProgress again: %v", err)
	}
	r, _ := s.Find(model.RefTo(1))
	if r.Node.Attrs().Progress != 100 {
		t.Errorf("progress = %d", r.Node.Attrs().Progress)
	}
	if err := s.SetProgress(1, 101); !errors.Is(err, ErrInvalidProgress) {
		t.Errorf("expected ErrInvalidProgress, got %v", err)
	}
	if err := s.SetProgress(7, 50); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClear(t *testing.T) {
	s := New()
	s.SetItems([]model.Item{item(1, "A")})
	_ = s.AddDraft(model.NewDraft(nil))
	s.Clear()
	if s.Len() != 0 || s.IsCreating() {
		t.Error("Clear should empty rows and leave creating")
	}
}

// Every mutating operation keeps indexes dense and at most one draft.
func TestInvariantsAcrossSequences(t *testing.T) {
	s := New()
	ops := []func(){
		func() { s.SetItems([]model.Item{item(1, "A"), item(2, "B"), item(3, "C")}) },
		func() { _ = s.AddDraft(model.NewDraft(nil)) },
		func() { _ = s.DeleteItem(model.RefTo(2)) },
		func() { _ = s.AddDraft(model.NewDraft(nil)) },
		func() { _ = s.ToggleEditing(0) },
		func() { _ = s.ReplaceDraft(item(4, "D")) },
		func() { _ = s.AddDraft(model.NewDraft(nil)) },
		func() { _ = s.DeleteItem(model.RefTo(1)) },
		func() { _ = s.UpdateItem(0, model.ColorPatch("#00ff00")) },
		func() { _ = s.DeleteItem(model.DraftRef()) },
		func() { s.Clear() },
		func() { _ = s.AddDraft(model.NewDraft(nil)) },
	}
	for i, op := range ops {
		op()
		assertDense(t, s)
		if n := countDrafts(s); n > 1 {
			t.Fatalf("after op %d: %d drafts", i, n)
		}
		if s.IsCreating() != s.HasDraft() {
			t.Fatalf("after op %d: creating=%v but hasDraft=%v", i, s.IsCreating(), s.HasDraft())
		}
	}
}
