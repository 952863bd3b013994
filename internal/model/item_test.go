package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestKind_IsValid(t *testing.T) {
	tests := []struct {
		kind  Kind
		valid bool
	}{
		{KindTask, true},
		{KindProject, true},
		{KindPersonal, true},
		{Kind("epic"), false},
		{Kind(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.IsValid(); got != tt.valid {
				t.Errorf("Kind(%q).IsValid() = %v, want %v", tt.kind, got, tt.valid)
			}
		})
	}
}

func TestParseItemID(t *testing.T) {
	if id, err := ParseItemID("42"); err != nil || id != 42 {
		t.Errorf("ParseItemID(42) = %v, %v", id, err)
	}
	for _, bad := range []string{"", "abc", "0", "-3"} {
		if _, err := ParseItemID(bad); err == nil {
			t.Errorf("ParseItemID(%q) should fail", bad)
		}
	}
}

func TestDiffLevel_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		D DiffLevel `json:"d"`
	}{DiffUnset})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"d":null}` {
		t.Errorf("unset diff level = %s, want null", data)
	}

	var it Item
	if err := json.Unmarshal([]byte(`{"id":3,"kind":"task","diffLevel":null,"progress":40}`), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if it.DiffLevel != DiffUnset || it.ID != 3 || it.Progress != 40 {
		t.Errorf("unexpected item: %+v", it)
	}
	if err := json.Unmarshal([]byte(`{"id":4,"diffLevel":3}`), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if it.DiffLevel != DiffHard {
		t.Errorf("diffLevel = %d, want %d", it.DiffLevel, DiffHard)
	}
}

func TestDraftHasNoIDOnTheWire(t *testing.T) {
	parent := ItemID(9)
	data, err := json.Marshal(NewDraft(&parent))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), `"id"`) {
		t.Errorf("draft payload should not carry an id: %s", data)
	}
	if !strings.Contains(string(data), `"parentId":9`) {
		t.Errorf("draft payload should carry the parent: %s", data)
	}
}

func TestRef(t *testing.T) {
	item := &Item{ID: 5}
	draft := NewDraft(nil)

	if !RefTo(5).Matches(item) {
		t.Error("RefTo(5) should match item 5")
	}
	if RefTo(5).Matches(draft) {
		t.Error("an id ref never matches the draft")
	}
	if !DraftRef().Matches(draft) || DraftRef().Matches(item) {
		t.Error("DraftRef should match only the draft")
	}
	if RefOf(draft) != DraftRef() || RefOf(item) != RefTo(5) {
		t.Error("RefOf should round-trip")
	}
	if id, ok := DraftRef().ID(); ok || id != 0 {
		t.Error("DraftRef has no id")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := &Item{ID: 1, Attributes: Attributes{Title: StringPtr("a"), Managers: []User{{ID: 1}}}}
	c := orig.Clone().(*Item)
	*c.Title = "b"
	c.Managers[0].ID = 2

	if orig.TitleText() != "a" {
		t.Errorf("clone shares title with original")
	}
	if orig.Managers[0].ID != 1 {
		t.Errorf("clone shares managers with original")
	}
}

func TestPatch(t *testing.T) {
	t.Run("color only", func(t *testing.T) {
		p := ColorPatch("#ff0000")
		if got := p.Keys(); !reflect.DeepEqual(got, []string{"color"}) {
			t.Errorf("keys = %v, want [color]", got)
		}
		data, _ := json.Marshal(p)
		if string(data) != `{"color":"#ff0000"}` {
			t.Errorf("payload = %s", data)
		}
	})

	t.Run("empty color is null", func(t *testing.T) {
		data, _ := json.Marshal(ColorPatch(""))
		if string(data) != `{"color":null}` {
			t.Errorf("payload = %s", data)
		}
		a := Attributes{Color: StringPtr("#fff")}
		Patch{Color: Some(StringPtr(""))}.Apply(&a)
		if a.Color != nil {
			t.Errorf("empty color should clear, got %q", *a.Color)
		}
	})

	t.Run("apply is shallow merge", func(t *testing.T) {
		a := Attributes{Kind: KindTask, Title: StringPtr("keep"), Progress: 10}
		ProgressPatch(100).Apply(&a)
		if a.Progress != 100 || a.TitleText() != "keep" {
			t.Errorf("unexpected attributes: %+v", a)
		}
	})

	t.Run("full patch", func(t *testing.T) {
		p := FullPatch(Attributes{Kind: KindProject, Title: StringPtr("x")})
		want := []string{"beginTime", "color", "description", "diffLevel", "endTime", "kind", "progress", "title"}
		if got := p.Keys(); !reflect.DeepEqual(got, want) {
			t.Errorf("keys = %v, want %v", got, want)
		}
		if (Patch{}).IsEmpty() != true || p.IsEmpty() {
			t.Error("IsEmpty mismatch")
		}
	})
}

func TestCapabilityPatch(t *testing.T) {
	yes, no := true, false
	c := Capabilities{CanEdit: false, CanDelete: true}
	CapabilityPatch{CanEdit: &yes, CanDelete: &no}.Apply(&c)
	if !c.CanEdit || c.CanDelete {
		t.Errorf("unexpected capabilities: %+v", c)
	}
	if !(CapabilityPatch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
}
