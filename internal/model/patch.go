package model

import (
	"encoding/json"
	"sort"
)

// Field is an optional patch value. A zero Field leaves the target untouched.
type Field[T any] struct {
	Set   bool
	Value T
}

// Some returns a Field that overwrites the target with v.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Patch is a partial update of an item's attributes. Only fields with Set
// are applied locally and sent over the wire.
type Patch struct {
	Kind        Field[Kind]
	Title       Field[*string]
	Description Field[*string]
	BeginTime   Field[*string]
	EndTime     Field[*string]
	Progress    Field[int]
	DiffLevel   Field[DiffLevel]
	Color       Field[*string]
}

// ProgressPatch updates only the progress.
func ProgressPatch(v int) Patch {
	return Patch{Progress: Some(v)}
}

// ColorPatch updates only the color tag. An empty color clears it.
func ColorPatch(color string) Patch {
	if color == "" {
		return Patch{Color: Some[*string](nil)}
	}
	return Patch{Color: Some(StringPtr(color))}
}

// FullPatch carries every editable field of a.
func FullPatch(a Attributes) Patch {
	c := a.clone()
	return Patch{
		Kind:        Some(c.Kind),
		Title:       Some(c.Title),
		Description: Some(c.Description),
		BeginTime:   Some(c.BeginTime),
		EndTime:     Some(c.EndTime),
		Progress:    Some(c.Progress),
		DiffLevel:   Some(c.DiffLevel),
		Color:       Some(c.Color),
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.fields()) == 0
}

// Apply shallow-merges the set fields into a.
func (p Patch) Apply(a *Attributes) {
	if p.Kind.Set {
		a.Kind = p.Kind.Value
	}
	if p.Title.Set {
		a.Title = cloneString(p.Title.Value)
	}
	if p.Description.Set {
		a.Description = cloneString(p.Description.Value)
	}
	if p.BeginTime.Set {
		a.BeginTime = cloneString(p.BeginTime.Value)
	}
	if p.EndTime.Set {
		a.EndTime = cloneString(p.EndTime.Value)
	}
	if p.Progress.Set {
		a.Progress = p.Progress.Value
	}
	if p.DiffLevel.Set {
		a.DiffLevel = p.DiffLevel.Value
	}
	if p.Color.Set {
		a.Color = normalizeColor(p.Color.Value)
	}
}

// Keys returns the wire names of the set fields, sorted.
func (p Patch) Keys() []string {
	fields := p.fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON emits only the set fields. An empty color is sent as null.
func (p Patch) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.fields())
}

func (p Patch) fields() map[string]any {
	out := map[string]any{}
	if p.Kind.Set {
		out["kind"] = p.Kind.Value
	}
	if p.Title.Set {
		out["title"] = p.Title.Value
	}
	if p.Description.Set {
		out["description"] = p.Description.Value
	}
	if p.BeginTime.Set {
		out["beginTime"] = p.BeginTime.Value
	}
	if p.EndTime.Set {
		out["endTime"] = p.EndTime.Value
	}
	if p.Progress.Set {
		out["progress"] = p.Progress.Value
	}
	if p.DiffLevel.Set {
		out["diffLevel"] = p.DiffLevel.Value
	}
	if p.Color.Set {
		out["color"] = normalizeColor(p.Color.Value)
	}
	return out
}

func normalizeColor(c *string) *string {
	if c == nil || *c == "" {
		return nil
	}
	return cloneString(c)
}
