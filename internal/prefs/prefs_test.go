package prefs

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func openTest(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestDefaults(t *testing.T) {
	s, _ := openTest(t)
	cols, err := s.Columns()
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if !reflect.DeepEqual(cols, DefaultColumns) {
		t.Errorf("Columns = %v, want %v", cols, DefaultColumns)
	}
	mode, err := s.ViewMode()
	if err != nil {
		t.Fatalf("ViewMode: %v", err)
	}
	if mode != ViewTable {
		t.Errorf("ViewMode = %q, want table", mode)
	}
}

func TestSetColumns(t *testing.T) {
	s, _ := openTest(t)
	if err := s.SetColumns([]string{"Title", " progress ", "title", "owner"}); err != nil {
		t.Fatalf("SetColumns: %v", err)
	}
	cols, _ := s.Columns()
	if want := []string{"title", "progress", "owner"}; !reflect.DeepEqual(cols, want) {
		t.Errorf("Columns = %v, want %v", cols, want)
	}

	tests := []struct {
		name string
		cols []string
	}{
		{"unknown", []string{"title", "bogus"}},
		{"empty", []string{" "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.SetColumns(tt.cols); !errors.Is(err, ErrUnknownColumn) {
				t.Errorf("expected ErrUnknownColumn, got %v", err)
			}
		})
	}
}

func TestViewModePersists(t *testing.T) {
	s, path := openTest(t)
	if err := s.SetViewMode(ViewBoard); err != nil {
		t.Fatalf("SetViewMode: %v", err)
	}
	if err := s.SetViewMode("grid"); !errors.Is(err, ErrInvalidViewMode) {
		t.Errorf("expected ErrInvalidViewMode, got %v", err)
	}
	_ = s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	mode, err := reopened.ViewMode()
	if err != nil {
		t.Fatalf("ViewMode: %v", err)
	}
	if mode != ViewBoard {
		t.Errorf("ViewMode = %q, want board", mode)
	}
}

func TestViewModeToggle(t *testing.T) {
	if ViewBoard.Toggle() != ViewTable || ViewTable.Toggle() != ViewBoard {
		t.Error("Toggle should alternate board and table")
	}
}
