package lines

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"busrisk/internal/errors"
)

func mustAdd(t *testing.T, tr *Tracker, n int, text string) {
	t.Helper()
	if err := tr.Add(n, text); err != nil {
		t.Fatalf("Add(%d, %q) failed: %v", n, text, err)
	}
}

func TestTracker_AddShiftsLaterLines(t *testing.T) {
	tr := NewTracker()
	mustAdd(t, tr, 1, "a")
	mustAdd(t, tr, 2, "c")
	mustAdd(t, tr, 2, "b")
	mustAdd(t, tr, 1, "start")

	want := []string{"start", "a", "b", "c"}
	if diff := cmp.Diff(want, tr.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	wantLines := []Line{{1, "start"}, {2, "a"}, {3, "b"}, {4, "c"}}
	if diff := cmp.Diff(wantLines, tr.Lines()); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_Remove(t *testing.T) {
	tr := NewTracker()
	for i, text := range []string{"a", "b", "c", "d"} {
		mustAdd(t, tr, i+1, text)
	}

	tr.Remove(2)
	tr.Remove(2)

	want := []Line{{1, "a"}, {2, "d"}}
	if diff := cmp.Diff(want, tr.Lines()); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_RemoveAbsentIsTolerated(t *testing.T) {
	tr := NewTracker()
	mustAdd(t, tr, 1, "only")

	tr.Remove(5)
	tr.Remove(0)
	tr.Remove(-3)

	if diff := cmp.Diff([]string{"only"}, tr.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_Change(t *testing.T) {
	tr := NewTracker()
	mustAdd(t, tr, 1, "a")
	mustAdd(t, tr, 2, "b")

	if err := tr.Change(2, "B"); err != nil {
		t.Fatalf("Change failed: %v", err)
	}
	// Changing an absent line inserts it
	if err := tr.Change(3, "C"); err != nil {
		t.Fatalf("Change failed: %v", err)
	}

	if diff := cmp.Diff([]string{"a", "B", "C"}, tr.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if tr.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tr.Len())
	}
}

func TestTracker_InvalidLineNumber(t *testing.T) {
	tr := NewTracker()

	if err := tr.Add(0, "x"); !errors.Is(err, errors.InvalidLineNumber) {
		t.Errorf("Add(0) error = %v, want INVALID_LINE_NUMBER", err)
	}
	if err := tr.Change(-1, "x"); !errors.Is(err, errors.InvalidLineNumber) {
		t.Errorf("Change(-1) error = %v, want INVALID_LINE_NUMBER", err)
	}
	if tr.Len() != 0 {
		t.Errorf("tracker should be untouched, has %d lines", tr.Len())
	}
}

func TestTracker_SnapshotOfEmpty(t *testing.T) {
	if got := NewTracker().Snapshot(); len(got) != 0 {
		t.Errorf("expected empty snapshot, got %v", got)
	}
}
