package undo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/scene"
)

// fakeDoc is a DocPort whose whole state is one byte slice.
type fakeDoc struct {
	state    []byte
	restored int
	snapErr  error
	restErr  error
}

func (d *fakeDoc) Snapshot() ([]byte, error) {
	if d.snapErr != nil {
		return nil, d.snapErr
	}
	return append([]byte(nil), d.state...), nil
}

func (d *fakeDoc) Restore(data []byte) error {
	if d.restErr != nil {
		return d.restErr
	}
	d.state = append([]byte(nil), data...)
	return nil
}

func (d *fakeDoc) DocumentRestored() { d.restored++ }

func stroke(page int) *scene.Ink {
	return &scene.Ink{Page: page, Points: []geo.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, Width: 2}
}

func mustUndo(t *testing.T, e *Engine) {
	t.Helper()
	ok, err := e.Undo()
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !ok {
		t.Fatal("Undo reported nothing to undo")
	}
}

func mustRedo(t *testing.T, e *Engine) {
	t.Helper()
	ok, err := e.Redo()
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if !ok {
		t.Fatal("Redo reported nothing to redo")
	}
}

func TestTransientAddUndoRedo(t *testing.T) {
	sc := scene.New()
	e := NewEngine(sc, &fakeDoc{})

	ink := stroke(0)
	sc.Attach(ink)
	e.PushTransient(ActionAdd, ink)

	mustUndo(t, e)
	if sc.Contains(ink) {
		t.Fatal("undo of an add left the item attached")
	}
	if !e.CanRedo() {
		t.Fatal("CanRedo = false after undo")
	}

	mustRedo(t, e)
	if !sc.Contains(ink) {
		t.Fatal("redo of an add did not re-attach the item")
	}
}

func TestTransientRemoveUndoRedo(t *testing.T) {
	sc := scene.New()
	e := NewEngine(sc, &fakeDoc{})

	ink := stroke(0)
	sc.Attach(ink)
	sc.Detach(ink)
	e.PushTransient(ActionRemove, ink)

	mustUndo(t, e)
	if !sc.Contains(ink) {
		t.Fatal("undo of a remove did not restore the item")
	}
	mustRedo(t, e)
	if sc.Contains(ink) {
		t.Fatal("redo of a remove left the item attached")
	}
}

func TestPushTransientClearsRedo(t *testing.T) {
	sc := scene.New()
	e := NewEngine(sc, &fakeDoc{})

	first := stroke(0)
	sc.Attach(first)
	e.PushTransient(ActionAdd, first)
	mustUndo(t, e)
	if !e.CanRedo() {
		t.Fatal("CanRedo = false after undo")
	}

	second := stroke(0)
	sc.Attach(second)
	e.PushTransient(ActionAdd, second)
	if e.CanRedo() {
		t.Fatal("a new edit must clear the redo stack")
	}
}

func TestSnapshotUndoRedoSwapsState(t *testing.T) {
	doc := &fakeDoc{state: []byte("v1")}
	e := NewEngine(scene.New(), doc)

	if err := e.PushSnapshot("apply watermark"); err != nil {
		t.Fatalf("PushSnapshot: %v", err)
	}
	doc.state = []byte("v2")

	mustUndo(t, e)
	if string(doc.state) != "v1" {
		t.Fatalf("state = %q after undo, want v1", doc.state)
	}
	if doc.restored != 1 {
		t.Fatalf("DocumentRestored fired %d times, want 1", doc.restored)
	}
	if label, ok := e.RedoLabel(); !ok || label != "apply watermark" {
		t.Fatalf("RedoLabel = %q, %v", label, ok)
	}

	mustRedo(t, e)
	if string(doc.state) != "v2" {
		t.Fatalf("state = %q after redo, want v2", doc.state)
	}
	if doc.restored != 2 {
		t.Fatalf("DocumentRestored fired %d times, want 2", doc.restored)
	}

	mustUndo(t, e)
	if string(doc.state) != "v1" {
		t.Fatalf("state = %q after second undo, want v1", doc.state)
	}
}

func TestSnapshotCapEvictsOldest(t *testing.T) {
	doc := &fakeDoc{}
	e := NewEngine(scene.New(), doc)

	for i := 0; i < 12; i++ {
		doc.state = []byte(fmt.Sprintf("s%d", i))
		if err := e.PushSnapshot(fmt.Sprintf("op %d", i)); err != nil {
			t.Fatalf("PushSnapshot %d: %v", i, err)
		}
	}
	doc.state = []byte("final")

	if e.SnapshotDepth() != SnapshotCap {
		t.Fatalf("SnapshotDepth = %d, want %d", e.SnapshotDepth(), SnapshotCap)
	}
	for i := 0; i < SnapshotCap; i++ {
		mustUndo(t, e)
	}
	// The two oldest snapshots were evicted, so history bottoms out
	// at the state captured by the third push.
	if string(doc.state) != "s2" {
		t.Fatalf("state = %q after draining history, want s2", doc.state)
	}
	if e.CanUndo() {
		t.Fatal("CanUndo = true after draining history")
	}
}

func TestUndoPrefersTransientOverSnapshot(t *testing.T) {
	sc := scene.New()
	doc := &fakeDoc{state: []byte("plain")}
	e := NewEngine(sc, doc)

	s1, s2 := stroke(0), stroke(0)
	sc.Attach(s1)
	e.PushTransient(ActionAdd, s1)
	sc.Attach(s2)
	e.PushTransient(ActionAdd, s2)

	if err := e.PushSnapshot("apply page numbers"); err != nil {
		t.Fatalf("PushSnapshot: %v", err)
	}
	doc.state = []byte("numbered")

	s3 := stroke(1)
	sc.Attach(s3)
	e.PushTransient(ActionAdd, s3)

	// Overlay edits unwind first regardless of when the snapshot was
	// pushed; the document is only restored once they are drained.
	mustUndo(t, e)
	if sc.Len() != 2 || doc.restored != 0 {
		t.Fatalf("after undo 1: len=%d restored=%d, want 2, 0", sc.Len(), doc.restored)
	}
	mustUndo(t, e)
	mustUndo(t, e)
	if sc.Len() != 0 || doc.restored != 0 {
		t.Fatalf("after undo 3: len=%d restored=%d, want 0, 0", sc.Len(), doc.restored)
	}
	mustUndo(t, e)
	if string(doc.state) != "plain" || doc.restored != 1 {
		t.Fatalf("after undo 4: state=%q restored=%d, want plain, 1", doc.state, doc.restored)
	}
	if e.CanUndo() {
		t.Fatal("CanUndo = true with empty stacks")
	}
}

func TestUndoEmptyReportsFalse(t *testing.T) {
	e := NewEngine(scene.New(), &fakeDoc{})
	if ok, err := e.Undo(); ok || err != nil {
		t.Fatalf("Undo on empty = %v, %v", ok, err)
	}
	if ok, err := e.Redo(); ok || err != nil {
		t.Fatalf("Redo on empty = %v, %v", ok, err)
	}
}

func TestSnapshotUndoFailureKeepsHistory(t *testing.T) {
	doc := &fakeDoc{state: []byte("v1")}
	e := NewEngine(scene.New(), doc)
	if err := e.PushSnapshot("stamp"); err != nil {
		t.Fatalf("PushSnapshot: %v", err)
	}
	doc.state = []byte("v2")
	doc.restErr = errors.New("disk on fire")

	if ok, err := e.Undo(); ok || err == nil {
		t.Fatalf("Undo with failing restore = %v, %v; want false, error", ok, err)
	}
	if e.SnapshotDepth() != 1 {
		t.Fatalf("SnapshotDepth = %d after failed undo, want 1", e.SnapshotDepth())
	}
	if doc.restored != 0 {
		t.Fatal("DocumentRestored fired despite the failed restore")
	}

	doc.restErr = nil
	mustUndo(t, e)
	if string(doc.state) != "v1" {
		t.Fatalf("state = %q after recovery, want v1", doc.state)
	}
}

func TestUndoRedoLabels(t *testing.T) {
	sc := scene.New()
	doc := &fakeDoc{}
	e := NewEngine(sc, doc)

	if _, ok := e.UndoLabel(); ok {
		t.Fatal("UndoLabel on empty history")
	}
	if err := e.PushSnapshot("insert link"); err != nil {
		t.Fatalf("PushSnapshot: %v", err)
	}
	if label, ok := e.UndoLabel(); !ok || label != "insert link" {
		t.Fatalf("UndoLabel = %q, %v", label, ok)
	}

	ink := stroke(0)
	sc.Attach(ink)
	e.PushTransient(ActionAdd, ink)
	if label, ok := e.UndoLabel(); !ok || label != ActionAdd.String() {
		t.Fatalf("UndoLabel = %q, want the transient action", label)
	}
}
