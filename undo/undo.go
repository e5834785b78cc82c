// Package undo implements the viewer's two-tier history. Overlay
// edits are cheap and reversible in memory, so they travel a
// transient stack holding the affected scene items. Document
// mutations such as burn-in operations are not reversible in place;
// those are undone by restoring a byte snapshot taken before the
// mutation. The top-level Undo and Redo drain the transient tier
// before touching snapshots.
package undo

import (
	"fmt"

	"github.com/folium/pdfview/observability"
	"github.com/folium/pdfview/scene"
)

// SnapshotCap bounds the snapshot stack; pushing beyond it evicts the
// oldest snapshot.
const SnapshotCap = 10

// Action tells which way a transient entry moved its items.
type Action int

const (
	// ActionAdd records items that were attached.
	ActionAdd Action = iota
	// ActionRemove records items that were detached.
	ActionRemove
)

func (a Action) String() string {
	if a == ActionAdd {
		return "add items"
	}
	return "remove items"
}

// TransientEntry is one overlay edit: the items it touched and the
// direction it moved them.
type TransientEntry struct {
	Action Action
	Items  []scene.Item
}

// Snapshot is one document state with the label of the operation
// that made it.
type Snapshot struct {
	Label string
	Data  []byte
}

// ScenePort attaches and detaches overlay items without any side
// effects of its own. *scene.Scene satisfies it.
type ScenePort interface {
	Attach(items ...scene.Item)
	Detach(items ...scene.Item)
}

// DocPort exposes the document operations snapshot undo needs.
// DocumentRestored fires after a restore so the owner can invalidate
// rendered tiles and rebuild derived state.
type DocPort interface {
	Snapshot() ([]byte, error)
	Restore(data []byte) error
	DocumentRestored()
}

// Engine is the history for one open document. It is not safe for
// concurrent use.
type Engine struct {
	scene ScenePort
	doc   DocPort
	log   observability.Logger
	cap   int

	tUndo []TransientEntry
	tRedo []TransientEntry
	sUndo []Snapshot
	sRedo []Snapshot
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger routes history events to log.
func WithLogger(log observability.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithSnapshotCap overrides the snapshot stack bound.
func WithSnapshotCap(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cap = n
		}
	}
}

// NewEngine returns an empty history operating on the given ports.
func NewEngine(sc ScenePort, doc DocPort, opts ...Option) *Engine {
	e := &Engine{
		scene: sc,
		doc:   doc,
		log:   observability.NopLogger{},
		cap:   SnapshotCap,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PushTransient records an overlay edit and clears the transient redo
// stack.
func (e *Engine) PushTransient(action Action, items ...scene.Item) {
	if len(items) == 0 {
		return
	}
	cp := make([]scene.Item, len(items))
	copy(cp, items)
	e.tUndo = append(e.tUndo, TransientEntry{Action: action, Items: cp})
	e.tRedo = nil
}

// PushSnapshot captures the current document state under label before
// a destructive mutation. The snapshot redo stack is cleared; beyond
// the cap the oldest snapshot is evicted.
func (e *Engine) PushSnapshot(label string) error {
	data, err := e.doc.Snapshot()
	if err != nil {
		return fmt.Errorf("undo: snapshot %q: %w", label, err)
	}
	e.sUndo = append(e.sUndo, Snapshot{Label: label, Data: data})
	if len(e.sUndo) > e.cap {
		e.sUndo = append(e.sUndo[:0], e.sUndo[1:]...)
	}
	e.sRedo = nil
	e.log.Debug("snapshot pushed",
		observability.String("label", label),
		observability.Int(observability.MetricSnapshotsPushed, len(e.sUndo)),
		observability.Int(observability.MetricSnapshotBytes, len(data)))
	return nil
}

// Undo reverses the most recent edit, preferring the transient tier.
// It reports false when there is nothing to undo.
func (e *Engine) Undo() (bool, error) {
	if e.undoTransient() {
		return true, nil
	}
	return e.undoSnapshot()
}

// Redo re-applies the most recently undone edit, preferring the
// transient tier. It reports false when there is nothing to redo.
func (e *Engine) Redo() (bool, error) {
	if e.redoTransient() {
		return true, nil
	}
	return e.redoSnapshot()
}

// CanUndo reports whether any tier has an edit to reverse.
func (e *Engine) CanUndo() bool { return len(e.tUndo) > 0 || len(e.sUndo) > 0 }

// CanRedo reports whether any tier has an edit to re-apply.
func (e *Engine) CanRedo() bool { return len(e.tRedo) > 0 || len(e.sRedo) > 0 }

// UndoLabel describes the edit Undo would reverse.
func (e *Engine) UndoLabel() (string, bool) {
	if n := len(e.tUndo); n > 0 {
		return e.tUndo[n-1].Action.String(), true
	}
	if n := len(e.sUndo); n > 0 {
		return e.sUndo[n-1].Label, true
	}
	return "", false
}

// RedoLabel describes the edit Redo would re-apply.
func (e *Engine) RedoLabel() (string, bool) {
	if n := len(e.tRedo); n > 0 {
		return e.tRedo[n-1].Action.String(), true
	}
	if n := len(e.sRedo); n > 0 {
		return e.sRedo[n-1].Label, true
	}
	return "", false
}

// TransientDepth reports the number of undoable overlay edits.
func (e *Engine) TransientDepth() int { return len(e.tUndo) }

// SnapshotDepth reports the number of undoable document snapshots.
func (e *Engine) SnapshotDepth() int { return len(e.sUndo) }

// Reset drops all history, for example when a new document opens.
func (e *Engine) Reset() {
	e.tUndo, e.tRedo = nil, nil
	e.sUndo, e.sRedo = nil, nil
}

func (e *Engine) undoTransient() bool {
	n := len(e.tUndo)
	if n == 0 {
		return false
	}
	entry := e.tUndo[n-1]
	e.tUndo = e.tUndo[:n-1]
	e.invert(entry)
	e.tRedo = append(e.tRedo, entry)
	return true
}

func (e *Engine) redoTransient() bool {
	n := len(e.tRedo)
	if n == 0 {
		return false
	}
	entry := e.tRedo[n-1]
	e.tRedo = e.tRedo[:n-1]
	e.apply(entry)
	e.tUndo = append(e.tUndo, entry)
	return true
}

func (e *Engine) apply(entry TransientEntry) {
	if entry.Action == ActionAdd {
		e.scene.Attach(entry.Items...)
	} else {
		e.scene.Detach(entry.Items...)
	}
}

func (e *Engine) invert(entry TransientEntry) {
	if entry.Action == ActionAdd {
		e.scene.Detach(entry.Items...)
	} else {
		e.scene.Attach(entry.Items...)
	}
}

func (e *Engine) undoSnapshot() (bool, error) {
	n := len(e.sUndo)
	if n == 0 {
		return false, nil
	}
	top := e.sUndo[n-1]
	prev, err := e.swap(top)
	if err != nil {
		return false, fmt.Errorf("undo %q: %w", top.Label, err)
	}
	e.sUndo = e.sUndo[:n-1]
	e.sRedo = append(e.sRedo, Snapshot{Label: top.Label, Data: prev})
	e.doc.DocumentRestored()
	e.log.Debug("document restored", observability.String("label", top.Label))
	return true, nil
}

func (e *Engine) redoSnapshot() (bool, error) {
	n := len(e.sRedo)
	if n == 0 {
		return false, nil
	}
	top := e.sRedo[n-1]
	prev, err := e.swap(top)
	if err != nil {
		return false, fmt.Errorf("redo %q: %w", top.Label, err)
	}
	e.sRedo = e.sRedo[:n-1]
	e.sUndo = append(e.sUndo, Snapshot{Label: top.Label, Data: prev})
	e.doc.DocumentRestored()
	e.log.Debug("document restored", observability.String("label", top.Label))
	return true, nil
}

// swap restores the snapshot and returns the pre-swap state so the
// caller can push it onto the opposite stack. A failure leaves both
// stacks and the document untouched.
func (e *Engine) swap(s Snapshot) ([]byte, error) {
	current, err := e.doc.Snapshot()
	if err != nil {
		return nil, err
	}
	if err := e.doc.Restore(s.Data); err != nil {
		return nil, err
	}
	return current, nil
}
