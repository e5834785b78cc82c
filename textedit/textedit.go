// Package textedit implements the page text editing mode. Entering a
// session materializes every styled text run into an editable block;
// blocks are moved, rewritten, deleted and pasted purely in memory
// with per-action undo. Only leaving the session touches the
// document: one snapshot is pushed, then each dirty block's original
// region is redacted and its replacement text inserted.
package textedit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/observability"
	"github.com/folium/pdfview/pdf"
)

// PasteOffsetPt is the visual nudge applied to pasted blocks so the
// copy does not cover its source.
const PasteOffsetPt = 20.0

// MinFontSize is the smallest size the exit reflow will retry at.
const MinFontSize = 6.0

// clipboardWrite is swapped out by tests.
var clipboardWrite = clipboard.WriteAll

// Block is one editable text run. Rect is the run's original region;
// Offset accumulates moves and applies only on exit.
type Block struct {
	Page         int
	Rect         geo.Rect
	OriginalText string
	CurrentText  string
	FontName     string
	FontSize     float64
	Color        pdf.Color
	Offset       geo.Point
	Deleted      bool
}

// Modified reports whether the block's text or position changed.
// Deletion is tracked separately.
func (b *Block) Modified() bool {
	return b.CurrentText != b.OriginalText || b.Offset != geo.Point{}
}

// DisplayText returns what the block shows on screen: deleted blocks
// display nothing.
func (b *Block) DisplayText() string {
	if b.Deleted {
		return ""
	}
	return b.CurrentText
}

// blockState captures the mutable block fields for undo.
type blockState struct {
	text    string
	offset  geo.Point
	deleted bool
}

func capture(b *Block) blockState {
	return blockState{text: b.CurrentText, offset: b.Offset, deleted: b.Deleted}
}

func (b *Block) restore(s blockState) {
	b.CurrentText = s.text
	b.Offset = s.offset
	b.Deleted = s.deleted
}

type stepKind int

const (
	stepMove stepKind = iota
	stepEdit
	stepDelete
	stepRestore
	stepPaste
)

// step is one undoable action: the block it touched and its state on
// both sides. Paste steps additionally toggle list membership.
type step struct {
	kind   stepKind
	block  *Block
	before blockState
	after  blockState
}

// History receives the single snapshot a session pushes before
// applying its edits.
type History interface {
	PushSnapshot(label string) error
}

// Session is one edit-mode pass over a document. It is not safe for
// concurrent use.
type Session struct {
	doc  pdf.Document
	hist History
	log  observability.Logger

	invalidate func()

	active  bool
	blocks  []*Block
	editing *Block
	undo    []step
	redo    []step
	buffer  *Block // last copied block, survives undo
}

// Option configures a Session.
type Option func(*Session)

// WithLogger routes session events to log.
func WithLogger(log observability.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithInvalidate registers the callback fired after exit applies
// document edits, so the owner can drop rendered tiles and rebuild
// derived text state.
func WithInvalidate(f func()) Option {
	return func(s *Session) { s.invalidate = f }
}

// NewSession returns an inactive session over doc. Snapshots taken on
// exit go through hist.
func NewSession(doc pdf.Document, hist History, opts ...Option) *Session {
	s := &Session{
		doc:  doc,
		hist: hist,
		log:  observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enter materializes every non-empty text run of every page into an
// editable block and activates the session. Entering an active
// session is an error.
func (s *Session) Enter() error {
	if s.active {
		return errors.New("textedit: session already active")
	}
	var blocks []*Block
	for page := 0; page < s.doc.PageCount(); page++ {
		runs, err := s.doc.TextRuns(page)
		if err != nil {
			return fmt.Errorf("textedit: runs of page %d: %w", page, err)
		}
		for _, run := range runs {
			if strings.TrimSpace(run.Text) == "" {
				continue
			}
			blocks = append(blocks, &Block{
				Page:         page,
				Rect:         run.Rect,
				OriginalText: run.Text,
				CurrentText:  run.Text,
				FontName:     run.FontName,
				FontSize:     run.FontSize,
				Color:        run.Color,
			})
		}
	}
	s.blocks = blocks
	s.active = true
	s.undo, s.redo = nil, nil
	s.log.Debug("edit session entered", observability.Int("blocks", len(blocks)))
	return nil
}

// Active reports whether the session is in edit mode.
func (s *Session) Active() bool { return s.active }

// Blocks returns the session's blocks in materialization order.
func (s *Session) Blocks() []*Block {
	out := make([]*Block, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// BlockAt returns the topmost block whose displayed rectangle
// contains the page point, or nil. Deleted blocks are not hit.
func (s *Session) BlockAt(page int, pt geo.Point) *Block {
	for i := len(s.blocks) - 1; i >= 0; i-- {
		b := s.blocks[i]
		if b.Deleted || b.Page != page {
			continue
		}
		if b.Rect.Translate(b.Offset.X, b.Offset.Y).Contains(pt) {
			return b
		}
	}
	return nil
}

// StartEditing makes b the single actively edited block, stopping any
// other.
func (s *Session) StartEditing(b *Block) {
	s.editing = b
}

// StopEditing leaves no block actively edited.
func (s *Session) StopEditing() { s.editing = nil }

// Editing returns the actively edited block, or nil.
func (s *Session) Editing() *Block { return s.editing }

// MoveBlock shifts the block by (dx, dy) page points as one undoable
// action; callers aggregate a drag into a single call.
func (s *Session) MoveBlock(b *Block, dx, dy float64) {
	before := capture(b)
	b.Offset = b.Offset.Add(geo.Point{X: dx, Y: dy})
	s.push(step{kind: stepMove, block: b, before: before, after: capture(b)})
}

// EditText replaces the block's text. Editing a deleted block
// resurrects it.
func (s *Session) EditText(b *Block, text string) {
	before := capture(b)
	b.CurrentText = text
	b.Deleted = false
	s.push(step{kind: stepEdit, block: b, before: before, after: capture(b)})
}

// DeleteBlock marks the block deleted and resets its text and offset.
func (s *Session) DeleteBlock(b *Block) {
	if s.editing == b {
		s.editing = nil
	}
	before := capture(b)
	b.Deleted = true
	b.CurrentText = ""
	b.Offset = geo.Point{}
	s.push(step{kind: stepDelete, block: b, before: before, after: capture(b)})
}

// RestoreBlock returns the block to its original text and position,
// clearing deletion.
func (s *Session) RestoreBlock(b *Block) {
	before := capture(b)
	b.CurrentText = b.OriginalText
	b.Offset = geo.Point{}
	b.Deleted = false
	s.push(step{kind: stepRestore, block: b, before: before, after: capture(b)})
}

// CopyBlock stores the block for pasting and writes its displayed
// text to the clipboard. Copying is not undoable.
func (s *Session) CopyBlock(b *Block) error {
	cp := *b
	s.buffer = &cp
	if text := b.DisplayText(); text != "" {
		if err := clipboardWrite(text); err != nil {
			return fmt.Errorf("textedit: clipboard write: %w", err)
		}
	}
	return nil
}

// PasteBlock adds a new block from the copy buffer, nudged by
// PasteOffsetPt in both directions. It reports false when nothing was
// copied.
func (s *Session) PasteBlock() (*Block, bool) {
	if s.buffer == nil {
		return nil, false
	}
	src := s.buffer
	nb := &Block{
		Page:         src.Page,
		Rect:         src.Rect.Translate(PasteOffsetPt, PasteOffsetPt),
		OriginalText: "",
		CurrentText:  src.CurrentText,
		FontName:     src.FontName,
		FontSize:     src.FontSize,
		Color:        src.Color,
	}
	s.blocks = append(s.blocks, nb)
	s.push(step{kind: stepPaste, block: nb, before: capture(nb), after: capture(nb)})
	return nb, true
}

// CanUndo reports whether an action can be undone.
func (s *Session) CanUndo() bool { return len(s.undo) > 0 }

// CanRedo reports whether an undone action can be re-applied.
func (s *Session) CanRedo() bool { return len(s.redo) > 0 }

// Undo reverses the most recent action. Undoing a paste removes the
// pasted block.
func (s *Session) Undo() bool {
	n := len(s.undo)
	if n == 0 {
		return false
	}
	st := s.undo[n-1]
	s.undo = s.undo[:n-1]
	if st.kind == stepPaste {
		s.removeBlock(st.block)
	} else {
		st.block.restore(st.before)
	}
	s.redo = append(s.redo, st)
	return true
}

// Redo re-applies the most recently undone action.
func (s *Session) Redo() bool {
	n := len(s.redo)
	if n == 0 {
		return false
	}
	st := s.redo[n-1]
	s.redo = s.redo[:n-1]
	if st.kind == stepPaste {
		s.blocks = append(s.blocks, st.block)
	} else {
		st.block.restore(st.after)
	}
	s.undo = append(s.undo, st)
	return true
}

// Exit applies the session to the document and deactivates it. If any
// block is dirty, exactly one snapshot is pushed, every dirty block's
// original region is redacted, surviving blocks are re-inserted with
// mapped fonts (shrinking by two points down to MinFontSize when the
// text overflows) and the invalidation callback fires once.
func (s *Session) Exit() error {
	if !s.active {
		return nil
	}
	s.StopEditing()

	var dirty []*Block
	for _, b := range s.blocks {
		if b.Modified() || b.Deleted {
			dirty = append(dirty, b)
		}
	}
	if len(dirty) > 0 {
		if err := s.hist.PushSnapshot("apply text edits"); err != nil {
			return err
		}
		for _, b := range dirty {
			if err := s.applyBlock(b); err != nil {
				s.finish()
				return err
			}
		}
		if s.invalidate != nil {
			s.invalidate()
		}
		s.log.Info("text edits applied", observability.Int("blocks", len(dirty)))
	}
	s.finish()
	return nil
}

func (s *Session) finish() {
	s.blocks = nil
	s.undo, s.redo = nil, nil
	s.buffer = nil
	s.active = false
}

func (s *Session) applyBlock(b *Block) error {
	if err := s.doc.RedactRegion(b.Page, b.Rect); err != nil {
		return fmt.Errorf("textedit: redact page %d: %w", b.Page, err)
	}
	if b.Deleted {
		return nil
	}
	target := b.Rect.Translate(b.Offset.X, b.Offset.Y)
	size := b.FontSize
	if size <= 0 {
		size = 11
	}
	font := mapFont(b.FontName)
	for {
		err := s.doc.InsertText(b.Page, target, b.CurrentText, font, size, b.Color)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pdf.ErrOverflow) || size-2 < MinFontSize {
			return fmt.Errorf("textedit: insert on page %d: %w", b.Page, err)
		}
		size -= 2
		s.log.Debug("text reflow retry",
			observability.Int("page", b.Page),
			observability.Float64("size", size))
	}
}

func (s *Session) push(st step) {
	s.undo = append(s.undo, st)
	s.redo = nil
}

func (s *Session) removeBlock(b *Block) {
	for i, have := range s.blocks {
		if have == b {
			s.blocks = append(s.blocks[:i], s.blocks[i+1:]...)
			return
		}
	}
}

// mapFont picks the insertion font for a source font name: serif
// faces map to tiro, monospace to cobo, everything else to helv.
func mapFont(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "times") || strings.Contains(n, "serif"):
		return "tiro"
	case strings.Contains(n, "courier") || strings.Contains(n, "mono"):
		return "cobo"
	default:
		return "helv"
	}
}
