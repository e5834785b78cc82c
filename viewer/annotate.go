package viewer

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf"
	"github.com/folium/pdfview/scene"
	"github.com/folium/pdfview/textedit"
	"github.com/folium/pdfview/undo"
)

// DefaultTextBoxSize is the font size new text boxes start at.
const DefaultTextBoxSize = 12.0

// AddInk attaches a pen stroke in the configured pen color and width.
// Points are page coordinates. The stroke undoes as one step.
func (v *Viewer) AddInk(page int, points []geo.Point) (*scene.Ink, error) {
	if err := v.checkPage(page); err != nil {
		return nil, err
	}
	if len(points) < 2 {
		return nil, errors.New("viewer: ink stroke needs at least two points")
	}
	it := &scene.Ink{
		Page:   page,
		Points: append([]geo.Point(nil), points...),
		Color:  pdf.Color(v.prefs.PenColor),
		Width:  v.prefs.PenWidth,
	}
	v.attach(it)
	return it, nil
}

// AddHighlight attaches a highlight over the given page rectangles,
// usually the merged lines of a text selection.
func (v *Viewer) AddHighlight(page int, rects []geo.Rect) (*scene.Highlight, error) {
	if err := v.checkPage(page); err != nil {
		return nil, err
	}
	if len(rects) == 0 {
		return nil, errors.New("viewer: highlight needs at least one rectangle")
	}
	it := &scene.Highlight{
		Page:  page,
		Rects: append([]geo.Rect(nil), rects...),
		Color: pdf.Color(v.prefs.HighlightColor),
	}
	v.attach(it)
	return it, nil
}

// AddNote attaches a sticky note at a page point, authored with the
// configured name.
func (v *Viewer) AddNote(page int, at geo.Point, text string) (*scene.Note, error) {
	if err := v.checkPage(page); err != nil {
		return nil, err
	}
	it := &scene.Note{
		Page:   page,
		At:     at,
		Text:   text,
		Author: v.prefs.AuthorName,
	}
	v.attach(it)
	return it, nil
}

// AddTextBox attaches free text inside a page rectangle.
func (v *Viewer) AddTextBox(page int, r geo.Rect, text string) (*scene.TextBox, error) {
	if err := v.checkPage(page); err != nil {
		return nil, err
	}
	if r.Empty() {
		return nil, errors.New("viewer: text box needs a non-empty rectangle")
	}
	it := &scene.TextBox{
		Page:     page,
		Rect:     r,
		Text:     text,
		FontSize: DefaultTextBoxSize,
		Color:    pdf.Color(v.prefs.PenColor),
	}
	v.attach(it)
	return it, nil
}

// AddImageStamp attaches a PNG image inside a page rectangle. The
// stamp stays an overlay item until Save burns it into the page.
func (v *Viewer) AddImageStamp(page int, r geo.Rect, data []byte) (*scene.ImageStamp, error) {
	if err := v.checkPage(page); err != nil {
		return nil, err
	}
	if r.Empty() {
		return nil, errors.New("viewer: image stamp needs a non-empty rectangle")
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("viewer: image stamp: %w", err)
	}
	it := &scene.ImageStamp{
		Page: page,
		Rect: r,
		PNG:  append([]byte(nil), data...),
	}
	v.attach(it)
	return it, nil
}

func (v *Viewer) attach(it scene.Item) {
	v.sc.Attach(it)
	v.hist.PushTransient(undo.ActionAdd, it)
}

// RemoveItem detaches an overlay item, undoably.
func (v *Viewer) RemoveItem(it scene.Item) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	if !v.sc.Contains(it) {
		return errors.New("viewer: item is not attached")
	}
	v.sc.Detach(it)
	v.hist.PushTransient(undo.ActionRemove, it)
	return nil
}

// ItemAt returns the topmost overlay item under a scene point, or
// nil.
func (v *Viewer) ItemAt(scenePt geo.Point) scene.Item {
	if v.sc == nil || v.table == nil {
		return nil
	}
	page, pagePt := v.table.SceneToPage(scenePt)
	return v.sc.ItemAt(page, pagePt)
}

// StartSelection anchors a text selection at a scene point. It
// reports false when the document has no selectable words.
func (v *Viewer) StartSelection(pt geo.Point) bool {
	if v.sel == nil {
		return false
	}
	return v.sel.Start(pt)
}

// ExtendSelection drags the selection to a scene point.
func (v *Viewer) ExtendSelection(pt geo.Point) {
	if v.sel != nil {
		v.sel.Extend(pt)
	}
}

// ClearSelection drops the selection.
func (v *Viewer) ClearSelection() {
	if v.sel != nil {
		v.sel.Clear()
	}
}

// SelectionRects returns the selection as per-line rectangles in
// scene coordinates, for painting.
func (v *Viewer) SelectionRects() []geo.Rect {
	if v.sel == nil {
		return nil
	}
	return v.sel.Rects()
}

// SelectionText returns the selected text in reading order.
func (v *Viewer) SelectionText() string {
	if v.sel == nil {
		return ""
	}
	return v.sel.Text()
}

// CopySelection puts the selected text on the system clipboard.
func (v *Viewer) CopySelection() error {
	if v.sel == nil {
		return ErrNoDocument
	}
	return v.sel.Copy()
}

// EnterEditMode extracts the document's text blocks for direct
// editing. While the mode is active Undo and Redo operate on edit
// steps. Entering twice is a no-op.
func (v *Viewer) EnterEditMode() error {
	if v.document() == nil {
		return ErrNoDocument
	}
	if v.Editing() {
		return nil
	}
	s := textedit.NewSession(v.document(), v.hist,
		textedit.WithLogger(v.log),
		textedit.WithInvalidate(v.invalidateContent))
	if err := s.Enter(); err != nil {
		return err
	}
	v.edit = s
	return nil
}

// ExitEditMode applies pending block edits to the document. The apply
// pushes one snapshot, so the whole session undoes as a unit. Outside
// edit mode it returns ErrNotEditing.
func (v *Viewer) ExitEditMode() error {
	if !v.Editing() {
		return ErrNotEditing
	}
	err := v.edit.Exit()
	v.edit = nil
	return err
}

// Editing reports whether text edit mode is active.
func (v *Viewer) Editing() bool { return v.edit != nil && v.edit.Active() }

// EditSession exposes the active session's blocks to the UI. It is
// nil outside edit mode.
func (v *Viewer) EditSession() *textedit.Session { return v.edit }
