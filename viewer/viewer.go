// Package viewer owns the state of one open document: the page
// layout, the tile scheduler, the annotation overlay, undo history,
// text selection, and the text edit session. It is the composition
// root the UI talks to; the packages below it never call back up.
// A Viewer belongs to one goroutine. Only the document handle is
// shared with the render worker, behind an internal lock.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"time"

	"github.com/folium/pdfview/burnin"
	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/layout"
	"github.com/folium/pdfview/observability"
	"github.com/folium/pdfview/ocr"
	"github.com/folium/pdfview/pdf"
	"github.com/folium/pdfview/scene"
	"github.com/folium/pdfview/scripting"
	"github.com/folium/pdfview/selection"
	"github.com/folium/pdfview/settings"
	"github.com/folium/pdfview/textedit"
	"github.com/folium/pdfview/tiles"
	"github.com/folium/pdfview/undo"
)

const (
	// MinZoom and MaxZoom bound the zoom factor; 1.0 is actual size.
	MinZoom = 0.5
	MaxZoom = 5.0
	// ZoomStep is the factor one ZoomIn or ZoomOut applies.
	ZoomStep = 1.2
)

// ErrNoDocument is returned by operations that need an open document.
var ErrNoDocument = errors.New("viewer: no document open")

// ErrNotEditing is returned by edit-mode operations outside an active
// session.
var ErrNotEditing = errors.New("viewer: not in edit mode")

// Viewer is the context object for one open document.
type Viewer struct {
	opener  pdf.Opener
	log     observability.Logger
	script  scripting.Engine
	ocrEng  ocr.Engine
	openURI func(uri string) error
	alert   func(message string)
	now     func() time.Time

	schedOpts []tiles.Option

	prefs     settings.Settings
	prefsPath string

	// mu guards doc: the render worker reads the handle while the
	// owner swaps it on restore, revert, and save.
	mu  sync.Mutex
	doc pdf.Document

	path       string
	savedBytes []byte

	table *layout.Table
	sched *tiles.Scheduler
	sc    *scene.Scene
	hist  *undo.Engine
	index *selection.Index
	sel   *selection.Selection
	edit  *textedit.Session
	burn  *burnin.Applier

	links     map[int][]pdf.Link
	linkTrees map[int]*geo.QuadTree

	zoom     float64
	viewport geo.Rect
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithLogger routes viewer events to log.
func WithLogger(log observability.Logger) Option {
	return func(v *Viewer) { v.log = log }
}

// WithScriptEngine enables javascript link actions.
func WithScriptEngine(e scripting.Engine) Option {
	return func(v *Viewer) { v.script = e }
}

// WithOCREngine recognizes text on pages with no extractable words,
// so selection works on scanned documents.
func WithOCREngine(e ocr.Engine) Option {
	return func(v *Viewer) { v.ocrEng = e }
}

// WithURIHandler receives the target of activated uri links.
func WithURIHandler(f func(uri string) error) Option {
	return func(v *Viewer) { v.openURI = f }
}

// WithAlert receives script alert messages. The default logs them.
func WithAlert(f func(message string)) Option {
	return func(v *Viewer) { v.alert = f }
}

// WithSettingsPath loads settings from path and persists them there
// on open, save, and close.
func WithSettingsPath(path string) Option {
	return func(v *Viewer) { v.prefsPath = path }
}

// WithSyncRender renders tiles inline instead of on the worker.
func WithSyncRender() Option {
	return func(v *Viewer) {
		v.schedOpts = append(v.schedOpts, tiles.WithSyncRender())
	}
}

// WithCacheCapacity overrides the tile cache size.
func WithCacheCapacity(n int) Option {
	return func(v *Viewer) {
		v.schedOpts = append(v.schedOpts, tiles.WithCacheCapacity(n))
	}
}

// WithClock fixes the time source used for dated burn-ins and report
// headers.
func WithClock(now func() time.Time) Option {
	return func(v *Viewer) { v.now = now }
}

// New returns a viewer with no document open. The opener serves Open,
// the reopen after Save, and snapshot undo restores.
func New(opener pdf.Opener, opts ...Option) *Viewer {
	v := &Viewer{
		opener: opener,
		log:    observability.NopLogger{},
		now:    time.Now,
		zoom:   1.0,
		prefs:  settings.Defaults(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.alert == nil {
		v.alert = func(message string) {
			v.log.Info("script alert", observability.String("message", message))
		}
	}
	if v.prefsPath != "" {
		prefs, err := settings.Load(v.prefsPath)
		if err != nil {
			v.log.Warn("settings load failed, using defaults",
				observability.Error("err", err))
		}
		v.prefs = prefs
	}
	v.zoom = clampZoom(v.prefs.ZoomPercent / 100)
	return v
}

// Open loads the document at path. On failure the viewer keeps
// whatever document was open before.
func (v *Viewer) Open(path string) error {
	doc, err := v.opener.Open(path)
	if err != nil {
		return fmt.Errorf("viewer: open %s: %w", filepath.Base(path), err)
	}
	table, err := layout.Build(doc, layout.DefaultDPI)
	if err != nil {
		return fmt.Errorf("viewer: layout %s: %w", filepath.Base(path), err)
	}
	sc, err := scene.DecodeDocument(doc)
	if err != nil {
		return fmt.Errorf("viewer: decode annotations: %w", err)
	}
	saved, err := doc.Serialize()
	if err != nil {
		return fmt.Errorf("viewer: snapshot %s: %w", filepath.Base(path), err)
	}

	// Nothing can fail past this point, so the new document may
	// replace the old one now.
	if v.sched != nil {
		v.sched.Close()
	}
	v.setDoc(doc)
	v.path = path
	v.savedBytes = saved
	v.table = table
	v.sc = sc
	v.edit = nil
	v.hist = undo.NewEngine(scenePort{v}, docPort{v}, undo.WithLogger(v.log))
	v.sched = tiles.New(docSource{v}, table,
		append([]tiles.Option{tiles.WithLogger(v.log)}, v.schedOpts...)...)
	v.index = selection.NewIndex(v.indexOptions()...)
	if err := v.index.Rebuild(doc, table); err != nil {
		v.log.Warn("selection index rebuild failed", observability.Error("err", err))
	}
	v.sel = selection.NewSelection(v.index)
	v.burn = v.newApplier()
	v.rebuildLinks()
	v.viewport = geo.Rect{W: v.viewport.W, H: v.viewport.H}

	v.prefs.Touch(path)
	v.prefs.LastFile = path
	v.persistPrefs()
	v.log.Info("document opened",
		observability.String("path", filepath.Base(path)),
		observability.Int("pages", doc.PageCount()),
		observability.Int("overlay_items", sc.Len()))
	return nil
}

// Close stops the render worker and persists settings. The viewer is
// not usable afterwards.
func (v *Viewer) Close() {
	if v.sched != nil {
		v.sched.Close()
		v.sched = nil
	}
	v.setDoc(nil)
	v.persistPrefs()
}

func (v *Viewer) setDoc(doc pdf.Document) {
	v.mu.Lock()
	v.doc = doc
	v.mu.Unlock()
}

func (v *Viewer) document() pdf.Document {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.doc
}

// docSource hands the render worker the current document. Documents
// are swapped on restore and revert, so the worker must fetch the
// handle per request instead of holding one.
type docSource struct{ v *Viewer }

func (s docSource) RenderRegion(ctx context.Context, page int, clip geo.Rect, pxW, pxH int) (*image.RGBA, error) {
	doc := s.v.document()
	if doc == nil {
		return nil, ErrNoDocument
	}
	return doc.RenderRegion(ctx, page, clip, pxW, pxH)
}

// scenePort and docPort give the undo engine handles that stay valid
// across document swaps.
type scenePort struct{ v *Viewer }

func (p scenePort) Attach(items ...scene.Item) { p.v.sc.Attach(items...) }
func (p scenePort) Detach(items ...scene.Item) { p.v.sc.Detach(items...) }

type docPort struct{ v *Viewer }

func (p docPort) Snapshot() ([]byte, error) { return p.v.document().Serialize() }

func (p docPort) Restore(data []byte) error {
	doc, err := p.v.opener.Deserialize(data)
	if err != nil {
		return err
	}
	p.v.setDoc(doc)
	return nil
}

func (p docPort) DocumentRestored() { p.v.afterDocSwap() }

var (
	_ tiles.Source   = docSource{}
	_ undo.ScenePort = scenePort{}
	_ undo.DocPort   = docPort{}
)

func (v *Viewer) newApplier() *burnin.Applier {
	return burnin.NewApplier(v.document(), v.hist,
		burnin.WithLogger(v.log),
		burnin.WithInvalidate(v.invalidateContent),
		burnin.WithClock(v.now))
}

func (v *Viewer) indexOptions() []selection.IndexOption {
	opts := []selection.IndexOption{selection.WithLogger(v.log)}
	if v.ocrEng != nil {
		opts = append(opts, selection.WithFallback(func(page int) ([]pdf.Word, error) {
			return ocr.WordsFromPage(context.Background(), v.document(), v.ocrEng, page)
		}))
	}
	return opts
}

// afterDocSwap rebuilds everything derived from the document handle:
// layout, burn applier, tiles, word index, link index.
func (v *Viewer) afterDocSwap() {
	doc := v.document()
	table, err := layout.Build(doc, layout.DefaultDPI)
	if err != nil {
		v.log.Error("layout rebuild failed", observability.Error("err", err))
	} else {
		v.table = table
		v.sched.SetLayout(table)
	}
	v.burn = v.newApplier()
	v.invalidateContent()
}

// invalidateContent drops rendered tiles and re-derives the word and
// link indexes. Burn-ins and applied text edits land here.
func (v *Viewer) invalidateContent() {
	if v.sched != nil {
		v.sched.InvalidateContent()
	}
	if v.index != nil {
		if err := v.index.Rebuild(v.document(), v.table); err != nil {
			v.log.Warn("selection index rebuild failed", observability.Error("err", err))
		}
	}
	v.rebuildLinks()
}

// SetViewport sets the visible scene rectangle and reconciles tiles.
func (v *Viewer) SetViewport(ctx context.Context, r geo.Rect) {
	v.viewport = r
	v.refresh(ctx)
}

// Viewport returns the visible scene rectangle.
func (v *Viewer) Viewport() geo.Rect { return v.viewport }

// Refresh collects finished renders and reconciles placed tiles
// against the viewport. UIs call this from their frame loop.
func (v *Viewer) Refresh(ctx context.Context) { v.refresh(ctx) }

func (v *Viewer) refresh(ctx context.Context) {
	if v.sched == nil || v.document() == nil {
		return
	}
	v.sched.EnsureVisible(ctx, v.viewport, v.zoom)
}

// Zoom returns the zoom factor, 1.0 being actual size.
func (v *Viewer) Zoom() float64 { return v.zoom }

// SetZoom clamps z to [MinZoom, MaxZoom], re-buckets tiles, and
// records the factor as the preferred zoom.
func (v *Viewer) SetZoom(ctx context.Context, z float64) {
	z = clampZoom(z)
	if z == v.zoom {
		return
	}
	v.zoom = z
	v.prefs.ZoomPercent = z * 100
	if v.sched != nil {
		v.sched.InvalidateZoom()
	}
	v.refresh(ctx)
}

// ZoomIn grows the zoom factor by one step.
func (v *Viewer) ZoomIn(ctx context.Context) { v.SetZoom(ctx, v.zoom*ZoomStep) }

// ZoomOut shrinks the zoom factor by one step.
func (v *Viewer) ZoomOut(ctx context.Context) { v.SetZoom(ctx, v.zoom/ZoomStep) }

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// CurrentPage is the topmost visible page.
func (v *Viewer) CurrentPage() int {
	if v.table == nil {
		return 0
	}
	return v.table.PageAtY(v.viewport.Y)
}

// GoToPage scrolls the viewport to the top of a page.
func (v *Viewer) GoToPage(ctx context.Context, page int) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	if page < 0 || page >= v.table.Len() {
		return fmt.Errorf("viewer: page %d: %w", page, pdf.ErrPageRange)
	}
	y := v.table.SlotRect(page).Y
	if max := float64(v.table.TotalHeight()) - v.viewport.H; y > max {
		y = max
	}
	if y < 0 {
		y = 0
	}
	v.viewport.Y = y
	v.refresh(ctx)
	return nil
}

// Undo reverses the most recent step. Inside edit mode it undoes the
// last block action; outside, transient overlay steps undo before
// document snapshots.
func (v *Viewer) Undo() (bool, error) {
	if v.document() == nil {
		return false, ErrNoDocument
	}
	if v.Editing() {
		return v.edit.Undo(), nil
	}
	return v.hist.Undo()
}

// Redo re-applies the most recently undone step.
func (v *Viewer) Redo() (bool, error) {
	if v.document() == nil {
		return false, ErrNoDocument
	}
	if v.Editing() {
		return v.edit.Redo(), nil
	}
	return v.hist.Redo()
}

// CanUndo reports whether Undo would do anything.
func (v *Viewer) CanUndo() bool {
	if v.document() == nil {
		return false
	}
	if v.Editing() {
		return v.edit.CanUndo()
	}
	return v.hist.CanUndo()
}

// CanRedo reports whether Redo would do anything.
func (v *Viewer) CanRedo() bool {
	if v.document() == nil {
		return false
	}
	if v.Editing() {
		return v.edit.CanRedo()
	}
	return v.hist.CanRedo()
}

// UndoLabel names the next snapshot undo for menus, if any.
func (v *Viewer) UndoLabel() (string, bool) {
	if v.document() == nil || v.Editing() {
		return "", false
	}
	return v.hist.UndoLabel()
}

// RedoLabel names the next snapshot redo for menus, if any.
func (v *Viewer) RedoLabel() (string, bool) {
	if v.document() == nil || v.Editing() {
		return "", false
	}
	return v.hist.RedoLabel()
}

// Path returns the open document's file path.
func (v *Viewer) Path() string { return v.path }

// Document returns the open document handle, or nil.
func (v *Viewer) Document() pdf.Document { return v.document() }

// Scene returns the annotation overlay.
func (v *Viewer) Scene() *scene.Scene { return v.sc }

// Layout returns the page layout table.
func (v *Viewer) Layout() *layout.Table { return v.table }

// History returns the undo engine, for depth and label displays.
func (v *Viewer) History() *undo.Engine { return v.hist }

// PageCount returns the number of pages, 0 with no document.
func (v *Viewer) PageCount() int {
	doc := v.document()
	if doc == nil {
		return 0
	}
	return doc.PageCount()
}

// ContentSize returns the full scene extent in pixels, for scrollbar
// ranges.
func (v *Viewer) ContentSize() (w, h int) {
	if v.table == nil {
		return 0, 0
	}
	return v.table.MaxWidth(), v.table.TotalHeight()
}

// PlacedTiles returns the tiles currently placed for drawing.
func (v *Viewer) PlacedTiles() []tiles.PlacedTile {
	if v.sched == nil {
		return nil
	}
	return v.sched.Placed()
}

// Settings returns a copy of the current preferences.
func (v *Viewer) Settings() settings.Settings { return v.prefs }

// UpdateSettings replaces the preferences and persists them. The zoom
// preference applies to later sessions; the live zoom changes through
// SetZoom.
func (v *Viewer) UpdateSettings(s settings.Settings) {
	v.prefs = s
	v.persistPrefs()
}

func (v *Viewer) persistPrefs() {
	if v.prefsPath == "" {
		return
	}
	if err := v.prefs.Save(v.prefsPath); err != nil {
		v.log.Warn("settings save failed", observability.Error("err", err))
	}
}

func (v *Viewer) checkPage(page int) error {
	doc := v.document()
	if doc == nil {
		return ErrNoDocument
	}
	if page < 0 || page >= doc.PageCount() {
		return fmt.Errorf("viewer: page %d: %w", page, pdf.ErrPageRange)
	}
	return nil
}
