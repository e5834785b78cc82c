// Package scene holds the overlay items drawn on top of rendered
// pages: ink strokes, highlights, sticky notes, text boxes and image
// stamps. Items live in page coordinates and are attached to or
// detached from a Scene by the viewer and the undo engine; encoding
// to annotation records happens only on save.
package scene

import (
	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf"
)

// Item is one overlay element. The concrete types are *Ink,
// *Highlight, *Note, *TextBox and *ImageStamp; pointer identity is
// what attach, detach and undo track.
type Item interface {
	sceneItem()
}

// Ink is a single freehand pen stroke.
type Ink struct {
	Page   int
	Points []geo.Point
	Color  pdf.Color
	Width  float64
}

// Highlight marks one or more text rectangles in translucent color.
type Highlight struct {
	Page  int
	Rects []geo.Rect
	Color pdf.Color
}

// Note is a sticky note anchored at a point.
type Note struct {
	Page   int
	At     geo.Point
	Text   string
	Author string
}

// TextBox is free text placed inside a rectangle.
type TextBox struct {
	Page     int
	Rect     geo.Rect
	Text     string
	FontSize float64
	Color    pdf.Color
}

// ImageStamp places a PNG image inside a rectangle.
type ImageStamp struct {
	Page int
	Rect geo.Rect
	PNG  []byte
}

func (*Ink) sceneItem()        {}
func (*Highlight) sceneItem()  {}
func (*Note) sceneItem()       {}
func (*TextBox) sceneItem()    {}
func (*ImageStamp) sceneItem() {}

// noteIconPt is the edge length of the sticky note marker in points.
const noteIconPt = 18.0

// PageOf returns the page an item belongs to.
func PageOf(it Item) int {
	switch v := it.(type) {
	case *Ink:
		return v.Page
	case *Highlight:
		return v.Page
	case *Note:
		return v.Page
	case *TextBox:
		return v.Page
	case *ImageStamp:
		return v.Page
	default:
		return 0
	}
}

// Bounds returns an item's bounding rectangle in page points. Ink
// bounds include half the stroke width on every side.
func Bounds(it Item) geo.Rect {
	switch v := it.(type) {
	case *Ink:
		if len(v.Points) == 0 {
			return geo.Rect{}
		}
		r := geo.Rect{X: v.Points[0].X, Y: v.Points[0].Y}
		for _, p := range v.Points[1:] {
			r = r.Union(geo.Rect{X: p.X, Y: p.Y})
		}
		return r.Inset(-v.Width / 2)
	case *Highlight:
		var r geo.Rect
		for _, q := range v.Rects {
			r = r.Union(q)
		}
		return r
	case *Note:
		return geo.Rect{X: v.At.X, Y: v.At.Y, W: noteIconPt, H: noteIconPt}
	case *TextBox:
		return v.Rect
	case *ImageStamp:
		return v.Rect
	default:
		return geo.Rect{}
	}
}

// Scene is the ordered overlay item list. Later items draw on top of
// earlier ones. It is not safe for concurrent use; the viewer owns it.
type Scene struct {
	items []Item
	// trees are lazily built per-page hit-test indexes, dropped on any
	// membership change. Entry ids are indexes into items.
	trees map[int]*geo.QuadTree
}

// New returns an empty scene.
func New() *Scene { return &Scene{} }

// Attach appends items in draw order. Attaching an item that is
// already present is a no-op for that item.
func (s *Scene) Attach(items ...Item) {
	for _, it := range items {
		if it == nil || s.index(it) >= 0 {
			continue
		}
		s.items = append(s.items, it)
		s.trees = nil
	}
}

// Detach removes items by identity. Items not present are ignored.
func (s *Scene) Detach(items ...Item) {
	for _, it := range items {
		i := s.index(it)
		if i < 0 {
			continue
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		s.trees = nil
	}
}

// Contains reports whether the item is attached.
func (s *Scene) Contains(it Item) bool { return s.index(it) >= 0 }

// Len reports the number of attached items.
func (s *Scene) Len() int { return len(s.items) }

// Items returns the attached items in draw order.
func (s *Scene) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// ItemsOn returns the attached items of one page in draw order.
func (s *Scene) ItemsOn(page int) []Item {
	var out []Item
	for _, it := range s.items {
		if PageOf(it) == page {
			out = append(out, it)
		}
	}
	return out
}

// ItemAt returns the topmost item on page whose bounds contain the
// point, or nil. The highest item index wins because it drew last.
func (s *Scene) ItemAt(page int, pt geo.Point) Item {
	best := -1
	for _, id := range s.pageTree(page).At(pt) {
		if id > best {
			best = id
		}
	}
	if best < 0 {
		return nil
	}
	return s.items[best]
}

// pageTree returns the hit-test index for one page, building it on
// first use after a membership change.
func (s *Scene) pageTree(page int) *geo.QuadTree {
	if qt, ok := s.trees[page]; ok {
		return qt
	}
	var bounds geo.Rect
	for _, it := range s.items {
		if PageOf(it) != page {
			continue
		}
		b := Bounds(it)
		if bounds.Empty() {
			bounds = b
		} else {
			bounds = bounds.Union(b)
		}
	}
	qt := geo.NewQuadTree(bounds, 8)
	for i, it := range s.items {
		if PageOf(it) == page {
			qt.Insert(Bounds(it), i)
		}
	}
	if s.trees == nil {
		s.trees = make(map[int]*geo.QuadTree)
	}
	s.trees[page] = qt
	return qt
}

// Clear detaches every item.
func (s *Scene) Clear() {
	s.items = nil
	s.trees = nil
}

func (s *Scene) index(it Item) int {
	for i, have := range s.items {
		if have == it {
			return i
		}
	}
	return -1
}
