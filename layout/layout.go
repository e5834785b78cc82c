// Package layout computes the continuous-scroll arrangement of pages:
// every page is rasterized at a fixed DPI into scene pixels and stacked
// vertically with a constant gap. Zoom is a view transform applied on
// top and never changes the DPI or this table.
package layout

import (
	"fmt"
	"sort"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf"
)

// Gap is the vertical space between consecutive pages in scene pixels.
const Gap = 20

// DefaultDPI is the source resolution pages are laid out at.
const DefaultDPI = 150

// PageSlot is one page's position in the scene.
type PageSlot struct {
	Index   int
	YOffset int
	Width   int
	Height  int
}

// Table maps pages to scene positions. It is immutable once built and
// must be rebuilt when the document or the DPI changes.
type Table struct {
	slots []PageSlot
	dpi   float64
}

// Build computes the table for doc at the given DPI. Page sizes must be
// positive; a degenerate page is a backend bug and fails the build.
func Build(doc pdf.Document, dpi float64) (*Table, error) {
	if dpi <= 0 {
		return nil, fmt.Errorf("layout: dpi %v out of range", dpi)
	}
	scale := dpi / 72.0
	n := doc.PageCount()
	t := &Table{slots: make([]PageSlot, n), dpi: dpi}
	y := 0
	for i := 0; i < n; i++ {
		w, h, err := doc.PageSize(i)
		if err != nil {
			return nil, fmt.Errorf("layout page %d: %w", i, err)
		}
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("layout page %d: degenerate size %gx%g", i, w, h)
		}
		slot := PageSlot{
			Index:   i,
			YOffset: y,
			Width:   round(w * scale),
			Height:  round(h * scale),
		}
		t.slots[i] = slot
		y += slot.Height + Gap
	}
	return t, nil
}

func round(v float64) int {
	if v < 0 {
		return 0
	}
	return int(v + 0.5)
}

// Len returns the number of pages.
func (t *Table) Len() int { return len(t.slots) }

// DPI returns the layout resolution.
func (t *Table) DPI() float64 { return t.dpi }

// Scale returns scene pixels per page point.
func (t *Table) Scale() float64 { return t.dpi / 72.0 }

// Slot returns page i's placement.
func (t *Table) Slot(i int) PageSlot { return t.slots[i] }

// SlotRect returns page i's scene rectangle.
func (t *Table) SlotRect(i int) geo.Rect {
	s := t.slots[i]
	return geo.Rect{X: 0, Y: float64(s.YOffset), W: float64(s.Width), H: float64(s.Height)}
}

// TotalHeight returns the scene height covering all pages.
func (t *Table) TotalHeight() int {
	if len(t.slots) == 0 {
		return 0
	}
	last := t.slots[len(t.slots)-1]
	return last.YOffset + last.Height
}

// MaxWidth returns the widest page's scene width.
func (t *Table) MaxWidth() int {
	max := 0
	for _, s := range t.slots {
		if s.Width > max {
			max = s.Width
		}
	}
	return max
}

// PageAtY returns the highest page index whose offset is <= y. A y
// exactly at a page's offset belongs to that page. Out-of-range values
// clamp to the first and last page.
func (t *Table) PageAtY(y float64) int {
	if len(t.slots) == 0 {
		return 0
	}
	if y < 0 {
		return 0
	}
	// First slot with offset > y; the page before it owns y.
	i := sort.Search(len(t.slots), func(i int) bool {
		return float64(t.slots[i].YOffset) > y
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// SceneToPage maps a scene point to (page index, page point).
func (t *Table) SceneToPage(p geo.Point) (int, geo.Point) {
	if len(t.slots) == 0 {
		return 0, geo.Point{}
	}
	idx := t.PageAtY(p.Y)
	s := t.slots[idx]
	scale := t.Scale()
	return idx, geo.Point{
		X: p.X / scale,
		Y: (p.Y - float64(s.YOffset)) / scale,
	}
}

// PageToScene maps a page point to scene coordinates.
func (t *Table) PageToScene(page int, p geo.Point) geo.Point {
	if page < 0 || page >= len(t.slots) {
		return geo.Point{}
	}
	s := t.slots[page]
	scale := t.Scale()
	return geo.Point{
		X: p.X * scale,
		Y: p.Y*scale + float64(s.YOffset),
	}
}

// PageRectToScene maps a page-point rectangle to scene coordinates.
func (t *Table) PageRectToScene(page int, r geo.Rect) geo.Rect {
	if page < 0 || page >= len(t.slots) {
		return geo.Rect{}
	}
	s := t.slots[page]
	return r.Scale(t.Scale()).Translate(0, float64(s.YOffset))
}

// SceneRectToPage maps a scene rectangle on a known page back to page
// points.
func (t *Table) SceneRectToPage(page int, r geo.Rect) geo.Rect {
	if page < 0 || page >= len(t.slots) {
		return geo.Rect{}
	}
	s := t.slots[page]
	return r.Translate(0, -float64(s.YOffset)).Scale(1 / t.Scale())
}
