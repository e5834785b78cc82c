package scene

import (
	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf"
)

// Encode converts an item to its annotation record for saving. Image
// stamps are persisted as page images, not annotations; for them ok
// is false and the caller inserts the image directly.
func Encode(it Item) (pdf.Annot, bool) {
	switch v := it.(type) {
	case *Ink:
		return pdf.Annot{
			Kind:     pdf.AnnotInk,
			Rect:     Bounds(v),
			Color:    v.Color,
			Width:    v.Width,
			Vertices: [][]geo.Point{v.Points},
		}, true
	case *Highlight:
		quads := make([]geo.Rect, len(v.Rects))
		copy(quads, v.Rects)
		return pdf.Annot{
			Kind:  pdf.AnnotHighlight,
			Rect:  Bounds(v),
			Color: v.Color,
			Quads: quads,
		}, true
	case *Note:
		return pdf.Annot{
			Kind:     pdf.AnnotText,
			Rect:     Bounds(v),
			Contents: v.Text,
			Author:   v.Author,
		}, true
	case *TextBox:
		return pdf.Annot{
			Kind:     pdf.AnnotFreeText,
			Rect:     v.Rect,
			Contents: v.Text,
			Color:    v.Color,
			FontSize: v.FontSize,
		}, true
	default:
		return pdf.Annot{}, false
	}
}

// Decode materializes scene items from an annotation record. An ink
// record yields one item per stroke. Kinds the scene does not model,
// such as the squares drawn around inserted links, decode to nothing.
func Decode(page int, a pdf.Annot) []Item {
	switch a.Kind {
	case pdf.AnnotInk:
		items := make([]Item, 0, len(a.Vertices))
		for _, stroke := range a.Vertices {
			pts := make([]geo.Point, len(stroke))
			copy(pts, stroke)
			items = append(items, &Ink{Page: page, Points: pts, Color: a.Color, Width: a.Width})
		}
		return items
	case pdf.AnnotHighlight:
		rects := a.Quads
		if len(rects) == 0 {
			rects = []geo.Rect{a.Rect}
		}
		cp := make([]geo.Rect, len(rects))
		copy(cp, rects)
		return []Item{&Highlight{Page: page, Rects: cp, Color: a.Color}}
	case pdf.AnnotText:
		return []Item{&Note{
			Page:   page,
			At:     geo.Point{X: a.Rect.X, Y: a.Rect.Y},
			Text:   a.Contents,
			Author: a.Author,
		}}
	case pdf.AnnotFreeText:
		return []Item{&TextBox{
			Page:     page,
			Rect:     a.Rect,
			Text:     a.Contents,
			FontSize: a.FontSize,
			Color:    a.Color,
		}}
	default:
		return nil
	}
}

// DecodeDocument attaches every annotation of every page to a fresh
// scene, in page order.
func DecodeDocument(doc pdf.Document) (*Scene, error) {
	s := New()
	for page := 0; page < doc.PageCount(); page++ {
		annots, err := doc.Annotations(page)
		if err != nil {
			return nil, err
		}
		for _, a := range annots {
			s.Attach(Decode(page, a)...)
		}
	}
	return s, nil
}
