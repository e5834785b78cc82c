package scene

import (
	"testing"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf"
	"github.com/folium/pdfview/pdf/memdoc"
)

func TestAttachDetachIdentity(t *testing.T) {
	s := New()
	a := &Note{Page: 0, At: geo.Point{X: 10, Y: 10}, Text: "first"}
	b := &Note{Page: 0, At: geo.Point{X: 10, Y: 10}, Text: "first"} // equal fields, distinct item

	s.Attach(a, b)
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	s.Attach(a) // re-attach is a no-op
	if s.Len() != 2 {
		t.Fatalf("Len = %d after re-attach, want 2", s.Len())
	}

	s.Detach(a)
	if s.Len() != 1 || s.Contains(a) || !s.Contains(b) {
		t.Fatalf("detach removed the wrong item: len=%d a=%v b=%v", s.Len(), s.Contains(a), s.Contains(b))
	}
	s.Detach(a) // detaching a missing item is silent
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestItemsOnFiltersByPage(t *testing.T) {
	s := New()
	p0 := &TextBox{Page: 0, Rect: geo.Rect{X: 0, Y: 0, W: 50, H: 20}, Text: "a"}
	p1 := &TextBox{Page: 1, Rect: geo.Rect{X: 0, Y: 0, W: 50, H: 20}, Text: "b"}
	s.Attach(p0, p1)

	on0 := s.ItemsOn(0)
	if len(on0) != 1 || on0[0] != Item(p0) {
		t.Fatalf("ItemsOn(0) = %v", on0)
	}
	if len(s.ItemsOn(2)) != 0 {
		t.Fatal("ItemsOn(2) returned items for an empty page")
	}
}

func TestItemAtReturnsTopmost(t *testing.T) {
	s := New()
	under := &TextBox{Page: 0, Rect: geo.Rect{X: 10, Y: 10, W: 100, H: 100}}
	over := &TextBox{Page: 0, Rect: geo.Rect{X: 50, Y: 50, W: 100, H: 100}}
	s.Attach(under, over)

	if got := s.ItemAt(0, geo.Point{X: 60, Y: 60}); got != Item(over) {
		t.Fatalf("ItemAt in overlap = %v, want the later-attached item", got)
	}
	if got := s.ItemAt(0, geo.Point{X: 15, Y: 15}); got != Item(under) {
		t.Fatalf("ItemAt = %v, want the underlying item", got)
	}
	if got := s.ItemAt(0, geo.Point{X: 500, Y: 500}); got != nil {
		t.Fatalf("ItemAt outside all items = %v, want nil", got)
	}
	if got := s.ItemAt(1, geo.Point{X: 60, Y: 60}); got != nil {
		t.Fatalf("ItemAt on another page = %v, want nil", got)
	}
}

func TestItemAtTracksMembershipChanges(t *testing.T) {
	s := New()
	under := &TextBox{Page: 0, Rect: geo.Rect{X: 10, Y: 10, W: 100, H: 100}}
	over := &TextBox{Page: 0, Rect: geo.Rect{X: 10, Y: 10, W: 100, H: 100}}
	s.Attach(under, over)

	pt := geo.Point{X: 40, Y: 40}
	if got := s.ItemAt(0, pt); got != Item(over) {
		t.Fatalf("ItemAt = %v, want the top item", got)
	}
	s.Detach(over)
	if got := s.ItemAt(0, pt); got != Item(under) {
		t.Fatalf("ItemAt after detach = %v, want the remaining item", got)
	}
	s.Attach(over)
	if got := s.ItemAt(0, pt); got != Item(over) {
		t.Fatalf("ItemAt after re-attach = %v, want the re-attached item", got)
	}
	s.Clear()
	if got := s.ItemAt(0, pt); got != nil {
		t.Fatalf("ItemAt after clear = %v, want nil", got)
	}
}

func TestInkBoundsIncludeStrokeWidth(t *testing.T) {
	ink := &Ink{
		Page:   0,
		Points: []geo.Point{{X: 10, Y: 10}, {X: 30, Y: 40}},
		Width:  4,
	}
	got := Bounds(ink)
	want := geo.Rect{X: 8, Y: 8, W: 24, H: 34}
	if got != want {
		t.Fatalf("Bounds = %v, want %v", got, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	items := []Item{
		&Ink{Page: 0, Points: []geo.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, Color: pdf.Color{1, 0, 0, 1}, Width: 2},
		&Highlight{Page: 0, Rects: []geo.Rect{{X: 5, Y: 5, W: 40, H: 12}}, Color: pdf.Color{1, 1, 0, 0.4}},
		&Note{Page: 0, At: geo.Point{X: 7, Y: 9}, Text: "remember", Author: "pat"},
		&TextBox{Page: 0, Rect: geo.Rect{X: 20, Y: 20, W: 120, H: 40}, Text: "boxed", FontSize: 12, Color: pdf.Color{0, 0, 0, 1}},
	}
	for _, it := range items {
		a, ok := Encode(it)
		if !ok {
			t.Fatalf("Encode(%T) not encodable", it)
		}
		back := Decode(0, a)
		if len(back) != 1 {
			t.Fatalf("Decode(%T record) = %d items, want 1", it, len(back))
		}
		switch w := it.(type) {
		case *Ink:
			g := back[0].(*Ink)
			if len(g.Points) != len(w.Points) || g.Color != w.Color || g.Width != w.Width {
				t.Fatalf("ink round trip = %+v, want %+v", g, w)
			}
		case *Highlight:
			g := back[0].(*Highlight)
			if len(g.Rects) != 1 || g.Rects[0] != w.Rects[0] || g.Color != w.Color {
				t.Fatalf("highlight round trip = %+v, want %+v", g, w)
			}
		case *Note:
			g := back[0].(*Note)
			if g.At != w.At || g.Text != w.Text || g.Author != w.Author {
				t.Fatalf("note round trip = %+v, want %+v", g, w)
			}
		case *TextBox:
			g := back[0].(*TextBox)
			if g.Rect != w.Rect || g.Text != w.Text || g.FontSize != w.FontSize {
				t.Fatalf("text box round trip = %+v, want %+v", g, w)
			}
		}
	}
}

func TestEncodeImageStampDeclines(t *testing.T) {
	if _, ok := Encode(&ImageStamp{Page: 0, Rect: geo.Rect{W: 10, H: 10}}); ok {
		t.Fatal("image stamps must not encode as annotations")
	}
}

func TestDecodeMultiStrokeInk(t *testing.T) {
	a := pdf.Annot{
		Kind: pdf.AnnotInk,
		Vertices: [][]geo.Point{
			{{X: 0, Y: 0}, {X: 1, Y: 1}},
			{{X: 5, Y: 5}, {X: 6, Y: 6}},
		},
		Width: 1.5,
	}
	items := Decode(2, a)
	if len(items) != 2 {
		t.Fatalf("Decode = %d items, want one per stroke", len(items))
	}
	for _, it := range items {
		if PageOf(it) != 2 {
			t.Fatalf("decoded stroke on page %d, want 2", PageOf(it))
		}
	}
}

func TestDecodeSquareIsIgnored(t *testing.T) {
	if items := Decode(0, pdf.Annot{Kind: pdf.AnnotSquare, Rect: geo.Rect{W: 10, H: 10}}); items != nil {
		t.Fatalf("Decode(square) = %v, want nil", items)
	}
}

func TestDecodeDocument(t *testing.T) {
	b := memdoc.NewBuilder()
	b.Page(612, 792).
		Annotation(pdf.Annot{Kind: pdf.AnnotText, Rect: geo.Rect{X: 10, Y: 10, W: 18, H: 18}, Contents: "hi"}).
		Finish()
	b.Page(612, 792).
		Annotation(pdf.Annot{Kind: pdf.AnnotHighlight, Quads: []geo.Rect{{X: 1, Y: 1, W: 30, H: 10}}}).
		Finish()

	s, err := DecodeDocument(b.Build())
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if len(s.ItemsOn(0)) != 1 || len(s.ItemsOn(1)) != 1 {
		t.Fatalf("items per page = %d, %d; want 1, 1", len(s.ItemsOn(0)), len(s.ItemsOn(1)))
	}
}
