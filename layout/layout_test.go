package layout

import (
	"math"
	"testing"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf/memdoc"
)

func threePageDoc(t *testing.T) *memdoc.Document {
	t.Helper()
	b := memdoc.NewBuilder()
	b.Page(612, 792).Finish()
	b.Page(612, 612).Finish()
	b.Page(500, 1000).Finish()
	return b.Build()
}

func TestBuildOffsets(t *testing.T) {
	doc := threePageDoc(t)
	table, err := Build(doc, 150)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Heights at 150 DPI: round(h * 150/72).
	scale := 150.0 / 72.0
	h0 := int(792*scale + 0.5)
	h1 := int(612*scale + 0.5)
	wantOffsets := []int{0, h0 + Gap, h0 + h1 + 2*Gap}
	for i, want := range wantOffsets {
		if got := table.Slot(i).YOffset; got != want {
			t.Errorf("offset[%d] = %d, want %d", i, got, want)
		}
	}
	if got := table.Slot(0).Width; got != int(612*scale+0.5) {
		t.Errorf("width[0] = %d", got)
	}
	h2 := int(1000*scale + 0.5)
	if got := table.TotalHeight(); got != wantOffsets[2]+h2 {
		t.Errorf("TotalHeight = %d, want %d", got, wantOffsets[2]+h2)
	}
}

func TestBuildRejectsBadDPI(t *testing.T) {
	doc := threePageDoc(t)
	if _, err := Build(doc, 0); err == nil {
		t.Fatal("Build with dpi 0 did not fail")
	}
}

func TestPageAtY(t *testing.T) {
	doc := threePageDoc(t)
	table, err := Build(doc, 150)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	off1 := float64(table.Slot(1).YOffset)
	off2 := float64(table.Slot(2).YOffset)
	tests := []struct {
		y    float64
		want int
	}{
		{-50, 0},
		{0, 0},
		{off1 - 0.5, 0},
		{off1, 1}, // y exactly at an offset belongs to that page
		{off1 + 1, 1},
		{off2, 2},
		{off2 + 1e6, 2},
	}
	for _, tt := range tests {
		if got := table.PageAtY(tt.y); got != tt.want {
			t.Errorf("PageAtY(%v) = %d, want %d", tt.y, got, tt.want)
		}
	}
}

func TestPageAtYMatchesLinearScan(t *testing.T) {
	doc := threePageDoc(t)
	table, err := Build(doc, 150)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	linear := func(y float64) int {
		page := 0
		for i := 0; i < table.Len(); i++ {
			if float64(table.Slot(i).YOffset) <= y {
				page = i
			}
		}
		return page
	}
	for y := -10.0; y < float64(table.TotalHeight())+50; y += 7.3 {
		if got, want := table.PageAtY(y), linear(y); got != want {
			t.Fatalf("PageAtY(%v) = %d, linear scan says %d", y, got, want)
		}
	}
}

func TestSceneToPageRoundTrip(t *testing.T) {
	doc := threePageDoc(t)
	table, err := Build(doc, 150)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pagePt := geo.Point{X: 100, Y: 50}
	scene := table.PageToScene(1, pagePt)
	gotPage, gotPt := table.SceneToPage(scene)
	if gotPage != 1 {
		t.Fatalf("SceneToPage landed on page %d, want 1", gotPage)
	}
	if math.Abs(gotPt.X-pagePt.X) > 1e-9 || math.Abs(gotPt.Y-pagePt.Y) > 1e-9 {
		t.Errorf("round trip = %v, want %v", gotPt, pagePt)
	}
}

func TestPageRectToScene(t *testing.T) {
	doc := threePageDoc(t)
	table, err := Build(doc, 150)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r := geo.Rect{X: 72, Y: 72, W: 100, H: 50}
	scene := table.PageRectToScene(2, r)
	back := table.SceneRectToPage(2, scene)
	if math.Abs(back.X-r.X) > 1e-9 || math.Abs(back.Y-r.Y) > 1e-9 ||
		math.Abs(back.W-r.W) > 1e-9 || math.Abs(back.H-r.H) > 1e-9 {
		t.Errorf("rect round trip = %v, want %v", back, r)
	}
	scale := 150.0 / 72.0
	if math.Abs(scene.Y-(72*scale+float64(table.Slot(2).YOffset))) > 1e-9 {
		t.Errorf("scene rect Y = %v", scene.Y)
	}
}

func TestEmptyDocument(t *testing.T) {
	doc := memdoc.NewBuilder().Build()
	table, err := Build(doc, 150)
	if err != nil {
		t.Fatalf("Build empty: %v", err)
	}
	if table.Len() != 0 || table.TotalHeight() != 0 {
		t.Errorf("empty table Len=%d TotalHeight=%d", table.Len(), table.TotalHeight())
	}
	if got := table.PageAtY(100); got != 0 {
		t.Errorf("PageAtY on empty = %d, want 0", got)
	}
}
