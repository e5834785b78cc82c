package burnin

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf"
	"github.com/folium/pdfview/pdf/memdoc"
)

type fakeHistory struct {
	labels []string
	err    error
}

func (h *fakeHistory) PushSnapshot(label string) error {
	if h.err != nil {
		return h.err
	}
	h.labels = append(h.labels, label)
	return nil
}

func blankDoc(pages int) *memdoc.Document {
	b := memdoc.NewBuilder()
	for i := 0; i < pages; i++ {
		b.Page(612, 792).Finish()
	}
	return b.Build()
}

// renderClip rasterizes a page region at one pixel per point.
func renderClip(t *testing.T, doc pdf.Document, page int, clip geo.Rect) *image.RGBA {
	t.Helper()
	img, err := doc.RenderRegion(context.Background(), page, clip, int(clip.W), int(clip.H))
	if err != nil {
		t.Fatalf("RenderRegion: %v", err)
	}
	return img
}

func hasInk(img *image.RGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			if r != 0xffff || g != 0xffff || bb != 0xffff {
				return true
			}
		}
	}
	return false
}

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{180, 20, 20, 255})
		}
	}
	path := filepath.Join(t.TempDir(), "mark.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return path
}

func pageWords(t *testing.T, doc pdf.Document, page int) []string {
	t.Helper()
	ws, err := doc.Words(page)
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Text
	}
	return out
}

func contains(list []string, want string) bool {
	for _, have := range list {
		if have == want {
			return true
		}
	}
	return false
}

func TestWatermarkTextMarksEveryPage(t *testing.T) {
	doc := blankDoc(2)
	hist := &fakeHistory{}
	invalidations := 0
	a := NewApplier(doc, hist, WithInvalidate(func() { invalidations++ }))

	center := geo.Rect{X: 256, Y: 346, W: 100, H: 100}
	if hasInk(renderClip(t, doc, 0, center)) {
		t.Fatal("page center not blank before the watermark")
	}

	err := a.ApplyWatermark(Watermark{Text: "CONFIDENTIAL", Color: pdf.Color{0.8, 0, 0, 1}})
	if err != nil {
		t.Fatalf("ApplyWatermark: %v", err)
	}
	if len(hist.labels) != 1 || hist.labels[0] != "apply watermark" {
		t.Fatalf("snapshots = %v", hist.labels)
	}
	if invalidations != 1 {
		t.Fatalf("invalidations = %d, want 1", invalidations)
	}
	for page := 0; page < 2; page++ {
		if !hasInk(renderClip(t, doc, page, center)) {
			t.Fatalf("page %d center blank after the watermark", page)
		}
	}
}

func TestWatermarkPositionPresets(t *testing.T) {
	doc := blankDoc(1)
	a := NewApplier(doc, &fakeHistory{})

	err := a.ApplyWatermark(Watermark{
		Text: "DRAFT", Color: pdf.Color{0, 0, 0.9, 1},
		PosX: 0.25, PosY: 0.2, FontSize: 36,
	})
	if err != nil {
		t.Fatalf("ApplyWatermark: %v", err)
	}
	// 612*0.25 = 153, 792*0.2 = 158.4: ink near the preset anchor,
	// none at the page center.
	at := geo.Rect{X: 103, Y: 128, W: 100, H: 60}
	if !hasInk(renderClip(t, doc, 0, at)) {
		t.Fatal("no ink near the 0.25/0.2 anchor")
	}
	far := geo.Rect{X: 400, Y: 500, W: 100, H: 100}
	if hasInk(renderClip(t, doc, 0, far)) {
		t.Fatal("ink far from the anchor position")
	}
}

func TestWatermarkImageClampsToPage(t *testing.T) {
	doc := blankDoc(1)
	a := NewApplier(doc, &fakeHistory{})
	// 2000x1000 px at scale 1 exceeds the page; it must clamp to 90%
	// and stay inside the 5% margins.
	path := writeTestPNG(t, 2000, 1000)

	if err := a.ApplyWatermark(Watermark{ImagePath: path}); err != nil {
		t.Fatalf("ApplyWatermark: %v", err)
	}
	// 2000x1000 px clamps to 550.8x275.4 pt centered, so the band left
	// of x=30.6 stays clear. The clip dodges the page border and the
	// corner marker.
	margin := geo.Rect{X: 17, Y: 20, W: 12, H: 12}
	if hasInk(renderClip(t, doc, 0, margin)) {
		t.Fatal("clamped image leaked into the margin")
	}
	if !hasInk(renderClip(t, doc, 0, geo.Rect{X: 290, Y: 380, W: 30, H: 30})) {
		t.Fatal("no ink at the page center")
	}
}

func TestWatermarkEmptyTextFails(t *testing.T) {
	a := NewApplier(blankDoc(1), &fakeHistory{})
	if err := a.ApplyWatermark(Watermark{Text: "   "}); err == nil {
		t.Fatal("empty watermark text accepted")
	}
}

func TestPageNumbersFormatStartAndSkip(t *testing.T) {
	doc := blankDoc(3)
	a := NewApplier(doc, &fakeHistory{})

	err := a.ApplyPageNumbers(PageNumbers{Format: "{n}/{total}", Start: 5, SkipFirst: true})
	if err != nil {
		t.Fatalf("ApplyPageNumbers: %v", err)
	}
	if got := pageWords(t, doc, 0); len(got) != 0 {
		t.Fatalf("page 0 words = %v, want none with SkipFirst", got)
	}
	if got := pageWords(t, doc, 1); !contains(got, "6/3") {
		t.Fatalf("page 1 words = %v, want 6/3", got)
	}
	if got := pageWords(t, doc, 2); !contains(got, "7/3") {
		t.Fatalf("page 2 words = %v, want 7/3", got)
	}

	// Bottom-centered in grey.
	runs, err := doc.TextRuns(1)
	if err != nil {
		t.Fatalf("TextRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Color != pageNumberGrey {
		t.Fatalf("number color = %v, want grey 0.3", runs[0].Color)
	}
	if runs[0].Rect.Y < 700 {
		t.Fatalf("number at y=%.1f, want near the bottom edge", runs[0].Rect.Y)
	}
	cx := runs[0].Rect.Center().X
	if cx < 286 || cx > 326 {
		t.Fatalf("number centered at %.1f, want near 306", cx)
	}
}

func TestHeaderFooterSlotsAndSubstitution(t *testing.T) {
	doc := blankDoc(2)
	clock := func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }
	a := NewApplier(doc, &fakeHistory{}, WithClock(clock))

	err := a.ApplyHeaderFooter(HeaderFooter{
		Slots: [6]string{"left-head", "", "{date}", "", "Page {page} of {total}", ""},
	})
	if err != nil {
		t.Fatalf("ApplyHeaderFooter: %v", err)
	}

	words := pageWords(t, doc, 1)
	for _, want := range []string{"left-head", "2024-03-09", "Page", "2", "of"} {
		if !contains(words, want) {
			t.Fatalf("page 1 words = %v, missing %q", words, want)
		}
	}

	runs, err := doc.TextRuns(1)
	if err != nil {
		t.Fatalf("TextRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3 non-empty slots", len(runs))
	}
	var headers, footers int
	for _, r := range runs {
		if r.Rect.Y < 396 {
			headers++
		} else {
			footers++
		}
	}
	if headers != 2 || footers != 1 {
		t.Fatalf("headers = %d footers = %d, want 2 and 1", headers, footers)
	}
}

func TestStampPresetDrawsBorderedText(t *testing.T) {
	doc := blankDoc(1)
	hist := &fakeHistory{}
	a := NewApplier(doc, hist)

	err := a.ApplyStamp(Stamp{Page: 0, Rect: geo.Rect{X: 100, Y: 100}, Text: "APPROVED"})
	if err != nil {
		t.Fatalf("ApplyStamp: %v", err)
	}
	if len(hist.labels) != 1 || hist.labels[0] != "apply stamp" {
		t.Fatalf("snapshots = %v", hist.labels)
	}
	// Border ink right at the stamp origin.
	if !hasInk(renderClip(t, doc, 0, geo.Rect{X: 100, Y: 100, W: 12, H: 12})) {
		t.Fatal("no border ink at the stamp origin")
	}
}

func TestSignaturePlacement(t *testing.T) {
	doc := blankDoc(1)
	a := NewApplier(doc, &fakeHistory{})
	path := writeTestPNG(t, 80, 40)

	if err := a.ApplySignature(Signature{Page: 0, ImagePath: path}); err != nil {
		t.Fatalf("ApplySignature: %v", err)
	}
	// 80x40 px at half scale lands 40x20 pt at (0.6*612, 0.8*792).
	at := geo.Rect{X: 367.2, Y: 633.6, W: 40, H: 20}
	if !hasInk(renderClip(t, doc, 0, at)) {
		t.Fatal("no ink at the signature anchor")
	}
	if hasInk(renderClip(t, doc, 0, geo.Rect{X: 100, Y: 100, W: 60, H: 60})) {
		t.Fatal("signature ink far from its anchor")
	}
}

func TestSignatureMissingFileFails(t *testing.T) {
	doc := blankDoc(1)
	hist := &fakeHistory{}
	a := NewApplier(doc, hist)
	err := a.ApplySignature(Signature{Page: 0, ImagePath: "/does/not/exist.png"})
	if err == nil {
		t.Fatal("missing signature file accepted")
	}
}

func TestInsertLinkAddsLinkAndMarker(t *testing.T) {
	doc := blankDoc(1)
	hist := &fakeHistory{}
	a := NewApplier(doc, hist)

	cfg := InsertLink{
		Page: 0,
		Rect: geo.Rect{X: 50, Y: 60, W: 120, H: 24},
		Kind: pdf.LinkURI,
		URI:  "https://example.net/doc",
	}
	if err := a.ApplyInsertLink(cfg); err != nil {
		t.Fatalf("ApplyInsertLink: %v", err)
	}

	links, err := doc.Links(0)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if len(links) != 1 || links[0].URI != cfg.URI || links[0].Rect != cfg.Rect {
		t.Fatalf("links = %+v", links)
	}

	annots, err := doc.Annotations(0)
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	if len(annots) != 1 {
		t.Fatalf("annotations = %d, want the marker square", len(annots))
	}
	m := annots[0]
	if m.Kind != pdf.AnnotSquare || m.Title != "link_border" {
		t.Fatalf("marker = %+v", m)
	}
	if m.Width != 0.8 || m.Opacity != 0.7 || len(m.Dashes) != 2 || m.Dashes[0] != 3 || m.Dashes[1] != 2 {
		t.Fatalf("marker style = %+v", m)
	}
}

func TestInsertLinkRejectsTinyRect(t *testing.T) {
	doc := blankDoc(1)
	hist := &fakeHistory{}
	a := NewApplier(doc, hist)

	err := a.ApplyInsertLink(InsertLink{Page: 0, Rect: geo.Rect{W: 4, H: 30}, Kind: pdf.LinkURI})
	if err == nil {
		t.Fatal("4 point wide link accepted")
	}
	if len(hist.labels) != 0 {
		t.Fatal("rejected link still pushed a snapshot")
	}
	if links, _ := doc.Links(0); len(links) != 0 {
		t.Fatal("rejected link was added")
	}
}

func TestSnapshotFailureAbortsOperation(t *testing.T) {
	doc := blankDoc(1)
	hist := &fakeHistory{err: errors.New("history full")}
	a := NewApplier(doc, hist)

	err := a.ApplyInsertLink(InsertLink{Page: 0, Rect: geo.Rect{X: 1, Y: 1, W: 50, H: 20}, Kind: pdf.LinkURI})
	if err == nil {
		t.Fatal("operation succeeded without a snapshot")
	}
	if links, _ := doc.Links(0); len(links) != 0 {
		t.Fatal("document mutated despite snapshot failure")
	}
}

func TestRotateRGBADimensions(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			src.SetRGBA(x, y, color.RGBA{0, 0, 200, 255})
		}
	}

	if got := rotateRGBA(src, 0); got != src {
		t.Fatal("zero rotation must return the source")
	}
	r90 := rotateRGBA(src, 90)
	if r90.Bounds().Dx() != 20 || r90.Bounds().Dy() != 40 {
		t.Fatalf("90 degree bounds = %v, want 20x40", r90.Bounds())
	}
	r45 := rotateRGBA(src, 45)
	sqrt2 := 1.4142135623730951
	want := int(0.5 + (40+20)/sqrt2)
	if d := r45.Bounds().Dx(); d < want-2 || d > want+2 {
		t.Fatalf("45 degree width = %d, want about %d", d, want)
	}
	// Content survives: the center pixel keeps its color.
	cx, cy := r90.Bounds().Dx()/2, r90.Bounds().Dy()/2
	if _, _, b, a := r90.At(cx, cy).RGBA(); b == 0 || a == 0 {
		t.Fatal("rotated center pixel lost its color")
	}
}
