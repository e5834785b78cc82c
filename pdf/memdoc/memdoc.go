// Package memdoc is the in-memory reference backend for pdf.Document.
// Pages hold styled text runs, derived word boxes, links, annotations
// and inserted images; rendering paints a deterministic raster so the
// tiling and selection machinery can be exercised without a PDF
// engine. Real rasterizing backends implement the same interface.
package memdoc

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"strings"
	"sync"

	"github.com/folium/pdfview/fonts"
	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf"
)

type page struct {
	W, H       float64
	Runs       []pdf.TextRun
	Words      []pdf.Word
	Links      []pdf.Link
	Annots     []pdf.Annot
	Images     []placedImage
	Redactions []geo.Rect
}

type placedImage struct {
	Rect geo.Rect
	PNG  []byte
}

// Document implements pdf.Document over in-memory pages. All methods
// are safe for the one-renderer/one-mutator access pattern the viewer
// uses; an internal lock guards against the render worker observing a
// burn-in mid-write.
type Document struct {
	mu      sync.RWMutex
	pages   []*page
	measure *fonts.Measurer
}

var _ pdf.Document = (*Document)(nil)

func (d *Document) PageCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.pages)
}

func (d *Document) PageSize(pageIdx int) (float64, float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return 0, 0, err
	}
	return p.W, p.H, nil
}

func (d *Document) pageAt(i int) (*page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("page %d of %d: %w", i, len(d.pages), pdf.ErrPageRange)
	}
	return d.pages[i], nil
}

func (d *Document) Words(pageIdx int) ([]pdf.Word, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return nil, err
	}
	out := make([]pdf.Word, len(p.Words))
	copy(out, p.Words)
	return out, nil
}

func (d *Document) TextRuns(pageIdx int) ([]pdf.TextRun, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return nil, err
	}
	out := make([]pdf.TextRun, len(p.Runs))
	copy(out, p.Runs)
	return out, nil
}

func (d *Document) Links(pageIdx int) ([]pdf.Link, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return nil, err
	}
	out := make([]pdf.Link, len(p.Links))
	copy(out, p.Links)
	return out, nil
}

func (d *Document) AddLink(pageIdx int, l pdf.Link) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return err
	}
	p.Links = append(p.Links, l)
	return nil
}

func (d *Document) Annotations(pageIdx int) ([]pdf.Annot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return nil, err
	}
	out := make([]pdf.Annot, len(p.Annots))
	copy(out, p.Annots)
	return out, nil
}

func (d *Document) AddAnnotation(pageIdx int, a pdf.Annot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return err
	}
	p.Annots = append(p.Annots, a)
	return nil
}

func (d *Document) DeleteAnnotation(pageIdx, i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(p.Annots) {
		return fmt.Errorf("annotation %d of %d on page %d: %w", i, len(p.Annots), pageIdx, pdf.ErrPageRange)
	}
	p.Annots = append(p.Annots[:i], p.Annots[i+1:]...)
	return nil
}

// RedactRegion removes every word and run touching r and records the
// region so rendering paints it out.
func (d *Document) RedactRegion(pageIdx int, r geo.Rect) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return err
	}
	kept := p.Words[:0]
	for _, w := range p.Words {
		if !w.Rect.Intersects(r) {
			kept = append(kept, w)
		}
	}
	p.Words = kept
	keptRuns := p.Runs[:0]
	for _, run := range p.Runs {
		if !run.Rect.Intersects(r) {
			keptRuns = append(keptRuns, run)
		}
	}
	p.Runs = keptRuns
	p.Redactions = append(p.Redactions, r)
	return nil
}

// InsertText lays text into r at the given size, wrapping on measured
// widths. It fails with pdf.ErrOverflow when the wrapped lines exceed
// the rectangle height, leaving the page unchanged.
func (d *Document) InsertText(pageIdx int, r geo.Rect, text, fontName string, fontSize float64, c pdf.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return err
	}
	m := d.measurer()
	lines := m.Wrap(text, fontSize, r.W)
	needed := float64(len(lines)) * m.LineHeight(fontSize)
	if needed > r.H {
		return fmt.Errorf("%d lines at %.1fpt need %.1fpt in %.1fpt: %w",
			len(lines), fontSize, needed, r.H, pdf.ErrOverflow)
	}
	run := pdf.TextRun{
		Rect:     r,
		Text:     text,
		FontName: fontName,
		FontSize: fontSize,
		Color:    c,
		Page:     pageIdx,
	}
	p.Runs = append(p.Runs, run)
	block := nextBlock(p.Words)
	p.Words = append(p.Words, layoutWords(m, pageIdx, block, r, lines, fontSize)...)
	return nil
}

func (d *Document) measurer() *fonts.Measurer {
	if d.measure == nil {
		d.measure = fonts.Default()
	}
	return d.measure
}

func nextBlock(words []pdf.Word) int {
	next := 0
	for _, w := range words {
		if w.Block >= next {
			next = w.Block + 1
		}
	}
	return next
}

// layoutWords places each word of the wrapped lines, advancing by
// measured widths plus one space width.
func layoutWords(m *fonts.Measurer, pageIdx, block int, r geo.Rect, lines []string, size float64) []pdf.Word {
	var out []pdf.Word
	lineH := m.LineHeight(size)
	space := m.Width(" ", size)
	y := r.Y
	for lineNo, line := range lines {
		x := r.X
		wordNo := 0
		for _, token := range strings.Fields(line) {
			w := m.Width(token, size)
			out = append(out, pdf.Word{
				Rect:   geo.Rect{X: x, Y: y, W: w, H: lineH},
				Text:   token,
				Page:   pageIdx,
				Block:  block,
				Line:   lineNo,
				WordNo: wordNo,
			})
			x += w + space
			wordNo++
		}
		y += lineH
	}
	return out
}

// InsertImage loads the file at imagePath and places it into r.
func (d *Document) InsertImage(pageIdx int, r geo.Rect, imagePath string) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image %s: %w", imagePath, err)
	}
	return d.InsertImageBytes(pageIdx, r, data)
}

// InsertImageBytes places an encoded image into r. The payload must
// decode with the standard image codecs.
func (d *Document) InsertImageBytes(pageIdx int, r geo.Rect, data []byte) error {
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return err
	}
	p.Images = append(p.Images, placedImage{Rect: r, PNG: append([]byte(nil), data...)})
	return nil
}
