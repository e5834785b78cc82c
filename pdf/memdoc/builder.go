package memdoc

import (
	"github.com/folium/pdfview/fonts"
	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf"
)

// Builder assembles a Document page by page. It is the fixture entry
// point for tests and demos:
//
//	doc := memdoc.NewBuilder().
//		Page(612, 792).
//		Paragraph(geo.Rect{X: 72, Y: 72, W: 468, H: 200}, "body text").
//		Finish().
//		Build()
type Builder struct {
	doc *Document
}

// NewBuilder returns an empty document builder.
func NewBuilder() *Builder {
	return &Builder{doc: &Document{measure: fonts.Default()}}
}

// Page appends a page of the given point size and returns its builder.
func (b *Builder) Page(w, h float64) *PageBuilder {
	b.doc.pages = append(b.doc.pages, &page{W: w, H: h})
	return &PageBuilder{b: b, idx: len(b.doc.pages) - 1}
}

// Build returns the assembled document.
func (b *Builder) Build() *Document { return b.doc }

// PageBuilder adds content to one page.
type PageBuilder struct {
	b   *Builder
	idx int
}

// Paragraph lays body text into r at 11pt with the default style.
func (p *PageBuilder) Paragraph(r geo.Rect, text string) *PageBuilder {
	return p.StyledParagraph(r, text, "helv", 11, pdf.Color{0, 0, 0, 1})
}

// StyledParagraph lays text into r, wrapping on measured widths. The
// rectangle is taken as given; fixtures are responsible for sizing it.
func (p *PageBuilder) StyledParagraph(r geo.Rect, text, fontName string, size float64, c pdf.Color) *PageBuilder {
	pg := p.b.doc.pages[p.idx]
	m := p.b.doc.measurer()
	lines := m.Wrap(text, size, r.W)
	pg.Runs = append(pg.Runs, pdf.TextRun{
		Rect:     r,
		Text:     text,
		FontName: fontName,
		FontSize: size,
		Color:    c,
		Page:     p.idx,
	})
	block := nextBlock(pg.Words)
	pg.Words = append(pg.Words, layoutWords(m, p.idx, block, r, lines, size)...)
	return p
}

// Link adds a link region to the page.
func (p *PageBuilder) Link(l pdf.Link) *PageBuilder {
	pg := p.b.doc.pages[p.idx]
	pg.Links = append(pg.Links, l)
	return p
}

// Annotation adds an annotation record to the page.
func (p *PageBuilder) Annotation(a pdf.Annot) *PageBuilder {
	pg := p.b.doc.pages[p.idx]
	pg.Annots = append(pg.Annots, a)
	return p
}

// Finish returns to the document builder.
func (p *PageBuilder) Finish() *Builder { return p.b }
