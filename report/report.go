// Package report exports the annotations of an open document as an
// HTML or plain text summary. Note bodies are markdown; they render
// through goldmark with MathML support so embedded TeX math survives
// into the HTML report.
package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/folium/pdfview/observability"
	"github.com/folium/pdfview/pdf"
	"github.com/folium/pdfview/scene"
)

// Exporter writes annotation reports for one document and its scene.
type Exporter struct {
	doc   pdf.Document
	sc    *scene.Scene
	md    goldmark.Markdown
	log   observability.Logger
	title string
	now   func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger routes export warnings to log.
func WithLogger(log observability.Logger) Option {
	return func(e *Exporter) { e.log = log }
}

// WithTitle sets the document title shown in the report header.
func WithTitle(title string) Option {
	return func(e *Exporter) { e.title = title }
}

// WithClock overrides the generation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// NewExporter returns an exporter over doc and its scene.
func NewExporter(doc pdf.Document, sc *scene.Scene, opts ...Option) *Exporter {
	e := &Exporter{
		doc:   doc,
		sc:    sc,
		md:    goldmark.New(goldmark.WithExtensions(treeblood.MathML())),
		log:   observability.NopLogger{},
		title: "document",
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WriteHTML writes the full HTML report.
func (e *Exporter) WriteHTML(w io.Writer) error {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>Annotations: %s</title>\n", html.EscapeString(e.title))
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: sans-serif; margin: 2em; }\n")
	b.WriteString(".meta { color: #555; }\n")
	b.WriteString(".items li { margin: 0.2em 0; }\n")
	b.WriteString(".note { border-left: 3px solid #888; padding-left: 1em; margin: 1em 0; }\n")
	b.WriteString("</style>\n</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>Annotation report: %s</h1>\n", html.EscapeString(e.title))

	total := e.sc.Len()
	fmt.Fprintf(&b, "<p class=\"meta\">%d annotations across %d pages. Generated %s.</p>\n",
		total, e.doc.PageCount(), e.now().Format("2006-01-02 15:04"))
	if total == 0 {
		b.WriteString("<p>No annotations.</p>\n")
	}

	for page := 0; page < e.doc.PageCount(); page++ {
		items := e.sc.ItemsOn(page)
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "<h2>Page %d</h2>\n", page+1)

		var notes []*scene.Note
		var listed bool
		for _, it := range items {
			if n, ok := it.(*scene.Note); ok {
				notes = append(notes, n)
				continue
			}
			if !listed {
				b.WriteString("<ul class=\"items\">\n")
				listed = true
			}
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(describe(it)))
		}
		if listed {
			b.WriteString("</ul>\n")
		}
		for _, n := range notes {
			e.writeNote(&b, n)
		}
	}

	b.WriteString("</body>\n</html>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// writeNote renders one note body from markdown. A body that fails to
// convert falls back to escaped plain text.
func (e *Exporter) writeNote(b *strings.Builder, n *scene.Note) {
	author := n.Author
	if author == "" {
		author = "unknown"
	}
	b.WriteString("<div class=\"note\">\n")
	fmt.Fprintf(b, "<h3>Note by %s at (%.0f, %.0f)</h3>\n",
		html.EscapeString(author), n.At.X, n.At.Y)
	var body bytes.Buffer
	if err := e.md.Convert([]byte(n.Text), &body); err != nil {
		e.log.Warn("note markdown failed",
			observability.Error("err", err),
			observability.String("author", n.Author))
		fmt.Fprintf(b, "<p>%s</p>\n", html.EscapeString(n.Text))
	} else {
		b.Write(body.Bytes())
	}
	b.WriteString("</div>\n")
}

// WriteText writes the plain text report. It renders the HTML form and
// flattens it, so both outputs always agree.
func (e *Exporter) WriteText(w io.Writer) error {
	var buf bytes.Buffer
	if err := e.WriteHTML(&buf); err != nil {
		return err
	}
	doc, err := xhtml.Parse(&buf)
	if err != nil {
		return fmt.Errorf("report: parse own html: %w", err)
	}
	var b strings.Builder
	flatten(doc, &b)
	_, err = io.WriteString(w, b.String())
	return err
}

// flatten walks the HTML tree emitting headings, paragraphs and list
// items as text lines.
func flatten(n *xhtml.Node, b *strings.Builder) {
	if n.Type == xhtml.ElementNode {
		switch n.DataAtom {
		case atom.Head, atom.Style, atom.Script:
			return
		case atom.H1, atom.H2, atom.H3:
			b.WriteString(extractText(n))
			b.WriteString("\n\n")
			return
		case atom.P:
			if t := extractText(n); t != "" {
				b.WriteString(t)
				b.WriteString("\n")
			}
			return
		case atom.Li:
			b.WriteString("  - ")
			b.WriteString(extractText(n))
			b.WriteString("\n")
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		flatten(c, b)
	}
}

// extractText collects the text below a node, collapsing whitespace.
func extractText(n *xhtml.Node) string {
	var sb strings.Builder
	var f func(*xhtml.Node)
	f = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// describe renders one non-note item as a report line.
func describe(it scene.Item) string {
	b := scene.Bounds(it)
	pos := fmt.Sprintf("at (%.0f, %.0f), %.0fx%.0f pt", b.X, b.Y, b.W, b.H)
	switch v := it.(type) {
	case *scene.Ink:
		return fmt.Sprintf("ink stroke, %d points, %s", len(v.Points), pos)
	case *scene.Highlight:
		return fmt.Sprintf("highlight, %d segments, %s", len(v.Rects), pos)
	case *scene.TextBox:
		return fmt.Sprintf("text box %q, %s", excerpt(v.Text), pos)
	case *scene.ImageStamp:
		return "image stamp, " + pos
	default:
		return "annotation, " + pos
	}
}

// excerpt truncates long text box contents for the listing.
func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
