// Package selection maps pointer positions to extracted words and
// turns drag ranges into highlight rectangles and clipboard text.
// Words are indexed in scene space so hit testing needs no per-event
// coordinate conversion, and in reading order so a range between two
// hits is a simple index interval.
package selection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"golang.org/x/text/unicode/norm"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/layout"
	"github.com/folium/pdfview/observability"
	"github.com/folium/pdfview/pdf"
)

// clipboardWrite is swapped out by tests; headless environments have
// no system clipboard.
var clipboardWrite = clipboard.WriteAll

// Word is an indexed word: the extraction record plus its rectangle
// in scene space.
type Word struct {
	pdf.Word
	SceneRect geo.Rect
}

// Fallback produces words for a page whose extraction came back
// empty, typically by running OCR over a page render.
type Fallback func(page int) ([]pdf.Word, error)

// Index is the document-wide word list in reading order. It is not
// safe for concurrent use.
type Index struct {
	words    []Word
	log      observability.Logger
	fallback Fallback
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithLogger routes index events to log.
func WithLogger(log observability.Logger) IndexOption {
	return func(x *Index) { x.log = log }
}

// WithFallback recognizes words on pages with no extractable text.
func WithFallback(f Fallback) IndexOption {
	return func(x *Index) { x.fallback = f }
}

// NewIndex returns an empty index.
func NewIndex(opts ...IndexOption) *Index {
	x := &Index{log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Rebuild re-reads every page's words and projects them into scene
// space using table. Pages without extractable text go through the
// fallback when one is set; a fallback failure leaves the page empty
// rather than failing the rebuild.
func (x *Index) Rebuild(doc pdf.Document, table *layout.Table) error {
	var words []Word
	for page := 0; page < doc.PageCount(); page++ {
		ws, err := doc.Words(page)
		if err != nil {
			return fmt.Errorf("selection: words of page %d: %w", page, err)
		}
		if len(ws) == 0 && x.fallback != nil {
			ws, err = x.fallback(page)
			if err != nil {
				x.log.Warn("text fallback failed",
					observability.Int("page", page),
					observability.Error("err", err))
				ws = nil
			}
		}
		for _, w := range ws {
			words = append(words, Word{Word: w, SceneRect: table.PageRectToScene(page, w.Rect)})
		}
	}
	sort.SliceStable(words, func(i, j int) bool {
		a, b := words[i], words[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Block != b.Block {
			return a.Block < b.Block
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.WordNo < b.WordNo
	})
	x.words = words
	return nil
}

// Len reports the number of indexed words.
func (x *Index) Len() int { return len(x.words) }

// Word returns the i-th word in reading order.
func (x *Index) Word(i int) Word { return x.words[i] }

// NearestWord returns the index of the word whose center is closest
// to the scene point. It reports false on an empty index. The scan is
// linear over the whole document; even large documents stay well
// under interactive latency.
func (x *Index) NearestWord(pt geo.Point) (int, bool) {
	if len(x.words) == 0 {
		return 0, false
	}
	best, bestDist := 0, pt.DistSq(x.words[0].SceneRect.Center())
	for i := 1; i < len(x.words); i++ {
		if d := pt.DistSq(x.words[i].SceneRect.Center()); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, true
}

// Range returns the inclusive reading-order interval between two word
// indices, in either order. Indices are clamped to the index bounds.
func (x *Index) Range(a, b int) []Word {
	if len(x.words) == 0 {
		return nil
	}
	if a > b {
		a, b = b, a
	}
	if a < 0 {
		a = 0
	}
	if b >= len(x.words) {
		b = len(x.words) - 1
	}
	out := make([]Word, b-a+1)
	copy(out, x.words[a:b+1])
	return out
}

// Text joins words into selectable text: a space between words of the
// same line, a newline at every line, block or page boundary. The
// result is NFC-normalized.
func Text(words []Word) string {
	if len(words) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, w := range words {
		if i > 0 {
			prev := words[i-1]
			if prev.Page != w.Page || prev.Block != w.Block || prev.Line != w.Line {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(w.Text)
	}
	return norm.NFC.String(sb.String())
}

// MergeLines collapses a reading-ordered word range into one scene
// rectangle per visual line. A word joins the current line while its
// center stays within half the average word height of the line's
// first rectangle center; page boundaries always break.
func MergeLines(words []Word) []geo.Rect {
	if len(words) == 0 {
		return nil
	}
	avg := 0.0
	for _, w := range words {
		avg += w.SceneRect.H
	}
	avg /= float64(len(words))
	tol := avg / 2

	var out []geo.Rect
	cur := words[0].SceneRect
	first := cur.Center()
	page := words[0].Page
	for _, w := range words[1:] {
		c := w.SceneRect.Center()
		if w.Page != page || absDiff(c.Y, first.Y) > tol {
			out = append(out, cur)
			cur = w.SceneRect
			first = c
			page = w.Page
			continue
		}
		cur = cur.Union(w.SceneRect)
	}
	return append(out, cur)
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Selection is one anchor-to-focus drag over an index.
type Selection struct {
	index  *Index
	anchor int
	focus  int
	active bool
}

// NewSelection returns an inactive selection over x.
func NewSelection(x *Index) *Selection {
	return &Selection{index: x}
}

// Start anchors the selection at the word nearest the scene point.
// It reports false when the index holds no words.
func (s *Selection) Start(pt geo.Point) bool {
	i, ok := s.index.NearestWord(pt)
	if !ok {
		return false
	}
	s.anchor, s.focus = i, i
	s.active = true
	return true
}

// Extend moves the focus end to the word nearest the scene point.
func (s *Selection) Extend(pt geo.Point) {
	if !s.active {
		return
	}
	if i, ok := s.index.NearestWord(pt); ok {
		s.focus = i
	}
}

// Clear deactivates the selection.
func (s *Selection) Clear() { s.active = false }

// Active reports whether a selection is in progress or finished but
// not cleared.
func (s *Selection) Active() bool { return s.active }

// Words returns the selected words in reading order.
func (s *Selection) Words() []Word {
	if !s.active {
		return nil
	}
	return s.index.Range(s.anchor, s.focus)
}

// Rects returns one scene rectangle per selected visual line.
func (s *Selection) Rects() []geo.Rect { return MergeLines(s.Words()) }

// Text returns the selected text.
func (s *Selection) Text() string { return Text(s.Words()) }

// Copy places the selected text on the system clipboard. An empty
// selection is a no-op.
func (s *Selection) Copy() error {
	text := s.Text()
	if text == "" {
		return nil
	}
	if err := clipboardWrite(text); err != nil {
		return fmt.Errorf("selection: clipboard write: %w", err)
	}
	return nil
}
