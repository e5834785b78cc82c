// Package pdf declares the document contract the viewer core consumes.
// The interfaces are intentionally small and backend-agnostic: parsing,
// content streams and annotation objects belong to the implementing
// library, not to this package. The memdoc sub-package provides the
// in-memory reference backend used by tests and demos.
package pdf

import (
	"context"
	"errors"
	"image"

	"github.com/folium/pdfview/geo"
)

// Coordinate convention: page coordinates are PDF points (1/72 inch)
// with the origin in the upper-left corner and Y growing downward,
// matching extraction output and raster space.

var (
	// ErrNotFound reports that a document path does not exist.
	ErrNotFound = errors.New("pdf: document not found")
	// ErrParse reports unreadable or corrupt document bytes.
	ErrParse = errors.New("pdf: cannot parse document")
	// ErrOverflow reports that inserted text does not fit its rectangle.
	ErrOverflow = errors.New("pdf: text does not fit rectangle")
	// ErrPageRange reports a page index outside the document.
	ErrPageRange = errors.New("pdf: page index out of range")
)

// Color is an RGBA color with components in [0, 1].
type Color [4]float64

// Word is a single extracted token with its page-point bounding box.
// Block, Line and WordNo index the token within the page's structure
// and define reading order when sorted lexicographically after Page.
type Word struct {
	Rect   geo.Rect
	Text   string
	Page   int
	Block  int
	Line   int
	WordNo int
}

// TextRun is a contiguous span of page text sharing one style. Runs are
// the unit the text editor materializes blocks from.
type TextRun struct {
	Rect     geo.Rect
	Text     string
	FontName string
	FontSize float64
	Color    Color
	Page     int
}

// LinkKind discriminates link actions.
type LinkKind int

const (
	LinkURI LinkKind = iota
	LinkGoTo
	LinkJavaScript
)

func (k LinkKind) String() string {
	switch k {
	case LinkURI:
		return "uri"
	case LinkGoTo:
		return "goto"
	case LinkJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// Link is a clickable region on a page. URI, Target and Script are
// populated according to Kind.
type Link struct {
	Rect   geo.Rect
	Kind   LinkKind
	URI    string
	Target int // destination page for LinkGoTo
	Script string
}

// AnnotKind discriminates annotation records.
type AnnotKind int

const (
	AnnotInk AnnotKind = iota
	AnnotHighlight
	AnnotSquare
	AnnotText
	AnnotFreeText
)

func (k AnnotKind) String() string {
	switch k {
	case AnnotInk:
		return "ink"
	case AnnotHighlight:
		return "highlight"
	case AnnotSquare:
		return "square"
	case AnnotText:
		return "text"
	case AnnotFreeText:
		return "freetext"
	default:
		return "unknown"
	}
}

// Annot is the flat annotation record exchanged with the backend.
// Vertices carries ink strokes, Quads highlight regions; both are nil
// for other kinds.
type Annot struct {
	Kind     AnnotKind
	Rect     geo.Rect
	Contents string
	Author   string
	Title    string
	Color    Color
	Width    float64
	Opacity  float64
	Dashes   []float64
	FontSize float64
	Vertices [][]geo.Point
	Quads    []geo.Rect
}

// Document is the page-level contract the viewer renders and mutates
// through. Implementations need not be safe for concurrent use: the
// scheduler serializes render calls, and all mutation happens on the
// owner goroutine.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int
	// PageSize returns the page's width and height in points.
	PageSize(page int) (w, h float64, err error)

	// RenderRegion rasterizes the clip rectangle (page points) of a page
	// into an RGB image of the given pixel size.
	RenderRegion(ctx context.Context, page int, clip geo.Rect, pxW, pxH int) (*image.RGBA, error)

	// Words returns the page's extracted words in reading order.
	Words(page int) ([]Word, error)
	// TextRuns returns the page's styled text runs.
	TextRuns(page int) ([]TextRun, error)

	// Links returns the page's link regions.
	Links(page int) ([]Link, error)
	// AddLink adds a link region to the page.
	AddLink(page int, l Link) error

	// Annotations returns the page's annotation records.
	Annotations(page int) ([]Annot, error)
	// AddAnnotation appends an annotation to the page.
	AddAnnotation(page int, a Annot) error
	// DeleteAnnotation removes the i-th annotation of the page.
	DeleteAnnotation(page, i int) error

	// RedactRegion removes page content intersecting the rectangle.
	RedactRegion(page int, r geo.Rect) error
	// InsertText places text inside the rectangle. It returns
	// ErrOverflow when the text cannot fit at the given size.
	InsertText(page int, r geo.Rect, text, fontName string, fontSize float64, c Color) error
	// InsertImage draws the image file into the rectangle.
	InsertImage(page int, r geo.Rect, imagePath string) error
	// InsertImageBytes draws an encoded image into the rectangle.
	InsertImageBytes(page int, r geo.Rect, data []byte) error

	// Serialize returns the full document state as bytes.
	Serialize() ([]byte, error)
	// Save writes the document to path.
	Save(path string) error
}

// Opener constructs documents from a path or from serialized bytes.
// The viewer holds one to reopen documents during snapshot undo.
type Opener interface {
	Open(path string) (Document, error)
	Deserialize(data []byte) (Document, error)
}
