package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"math"
	"strings"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf"
)

const (
	// DefaultDPI is the render resolution for recognition input.
	DefaultDPI = 300
	// MinWordConfidence drops recognized words below this confidence
	// when mapping results back to page words.
	MinWordConfidence = 0.3
)

// InputOption mutates an OCR input built from a document page.
type InputOption func(*Input)

// WithLanguages sets language hints on the input.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithRegion restricts recognition to a pixel region of the input.
func WithRegion(region Region) InputOption {
	return func(in *Input) {
		if region.IsEmpty() {
			in.Region = nil
			return
		}
		in.Region = &region
	}
}

// WithDPI overrides the render resolution.
func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithMetadata sets provider-specific metadata on the input.
func WithMetadata(metadata map[string]string) InputOption {
	return func(in *Input) {
		if len(metadata) == 0 {
			in.Metadata = nil
			return
		}
		in.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			in.Metadata[k] = v
		}
	}
}

// InputFromPage renders one document page to PNG at the input DPI and
// wraps it as an OCR input. The generated ID is stable per page so
// results correlate with their source.
func InputFromPage(ctx context.Context, doc pdf.Document, page int, opts ...InputOption) (Input, error) {
	in := Input{
		ID:     fmt.Sprintf("page-%d", page),
		Format: ImageFormatPNG,
		Page:   page,
		DPI:    DefaultDPI,
	}
	for _, opt := range opts {
		opt(&in)
	}
	if in.DPI <= 0 {
		in.DPI = DefaultDPI
	}
	pw, ph, err := doc.PageSize(page)
	if err != nil {
		return Input{}, fmt.Errorf("ocr: page size: %w", err)
	}
	scale := float64(in.DPI) / 72.0
	pxW := int(math.Round(pw * scale))
	pxH := int(math.Round(ph * scale))
	img, err := doc.RenderRegion(ctx, page, geo.Rect{W: pw, H: ph}, pxW, pxH)
	if err != nil {
		return Input{}, fmt.Errorf("ocr: render page %d: %w", page, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Input{}, fmt.Errorf("ocr: encode page %d: %w", page, err)
	}
	in.Image = buf.Bytes()
	return in, nil
}

// WordsFromPage recognizes one page and maps the result onto page
// words in point coordinates, preserving the block, line and word
// order the engine reported. Empty tokens and words under
// MinWordConfidence are dropped. It is the selection fallback for
// pages without a text layer.
func WordsFromPage(ctx context.Context, doc pdf.Document, engine Engine, page int, opts ...InputOption) ([]pdf.Word, error) {
	in, err := InputFromPage(ctx, doc, page, opts...)
	if err != nil {
		return nil, err
	}
	res, err := engine.Recognize(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("ocr: recognize page %d: %w", page, err)
	}
	return resultWords(res, page, in.DPI), nil
}

// resultWords flattens a result into page words, scaling pixel bounds
// back to points.
func resultWords(res Result, page, dpi int) []pdf.Word {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	ptPerPx := 72.0 / float64(dpi)
	var words []pdf.Word
	for bi, block := range res.Blocks {
		for li, line := range block.Lines {
			n := 0
			for _, w := range line.Words {
				if strings.TrimSpace(w.Text) == "" || w.Confidence < MinWordConfidence {
					continue
				}
				words = append(words, pdf.Word{
					Rect: geo.Rect{
						X: w.Bounds.X * ptPerPx,
						Y: w.Bounds.Y * ptPerPx,
						W: w.Bounds.Width * ptPerPx,
						H: w.Bounds.Height * ptPerPx,
					},
					Text:   w.Text,
					Page:   page,
					Block:  bi,
					Line:   li,
					WordNo: n,
				})
				n++
			}
		}
	}
	return words
}
