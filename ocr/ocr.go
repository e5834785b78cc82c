// Package ocr plugs third-party OCR engines into the viewer so pages
// without a text layer still support selection and search. The
// interfaces are small and transport-agnostic; engines can be backed
// by native libraries or remote services without leaking provider
// concerns into callers. Importing the tesseract subpackage registers
// it as the default engine.
package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatTIFF ImageFormat = "image/tiff"
)

// Region is a rectangular area in pixel coordinates with the origin
// in the upper-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input is a single rendered image submitted for recognition.
type Input struct {
	// ID is an optional caller identifier echoed back in the Result.
	ID string
	// Image is the encoded payload in the format given by Format.
	Image []byte
	// Format declares the image content type.
	Format ImageFormat
	// Page is the zero-based document page the image was rendered from.
	Page int
	// DPI is the resolution the image was rendered at. Engines use it
	// for layout heuristics and callers use it to scale results back
	// to page points; zero means unknown.
	DPI int
	// Languages holds language hints such as "eng" or "deu".
	Languages []string
	// Region restricts recognition to a subsection of the image. Nil
	// processes the full image.
	Region *Region
	// Metadata passes provider-specific knobs through without
	// hard-coding them into the API surface.
	Metadata map[string]string
}

// TextWord is a single recognized token with pixel bounds.
type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// TextLine groups words sharing a baseline.
type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

// TextBlock aggregates lines forming a paragraph or heading.
type TextBlock struct {
	Text       string
	Bounds     Region
	Lines      []TextLine
	Confidence float64
}

// Result carries the OCR output for one input image.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// PlainText is the linearized recognized text.
	PlainText string
	// Blocks carries the structured layout with positions.
	Blocks []TextBlock
	// Language is the dominant language detected, if known.
	Language string
}

// Engine is the provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine recognizes several images in one call so providers can
// amortize setup costs.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}
