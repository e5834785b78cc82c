// Package burnin applies permanent page decorations: watermarks, page
// numbers, headers and footers, stamps, signatures and link regions.
// Every operation pushes one document snapshot before mutating, so a
// top-level undo restores the pre-operation state byte for byte;
// there is no content-stream inverse. Text that needs rotation or
// opacity is rasterized offscreen and burned in as an image, keeping
// the document contract free of transform parameters.
package burnin

import (
	"fmt"
	"strings"
	"time"

	"github.com/folium/pdfview/fonts"
	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/observability"
	"github.com/folium/pdfview/pdf"
)

// Layout constants shared by the operations, in page points.
const (
	// PageNumberMargin is the default distance from the bottom edge.
	PageNumberMargin = 36.0
	// HeaderFooterMargin is the default distance from the page edges.
	HeaderFooterMargin = 28.0
	// StampPad is the padding between stamp text and its border.
	StampPad = 8.0
	// StampBorderWidth is the stamp border stroke width.
	StampBorderWidth = 2.5
	// StampOpacity is the default stamp opacity.
	StampOpacity = 0.85
	// SignatureScale shrinks a signature image relative to its pixel size.
	SignatureScale = 0.5
	// MinLinkEdge is the smallest accepted link rectangle edge.
	MinLinkEdge = 5.0
	// watermarkMaxFrac bounds an image watermark to this page fraction.
	watermarkMaxFrac = 0.9
	// watermarkMarginFrac keeps image watermarks off the page edges.
	watermarkMarginFrac = 0.05
)

// pageNumberGrey is the fixed page number color.
var pageNumberGrey = pdf.Color{0.3, 0.3, 0.3, 1}

// History receives the snapshot each operation pushes before
// mutating.
type History interface {
	PushSnapshot(label string) error
}

// Watermark configures a diagonal text or image watermark on every
// page. PosX and PosY are fractions of the page size; the presets the
// UI offers are 0.25/0.5/0.75 horizontally and 0.2/0.5/0.8
// vertically. ImagePath switches to image mode.
type Watermark struct {
	Text       string
	FontSize   float64
	Color      pdf.Color
	Opacity    float64
	RotateDeg  float64
	PosX       float64
	PosY       float64
	ImagePath  string
	ImageScale float64
}

// PageNumbers configures bottom-centered page numbers. Format
// understands {n} and {total}; Start is the number of the first page.
type PageNumbers struct {
	Format    string
	Start     int
	Margin    float64
	FontSize  float64
	SkipFirst bool
}

// HeaderFooter configures the six text slots: header left, center,
// right, then footer left, center, right. Slots understand {page},
// {total} and {date}; empty slots are skipped.
type HeaderFooter struct {
	Slots    [6]string
	FontSize float64
	Margin   float64
}

// Stamp places a preset text stamp with a border, or an image when
// ImagePath is set, into Rect of one page.
type Stamp struct {
	Page      int
	Rect      geo.Rect
	Text      string
	Color     pdf.Color
	FontSize  float64
	RotateDeg float64
	Opacity   float64
	ImagePath string
}

// Signature places a signature image at the conventional position
// near the bottom right of one page.
type Signature struct {
	Page      int
	ImagePath string
}

// InsertLink adds a clickable region plus the dashed marker square
// that makes the region visible.
type InsertLink struct {
	Page   int
	Rect   geo.Rect
	Kind   pdf.LinkKind
	URI    string
	Target int
}

// Applier runs burn-in operations against one document. It is not
// safe for concurrent use.
type Applier struct {
	doc        pdf.Document
	hist       History
	measure    *fonts.Measurer
	log        observability.Logger
	invalidate func()
	now        func() time.Time
}

// Option configures an Applier.
type Option func(*Applier)

// WithLogger routes burn-in events to log.
func WithLogger(log observability.Logger) Option {
	return func(a *Applier) { a.log = log }
}

// WithInvalidate registers the callback fired after each successful
// operation so the owner drops rendered tiles.
func WithInvalidate(f func()) Option {
	return func(a *Applier) { a.invalidate = f }
}

// WithClock overrides the {date} substitution source.
func WithClock(now func() time.Time) Option {
	return func(a *Applier) { a.now = now }
}

// NewApplier returns an applier over doc pushing snapshots to hist.
func NewApplier(doc pdf.Document, hist History, opts ...Option) *Applier {
	a := &Applier{
		doc:     doc,
		hist:    hist,
		measure: fonts.Default(),
		log:     observability.NopLogger{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// run wraps one operation with its snapshot, invalidation and timing.
func (a *Applier) run(label string, op func() error) error {
	start := time.Now()
	if err := a.hist.PushSnapshot(label); err != nil {
		return err
	}
	if err := op(); err != nil {
		return fmt.Errorf("burnin: %s: %w", label, err)
	}
	if a.invalidate != nil {
		a.invalidate()
	}
	a.log.Info(label,
		observability.Float64(observability.MetricBurnInTime, time.Since(start).Seconds()))
	return nil
}

// ApplyWatermark burns the watermark onto every page.
func (a *Applier) ApplyWatermark(cfg Watermark) error {
	if cfg.PosX == 0 {
		cfg.PosX = 0.5
	}
	if cfg.PosY == 0 {
		cfg.PosY = 0.5
	}
	if cfg.Opacity == 0 {
		cfg.Opacity = 0.35
	}
	if cfg.FontSize == 0 {
		cfg.FontSize = 48
	}
	if cfg.ImageScale == 0 {
		cfg.ImageScale = 1
	}
	return a.run("apply watermark", func() error {
		if cfg.ImagePath != "" {
			return a.imageWatermark(cfg)
		}
		if strings.TrimSpace(cfg.Text) == "" {
			return fmt.Errorf("empty watermark text")
		}
		return a.textWatermark(cfg)
	})
}

func (a *Applier) textWatermark(cfg Watermark) error {
	png, wPt, hPt, err := renderRotatedText(a.measure, cfg.Text, cfg.FontSize, cfg.Color, cfg.Opacity, cfg.RotateDeg)
	if err != nil {
		return err
	}
	for page := 0; page < a.doc.PageCount(); page++ {
		pw, ph, err := a.doc.PageSize(page)
		if err != nil {
			return err
		}
		r := geo.Rect{
			X: pw*cfg.PosX - wPt/2,
			Y: ph*cfg.PosY - hPt/2,
			W: wPt,
			H: hPt,
		}
		if err := a.doc.InsertImageBytes(page, r, png); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) imageWatermark(cfg Watermark) error {
	png, wPt, hPt, err := loadImage(cfg.ImagePath, cfg.ImageScale)
	if err != nil {
		return err
	}
	for page := 0; page < a.doc.PageCount(); page++ {
		pw, ph, err := a.doc.PageSize(page)
		if err != nil {
			return err
		}
		w, h := clampToPage(wPt, hPt, pw, ph)
		r := geo.Rect{X: pw*cfg.PosX - w/2, Y: ph*cfg.PosY - h/2, W: w, H: h}
		r = keepOnPage(r, pw, ph)
		if err := a.doc.InsertImageBytes(page, r, png); err != nil {
			return err
		}
	}
	return nil
}

// clampToPage fits (w, h) into watermarkMaxFrac of the page,
// preserving aspect ratio.
func clampToPage(w, h, pw, ph float64) (float64, float64) {
	maxW, maxH := pw*watermarkMaxFrac, ph*watermarkMaxFrac
	scale := 1.0
	if w > maxW {
		scale = maxW / w
	}
	if s := maxH / h; h*scale > maxH && s < scale {
		scale = s
	}
	return w * scale, h * scale
}

// keepOnPage shifts r inside the page margins without resizing.
func keepOnPage(r geo.Rect, pw, ph float64) geo.Rect {
	mx, my := pw*watermarkMarginFrac, ph*watermarkMarginFrac
	if r.X < mx {
		r.X = mx
	}
	if r.Y < my {
		r.Y = my
	}
	if r.Right() > pw-mx {
		r.X = pw - mx - r.W
	}
	if r.Bottom() > ph-my {
		r.Y = ph - my - r.H
	}
	return r
}

// ApplyPageNumbers burns a number line onto the bottom of every page.
func (a *Applier) ApplyPageNumbers(cfg PageNumbers) error {
	if cfg.Format == "" {
		cfg.Format = "{n}"
	}
	if cfg.Margin == 0 {
		cfg.Margin = PageNumberMargin
	}
	if cfg.FontSize == 0 {
		cfg.FontSize = 10
	}
	if cfg.Start == 0 {
		cfg.Start = 1
	}
	return a.run("apply page numbers", func() error {
		total := a.doc.PageCount()
		for page := 0; page < total; page++ {
			if cfg.SkipFirst && page == 0 {
				continue
			}
			label := strings.NewReplacer(
				"{n}", fmt.Sprint(cfg.Start+page),
				"{total}", fmt.Sprint(total),
			).Replace(cfg.Format)
			if err := a.insertLine(page, label, cfg.FontSize, pageNumberGrey, slotCenter, false, cfg.Margin); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyHeaderFooter burns the configured slots onto every page.
func (a *Applier) ApplyHeaderFooter(cfg HeaderFooter) error {
	if cfg.FontSize == 0 {
		cfg.FontSize = 9
	}
	if cfg.Margin == 0 {
		cfg.Margin = HeaderFooterMargin
	}
	return a.run("apply header and footer", func() error {
		total := a.doc.PageCount()
		date := a.now().Format("2006-01-02")
		for page := 0; page < total; page++ {
			for slot, tmpl := range cfg.Slots {
				if strings.TrimSpace(tmpl) == "" {
					continue
				}
				text := strings.NewReplacer(
					"{page}", fmt.Sprint(page+1),
					"{total}", fmt.Sprint(total),
					"{date}", date,
				).Replace(tmpl)
				align := slot % 3
				header := slot < 3
				if err := a.insertLine(page, text, cfg.FontSize, pdf.Color{0, 0, 0, 1}, align, header, cfg.Margin); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

const (
	slotLeft = iota
	slotCenter
	slotRight
)

// insertLine places one line of text at a horizontal alignment, along
// the top (header) or bottom edge.
func (a *Applier) insertLine(page int, text string, size float64, c pdf.Color, align int, header bool, margin float64) error {
	pw, ph, err := a.doc.PageSize(page)
	if err != nil {
		return err
	}
	w := a.measure.Width(text, size) + 2
	h := a.measure.LineHeight(size)
	var x float64
	switch align {
	case slotLeft:
		x = margin
	case slotRight:
		x = pw - margin - w
	default:
		x = (pw - w) / 2
	}
	y := ph - margin - h
	if header {
		y = margin
	}
	return a.doc.InsertText(page, geo.Rect{X: x, Y: y, W: w, H: h}, text, "helv", size, c)
}

// ApplyStamp burns a stamp onto one page.
func (a *Applier) ApplyStamp(cfg Stamp) error {
	if cfg.Opacity == 0 {
		cfg.Opacity = StampOpacity
	}
	if cfg.FontSize == 0 {
		cfg.FontSize = 24
	}
	if cfg.Color == (pdf.Color{}) {
		cfg.Color = pdf.Color{0.8, 0.1, 0.1, 1}
	}
	return a.run("apply stamp", func() error {
		if cfg.ImagePath != "" {
			png, wPt, hPt, err := loadImage(cfg.ImagePath, 1)
			if err != nil {
				return err
			}
			r := cfg.Rect
			if r.Empty() {
				r.W, r.H = wPt, hPt
			}
			return a.doc.InsertImageBytes(cfg.Page, r, png)
		}
		if strings.TrimSpace(cfg.Text) == "" {
			return fmt.Errorf("empty stamp text")
		}
		png, wPt, hPt, err := renderStamp(a.measure, cfg.Text, cfg.FontSize, cfg.Color, cfg.Opacity, cfg.RotateDeg)
		if err != nil {
			return err
		}
		r := cfg.Rect
		if r.Empty() {
			r.W, r.H = wPt, hPt
		}
		return a.doc.InsertImageBytes(cfg.Page, r, png)
	})
}

// ApplySignature burns a signature image at half scale, anchored at
// 60% of the width and 80% of the height.
func (a *Applier) ApplySignature(cfg Signature) error {
	return a.run("apply signature", func() error {
		png, wPt, hPt, err := loadImage(cfg.ImagePath, SignatureScale)
		if err != nil {
			return err
		}
		pw, ph, err := a.doc.PageSize(cfg.Page)
		if err != nil {
			return err
		}
		r := keepOnPage(geo.Rect{X: pw * 0.6, Y: ph * 0.8, W: wPt, H: hPt}, pw, ph)
		return a.doc.InsertImageBytes(cfg.Page, r, png)
	})
}

// ApplyInsertLink adds the link and its dashed marker square.
func (a *Applier) ApplyInsertLink(cfg InsertLink) error {
	if cfg.Rect.W < MinLinkEdge || cfg.Rect.H < MinLinkEdge {
		return fmt.Errorf("burnin: link rectangle %v below the %g point minimum", cfg.Rect, MinLinkEdge)
	}
	return a.run("insert link", func() error {
		link := pdf.Link{Rect: cfg.Rect, Kind: cfg.Kind, URI: cfg.URI, Target: cfg.Target}
		if err := a.doc.AddLink(cfg.Page, link); err != nil {
			return err
		}
		return a.doc.AddAnnotation(cfg.Page, pdf.Annot{
			Kind:    pdf.AnnotSquare,
			Rect:    cfg.Rect,
			Title:   "link_border",
			Color:   pdf.Color{0, 0.4, 0.9, 1},
			Width:   0.8,
			Dashes:  []float64{3, 2},
			Opacity: 0.7,
		})
	})
}
