package memdoc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/draw"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/folium/pdfview/fonts"
	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf"
)

var (
	pageBackground = color.RGBA{255, 255, 255, 255}
	pageBorder     = color.RGBA{160, 160, 160, 255}
	wordFill       = color.RGBA{228, 228, 228, 255}
	glyphColor     = color.RGBA{40, 40, 40, 255}
)

// markerSizePt is the side of the page identity square painted at the
// top-left corner so tests can tell pages apart by pixels.
const markerSizePt = 12.0

// PageTint returns the deterministic marker color for a page index.
func PageTint(pageIdx int) color.RGBA {
	return color.RGBA{
		R: uint8(40 + (pageIdx*67)%180),
		G: uint8(40 + (pageIdx*131)%180),
		B: uint8(40 + (pageIdx*29)%180),
		A: 255,
	}
}

// RenderRegion rasterizes the clip rectangle of a page into an RGB
// image of pxW x pxH pixels: white background, a border along page
// edges, the page marker, word boxes with their glyphs, inserted
// images, and redaction white-out. Annotations are not rendered, the
// scene draws those as overlays.
func (d *Document) RenderRegion(ctx context.Context, pageIdx int, clip geo.Rect, pxW, pxH int) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pxW <= 0 || pxH <= 0 {
		return nil, fmt.Errorf("target %dx%d: %w", pxW, pxH, pdf.ErrPageRange)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, err := d.pageAt(pageIdx)
	if err != nil {
		return nil, err
	}
	pageRect := geo.Rect{W: p.W, H: p.H}
	clip = clip.Intersect(pageRect)
	if clip.Empty() {
		clip = pageRect
	}

	img := image.NewRGBA(image.Rect(0, 0, pxW, pxH))
	draw.Draw(img, img.Bounds(), image.NewUniform(pageBackground), image.Point{}, draw.Src)

	sx := float64(pxW) / clip.W
	sy := float64(pxH) / clip.H
	toPx := func(r geo.Rect) image.Rectangle {
		return image.Rect(
			int(math.Floor((r.X-clip.X)*sx)),
			int(math.Floor((r.Y-clip.Y)*sy)),
			int(math.Ceil((r.Right()-clip.X)*sx)),
			int(math.Ceil((r.Bottom()-clip.Y)*sy)),
		)
	}

	drawBorder(img, toPx(pageRect))
	fillRect(img, toPx(geo.Rect{X: 4, Y: 4, W: markerSizePt, H: markerSizePt}), PageTint(pageIdx))

	for _, w := range p.Words {
		fillRect(img, toPx(w.Rect), wordFill)
	}
	d.drawGlyphs(img, p, clip, sx, sy)

	for _, pi := range p.Images {
		drawPlacedImage(img, toPx(pi.Rect), pi.PNG)
	}
	for _, r := range p.Redactions {
		fillRect(img, toPx(r), pageBackground)
	}
	return img, nil
}

func (d *Document) drawGlyphs(img *image.RGBA, p *page, clip geo.Rect, sx, sy float64) {
	faces := map[int]xfont.Face{}
	defer func() {
		for _, f := range faces {
			f.Close()
		}
	}()
	for _, w := range p.Words {
		if !w.Rect.Intersects(clip) {
			continue
		}
		sizePx := int(math.Round(w.Rect.H * sy * 0.8))
		if sizePx < 4 {
			continue
		}
		face, ok := faces[sizePx]
		if !ok {
			f, err := fonts.RasterFace(float64(sizePx))
			if err != nil {
				return
			}
			faces[sizePx] = f
			face = f
		}
		drawer := &xfont.Drawer{
			Dst:  img,
			Src:  image.NewUniform(glyphColor),
			Face: face,
			Dot: fixed.Point26_6{
				X: fixed.Int26_6((w.Rect.X - clip.X) * sx * 64),
				Y: fixed.Int26_6((w.Rect.Y - clip.Y + 0.8*w.Rect.H) * sy * 64),
			},
		}
		drawer.DrawString(w.Text)
	}
}

func drawPlacedImage(dst *image.RGBA, target image.Rectangle, data []byte) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}
	target = target.Intersect(dst.Bounds())
	if target.Empty() {
		return
	}
	draw.ApproxBiLinear.Scale(dst, target, src, src.Bounds(), draw.Over, nil)
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func drawBorder(img *image.RGBA, r image.Rectangle) {
	if r.Empty() {
		return
	}
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), pageBorder)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), pageBorder)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), pageBorder)
	fillRect(img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), pageBorder)
}

// EncodePNG is a convenience for demos and OCR input preparation.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
