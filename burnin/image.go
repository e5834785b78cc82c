package burnin

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/folium/pdfview/fonts"
	"github.com/folium/pdfview/pdf"
)

// pxPerPt is the offscreen raster density. Burned-in text renders at
// double resolution so it stays crisp at typical zoom levels.
const pxPerPt = 2.0

// renderRotatedText rasterizes one line of text with the given
// opacity, rotates it about its center and returns the PNG bytes with
// the rotated bounds in points.
func renderRotatedText(m *fonts.Measurer, text string, sizePt float64, c pdf.Color, opacity, deg float64) ([]byte, float64, float64, error) {
	wPt := m.Width(text, sizePt) + 4
	hPt := m.LineHeight(sizePt) + 4
	img, err := drawTextImage(text, sizePt, wPt, hPt, 2, toNRGBA(c, opacity))
	if err != nil {
		return nil, 0, 0, err
	}
	rot := rotateRGBA(img, deg)
	data, err := encodePNG(rot)
	if err != nil {
		return nil, 0, 0, err
	}
	return data, float64(rot.Bounds().Dx()) / pxPerPt, float64(rot.Bounds().Dy()) / pxPerPt, nil
}

// renderStamp rasterizes stamp text inside its padded border, rotates
// the result and returns the PNG bytes with rotated bounds in points.
func renderStamp(m *fonts.Measurer, text string, sizePt float64, c pdf.Color, opacity, deg float64) ([]byte, float64, float64, error) {
	inset := StampPad + StampBorderWidth
	wPt := m.Width(text, sizePt) + 2*inset
	hPt := m.LineHeight(sizePt) + 2*inset
	img, err := drawTextImage(text, sizePt, wPt, hPt, inset, toNRGBA(c, opacity))
	if err != nil {
		return nil, 0, 0, err
	}
	drawBorder(img, int(math.Round(StampBorderWidth*pxPerPt)), toNRGBA(c, opacity))
	rot := rotateRGBA(img, deg)
	data, err := encodePNG(rot)
	if err != nil {
		return nil, 0, 0, err
	}
	return data, float64(rot.Bounds().Dx()) / pxPerPt, float64(rot.Bounds().Dy()) / pxPerPt, nil
}

// drawTextImage rasterizes one line onto a transparent canvas of
// (wPt, hPt) points with the text starting insetPt from the left.
func drawTextImage(text string, sizePt, wPt, hPt, insetPt float64, c color.NRGBA) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(wPt*pxPerPt)), int(math.Ceil(hPt*pxPerPt))))
	face, err := fonts.RasterFace(sizePt * pxPerPt)
	if err != nil {
		return nil, err
	}
	defer face.Close()
	drawer := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(insetPt * pxPerPt * 64),
			Y: fixed.Int26_6(insetPt*pxPerPt*64) + face.Metrics().Ascent,
		},
	}
	drawer.DrawString(text)
	return img, nil
}

// drawBorder strokes the image edges width pixels thick.
func drawBorder(img *image.RGBA, width int, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			edge := x-b.Min.X < width || b.Max.X-x <= width ||
				y-b.Min.Y < width || b.Max.Y-y <= width
			if edge {
				img.SetRGBA(x, y, premultiply(c))
			}
		}
	}
}

// rotateRGBA rotates the image by deg degrees about its center onto a
// canvas sized to the rotated bounds.
func rotateRGBA(src *image.RGBA, deg float64) *image.RGBA {
	if deg == 0 {
		return src
	}
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	sw := float64(src.Bounds().Dx())
	sh := float64(src.Bounds().Dy())
	dw := int(math.Ceil(math.Abs(sw*cos) + math.Abs(sh*sin)))
	dh := int(math.Ceil(math.Abs(sw*sin) + math.Abs(sh*cos)))
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	m := f64.Aff3{
		cos, -sin, float64(dw)/2 - cos*sw/2 + sin*sh/2,
		sin, cos, float64(dh)/2 - sin*sw/2 - cos*sh/2,
	}
	draw.CatmullRom.Transform(dst, m, src, src.Bounds(), draw.Over, nil)
	return dst
}

// loadImage reads an image file and returns its bytes plus its target
// size in points at the given scale, one pixel per point.
func loadImage(path string, scale float64) ([]byte, float64, float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image %s: %w", path, err)
	}
	return data, float64(cfg.Width) * scale, float64(cfg.Height) * scale, nil
}

func encodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toNRGBA(c pdf.Color, opacity float64) color.NRGBA {
	clamp := func(v float64) uint8 {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint8(v*255 + 0.5)
	}
	return color.NRGBA{R: clamp(c[0]), G: clamp(c[1]), B: clamp(c[2]), A: clamp(opacity)}
}

func premultiply(c color.NRGBA) color.RGBA {
	r, g, b, a := color.Color(c).RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}
