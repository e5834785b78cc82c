// Package fonts measures and wraps strings for burn-in placement and
// for the reference raster backend. Widths come from real shaping over
// the embedded Go Regular face, so centered watermarks and overflow
// decisions agree with what a rasterizer would draw.
package fonts

import (
	"bytes"
	"strings"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	tsfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Measurer computes string widths in the same unit as the requested
// size (points in, points out). A zero Measurer is not usable; obtain
// one from Default or NewMeasurer.
type Measurer struct {
	face   *tsfont.Face
	shaper shaping.HarfbuzzShaper
	mu     sync.Mutex
}

// NewMeasurer parses the embedded face. Shaping is stateful, so a
// Measurer must not be shared without its internal lock.
func NewMeasurer() (*Measurer, error) {
	face, err := tsfont.ParseTTF(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, err
	}
	return &Measurer{face: face}, nil
}

var (
	defaultOnce sync.Once
	defaultM    *Measurer
)

// Default returns the shared Measurer. The embedded face is compiled
// into the binary, so parsing cannot fail at runtime; a parse error
// would surface as approximate metrics.
func Default() *Measurer {
	defaultOnce.Do(func() {
		m, err := NewMeasurer()
		if err != nil {
			m = &Measurer{}
		}
		defaultM = m
	})
	return defaultM
}

// Width returns the advance width of text rendered at size.
func (m *Measurer) Width(text string, size float64) float64 {
	if text == "" {
		return 0
	}
	if m.face == nil {
		// Approximate fallback: average half-em advance.
		return 0.5 * size * float64(len([]rune(text)))
	}
	runes := []rune(text)
	script := detectScript(runes)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      m.face,
		Size:      fixed.Int26_6(size * 64),
		Script:    script,
		Language:  language.DefaultLanguage(),
	}
	m.mu.Lock()
	output := m.shaper.Shape(input)
	m.mu.Unlock()
	var width fixed.Int26_6
	for _, g := range output.Glyphs {
		width += g.XAdvance
	}
	return float64(width) / 64.0
}

// LineHeight returns the nominal line advance for size.
func (m *Measurer) LineHeight(size float64) float64 { return size * 1.2 }

// Wrap splits text into lines no wider than maxWidth at the given
// size, breaking on spaces. A single word wider than maxWidth gets a
// line of its own rather than being split.
func (m *Measurer) Wrap(text string, size, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		candidate := current + " " + w
		if m.Width(candidate, size) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = w
	}
	return append(lines, current)
}

var (
	rasterOnce sync.Once
	rasterFont *opentype.Font
	rasterErr  error
)

// RasterFace returns an x/image font face over the embedded Go Regular
// at the given pixel size, for drawing text into raster buffers. The
// face holds state; callers own it and should Close it.
func RasterFace(sizePx float64) (xfont.Face, error) {
	rasterOnce.Do(func() {
		rasterFont, rasterErr = opentype.Parse(goregular.TTF)
	})
	if rasterErr != nil {
		return nil, rasterErr
	}
	return opentype.NewFace(rasterFont, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: xfont.HintingFull,
	})
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	best := language.Latin
	for _, r := range runes {
		s := scriptFromRune(r)
		if s == language.Unknown {
			continue
		}
		counts[s]++
		if counts[s] > maxCount {
			maxCount = counts[s]
			best = s
		}
	}
	return best
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	case unicode.Is(unicode.Thai, r):
		return language.Thai
	case unicode.Is(unicode.Devanagari, r):
		return language.Devanagari
	}
	return language.Unknown
}
