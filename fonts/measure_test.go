package fonts

import (
	"strings"
	"testing"
)

func TestWidthMonotonic(t *testing.T) {
	m := Default()
	short := m.Width("hello", 12)
	long := m.Width("hello world, longer", 12)
	if short <= 0 {
		t.Fatalf("Width(hello) = %v, want > 0", short)
	}
	if long <= short {
		t.Errorf("longer text measured %v, not wider than %v", long, short)
	}
}

func TestWidthScalesWithSize(t *testing.T) {
	m := Default()
	w12 := m.Width("sample text", 12)
	w24 := m.Width("sample text", 24)
	if w24 < w12*1.8 || w24 > w12*2.2 {
		t.Errorf("Width at 24pt = %v, want about twice %v", w24, w12)
	}
}

func TestWidthEmpty(t *testing.T) {
	if got := Default().Width("", 12); got != 0 {
		t.Errorf("Width(\"\") = %v, want 0", got)
	}
}

func TestWrap(t *testing.T) {
	m := Default()
	text := "the quick brown fox jumps over the lazy dog"
	full := m.Width(text, 12)
	lines := m.Wrap(text, 12, full/3)
	if len(lines) < 2 {
		t.Fatalf("Wrap produced %d lines, want several", len(lines))
	}
	for _, line := range lines {
		if w := m.Width(line, 12); w > full/3 && strings.Contains(line, " ") {
			t.Errorf("line %q measures %v, over limit %v", line, w, full/3)
		}
	}
	if got := strings.Join(lines, " "); got != text {
		t.Errorf("Wrap lost content: %q", got)
	}
}

func TestWrapSingleWideWord(t *testing.T) {
	m := Default()
	lines := m.Wrap("unbreakable", 12, 1)
	if len(lines) != 1 || lines[0] != "unbreakable" {
		t.Errorf("Wrap = %v, want the word kept whole", lines)
	}
}

func TestRasterFace(t *testing.T) {
	face, err := RasterFace(14)
	if err != nil {
		t.Fatalf("RasterFace: %v", err)
	}
	defer face.Close()
	if face.Metrics().Height <= 0 {
		t.Error("face reports non-positive line height")
	}
}
