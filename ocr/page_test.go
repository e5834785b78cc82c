package ocr

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/folium/pdfview/pdf/memdoc"
)

type fakeEngine struct {
	result Result
	err    error
	inputs []Input
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return Result{}, f.err
	}
	res := f.result
	res.InputID = in.ID
	return res, nil
}

type fakeBatchEngine struct {
	fakeEngine
	batchCalls int
}

func (f *fakeBatchEngine) RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error) {
	f.batchCalls++
	out := make([]Result, len(inputs))
	for i, in := range inputs {
		out[i] = Result{InputID: in.ID}
	}
	return out, nil
}

func twoPageDoc() *memdoc.Document {
	b := memdoc.NewBuilder()
	b.Page(612, 792).Finish()
	b.Page(612, 792).Finish()
	return b.Build()
}

func TestInputFromPageRendersAtDPI(t *testing.T) {
	doc := twoPageDoc()
	in, err := InputFromPage(context.Background(), doc, 1, WithDPI(144))
	if err != nil {
		t.Fatalf("InputFromPage: %v", err)
	}
	if in.ID != "page-1" || in.Page != 1 || in.Format != ImageFormatPNG || in.DPI != 144 {
		t.Fatalf("input = %+v", in)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(in.Image))
	if err != nil {
		t.Fatalf("decode rendered png: %v", err)
	}
	// 612x792 pt at 144 dpi is 2 px per point.
	if cfg.Width != 1224 || cfg.Height != 1584 {
		t.Fatalf("rendered %dx%d, want 1224x1584", cfg.Width, cfg.Height)
	}
}

func TestInputFromPageRejectsBadPage(t *testing.T) {
	if _, err := InputFromPage(context.Background(), twoPageDoc(), 7); err == nil {
		t.Fatal("page 7 of 2 accepted")
	}
}

func TestWordsFromPageScalesToPoints(t *testing.T) {
	eng := &fakeEngine{result: Result{
		PlainText: "alpha beta gamma",
		Blocks: []TextBlock{{
			Lines: []TextLine{
				{Words: []TextWord{
					{Text: "alpha", Bounds: Region{X: 300, Y: 150, Width: 90, Height: 30}, Confidence: 0.95},
					{Text: "beta", Bounds: Region{X: 410, Y: 150, Width: 80, Height: 30}, Confidence: 0.90},
				}},
				{Words: []TextWord{
					{Text: "gamma", Bounds: Region{X: 300, Y: 200, Width: 120, Height: 30}, Confidence: 0.85},
				}},
			},
		}},
	}}

	words, err := WordsFromPage(context.Background(), twoPageDoc(), eng, 1, WithDPI(144))
	if err != nil {
		t.Fatalf("WordsFromPage: %v", err)
	}
	if len(words) != 3 {
		t.Fatalf("words = %d, want 3", len(words))
	}
	// 144 dpi maps 2 px to 1 pt.
	w := words[0]
	if w.Text != "alpha" || w.Rect.X != 150 || w.Rect.Y != 75 || w.Rect.W != 45 || w.Rect.H != 15 {
		t.Fatalf("alpha = %+v", w)
	}
	if w.Page != 1 || w.Block != 0 || w.Line != 0 || w.WordNo != 0 {
		t.Fatalf("alpha order = %+v", w)
	}
	if words[1].WordNo != 1 || words[1].Line != 0 {
		t.Fatalf("beta order = %+v", words[1])
	}
	if words[2].Line != 1 || words[2].WordNo != 0 {
		t.Fatalf("gamma order = %+v", words[2])
	}
	if len(eng.inputs) != 1 || len(eng.inputs[0].Image) == 0 {
		t.Fatal("engine never saw the rendered page")
	}
}

func TestWordsFromPageDropsNoiseTokens(t *testing.T) {
	eng := &fakeEngine{result: Result{
		Blocks: []TextBlock{{
			Lines: []TextLine{{Words: []TextWord{
				{Text: "keep", Bounds: Region{X: 10, Y: 10, Width: 40, Height: 12}, Confidence: 0.9},
				{Text: "   ", Bounds: Region{X: 60, Y: 10, Width: 10, Height: 12}, Confidence: 0.9},
				{Text: "smudge", Bounds: Region{X: 80, Y: 10, Width: 40, Height: 12}, Confidence: 0.1},
				{Text: "also", Bounds: Region{X: 130, Y: 10, Width: 40, Height: 12}, Confidence: 0.5},
			}}},
		}},
	}}

	words, err := WordsFromPage(context.Background(), twoPageDoc(), eng, 0)
	if err != nil {
		t.Fatalf("WordsFromPage: %v", err)
	}
	if len(words) != 2 || words[0].Text != "keep" || words[1].Text != "also" {
		t.Fatalf("words = %+v", words)
	}
	// Kept words number densely despite the dropped ones.
	if words[0].WordNo != 0 || words[1].WordNo != 1 {
		t.Fatalf("word numbers = %d, %d", words[0].WordNo, words[1].WordNo)
	}
}

func TestWordsFromPageEngineError(t *testing.T) {
	eng := &fakeEngine{err: errors.New("no trained data")}
	if _, err := WordsFromPage(context.Background(), twoPageDoc(), eng, 0); err == nil {
		t.Fatal("engine failure swallowed")
	}
}

func TestRecognizePagesPrefersBatch(t *testing.T) {
	doc := twoPageDoc()
	batch := &fakeBatchEngine{}
	results, err := RecognizePages(context.Background(), batch, doc, []int{0, 1})
	if err != nil {
		t.Fatalf("RecognizePages: %v", err)
	}
	if batch.batchCalls != 1 {
		t.Fatalf("batch calls = %d, want 1", batch.batchCalls)
	}
	if len(results) != 2 || results[0].InputID != "page-0" || results[1].InputID != "page-1" {
		t.Fatalf("results = %+v", results)
	}

	plain := &fakeEngine{}
	if _, err := RecognizePages(context.Background(), plain, doc, []int{0, 1}); err != nil {
		t.Fatalf("RecognizePages sequential: %v", err)
	}
	if len(plain.inputs) != 2 {
		t.Fatalf("sequential calls = %d, want 2", len(plain.inputs))
	}
}

func TestRecognizePagesHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RecognizePages(ctx, &fakeEngine{}, twoPageDoc(), []int{0})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDefaultEngineRegistry(t *testing.T) {
	prev := DefaultEngine()
	defer SetDefaultEngine(prev)

	eng := &fakeEngine{}
	SetDefaultEngine(eng)
	if DefaultEngine() != Engine(eng) {
		t.Fatal("default engine not replaced")
	}
}

func TestNoopEngineEchoesID(t *testing.T) {
	res, err := (noopEngine{}).Recognize(context.Background(), Input{ID: "page-3"})
	if err != nil {
		t.Fatalf("noop: %v", err)
	}
	if res.InputID != "page-3" || res.PlainText != "" || len(res.Blocks) != 0 {
		t.Fatalf("noop result = %+v", res)
	}
}
