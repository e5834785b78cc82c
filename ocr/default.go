package ocr

import (
	"context"
	"fmt"

	"github.com/folium/pdfview/pdf"
)

var defaultEngine Engine = &noopEngine{}

// DefaultEngine returns the registered default OCR engine. Without a
// registered provider it is a no-op engine that recognizes nothing.
func DefaultEngine() Engine {
	return defaultEngine
}

// SetDefaultEngine replaces the default engine. Provider packages call
// this from init.
func SetDefaultEngine(engine Engine) {
	defaultEngine = engine
}

// RecognizePages renders the given pages and runs them through the
// engine. A BatchEngine receives all inputs in one call; other engines
// run sequentially.
func RecognizePages(ctx context.Context, engine Engine, doc pdf.Document, pages []int, opts ...InputOption) ([]Result, error) {
	inputs := make([]Input, 0, len(pages))
	for _, page := range pages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		in, err := InputFromPage(ctx, doc, page, opts...)
		if err != nil {
			return nil, fmt.Errorf("build input for page %d: %w", page, err)
		}
		inputs = append(inputs, in)
	}
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

type noopEngine struct{}

func (n noopEngine) Name() string { return "noop" }

func (n noopEngine) Recognize(ctx context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID}, nil
}
