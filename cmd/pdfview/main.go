// Command pdfview inspects and transforms a document from the command
// line. It opens the document through the viewer, optionally burns in
// a watermark or page numbers, prints requested summaries as JSON
// sections, and can write the annotation report or the modified
// document to disk.
//
// Examples:
//
//	go run ./cmd/pdfview -info -text testdata/sample.pdfv
//	go run ./cmd/pdfview -watermark DRAFT -save out.pdfv in.pdfv
//	go run ./cmd/pdfview -report html -out report.html in.pdfv
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/folium/pdfview/burnin"
	"github.com/folium/pdfview/ocr"
	"github.com/folium/pdfview/pdf"
	"github.com/folium/pdfview/pdf/memdoc"
	"github.com/folium/pdfview/viewer"
)

type featureSelection struct {
	Info        bool
	Text        bool
	Links       bool
	Annotations bool
}

func (f featureSelection) any() bool {
	return f.Info || f.Text || f.Links || f.Annotations
}

type options struct {
	docPath     string
	features    featureSelection
	report      string
	reportOut   string
	watermark   string
	rotate      float64
	pageNumbers string
	startAt     int
	runOCR      bool
	savePath    string
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfview: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfview: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: go run ./cmd/pdfview [flags] <document>\n")
		flag.PrintDefaults()
	}

	info := flag.Bool("info", false, "Print document and per-page summaries")
	text := flag.Bool("text", false, "Print extracted text per page")
	links := flag.Bool("links", false, "List link regions per page")
	annots := flag.Bool("annotations", false, "List annotations per page")
	flag.StringVar(&opts.report, "report", "", "Write the annotation report as \"html\" or \"text\"")
	flag.StringVar(&opts.reportOut, "out", "", "Report output file (default stdout)")
	flag.StringVar(&opts.watermark, "watermark", "", "Burn a rotated text watermark onto every page")
	flag.Float64Var(&opts.rotate, "rotate", 45, "Watermark rotation in degrees")
	flag.StringVar(&opts.pageNumbers, "pagenumbers", "", "Burn page numbers using this format, e.g. \"{n}/{total}\"")
	flag.IntVar(&opts.startAt, "start", 1, "First page number for -pagenumbers")
	flag.BoolVar(&opts.runOCR, "ocr", false, "Recognize text on pages without extractable words (needs a registered OCR engine)")
	flag.StringVar(&opts.savePath, "save", "", "Write the modified document to this path")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("expected exactly one document path")
	}
	opts.docPath = flag.Arg(0)
	opts.features = featureSelection{Info: *info, Text: *text, Links: *links, Annotations: *annots}

	switch opts.report {
	case "", "html", "text":
	default:
		return options{}, fmt.Errorf("-report must be \"html\" or \"text\", got %q", opts.report)
	}
	if (opts.watermark != "" || opts.pageNumbers != "") && opts.savePath == "" {
		return options{}, fmt.Errorf("-watermark and -pagenumbers require -save")
	}

	// With nothing selected, behave like a document inspector.
	if !opts.features.any() && opts.report == "" && !opts.runOCR && opts.savePath == "" {
		opts.features.Info = true
	}
	return opts, nil
}

func run(opts options) error {
	v := viewer.New(memdoc.Opener{}, viewer.WithSyncRender())
	defer v.Close()

	if err := v.Open(opts.docPath); err != nil {
		return err
	}

	if opts.watermark != "" {
		wm := burnin.Watermark{Text: opts.watermark, RotateDeg: opts.rotate}
		if err := v.ApplyWatermark(wm); err != nil {
			return fmt.Errorf("apply watermark: %w", err)
		}
	}
	if opts.pageNumbers != "" {
		pn := burnin.PageNumbers{Format: opts.pageNumbers, Start: opts.startAt}
		if err := v.ApplyPageNumbers(pn); err != nil {
			return fmt.Errorf("apply page numbers: %w", err)
		}
	}

	doc := v.Document()

	if opts.features.Info {
		summary, err := summarize(opts.docPath, doc)
		if err != nil {
			return err
		}
		if err := emitSection("info", summary); err != nil {
			return err
		}
	}
	if opts.features.Text {
		pages, err := extractText(doc)
		if err != nil {
			return err
		}
		if err := emitSection("text", pages); err != nil {
			return err
		}
	}
	if opts.features.Links {
		entries, err := listLinks(doc)
		if err != nil {
			return err
		}
		if err := emitSection("links", entries); err != nil {
			return err
		}
	}
	if opts.features.Annotations {
		entries, err := listAnnotations(doc)
		if err != nil {
			return err
		}
		if err := emitSection("annotations", entries); err != nil {
			return err
		}
	}
	if opts.runOCR {
		pages, err := recognizeEmptyPages(doc)
		if err != nil {
			return fmt.Errorf("ocr: %w", err)
		}
		if err := emitSection("ocr", pages); err != nil {
			return err
		}
	}
	if opts.report != "" {
		if err := writeReport(v, opts.report, opts.reportOut); err != nil {
			return err
		}
	}
	if opts.savePath != "" {
		if err := v.Save(opts.savePath); err != nil {
			return err
		}
		fmt.Printf("saved %s\n", opts.savePath)
	}
	return nil
}

type pageInfo struct {
	Page        int     `json:"page"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Words       int     `json:"words"`
	Links       int     `json:"links"`
	Annotations int     `json:"annotations"`
}

type docSummary struct {
	Path  string     `json:"path"`
	Pages []pageInfo `json:"pages"`
}

func summarize(path string, doc pdf.Document) (docSummary, error) {
	summary := docSummary{Path: path}
	for page := 0; page < doc.PageCount(); page++ {
		w, h, err := doc.PageSize(page)
		if err != nil {
			return docSummary{}, fmt.Errorf("page size %d: %w", page, err)
		}
		words, err := doc.Words(page)
		if err != nil {
			return docSummary{}, fmt.Errorf("words %d: %w", page, err)
		}
		links, err := doc.Links(page)
		if err != nil {
			return docSummary{}, fmt.Errorf("links %d: %w", page, err)
		}
		annots, err := doc.Annotations(page)
		if err != nil {
			return docSummary{}, fmt.Errorf("annotations %d: %w", page, err)
		}
		summary.Pages = append(summary.Pages, pageInfo{
			Page:        page,
			Width:       w,
			Height:      h,
			Words:       len(words),
			Links:       len(links),
			Annotations: len(annots),
		})
	}
	return summary, nil
}

type pageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

func extractText(doc pdf.Document) ([]pageText, error) {
	var pages []pageText
	for page := 0; page < doc.PageCount(); page++ {
		words, err := doc.Words(page)
		if err != nil {
			return nil, fmt.Errorf("words %d: %w", page, err)
		}
		var text string
		for i, w := range words {
			if i > 0 {
				text += " "
			}
			text += w.Text
		}
		pages = append(pages, pageText{Page: page, Text: text})
	}
	return pages, nil
}

type linkEntry struct {
	Page   int    `json:"page"`
	Kind   string `json:"kind"`
	URI    string `json:"uri,omitempty"`
	Target int    `json:"target,omitempty"`
	Script string `json:"script,omitempty"`
	Rect   string `json:"rect"`
}

func listLinks(doc pdf.Document) ([]linkEntry, error) {
	var entries []linkEntry
	for page := 0; page < doc.PageCount(); page++ {
		links, err := doc.Links(page)
		if err != nil {
			return nil, fmt.Errorf("links %d: %w", page, err)
		}
		for _, l := range links {
			entries = append(entries, linkEntry{
				Page:   page,
				Kind:   l.Kind.String(),
				URI:    l.URI,
				Target: l.Target,
				Script: l.Script,
				Rect:   l.Rect.String(),
			})
		}
	}
	return entries, nil
}

type annotEntry struct {
	Page     int    `json:"page"`
	Kind     string `json:"kind"`
	Author   string `json:"author,omitempty"`
	Contents string `json:"contents,omitempty"`
	Rect     string `json:"rect"`
}

func listAnnotations(doc pdf.Document) ([]annotEntry, error) {
	var entries []annotEntry
	for page := 0; page < doc.PageCount(); page++ {
		annots, err := doc.Annotations(page)
		if err != nil {
			return nil, fmt.Errorf("annotations %d: %w", page, err)
		}
		for _, a := range annots {
			entries = append(entries, annotEntry{
				Page:     page,
				Kind:     a.Kind.String(),
				Author:   a.Author,
				Contents: a.Contents,
				Rect:     a.Rect.String(),
			})
		}
	}
	return entries, nil
}

func recognizeEmptyPages(doc pdf.Document) ([]pageText, error) {
	var empty []int
	for page := 0; page < doc.PageCount(); page++ {
		words, err := doc.Words(page)
		if err != nil {
			return nil, fmt.Errorf("words %d: %w", page, err)
		}
		if len(words) == 0 {
			empty = append(empty, page)
		}
	}
	if len(empty) == 0 {
		return nil, nil
	}
	results, err := ocr.RecognizePages(context.Background(), ocr.DefaultEngine(), doc, empty)
	if err != nil {
		return nil, err
	}
	pages := make([]pageText, 0, len(results))
	for i, res := range results {
		pages = append(pages, pageText{Page: empty[i], Text: res.PlainText})
	}
	return pages, nil
}

func writeReport(v *viewer.Viewer, format, path string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		out = f
	}
	var err error
	if format == "html" {
		err = v.WriteReportHTML(out)
	} else {
		err = v.WriteReportText(out)
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func emitSection(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	fmt.Printf("== %s ==\n%s\n\n", name, data)
	return nil
}
