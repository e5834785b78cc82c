package memdoc

import (
	"bytes"
	"compress/flate"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/pdf"
)

// Serialized documents are a magic header followed by flate-compressed
// JSON of the page model.
var magic = []byte("MDOC1\n")

type docModel struct {
	Pages []pageModel `json:"pages"`
}

type pageModel struct {
	W          float64       `json:"w"`
	H          float64       `json:"h"`
	Runs       []pdf.TextRun `json:"runs,omitempty"`
	Words      []pdf.Word    `json:"words,omitempty"`
	Links      []pdf.Link    `json:"links,omitempty"`
	Annots     []pdf.Annot   `json:"annots,omitempty"`
	Images     []placedImage `json:"images,omitempty"`
	Redactions []geo.Rect    `json:"redactions,omitempty"`
}

// Serialize returns the document as self-contained bytes.
func (d *Document) Serialize() ([]byte, error) {
	d.mu.RLock()
	model := docModel{Pages: make([]pageModel, len(d.pages))}
	for i, p := range d.pages {
		model.Pages[i] = pageModel{
			W: p.W, H: p.H,
			Runs:       p.Runs,
			Words:      p.Words,
			Links:      p.Links,
			Annots:     p.Annots,
			Images:     p.Images,
			Redactions: p.Redactions,
		}
	}
	d.mu.RUnlock()

	payload, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(magic)
	zw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("open compressor: %w", err)
	}
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress document: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flush compressor: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize reconstructs a Document from Serialize output.
func Deserialize(data []byte) (*Document, error) {
	if !bytes.HasPrefix(data, magic) {
		return nil, fmt.Errorf("bad header: %w", pdf.ErrParse)
	}
	zr := flate.NewReader(bytes.NewReader(data[len(magic):]))
	defer zr.Close()
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", pdf.ErrParse)
	}
	var model docModel
	if err := json.Unmarshal(payload, &model); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", pdf.ErrParse)
	}
	doc := &Document{pages: make([]*page, len(model.Pages))}
	for i, pm := range model.Pages {
		doc.pages[i] = &page{
			W: pm.W, H: pm.H,
			Runs:       pm.Runs,
			Words:      pm.Words,
			Links:      pm.Links,
			Annots:     pm.Annots,
			Images:     pm.Images,
			Redactions: pm.Redactions,
		}
	}
	return doc, nil
}

// Open reads and deserializes the document at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, pdf.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return doc, nil
}

// Save writes the document to path atomically: the bytes land in a
// temp file in the same directory and are renamed over the target.
func (d *Document) Save(path string) error {
	data, err := d.Serialize()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".memdoc-*")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Opener adapts the package constructors to pdf.Opener.
type Opener struct{}

func (Opener) Open(path string) (pdf.Document, error)        { return Open(path) }
func (Opener) Deserialize(data []byte) (pdf.Document, error) { return Deserialize(data) }

var _ pdf.Opener = Opener{}
