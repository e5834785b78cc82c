package viewer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/folium/pdfview/burnin"
	"github.com/folium/pdfview/observability"
	"github.com/folium/pdfview/report"
	"github.com/folium/pdfview/scene"
)

// Burn-in operations delegate to the applier, which pushes a snapshot
// first and invalidates rendered content afterwards.

// ApplyWatermark stamps a text or image watermark on every page.
func (v *Viewer) ApplyWatermark(cfg burnin.Watermark) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	return v.burn.ApplyWatermark(cfg)
}

// ApplyPageNumbers writes a number at the bottom of each page.
func (v *Viewer) ApplyPageNumbers(cfg burnin.PageNumbers) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	return v.burn.ApplyPageNumbers(cfg)
}

// ApplyHeaderFooter fills the six header and footer slots on each
// page.
func (v *Viewer) ApplyHeaderFooter(cfg burnin.HeaderFooter) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	return v.burn.ApplyHeaderFooter(cfg)
}

// ApplyStamp draws a preset or image stamp on one page.
func (v *Viewer) ApplyStamp(cfg burnin.Stamp) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	return v.burn.ApplyStamp(cfg)
}

// ApplySignature places a signature image on one page.
func (v *Viewer) ApplySignature(cfg burnin.Signature) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	return v.burn.ApplySignature(cfg)
}

// InsertLink adds a link region with a visible dashed border.
func (v *Viewer) InsertLink(cfg burnin.InsertLink) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	return v.burn.ApplyInsertLink(cfg)
}

// RevertToSaved reloads the last saved bytes, discarding every
// document mutation since open or save. Watermark, page number, and
// header or footer removal work this way: burned-in content has no
// inverse, so the viewer goes back to the saved state instead. The
// annotation overlay is kept and re-applied on the next save. An
// active edit session is abandoned with its pending edits.
func (v *Viewer) RevertToSaved() error {
	if v.document() == nil {
		return ErrNoDocument
	}
	if err := v.restoreSaved(); err != nil {
		return err
	}
	v.log.Info("document reverted to saved state",
		observability.String("path", filepath.Base(v.path)))
	return nil
}

func (v *Viewer) restoreSaved() error {
	doc, err := v.opener.Deserialize(v.savedBytes)
	if err != nil {
		return fmt.Errorf("viewer: reload saved state: %w", err)
	}
	v.edit = nil
	v.setDoc(doc)
	v.hist.Reset()
	v.afterDocSwap()
	return nil
}

// Save writes the document with the overlay encoded as annotations.
// An empty path saves in place. An active edit session is applied
// first. Image stamps are burned into page content and leave the
// overlay. After writing, the viewer reopens the file so its state
// matches the bytes on disk.
func (v *Viewer) Save(path string) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	if path == "" {
		path = v.path
	}
	if v.Editing() {
		if err := v.ExitEditMode(); err != nil {
			return fmt.Errorf("viewer: apply text edits: %w", err)
		}
	}
	doc := v.document()
	if err := v.writeOverlay(); err != nil {
		// The document may hold a partial overlay; go back to the
		// saved bytes so the in-memory state stays coherent.
		if rerr := v.restoreSaved(); rerr != nil {
			v.log.Error("rollback after failed save", observability.Error("err", rerr))
		}
		return err
	}
	if err := doc.Save(path); err != nil {
		if rerr := v.restoreSaved(); rerr != nil {
			v.log.Error("rollback after failed save", observability.Error("err", rerr))
		}
		return fmt.Errorf("viewer: save: %w", err)
	}
	fresh, err := v.opener.Open(path)
	if err != nil {
		// The file is written; keep serving the in-memory document,
		// which holds the same state.
		v.log.Warn("reopen after save failed", observability.Error("err", err))
		fresh = doc
	}
	saved, err := fresh.Serialize()
	if err != nil {
		return fmt.Errorf("viewer: snapshot after save: %w", err)
	}
	// Stamps are page content now; drop them from the overlay.
	for _, it := range v.sc.Items() {
		if _, ok := it.(*scene.ImageStamp); ok {
			v.sc.Detach(it)
		}
	}
	v.setDoc(fresh)
	v.path = path
	v.savedBytes = saved
	v.hist.Reset()
	v.afterDocSwap()
	v.prefs.Touch(path)
	v.prefs.LastFile = path
	v.persistPrefs()
	v.log.Info("document saved",
		observability.String("path", filepath.Base(path)),
		observability.Int("overlay_items", v.sc.Len()))
	return nil
}

// writeOverlay replaces the document's annotations with the scene's
// items and burns image stamps into page content.
func (v *Viewer) writeOverlay() error {
	doc := v.document()
	for page := 0; page < doc.PageCount(); page++ {
		annots, err := doc.Annotations(page)
		if err != nil {
			return fmt.Errorf("viewer: annotations on page %d: %w", page, err)
		}
		for i := len(annots) - 1; i >= 0; i-- {
			if err := doc.DeleteAnnotation(page, i); err != nil {
				return fmt.Errorf("viewer: clear annotation %d on page %d: %w", i, page, err)
			}
		}
	}
	for _, it := range v.sc.Items() {
		if st, ok := it.(*scene.ImageStamp); ok {
			if err := doc.InsertImageBytes(st.Page, st.Rect, st.PNG); err != nil {
				return fmt.Errorf("viewer: burn image stamp: %w", err)
			}
			continue
		}
		a, ok := scene.Encode(it)
		if !ok {
			continue
		}
		if err := doc.AddAnnotation(scene.PageOf(it), a); err != nil {
			return fmt.Errorf("viewer: write annotation: %w", err)
		}
	}
	return nil
}

// WriteReportHTML writes the annotation report for the open document.
func (v *Viewer) WriteReportHTML(w io.Writer) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	return v.reporter().WriteHTML(w)
}

// WriteReportText writes the plain text annotation report.
func (v *Viewer) WriteReportText(w io.Writer) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	return v.reporter().WriteText(w)
}

func (v *Viewer) reporter() *report.Exporter {
	title := filepath.Base(v.path)
	title = strings.TrimSuffix(title, filepath.Ext(title))
	return report.NewExporter(v.document(), v.sc,
		report.WithTitle(title),
		report.WithLogger(v.log),
		report.WithClock(v.now))
}
