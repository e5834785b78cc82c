package viewer

import (
	"context"
	"fmt"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/observability"
	"github.com/folium/pdfview/pdf"
	"github.com/folium/pdfview/scripting"
)

// rebuildLinks refreshes the per-page link lists and their hit-test
// trees. Link rectangles live in page coordinates.
func (v *Viewer) rebuildLinks() {
	v.links = make(map[int][]pdf.Link)
	v.linkTrees = make(map[int]*geo.QuadTree)
	doc := v.document()
	if doc == nil {
		return
	}
	for page := 0; page < doc.PageCount(); page++ {
		links, err := doc.Links(page)
		if err != nil || len(links) == 0 {
			continue
		}
		w, h, err := doc.PageSize(page)
		if err != nil {
			continue
		}
		tree := geo.NewQuadTree(geo.Rect{W: w, H: h}, 8)
		for i, l := range links {
			tree.Insert(l.Rect, i)
		}
		v.links[page] = links
		v.linkTrees[page] = tree
	}
}

// LinkAt hit-tests the link regions under a scene point. When links
// overlap the last one added wins.
func (v *Viewer) LinkAt(scenePt geo.Point) (pdf.Link, bool) {
	if v.table == nil {
		return pdf.Link{}, false
	}
	page, pagePt := v.table.SceneToPage(scenePt)
	tree := v.linkTrees[page]
	if tree == nil {
		return pdf.Link{}, false
	}
	ids := tree.At(pagePt)
	if len(ids) == 0 {
		return pdf.Link{}, false
	}
	best := ids[0]
	for _, id := range ids[1:] {
		if id > best {
			best = id
		}
	}
	return v.links[page][best], true
}

// ActivateLink performs a link action: uri links go to the configured
// handler, goto links scroll to the target page, and javascript links
// run through the scripting engine against the viewer DOM.
func (v *Viewer) ActivateLink(ctx context.Context, l pdf.Link) error {
	if v.document() == nil {
		return ErrNoDocument
	}
	switch l.Kind {
	case pdf.LinkURI:
		if v.openURI == nil {
			v.log.Info("uri link ignored, no handler",
				observability.String("uri", l.URI))
			return nil
		}
		return v.openURI(l.URI)
	case pdf.LinkGoTo:
		return v.GoToPage(ctx, l.Target)
	case pdf.LinkJavaScript:
		if v.script == nil {
			v.log.Info("javascript link ignored, no engine")
			return nil
		}
		return v.script.Execute(ctx, l.Script, viewerDOM{v})
	default:
		return fmt.Errorf("viewer: unknown link kind %d", int(l.Kind))
	}
}

// viewerDOM adapts the viewer to the surface scripts see. Scripts use
// percent zoom while the viewer uses a factor, 100 to 1.0.
type viewerDOM struct{ v *Viewer }

func (d viewerDOM) PageNum() int { return d.v.CurrentPage() }

func (d viewerDOM) SetPageNum(n int) {
	if err := d.v.GoToPage(context.Background(), n); err != nil {
		d.v.log.Debug("script page jump rejected",
			observability.Int("page", n),
			observability.Error("err", err))
	}
}

func (d viewerDOM) NumPages() int { return d.v.PageCount() }

func (d viewerDOM) Zoom() float64 { return d.v.zoom * 100 }

func (d viewerDOM) SetZoom(percent float64) {
	d.v.SetZoom(context.Background(), percent/100)
}

func (d viewerDOM) Alert(message string) { d.v.alert(message) }

var _ scripting.ViewerDOM = viewerDOM{}
