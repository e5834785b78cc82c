// Package tiles implements the zoom-adaptive page tiling: a bounded
// LRU pixel cache and a pull-based scheduler that keeps the visible
// tile set rendered while generations invalidate stale work.
package tiles

import "math"

// TilePixels is the pixel budget of a full tile edge. Rendered tiles
// are TilePixels square except at page edges.
const TilePixels = 512

// minZoom guards the tile scene size against degenerate zoom values.
const minZoom = 0.1

// Key identifies one cached tile: a page's grid cell at a zoom bucket.
// The bucket is the rounded tile scene size, so caches survive zoom
// round trips but never mix granularities.
type Key struct {
	Page   int
	Row    int
	Col    int
	Bucket int
}

// SceneSize returns the tile edge length in scene pixels at zoom.
// Higher zoom means smaller scene coverage per tile: the pixel budget
// is constant.
func SceneSize(zoom float64) float64 {
	return TilePixels / math.Max(zoom, minZoom)
}

// bucketOf quantizes a tile scene size into a cache bucket.
func bucketOf(ts float64) int {
	return int(math.Round(ts * 100))
}
