package geo

// QuadTree is a spatial index over rectangles, used for hit-testing
// links and scene items against a cursor position without scanning
// every item.
type QuadTree struct {
	bounds   Rect
	capacity int
	entries  []quadEntry
	nodes    []*QuadTree
}

type quadEntry struct {
	rect Rect
	id   int
}

// NewQuadTree creates an index covering bounds. capacity is the number
// of entries a leaf holds before it subdivides.
func NewQuadTree(bounds Rect, capacity int) *QuadTree {
	if capacity < 1 {
		capacity = 8
	}
	return &QuadTree{
		bounds:   bounds,
		capacity: capacity,
		entries:  make([]quadEntry, 0, capacity),
	}
}

// Insert adds id with the given rectangle. It reports false when the
// rectangle lies entirely outside the index bounds.
func (qt *QuadTree) Insert(rect Rect, id int) bool {
	if !looseIntersects(qt.bounds, rect) {
		return false
	}

	if qt.nodes != nil {
		for _, node := range qt.nodes {
			if looseContains(node.bounds, rect) {
				if node.Insert(rect, id) {
					return true
				}
			}
		}
	}

	if qt.nodes == nil {
		if len(qt.entries) < qt.capacity {
			qt.entries = append(qt.entries, quadEntry{rect: rect, id: id})
			return true
		}
		qt.subdivide()
		old := qt.entries
		qt.entries = make([]quadEntry, 0, qt.capacity)
		for _, e := range old {
			qt.Insert(e.rect, e.id)
		}
		return qt.Insert(rect, id)
	}

	// Straddles children: kept at this node.
	qt.entries = append(qt.entries, quadEntry{rect: rect, id: id})
	return true
}

func (qt *QuadTree) subdivide() {
	xMid := qt.bounds.X + qt.bounds.W/2
	yMid := qt.bounds.Y + qt.bounds.H/2
	halfW := qt.bounds.W / 2
	halfH := qt.bounds.H / 2
	qt.nodes = []*QuadTree{
		NewQuadTree(Rect{X: qt.bounds.X, Y: qt.bounds.Y, W: halfW, H: halfH}, qt.capacity),
		NewQuadTree(Rect{X: xMid, Y: qt.bounds.Y, W: halfW, H: halfH}, qt.capacity),
		NewQuadTree(Rect{X: qt.bounds.X, Y: yMid, W: halfW, H: halfH}, qt.capacity),
		NewQuadTree(Rect{X: xMid, Y: yMid, W: halfW, H: halfH}, qt.capacity),
	}
}

// Query returns the ids of all entries whose rectangles touch rangeRect.
func (qt *QuadTree) Query(rangeRect Rect) []int {
	var found []int
	if !looseIntersects(qt.bounds, rangeRect) {
		return found
	}
	for _, e := range qt.entries {
		if looseIntersects(e.rect, rangeRect) {
			found = append(found, e.id)
		}
	}
	if qt.nodes != nil {
		for _, node := range qt.nodes {
			found = append(found, node.Query(rangeRect)...)
		}
	}
	return found
}

// At returns the ids of entries whose rectangles contain p.
func (qt *QuadTree) At(p Point) []int {
	return qt.Query(Rect{X: p.X, Y: p.Y})
}

// Edge-touching counts as overlap here: hit-testing a point means
// querying a zero-size rect, which Rect.Intersects would always reject.
func looseIntersects(a, b Rect) bool {
	return !(b.X > a.Right() || b.Right() < a.X || b.Y > a.Bottom() || b.Bottom() < a.Y)
}

func looseContains(outer, inner Rect) bool {
	return inner.X >= outer.X && inner.Right() <= outer.Right() &&
		inner.Y >= outer.Y && inner.Bottom() <= outer.Bottom()
}
