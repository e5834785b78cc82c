package tiles

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/folium/pdfview/geo"
	"github.com/folium/pdfview/layout"
	"github.com/folium/pdfview/observability"
)

// BufferFactor widens the viewport by this many tile scene sizes on
// every side when computing the wanted tile set, so scrolling hits
// pre-rendered tiles.
const BufferFactor = 1.5

// GridEpsilon is the tile scene size drift, in scene pixels, beyond
// which the grid is considered changed and placed tiles are torn down.
const GridEpsilon = 0.05

// Source renders a page region into pixels. Implementations must be
// safe for one render call concurrent with document reads.
type Source interface {
	RenderRegion(ctx context.Context, page int, clip geo.Rect, pxW, pxH int) (*image.RGBA, error)
}

// TileSpec pairs a tile key with the scene rectangle it covers.
type TileSpec struct {
	Key       Key
	SceneRect geo.Rect
}

// PlacedTile is a tile currently shown: its key, scene rectangle and
// rendered pixels.
type PlacedTile struct {
	Key       Key
	SceneRect geo.Rect
	Pixels    *image.RGBA
}

type renderRequest struct {
	key   Key
	scene geo.Rect
	clip  geo.Rect
	pxW   int
	pxH   int
	gen   uint64
	epoch uint64
}

type renderResult struct {
	renderRequest
	pixels *image.RGBA
	err    error
	took   time.Duration
}

// Scheduler keeps the visible tile grid rendered and placed. All
// methods must be called from a single owner goroutine; rendering
// happens on one background worker and results are pulled back in
// through Collect or EnsureVisible. Two counters fence stale work:
// the generation changes on any zoom or content invalidation and
// gates placement, the epoch changes only on content invalidation
// and gates cache admission. A render that is stale by zoom is still
// worth caching under its bucket; a render of stale content is not.
type Scheduler struct {
	src   Source
	table *layout.Table
	cache *Cache
	log   observability.Logger

	gen    uint64
	epoch  uint64
	gridTS float64 // tile scene size of the placed grid, 0 when none

	wanted  map[Key]geo.Rect
	placed  map[Key]PlacedTile
	pending map[Key]uint64 // generation at request time

	sync      bool
	requests  chan renderRequest
	results   chan renderResult
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	onPlace   func(PlacedTile)
	onUnplace func(Key)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger routes scheduler events to log.
func WithLogger(log observability.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithCacheCapacity bounds the pixel cache to n tiles.
func WithCacheCapacity(n int) Option {
	return func(s *Scheduler) { s.cache = NewCache(n) }
}

// WithSyncRender renders tiles inline during EnsureVisible instead of
// on the background worker. Intended for tests and batch callers.
func WithSyncRender() Option {
	return func(s *Scheduler) { s.sync = true }
}

// WithPlacementHooks registers callbacks invoked when a tile is
// placed or removed, so an embedder can mirror the scheduler's state
// onto its canvas. Either may be nil.
func WithPlacementHooks(place func(PlacedTile), unplace func(Key)) Option {
	return func(s *Scheduler) {
		s.onPlace = place
		s.onUnplace = unplace
	}
}

// New returns a scheduler rendering from src into the scene described
// by table. Close must be called to stop the render worker.
func New(src Source, table *layout.Table, opts ...Option) *Scheduler {
	s := &Scheduler{
		src:     src,
		table:   table,
		cache:   NewCache(DefaultCacheTiles),
		log:     observability.NopLogger{},
		wanted:  make(map[Key]geo.Rect),
		placed:  make(map[Key]PlacedTile),
		pending: make(map[Key]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if !s.sync {
		s.requests = make(chan renderRequest, 64)
		s.results = make(chan renderResult, 64)
		s.wg.Add(1)
		go s.worker(ctx)
	}
	return s
}

// Close stops the render worker. The scheduler must not be used after.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
}

// SetLayout swaps the scene layout, typically after the document was
// rebuilt at a new size. Callers should follow with InvalidateContent.
func (s *Scheduler) SetLayout(table *layout.Table) { s.table = table }

// InvalidateZoom marks in-flight renders stale for placement and
// tears down the placed grid. Cached pixels stay valid under their
// zoom bucket and are reused when the zoom returns.
func (s *Scheduler) InvalidateZoom() {
	s.gen++
	s.unplaceAll()
	s.gridTS = 0
	s.log.Debug("zoom invalidated", observability.Int64("generation", int64(s.gen)))
}

// InvalidateContent marks every rendered pixel stale: placed tiles
// are torn down, the cache is cleared and in-flight renders will be
// dropped on completion.
func (s *Scheduler) InvalidateContent() {
	s.gen++
	s.epoch++
	s.unplaceAll()
	s.gridTS = 0
	s.cache.Clear()
	s.pending = make(map[Key]uint64)
	s.log.Debug("content invalidated",
		observability.Int64("generation", int64(s.gen)),
		observability.Int64("epoch", int64(s.epoch)))
}

// VisibleTiles returns the tiles intersecting the viewport widened by
// BufferFactor tile sizes, in page order. Cost is proportional to the
// number of intersecting tiles, not to the document length.
func (s *Scheduler) VisibleTiles(viewport geo.Rect, zoom float64) []TileSpec {
	ts := SceneSize(zoom)
	bucket := bucketOf(ts)
	buffered := viewport.Inset(-BufferFactor * ts)

	var specs []TileSpec
	for i := s.table.PageAtY(buffered.Y); i < s.table.Len(); i++ {
		slot := s.table.SlotRect(i)
		if slot.Y > buffered.Bottom() {
			break
		}
		region := buffered.Intersect(slot)
		if region.Empty() {
			continue
		}
		r0 := int((region.Y - slot.Y) / ts)
		c0 := int((region.X - slot.X) / ts)
		if r0 < 0 {
			r0 = 0
		}
		if c0 < 0 {
			c0 = 0
		}
		for row := r0; float64(row)*ts < region.Bottom()-slot.Y; row++ {
			for col := c0; float64(col)*ts < region.Right()-slot.X; col++ {
				tile := geo.Rect{
					X: slot.X + float64(col)*ts,
					Y: slot.Y + float64(row)*ts,
					W: ts,
					H: ts,
				}.Intersect(slot)
				if tile.Empty() {
					continue
				}
				specs = append(specs, TileSpec{
					Key:       Key{Page: i, Row: row, Col: col, Bucket: bucket},
					SceneRect: tile,
				})
			}
		}
	}
	return specs
}

// EnsureVisible reconciles the placed tile set against the viewport
// at zoom: completed renders are collected, tiles that scrolled away
// are removed, cached tiles are placed immediately and missing ones
// are scheduled. The cache is trimmed afterwards, sparing every tile
// still wanted.
func (s *Scheduler) EnsureVisible(ctx context.Context, viewport geo.Rect, zoom float64) {
	ts := SceneSize(zoom)
	if s.gridTS != 0 && absDiff(ts, s.gridTS) > GridEpsilon {
		s.unplaceAll()
	}
	s.gridTS = ts

	specs := s.VisibleTiles(viewport, zoom)
	s.wanted = make(map[Key]geo.Rect, len(specs))
	for _, spec := range specs {
		s.wanted[spec.Key] = spec.SceneRect
	}

	s.Collect()

	for k := range s.placed {
		if _, ok := s.wanted[k]; !ok {
			s.unplace(k)
		}
	}

	for _, spec := range specs {
		if _, ok := s.placed[spec.Key]; ok {
			continue
		}
		if px, ok := s.cache.Get(spec.Key); ok {
			s.place(spec.Key, spec.SceneRect, px)
			continue
		}
		s.request(ctx, spec, zoom)
	}

	protected := make(map[Key]struct{}, len(s.wanted))
	for k := range s.wanted {
		protected[k] = struct{}{}
	}
	if evicted := s.cache.EvictOver(protected); evicted > 0 {
		s.log.Debug("tile cache trimmed",
			observability.Int(observability.MetricCacheEvictions, evicted),
			observability.Int(observability.MetricCacheSize, s.cache.Len()))
	}
}

// Collect drains completed renders without blocking and returns how
// many tiles were placed. Renders from an older generation are cached
// but not placed; renders from an older epoch are dropped entirely.
func (s *Scheduler) Collect() int {
	if s.sync {
		return 0
	}
	n := 0
	for {
		select {
		case res := <-s.results:
			n += s.admit(res)
		default:
			return n
		}
	}
}

// Placed returns the currently placed tiles in unspecified order.
func (s *Scheduler) Placed() []PlacedTile {
	out := make([]PlacedTile, 0, len(s.placed))
	for _, t := range s.placed {
		out = append(out, t)
	}
	return out
}

// PlacedCount reports how many tiles are currently placed.
func (s *Scheduler) PlacedCount() int { return len(s.placed) }

// PendingCount reports how many renders are queued or in flight.
func (s *Scheduler) PendingCount() int { return len(s.pending) }

// CacheLen reports the number of cached tiles.
func (s *Scheduler) CacheLen() int { return s.cache.Len() }

func (s *Scheduler) request(ctx context.Context, spec TileSpec, zoom float64) {
	if gen, ok := s.pending[spec.Key]; ok && gen == s.gen {
		return
	}
	req := renderRequest{
		key:   spec.Key,
		scene: spec.SceneRect,
		clip:  s.table.SceneRectToPage(spec.Key.Page, spec.SceneRect),
		pxW:   pxAt(spec.SceneRect.W, zoom),
		pxH:   pxAt(spec.SceneRect.H, zoom),
		gen:   s.gen,
		epoch: s.epoch,
	}
	if s.sync {
		start := time.Now()
		px, err := s.src.RenderRegion(ctx, req.key.Page, req.clip, req.pxW, req.pxH)
		s.admit(renderResult{renderRequest: req, pixels: px, err: err, took: time.Since(start)})
		return
	}
	select {
	case s.requests <- req:
		s.pending[spec.Key] = s.gen
	default:
		// Queue full; the tile stays absent and is retried next pass.
	}
}

func (s *Scheduler) admit(res renderResult) int {
	if gen, ok := s.pending[res.key]; ok && gen == res.gen {
		delete(s.pending, res.key)
	}
	if res.err != nil {
		s.log.Warn("tile render failed",
			observability.Int("page", res.key.Page),
			observability.Int("row", res.key.Row),
			observability.Int("col", res.key.Col),
			observability.Error("err", res.err))
		return 0
	}
	if res.epoch != s.epoch {
		s.log.Debug("stale render dropped",
			observability.Int(observability.MetricStaleRendersDropped, 1),
			observability.Int("page", res.key.Page))
		return 0
	}
	s.cache.Put(res.key, res.pixels)
	if res.gen != s.gen {
		return 0
	}
	rect, ok := s.wanted[res.key]
	if !ok {
		return 0
	}
	if _, ok := s.placed[res.key]; ok {
		return 0
	}
	s.place(res.key, rect, res.pixels)
	s.log.Debug("tile rendered",
		observability.Int(observability.MetricTilesRendered, 1),
		observability.Float64(observability.MetricRenderTime, res.took.Seconds()),
		observability.Int("page", res.key.Page))
	return 1
}

func (s *Scheduler) place(k Key, rect geo.Rect, px *image.RGBA) {
	s.placed[k] = PlacedTile{Key: k, SceneRect: rect, Pixels: px}
	s.log.Debug("tile placed",
		observability.Int(observability.MetricTilesPlaced, len(s.placed)),
		observability.Int("page", k.Page))
	if s.onPlace != nil {
		s.onPlace(s.placed[k])
	}
}

func (s *Scheduler) unplace(k Key) {
	delete(s.placed, k)
	if s.onUnplace != nil {
		s.onUnplace(k)
	}
}

func (s *Scheduler) unplaceAll() {
	for k := range s.placed {
		s.unplace(k)
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.requests:
			start := time.Now()
			px, err := s.src.RenderRegion(ctx, req.key.Page, req.clip, req.pxW, req.pxH)
			res := renderResult{renderRequest: req, pixels: px, err: err, took: time.Since(start)}
			select {
			case s.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

func pxAt(sceneLen, zoom float64) int {
	n := int(sceneLen*zoom + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
