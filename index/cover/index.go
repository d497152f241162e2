package cover

import (
	"fmt"

	"github.com/viant/vecindex/index"
	"github.com/viant/vecindex/internal/cover/tree"
	"github.com/viant/vecindex/vector"
)

const (
	// extra candidates requested beyond k so float32 distance ties at the
	// boundary are resolved by exact float64 scoring.
	searchSlack = 8
	compactMin  = 64
	defaultBase = float32(1.3)
)

// Bound selects the pruning bound.
type Bound int

const (
	// BoundNode prunes with cached subtree radii; exact.
	BoundNode Bound = iota
	// BoundLevel prunes with the level radius; faster, approximate.
	BoundLevel
)

// Option configures an Index.
type Option func(*Index)

// WithBase sets the cover tree base (> 1).
func WithBase(base float32) Option {
	return func(i *Index) {
		if base > 1 {
			i.base = base
		}
	}
}

// WithBound sets the pruning bound.
func WithBound(b Bound) Option {
	return func(i *Index) { i.bound = b }
}

// Index is a cover-tree kNN index for cosine and euclidean metrics.
type Index struct {
	metric vector.Metric
	base   float32
	bound  Bound
	dim    int

	tree  *tree.Tree[int32]
	slots []index.Entry
	live  []bool
	pos   map[[2]string]int32
	dead  int
}

// New creates an empty cover index. The dot metric is not a distance and
// yields index.ErrUnsupportedMetric.
func New(metric vector.Metric, opts ...Option) (*Index, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	if metric == vector.Dot {
		return nil, fmt.Errorf("cover: %w: %s", index.ErrUnsupportedMetric, metric)
	}
	i := &Index{metric: metric, base: defaultBase}
	for _, opt := range opts {
		opt(i)
	}
	i.reset()
	return i, nil
}

func (i *Index) reset() {
	i.tree = tree.NewTree[int32](i.base, tree.DistanceFunctionEuclidean)
	if i.bound == BoundLevel {
		i.tree.SetBoundStrategy(tree.BoundLevel)
	}
	i.tree.SetOrder(func(a, b int32) bool {
		ea, eb := i.slots[a], i.slots[b]
		if ea.ID != eb.ID {
			return ea.ID < eb.ID
		}
		return ea.Key < eb.Key
	})
	i.slots = nil
	i.live = nil
	i.pos = map[[2]string]int32{}
	i.dead = 0
}

func (i *Index) point(v []float32) *tree.Point {
	if i.metric != vector.Cosine {
		return tree.NewPoint(v...)
	}
	m := vector.Magnitude(v)
	unit := make([]float32, len(v))
	for j, x := range v {
		unit[j] = float32(float64(x) / m)
	}
	p := tree.NewPoint(unit...)
	p.Magnitude = 1
	return p
}

// Build inserts entries in (ID, Key) order so equal inputs give equal trees.
func (i *Index) Build(entries []index.Entry) error {
	entries = index.Dedup(entries)
	dim, err := index.Validate(i.metric, 0, entries)
	if err != nil {
		return fmt.Errorf("cover: %w", err)
	}
	sorted := append([]index.Entry(nil), entries...)
	index.SortEntries(sorted)
	i.reset()
	i.dim = dim
	for _, e := range sorted {
		i.insert(e)
	}
	return nil
}

func (i *Index) insert(e index.Entry) {
	slot := int32(len(i.slots))
	i.slots = append(i.slots, e)
	i.live = append(i.live, true)
	i.pos[[2]string{e.ID, e.Key}] = slot
	i.tree.Insert(slot, i.point(e.Vector))
}

func (i *Index) Upsert(e index.Entry) error {
	if _, err := index.Validate(i.metric, i.dim, []index.Entry{e}); err != nil {
		return fmt.Errorf("cover: %w", err)
	}
	if i.dim == 0 {
		i.dim = len(e.Vector)
	}
	if slot, ok := i.pos[[2]string{e.ID, e.Key}]; ok {
		i.live[slot] = false
		i.dead++
	}
	i.insert(e)
	return i.maybeCompact()
}

func (i *Index) Remove(id, key string) error {
	k := [2]string{id, key}
	slot, ok := i.pos[k]
	if !ok {
		return nil
	}
	delete(i.pos, k)
	i.live[slot] = false
	i.dead++
	return i.maybeCompact()
}

// maybeCompact rebuilds the tree from live entries once tombstones make up
// a quarter of the slots. Build validates before it resets, so a failed
// compaction leaves the index untouched.
func (i *Index) maybeCompact() error {
	if i.dead < compactMin || i.dead*4 < len(i.slots) {
		return nil
	}
	dim := i.dim
	if err := i.Build(i.Entries()); err != nil {
		return fmt.Errorf("cover: compact: %w", err)
	}
	i.dim = dim
	return nil
}

func (i *Index) Search(query []float32, k int) ([]index.Hit, error) {
	n := i.Len()
	if n == 0 {
		return nil, nil
	}
	if err := vector.CheckDimension(query, i.dim); err != nil {
		return nil, fmt.Errorf("cover: %w", err)
	}
	if err := i.metric.CheckVector(query); err != nil {
		return nil, fmt.Errorf("cover: %w", err)
	}
	want := len(i.slots)
	if k > 0 && k < n {
		want = min(k+i.dead+searchSlack, len(i.slots))
	}
	neighbors := i.tree.KNearestNeighbors(i.point(query), want)
	hits := make([]index.Hit, 0, len(neighbors))
	for _, nb := range neighbors {
		slot := i.tree.Value(nb.Point)
		if !i.live[slot] {
			continue
		}
		e := i.slots[slot]
		s, err := i.metric.Score(query, e.Vector)
		if err != nil {
			return nil, fmt.Errorf("cover: %w", err)
		}
		hits = append(hits, e.Hit(s))
	}
	return index.TopK(hits, k), nil
}

func (i *Index) Entries() []index.Entry {
	out := make([]index.Entry, 0, len(i.slots)-i.dead)
	for slot, e := range i.slots {
		if i.live[slot] {
			out = append(out, e)
		}
	}
	return out
}

func (i *Index) Len() int { return len(i.slots) - i.dead }

func (i *Index) Dimension() int { return i.dim }

func (i *Index) Metric() vector.Metric { return i.metric }

var _ index.Index = (*Index)(nil)
