package hnsw

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/viant/vecindex/index"
	"github.com/viant/vecindex/vector"
)

// Config tunes graph construction and search.
type Config struct {
	// M is the maximum number of connections per node per layer (layer 0
	// allows 2*M). Default: 16.
	M int
	// EfConstruction is the candidate list size while inserting. Default: 200.
	EfConstruction int
	// EfSearch is the candidate list size while searching. Default: 50.
	EfSearch int
	// Seed drives level assignment. Default: 1.
	Seed uint64
}

func (c *Config) setDefaults() {
	if c.M < 2 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 50
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
}

func (c *Config) maxConns(layer int) int {
	if layer == 0 {
		return c.M * 2
	}
	return c.M
}

type distItem struct {
	id   uint32
	dist float32
}

type minDistHeap []distItem

func (h minDistHeap) Len() int           { return len(h) }
func (h minDistHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h minDistHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minDistHeap) Push(x any)        { *h = append(*h, x.(distItem)) }
func (h *minDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type maxDistHeap []distItem

func (h maxDistHeap) Len() int           { return len(h) }
func (h maxDistHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h maxDistHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x any)        { *h = append(*h, x.(distItem)) }
func (h *maxDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type node struct {
	entry   index.Entry
	work    []float32 // unit vector under cosine, the entry vector otherwise
	level   int
	friends [][]uint32
}

// Index is an HNSW graph over index entries.
type Index struct {
	cfg      Config
	metric   vector.Metric
	dim      int
	rng      *rand.Rand
	nodes    []*node
	idMap    map[[2]string]uint32
	entryID  int32
	maxLevel int
	count    int
	free     []uint32
	levelMul float64
}

// New creates an empty HNSW index for metric.
func New(metric vector.Metric, cfg Config) (*Index, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	h := &Index{cfg: cfg, metric: metric, levelMul: 1.0 / math.Log(float64(cfg.M))}
	h.reset()
	return h, nil
}

func (h *Index) reset() {
	h.rng = rand.New(rand.NewPCG(h.cfg.Seed, h.cfg.Seed^0x9e3779b97f4a7c15))
	h.nodes = nil
	h.idMap = make(map[[2]string]uint32)
	h.entryID = -1
	h.maxLevel = 0
	h.count = 0
	h.free = nil
}

// SetEfSearch adjusts the search-time candidate list size.
func (h *Index) SetEfSearch(ef int) {
	if ef > 0 {
		h.cfg.EfSearch = ef
	}
}

func (h *Index) workVector(v []float32) []float32 {
	if h.metric != vector.Cosine {
		return v
	}
	m := vector.Magnitude(v)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / m)
	}
	return out
}

// distance is the graph-navigation distance; smaller is closer.
func (h *Index) distance(a, b []float32) float32 {
	switch h.metric {
	case vector.Euclidean:
		var sum float32
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return sum
	case vector.Dot:
		var sum float32
		for i := range a {
			sum += a[i] * b[i]
		}
		return -sum
	default:
		var sum float32
		for i := range a {
			sum += a[i] * b[i]
		}
		return 1 - sum
	}
}

// Build inserts entries in (ID, Key) order with a freshly seeded generator.
func (h *Index) Build(entries []index.Entry) error {
	entries = index.Dedup(entries)
	dim, err := index.Validate(h.metric, 0, entries)
	if err != nil {
		return fmt.Errorf("hnsw: %w", err)
	}
	sorted := append([]index.Entry(nil), entries...)
	index.SortEntries(sorted)
	h.reset()
	h.dim = dim
	for _, e := range sorted {
		h.insert(e)
	}
	return nil
}

func (h *Index) Upsert(e index.Entry) error {
	if _, err := index.Validate(h.metric, h.dim, []index.Entry{e}); err != nil {
		return fmt.Errorf("hnsw: %w", err)
	}
	if h.dim == 0 {
		h.dim = len(e.Vector)
	}
	h.insert(e)
	return nil
}

func (h *Index) insert(e index.Entry) {
	key := [2]string{e.ID, e.Key}
	if old, ok := h.idMap[key]; ok {
		h.removeNode(old)
	}
	var idx uint32
	if n := len(h.free); n > 0 {
		idx = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		idx = uint32(len(h.nodes))
		h.nodes = append(h.nodes, nil)
	}
	level := h.randomLevel()
	nd := &node{entry: e, work: h.workVector(e.Vector), level: level, friends: make([][]uint32, level+1)}
	h.nodes[idx] = nd
	h.idMap[key] = idx
	h.count++

	if h.entryID < 0 {
		h.entryID = int32(idx)
		h.maxLevel = level
		return
	}

	cur := h.greedy(nd.work, uint32(h.entryID), h.maxLevel, level)
	ep := []uint32{cur}
	for lev := min(level, h.maxLevel); lev >= 0; lev-- {
		candidates := h.searchLayer(nd.work, ep, h.cfg.EfConstruction, lev)
		maxC := h.cfg.maxConns(lev)
		neighbors := h.selectClosest(nd.work, candidates, maxC)
		nd.friends[lev] = neighbors
		for _, nID := range neighbors {
			nn := h.nodes[nID]
			if nn == nil || lev >= len(nn.friends) {
				continue
			}
			nn.friends[lev] = append(nn.friends[lev], idx)
			if len(nn.friends[lev]) > maxC {
				nn.friends[lev] = h.selectClosest(nn.work, nn.friends[lev], maxC)
			}
		}
		ep = candidates
	}
	if level > h.maxLevel {
		h.entryID = int32(idx)
		h.maxLevel = level
	}
}

// greedy walks from cur down to layer stop+1 keeping the single closest node.
func (h *Index) greedy(q []float32, cur uint32, from, stop int) uint32 {
	curDist := h.distance(q, h.nodes[cur].work)
	for lev := from; lev > stop; lev-- {
		changed := true
		for changed {
			changed = false
			nd := h.nodes[cur]
			if nd == nil || lev >= len(nd.friends) {
				break
			}
			for _, fID := range nd.friends[lev] {
				fn := h.nodes[fID]
				if fn == nil {
					continue
				}
				if d := h.distance(q, fn.work); d < curDist {
					cur, curDist, changed = fID, d, true
				}
			}
		}
	}
	return cur
}

func (h *Index) Remove(id, key string) error {
	if idx, ok := h.idMap[[2]string{id, key}]; ok {
		h.removeNode(idx)
	}
	return nil
}

// Search walks the graph and re-scores candidates exactly. k <= 0 scores
// every node.
func (h *Index) Search(query []float32, k int) ([]index.Hit, error) {
	if h.count == 0 {
		return nil, nil
	}
	if err := vector.CheckDimension(query, h.dim); err != nil {
		return nil, fmt.Errorf("hnsw: %w", err)
	}
	if err := h.metric.CheckVector(query); err != nil {
		return nil, fmt.Errorf("hnsw: %w", err)
	}
	var candidates []uint32
	if k <= 0 || k >= h.count {
		for i, nd := range h.nodes {
			if nd != nil {
				candidates = append(candidates, uint32(i))
			}
		}
	} else {
		q := h.workVector(query)
		cur := h.greedy(q, uint32(h.entryID), h.maxLevel, 0)
		candidates = h.searchLayer(q, []uint32{cur}, max(h.cfg.EfSearch, k), 0)
	}
	hits := make([]index.Hit, 0, len(candidates))
	for _, c := range candidates {
		nd := h.nodes[c]
		if nd == nil {
			continue
		}
		s, err := h.metric.Score(query, nd.entry.Vector)
		if err != nil {
			return nil, fmt.Errorf("hnsw: %w", err)
		}
		hits = append(hits, nd.entry.Hit(s))
	}
	return index.TopK(hits, k), nil
}

func (h *Index) Entries() []index.Entry {
	out := make([]index.Entry, 0, h.count)
	for _, nd := range h.nodes {
		if nd != nil {
			out = append(out, nd.entry)
		}
	}
	return out
}

func (h *Index) Len() int { return h.count }

func (h *Index) Dimension() int { return h.dim }

func (h *Index) Metric() vector.Metric { return h.metric }

// randomLevel draws from P(level >= l) = exp(-l * ln(M)).
func (h *Index) randomLevel() int {
	r := max(h.rng.Float64(), math.SmallestNonzeroFloat64)
	return min(int(-math.Log(r)*h.levelMul), 31)
}

func (h *Index) searchLayer(query []float32, entryPoints []uint32, ef int, layer int) []uint32 {
	visited := make(map[uint32]struct{}, ef*2)
	var candidates minDistHeap
	var results maxDistHeap
	for _, ep := range entryPoints {
		nd := h.nodes[ep]
		if nd == nil {
			continue
		}
		visited[ep] = struct{}{}
		d := h.distance(query, nd.work)
		heap.Push(&candidates, distItem{id: ep, dist: d})
		heap.Push(&results, distItem{id: ep, dist: d})
	}
	for candidates.Len() > 0 {
		closest := heap.Pop(&candidates).(distItem)
		if results.Len() >= ef && closest.dist > results[0].dist {
			break
		}
		nd := h.nodes[closest.id]
		if nd == nil || layer >= len(nd.friends) {
			continue
		}
		for _, fID := range nd.friends[layer] {
			if _, seen := visited[fID]; seen {
				continue
			}
			visited[fID] = struct{}{}
			fn := h.nodes[fID]
			if fn == nil {
				continue
			}
			d := h.distance(query, fn.work)
			if results.Len() < ef || d < results[0].dist {
				heap.Push(&candidates, distItem{id: fID, dist: d})
				heap.Push(&results, distItem{id: fID, dist: d})
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}
	out := make([]uint32, results.Len())
	for i := range out {
		out[i] = results[i].id
	}
	return out
}

// selectClosest keeps the maxN candidates nearest to query, ties by slot.
func (h *Index) selectClosest(query []float32, candidates []uint32, maxN int) []uint32 {
	if len(candidates) <= maxN {
		return append([]uint32(nil), candidates...)
	}
	items := make([]distItem, 0, len(candidates))
	for _, c := range candidates {
		if h.nodes[c] == nil {
			continue
		}
		items = append(items, distItem{id: c, dist: h.distance(query, h.nodes[c].work)})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].dist != items[j].dist {
			return items[i].dist < items[j].dist
		}
		return items[i].id < items[j].id
	})
	if len(items) > maxN {
		items = items[:maxN]
	}
	out := make([]uint32, len(items))
	for i := range items {
		out[i] = items[i].id
	}
	return out
}

func (h *Index) removeNode(idx uint32) {
	nd := h.nodes[idx]
	if nd == nil {
		return
	}
	for lev := 0; lev < len(nd.friends); lev++ {
		for _, fID := range nd.friends[lev] {
			fn := h.nodes[fID]
			if fn == nil || lev >= len(fn.friends) {
				continue
			}
			fn.friends[lev] = removeFrom(fn.friends[lev], idx)
		}
	}
	delete(h.idMap, [2]string{nd.entry.ID, nd.entry.Key})
	h.nodes[idx] = nil
	h.free = append(h.free, idx)
	h.count--
	if h.entryID == int32(idx) {
		h.findNewEntry()
	}
}

func (h *Index) findNewEntry() {
	if h.count == 0 {
		h.entryID = -1
		h.maxLevel = 0
		return
	}
	best, bestLevel := int32(-1), -1
	for i, nd := range h.nodes {
		if nd != nil && nd.level > bestLevel {
			best, bestLevel = int32(i), nd.level
		}
	}
	h.entryID = best
	h.maxLevel = bestLevel
}

func removeFrom(s []uint32, val uint32) []uint32 {
	for i, v := range s {
		if v == val {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

var _ index.Index = (*Index)(nil)
