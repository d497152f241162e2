package tree

// The insertion and pruned depth-first search follow github.com/viant/gds/tree/cover.

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/viant/vec/search"
)

// Tree is a cover tree answering exact kNN queries under a metric distance.
// Pruning uses the triangle inequality, so the distance function must be a
// true metric for results to be exact; cosine distance is not, and callers
// that need cosine ranking should insert unit vectors under the euclidean
// distance instead.
type Tree[T any] struct {
	root          *node
	base          float32
	distanceFunc  DistanceFunc
	values        values[T]
	size          int
	version       uint64
	boundStrategy BoundStrategy
	order         func(a, b T) bool
	mu            sync.RWMutex
}

// BoundStrategy selects which lower-bound radius to use when pruning.
type BoundStrategy int

const (
	// BoundPerNode uses the cached subtree radius; results are exact.
	BoundPerNode BoundStrategy = iota
	// BoundLevel uses a geometric bound derived from the node level. It is
	// cheaper but only approximate with this insertion routine.
	BoundLevel
)

// NewTree constructs a cover tree with the provided base and distance metric.
func NewTree[T any](base float32, distanceFn DistanceFunction) *Tree[T] {
	if base <= 1 {
		base = 1.3
	}
	fn := distanceFn.Function()
	if fn == nil {
		fn = DistanceFunctionEuclidean.Function()
	}
	return &Tree[T]{
		base:          base,
		distanceFunc:  fn,
		boundStrategy: BoundPerNode,
	}
}

// SetBoundStrategy switches the pruning strategy.
func (t *Tree[T]) SetBoundStrategy(s BoundStrategy) {
	t.mu.Lock()
	t.boundStrategy = s
	t.mu.Unlock()
}

// SetOrder installs a total order on values used to break distance ties, so
// equally distant points are kept and returned deterministically.
func (t *Tree[T]) SetOrder(less func(a, b T) bool) {
	t.mu.Lock()
	t.order = less
	t.mu.Unlock()
}

// Len returns the number of inserted points.
func (t *Tree[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Insert adds a new value/vector pair to the tree and returns its index.
func (t *Tree[T]) Insert(value T, point *Point) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	point.index = t.values.put(value)
	if point.Magnitude == 0 && len(point.Vector) > 0 {
		point.Magnitude = search.Float32s(point.Vector).Magnitude()
	}
	if t.root == nil {
		root := newNode(point, 0, t.base)
		t.root = &root
	} else {
		t.insert(t.root, point, 0)
	}
	t.size++
	t.version++
	return point.index
}

// Value returns the stored value for the given point.
func (t *Tree[T]) Value(point *Point) T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var zero T
	if point == nil || !point.HasValue() {
		return zero
	}
	return t.values.value(point.index)
}

func (t *Tree[T]) insert(n *node, point *Point, level int32) {
	for {
		baseLevel := levelScale(t.base, level)
		distance := t.distanceFunc(point, n.point)
		if distance < baseLevel {
			inserted := false
			for i := range n.children {
				child := &n.children[i]
				if t.distanceFunc(point, child.point) < baseLevel {
					n = child
					level--
					inserted = true
					break
				}
			}
			if !inserted {
				n.children = append(n.children, newNode(point, level-1, t.base))
				return
			}
		} else {
			level++
			if level > n.level {
				newRoot := newNode(point, level, t.base)
				newRoot.children = append(newRoot.children, *t.root)
				t.root = &newRoot
				return
			}
		}
	}
}

// worse reports whether a ranks after b: farther, or equally far with a
// value that orders after b's.
func (t *Tree[T]) worse(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	if t.order == nil {
		return a.Point.index > b.Point.index
	}
	return t.order(t.values.value(b.Point.index), t.values.value(a.Point.index))
}

// KNearestNeighbors runs a pruned depth-first kNN search and returns up to k
// neighbors nearest first.
func (t *Tree[T]) KNearestNeighbors(point *Point, k int) []*Neighbor {
	// BoundPerNode lazily caches subtree radii, which mutates nodes.
	if t.boundStrategy == BoundPerNode {
		t.mu.Lock()
		defer t.mu.Unlock()
	} else {
		t.mu.RLock()
		defer t.mu.RUnlock()
	}
	if t.root == nil || k <= 0 {
		return nil
	}
	h := &neighborHeap{worse: t.worse}
	t.kNearestNeighbors(t.root, point, k, h)
	result := make([]*Neighbor, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		n := heap.Pop(h).(Neighbor)
		result[i] = &n
	}
	return result
}

func (t *Tree[T]) kNearestNeighbors(n *node, point *Point, k int, h *neighborHeap) {
	cand := Neighbor{Point: n.point, Distance: t.distanceFunc(point, n.point)}
	if h.Len() < k {
		heap.Push(h, cand)
	} else if t.worse(h.top(), cand) {
		heap.Pop(h)
		heap.Push(h, cand)
	}
	if len(n.children) == 0 {
		return
	}
	type childDist struct {
		child *node
		dist  float32
	}
	cds := make([]childDist, 0, len(n.children))
	for i := range n.children {
		child := &n.children[i]
		cds = append(cds, childDist{child: child, dist: t.distanceFunc(point, child.point)})
	}
	sort.Slice(cds, func(i, j int) bool { return cds[i].dist < cds[j].dist })
	for _, cd := range cds {
		// Strict comparison keeps subtrees that may hold ties for the worst slot.
		if h.Len() == k && cd.dist-t.boundRadius(cd.child) > h.top().Distance {
			continue
		}
		t.kNearestNeighbors(cd.child, point, k, h)
	}
}

func (t *Tree[T]) boundRadius(n *node) float32 {
	if t.boundStrategy == BoundLevel {
		return n.levelRadius(t.base)
	}
	return n.subtreeRadius(t.version, t.distanceFunc)
}
