package tree

// Neighbor describes a candidate returned by a kNN search.
type Neighbor struct {
	Point    *Point
	Distance float32
}

// neighborHeap is a max-heap whose root is the worst retained neighbor
// according to worse.
type neighborHeap struct {
	items []Neighbor
	worse func(a, b Neighbor) bool
}

func (h *neighborHeap) Len() int           { return len(h.items) }
func (h *neighborHeap) Less(i, j int) bool { return h.worse(h.items[i], h.items[j]) }
func (h *neighborHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *neighborHeap) Push(x interface{}) {
	h.items = append(h.items, x.(Neighbor))
}

func (h *neighborHeap) Pop() interface{} {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}

func (h *neighborHeap) top() Neighbor { return h.items[0] }
