package tree

import "math"

// node is a cover-tree node. Its children sit one level below and were
// placed within scale of its point.
type node struct {
	level    int32
	scale    float32
	point    *Point
	children []node
	radius   float32
	radiusAt uint64
}

func newNode(point *Point, level int32, base float32) node {
	return node{level: level, scale: levelScale(base, level), point: point}
}

// levelScale is base^level, the covering distance of a level.
func levelScale(base float32, level int32) float32 {
	return float32(math.Pow(float64(base), float64(level)))
}

// subtreeRadius returns the largest distance from n to any descendant. The
// value is cached until the tree version changes.
func (n *node) subtreeRadius(version uint64, dist DistanceFunc) float32 {
	if n.radiusAt == version {
		return n.radius
	}
	var r float32
	for i := range n.children {
		child := &n.children[i]
		r = max(r, dist(n.point, child.point)+child.subtreeRadius(version, dist))
	}
	n.radius, n.radiusAt = r, version
	return r
}

// levelRadius is the geometric series bound base^level * base/(base-1).
func (n *node) levelRadius(base float32) float32 {
	if base <= 1 {
		return math.MaxFloat32
	}
	return n.scale * base / (base - 1)
}
