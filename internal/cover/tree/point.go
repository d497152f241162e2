package tree

// Point represents a vector in the cover tree. Magnitude is filled on insert
// when left zero.
type Point struct {
	index     int32
	Magnitude float32
	Vector    []float32
}

// HasValue reports whether the point was inserted and carries a value.
func (p *Point) HasValue() bool {
	return p != nil && p.index >= 0
}

// NewPoint constructs a detached point for the given vector; use it for
// queries or pass it to Insert.
func NewPoint(vector ...float32) *Point {
	return &Point{index: -1, Vector: vector}
}
