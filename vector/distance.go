package vector

import (
	"fmt"
	"math"
	"strings"
)

// Metric selects how two vectors are compared. Scores are always
// "higher is more similar":
//   - Cosine: cosine similarity in [-1, 1]
//   - Dot: raw inner product
//   - Euclidean: 1 / (1 + L2 distance)
type Metric string

const (
	Cosine    Metric = "cosine"
	Dot       Metric = "dot"
	Euclidean Metric = "euclidean"
)

// ParseMetric accepts the canonical names plus the common aliases used in
// SQL options and config files.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cos", "cosine":
		return Cosine, nil
	case "dot", "ip", "inner_product":
		return Dot, nil
	case "l2", "euclid", "euclidean":
		return Euclidean, nil
	}
	return "", fmt.Errorf("vector: unknown metric %q", s)
}

// Validate reports whether m is one of the supported metrics.
func (m Metric) Validate() error {
	switch m {
	case Cosine, Dot, Euclidean:
		return nil
	}
	return fmt.Errorf("vector: unknown metric %q", string(m))
}

// CheckVector validates v for use under m. Cosine rejects zero-magnitude
// vectors; every metric rejects NaN and Inf components.
func (m Metric) CheckVector(v []float32) error {
	var sq float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite component", ErrInvalidVector)
		}
		sq += f * f
	}
	if m == Cosine && sq == 0 {
		return fmt.Errorf("%w: zero-magnitude vector under cosine", ErrInvalidVector)
	}
	return nil
}

// Score compares a and b under m.
func (m Metric) Score(a, b []float32) (float64, error) {
	switch m {
	case Cosine:
		return CosineSimilarity(a, b)
	case Dot:
		return DotProduct(a, b)
	case Euclidean:
		d, err := L2Distance(a, b)
		if err != nil {
			return 0, err
		}
		return 1 / (1 + d), nil
	}
	return 0, m.Validate()
}

// ScoreWithNorms is Score with precomputed magnitudes for a and b. Norms are
// only consulted for Cosine.
func (m Metric) ScoreWithNorms(a, b []float32, na, nb float64) (float64, error) {
	if m != Cosine {
		return m.Score(a, b)
	}
	if len(a) != len(b) {
		return 0, DimensionError(len(b), len(a))
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("%w: zero-magnitude vector under cosine", ErrInvalidVector)
	}
	return dot(a, b) / (na * nb), nil
}

// Magnitude returns the L2 norm of v.
func Magnitude(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

// CosineSimilarity computes the cosine similarity between two vectors. It
// returns an error if the vectors have different lengths or if either vector
// has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, DimensionError(len(b), len(a))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: empty vectors", ErrInvalidVector)
	}
	var d, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		d += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, fmt.Errorf("%w: zero-magnitude vector under cosine", ErrInvalidVector)
	}
	return d / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

// DotProduct computes the inner product of two vectors.
func DotProduct(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, DimensionError(len(b), len(a))
	}
	return dot(a, b), nil
}

// L2Distance computes the Euclidean (L2) distance between two vectors. It
// returns an error if the vectors have different lengths.
func L2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, DimensionError(len(b), len(a))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
