package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EmbeddingSize is the encoded size in bytes of a dim-dimensional vector.
func EmbeddingSize(dim int) int { return 4 * dim }

// AppendEmbedding appends vec to dst as little-endian IEEE 754 float32
// values. The layout carries no length prefix; the SQLite store, the vec_*
// SQL functions and index snapshots all derive the dimension elsewhere.
func AppendEmbedding(dst []byte, vec []float32) []byte {
	for _, v := range vec {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// EncodeEmbedding returns the BLOB form of vec; an empty vector encodes to nil.
func EncodeEmbedding(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	return AppendEmbedding(make([]byte, 0, EmbeddingSize(len(vec))), vec), nil
}

// DecodeEmbedding is the inverse of EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: embedding blob length %d is not a multiple of 4", ErrInvalidVector, len(b))
	}
	vec := make([]float32, 0, len(b)/4)
	for off := 0; off < len(b); off += 4 {
		vec = append(vec, math.Float32frombits(binary.LittleEndian.Uint32(b[off:])))
	}
	return vec, nil
}
