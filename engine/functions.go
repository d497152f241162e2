package engine

import (
	"database/sql"
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	sqlite "modernc.org/sqlite"
)

type scalarFunction struct {
	name string
	impl func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error)
}

// vectorFunctions are registered in this order.
var vectorFunctions = []scalarFunction{
	{name: "vec_cosine", impl: vecCosineImpl},
	{name: "vec_dot", impl: vecDotImpl},
	{name: "vec_l2", impl: vecL2Impl},
}

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterVectorFunctions registers vec_cosine, vec_dot and vec_l2 with the
// driver so they are available on new connections opened after this call.
// Registration happens once per process; every call returns its outcome.
// Note: existing open connections will not see new functions.
func RegisterVectorFunctions(_ *sql.DB) error {
	registerOnce.Do(func() {
		registerErr = registerFunctions(vectorFunctions, sqlite.RegisterDeterministicScalarFunction)
	})
	return registerErr
}

func registerFunctions(fns []scalarFunction, register func(string, int32, func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error)) error) error {
	for _, fn := range fns {
		if err := register(fn.name, 2, fn.impl); err != nil {
			return fmt.Errorf("engine: register %s: %w", fn.name, err)
		}
	}
	return nil
}

// binaryArgs decodes the two BLOB arguments shared by every vec_* function.
// A NULL on either side yields (nil, nil, nil) so the SQL result is NULL.
func binaryArgs(name string, args []driver.Value) ([]float32, []float32, error) {
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
	}
	a, err := asEmbedding(args[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := asEmbedding(args[1])
	if err != nil {
		return nil, nil, err
	}
	if a == nil || b == nil {
		return nil, nil, nil
	}
	return a, b, nil
}

func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return decodeEmbedding(v)
	default:
		return nil, fmt.Errorf("vec: unsupported argument type %T for embedding; want BLOB", arg)
	}
}

func vecCosineImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, b, err := binaryArgs("vec_cosine", args)
	if err != nil || a == nil {
		return nil, err
	}
	sim, err := cosine(a, b)
	if err != nil {
		return nil, err
	}
	return sim, nil
}

func vecDotImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, b, err := binaryArgs("vec_dot", args)
	if err != nil || a == nil {
		return nil, err
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vec: dot dim mismatch %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

func vecL2Impl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, b, err := binaryArgs("vec_l2", args)
	if err != nil || a == nil {
		return nil, err
	}
	d, err := l2(a, b)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Local helpers; package vector imports engine in its tests.
func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vec: invalid embedding blob length %d", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vec: cosine dim mismatch %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vec: cosine on empty vectors")
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, fmt.Errorf("vec: cosine with zero-magnitude vector")
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

func l2(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vec: L2 dim mismatch %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
