package kmknn

// Matrix is the minimal contract an IndexBuilder needs from an input
// source: its shape, and random access to each row in original order.
// Generic matrix abstractions (sparse, memory-mapped, ...) are a host
// program's concern; this interface is the only thing the core needs
// from one.
type Matrix interface {
	Dims() (nobs, dim int)
	Row(i int) []float64
}

// SliceMatrix adapts an in-memory [][]float64 to Matrix. Every row must
// share the same length.
type SliceMatrix [][]float64

func (m SliceMatrix) Dims() (nobs, dim int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

func (m SliceMatrix) Row(i int) []float64 { return m[i] }

// Numeric is any input element type ToCommon knows how to promote into
// the float64 representation pkg/kmknn stores internally.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// ToCommon converts a row-major nobs*dim matrix of any Numeric element
// type into the float64 Common representation, element-wise. This is the
// single place the Data->Common promotion happens, in place of scattered
// implicit casts.
func ToCommon[T Numeric](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// Float32Matrix adapts an in-memory [][]float32 source to Matrix,
// converting each row to Common on access.
type Float32Matrix [][]float32

func (m Float32Matrix) Dims() (nobs, dim int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

func (m Float32Matrix) Row(i int) []float64 { return ToCommon(m[i]) }
