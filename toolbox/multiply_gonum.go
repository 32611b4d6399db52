package toolbox

import (
	"gonum.org/v1/gonum/mat"
)

// GonumMultiplier computes products with gonum's BLAS-backed mat.Dense.
// Operands are widened to float64 for the product and narrowed back, so
// results can differ from SequentialMultiplier in the last few bits.
type GonumMultiplier struct{}

var _ Multiplier = GonumMultiplier{}

func (GonumMultiplier) Multiply(a, b *Matrix) (*Matrix, error) {
	if err := checkMultiplyShapes(a, b); err != nil {
		return nil, err
	}
	out := Zeros(a.Rows, b.Cols)

	// gonum panics on zero-sized matrices.
	if a.Rows == 0 || a.Cols == 0 || b.Cols == 0 {
		return out, nil
	}

	var prod mat.Dense
	prod.Mul(toDense(a), toDense(b))

	raw := prod.RawMatrix()
	for i := 0; i < out.Rows; i++ {
		for j := 0; j < out.Cols; j++ {
			out.Set(i, j, float32(raw.Data[i*raw.Stride+j]))
		}
	}
	return out, nil
}

func toDense(m *Matrix) *mat.Dense {
	data := make([]float64, len(m.V))
	for i, v := range m.V {
		data[i] = float64(v)
	}
	return mat.NewDense(m.Rows, m.Cols, data)
}
