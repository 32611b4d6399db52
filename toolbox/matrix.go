package toolbox

import (
	"fmt"
	"math/rand"
	"slices"
)

// Matrix is a dense 2-D float32 matrix stored in row-major order.
//
// Arithmetic never modifies its operands; every operation allocates and
// returns a new Matrix.
type Matrix struct {
	V    []float32
	Rows int
	Cols int
}

// Zeros returns an all-zero matrix of the given shape.
func Zeros(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("invalid shape: %dx%d", rows, cols))
	}
	return &Matrix{
		V:    make([]float32, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

// Random returns a matrix with entries drawn uniformly from [-1, 1).
func Random(rows, cols int, r *rand.Rand) *Matrix {
	m := Zeros(rows, cols)
	for i := range m.V {
		m.V[i] = r.Float32()*2 - 1
	}
	return m
}

// FromSlice wraps v as a rows x cols matrix.  v is copied.
func FromSlice(rows, cols int, v []float32) (*Matrix, error) {
	if rows < 0 || cols < 0 || len(v) != rows*cols {
		return nil, fmt.Errorf("%w: %d values cannot fill a %dx%d matrix", ErrShapeMismatch, len(v), rows, cols)
	}
	return &Matrix{
		V:    slices.Clone(v),
		Rows: rows,
		Cols: cols,
	}, nil
}

// FromRows builds a matrix from nested rows.  Every row must have the same
// length as the first.
func FromRows(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrShapeMismatch)
	}
	cols := len(rows[0])
	m := Zeros(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrShapeMismatch, i, len(row), cols)
		}
		copy(m.V[i*cols:], row)
	}
	return m, nil
}

// ColumnVector returns v as a len(v) x 1 matrix.
func ColumnVector(v []float32) *Matrix {
	return &Matrix{
		V:    slices.Clone(v),
		Rows: len(v),
		Cols: 1,
	}
}

func (m *Matrix) Clone() *Matrix {
	return &Matrix{
		V:    slices.Clone(m.V),
		Rows: m.Rows,
		Cols: m.Cols,
	}
}

func (m *Matrix) At(i, j int) float32 {
	return m.V[i*m.Cols+j]
}

func (m *Matrix) Set(i, j int, v float32) {
	m.V[i*m.Cols+j] = v
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float32 {
	return slices.Clone(m.V[i*m.Cols : (i+1)*m.Cols])
}

// Flatten returns a copy of the entries in row-major order.
func (m *Matrix) Flatten() []float32 {
	return slices.Clone(m.V)
}

func (m *Matrix) SameShape(o *Matrix) bool {
	return m.Rows == o.Rows && m.Cols == o.Cols
}

// Equal reports whether m and o have the same shape and bit-identical entries.
func (m *Matrix) Equal(o *Matrix) bool {
	return m.SameShape(o) && slices.Equal(m.V, o.V)
}

func (m *Matrix) String() string {
	return fmt.Sprintf("%dx%d%v", m.Rows, m.Cols, m.V)
}

func shapeError(op string, a, b *Matrix) error {
	return fmt.Errorf("%w: cannot %s %dx%d with %dx%d", ErrShapeMismatch, op, a.Rows, a.Cols, b.Rows, b.Cols)
}

// Add returns a + b.
func Add(a, b *Matrix) (*Matrix, error) {
	if !a.SameShape(b) {
		return nil, shapeError("add", a, b)
	}
	out := Zeros(a.Rows, a.Cols)
	for i := range out.V {
		out.V[i] = a.V[i] + b.V[i]
	}
	return out, nil
}

// Sub returns a - b.
func Sub(a, b *Matrix) (*Matrix, error) {
	if !a.SameShape(b) {
		return nil, shapeError("subtract", a, b)
	}
	out := Zeros(a.Rows, a.Cols)
	for i := range out.V {
		out.V[i] = a.V[i] - b.V[i]
	}
	return out, nil
}

// Hadamard returns the elementwise product of a and b.  This is not the matrix
// product; see Mul for that.
func Hadamard(a, b *Matrix) (*Matrix, error) {
	if !a.SameShape(b) {
		return nil, shapeError("elementwise multiply", a, b)
	}
	out := Zeros(a.Rows, a.Cols)
	for i := range out.V {
		out.V[i] = a.V[i] * b.V[i]
	}
	return out, nil
}

// Scale returns a with every entry multiplied by k.
func Scale(a *Matrix, k float32) *Matrix {
	out := Zeros(a.Rows, a.Cols)
	for i := range out.V {
		out.V[i] = a.V[i] * k
	}
	return out
}

func Transpose(a *Matrix) *Matrix {
	out := Zeros(a.Cols, a.Rows)
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < a.Cols; j++ {
			out.Set(j, i, a.At(i, j))
		}
	}
	return out
}

// Map applies f to every entry of a.  f must be pure; the traversal order is
// unspecified.
func Map(a *Matrix, f func(float32) float32) *Matrix {
	out := Zeros(a.Rows, a.Cols)
	for i, v := range a.V {
		out.V[i] = f(v)
	}
	return out
}

// Mul returns the matrix product a * b using the sequential reference
// implementation.
func Mul(a, b *Matrix) (*Matrix, error) {
	return SequentialMultiplier{}.Multiply(a, b)
}
