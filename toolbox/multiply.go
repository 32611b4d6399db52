package toolbox

import (
	"runtime"
	"sync"
)

// Multiplier computes conventional matrix products.  Implementations must
// reject a.Cols != b.Rows with ErrShapeMismatch and otherwise return an
// a.Rows x b.Cols matrix whose entry [i][j] is the inner product of row i of a
// and column j of b.  They may differ from SequentialMultiplier only by
// floating-point reassociation.
type Multiplier interface {
	Multiply(a, b *Matrix) (*Matrix, error)
}

func checkMultiplyShapes(a, b *Matrix) error {
	if a.Cols != b.Rows {
		return shapeError("multiply", a, b)
	}
	return nil
}

// SequentialMultiplier is the reference single-goroutine product.
type SequentialMultiplier struct{}

var _ Multiplier = SequentialMultiplier{}

func (SequentialMultiplier) Multiply(a, b *Matrix) (*Matrix, error) {
	if err := checkMultiplyShapes(a, b); err != nil {
		return nil, err
	}
	out := Zeros(a.Rows, b.Cols)
	for i := 0; i < a.Rows; i++ {
		multiplyRow(a, b, out, i)
	}
	return out, nil
}

// multiplyRow fills row i of out.  Rows are independent of each other, which
// is what lets ParallelMultiplier split the work.
func multiplyRow(a, b, out *Matrix, i int) {
	inner := a.Cols
	aRow := a.V[i*inner : i*inner+inner]
	outRow := out.V[i*out.Cols : i*out.Cols+out.Cols]
	for j := range outRow {
		var sum float32
		for k, av := range aRow {
			sum += av * b.V[k*b.Cols+j]
		}
		outRow[j] = sum
	}
}

// ParallelMultiplier splits the output rows into chunks computed on separate
// goroutines.  Each output entry is accumulated in the same order as
// SequentialMultiplier, so results are bit-identical.
type ParallelMultiplier struct {
	// Workers is the number of goroutines.  Zero means runtime.NumCPU().
	Workers int

	// MinRows is the smallest chunk of output rows handed to one goroutine.
	// Products with fewer rows run sequentially.  Zero means 16.
	MinRows int
}

var _ Multiplier = ParallelMultiplier{}

func (p ParallelMultiplier) Multiply(a, b *Matrix) (*Matrix, error) {
	if err := checkMultiplyShapes(a, b); err != nil {
		return nil, err
	}
	out := Zeros(a.Rows, b.Cols)
	parallelFor(a.Rows, p.workers(), p.minRows(), func(i int) {
		multiplyRow(a, b, out, i)
	})
	return out, nil
}

func (p ParallelMultiplier) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.NumCPU()
}

func (p ParallelMultiplier) minRows() int {
	if p.MinRows > 0 {
		return p.MinRows
	}
	return 16
}

// parallelFor runs f(i) for i in [0, n), in chunks of at least minChunk
// indices spread over up to workers goroutines.
func parallelFor(n, workers, minChunk int, f func(i int)) {
	if workers <= 1 || n < minChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunkSize := max((n+workers-1)/workers, minChunk)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}
